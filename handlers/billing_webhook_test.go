package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"opsmanager/config"
	"opsmanager/models"
	"opsmanager/utils"
)

// fakeBillingStore keeps the idempotency bookkeeping in memory so the
// processing contract can be exercised without Mongo.
type fakeBillingStore struct {
	mu         sync.Mutex
	events     map[string]bool // event id -> processed
	statuses   map[string]string
	applyCalls int
	failApply  error
	failMark   bool
}

func newFakeBillingStore() *fakeBillingStore {
	return &fakeBillingStore{
		events:   make(map[string]bool),
		statuses: make(map[string]string),
	}
}

func (s *fakeBillingStore) ClaimEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if processed, ok := s.events[eventID]; ok {
		if processed {
			return true, nil
		}
		return false, errEventInFlight
	}
	s.events[eventID] = false
	return false, nil
}

func (s *fakeBillingStore) MarkProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMark {
		return errors.New("mark failed")
	}
	s.events[eventID] = true
	return nil
}

func (s *fakeBillingStore) ReleaseEvent(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, eventID)
	return nil
}

func (s *fakeBillingStore) SetBillingStatus(ctx context.Context, orgID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCalls++
	if s.failApply != nil {
		return s.failApply
	}
	s.statuses[orgID] = status
	return nil
}

func billingEvent(id, typ, orgID, status string) *BillingEvent {
	e := &BillingEvent{ID: id, Type: typ}
	e.Data.OrganizationID = orgID
	e.Data.BillingStatus = status
	return e
}

func TestProcessBillingEventAppliesOnce(t *testing.T) {
	store := newFakeBillingStore()
	event := billingEvent("evt_1", "subscription.updated", "org1", models.BillingActive)

	status, err := processBillingEvent(context.Background(), store, event)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.BillingActive, store.statuses["org1"])
	assert.Equal(t, 1, store.applyCalls)

	// Replay: acknowledged, side effect not reapplied.
	status, err = processBillingEvent(context.Background(), store, event)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, store.applyCalls)
}

func TestProcessBillingEventTransientFailureRetries(t *testing.T) {
	store := newFakeBillingStore()
	store.failApply = errors.New("db timeout")
	event := billingEvent("evt_2", "subscription.canceled", "org1", "")

	status, err := processBillingEvent(context.Background(), store, event)
	assert.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)

	// The claim was released, so the provider retry applies the effect.
	store.failApply = nil
	status, err = processBillingEvent(context.Background(), store, event)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.BillingCanceled, store.statuses["org1"])
}

func TestProcessBillingEventInFlightClaimSignalsRetry(t *testing.T) {
	store := newFakeBillingStore()
	event := billingEvent("evt_race", "subscription.updated", "org1", models.BillingActive)

	// A concurrent delivery holds the claim but has not finished.
	store.events["evt_race"] = false

	// This delivery must not be acknowledged: if the holder fails and
	// releases, a 200 here would have stopped the provider's retries
	// and lost the event.
	status, err := processBillingEvent(context.Background(), store, event)
	assert.ErrorIs(t, err, errEventInFlight)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, 0, store.applyCalls)

	// The holder fails transiently and releases; the provider retry
	// now applies the effect exactly once.
	store.mu.Lock()
	delete(store.events, "evt_race")
	store.mu.Unlock()

	status, err = processBillingEvent(context.Background(), store, event)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, store.applyCalls)
	assert.Equal(t, models.BillingActive, store.statuses["org1"])
}

func TestProcessBillingEventNonRetryableAcknowledges(t *testing.T) {
	store := newFakeBillingStore()
	store.failApply = errUnknownOrganization
	event := billingEvent("evt_3", "subscription.updated", "org_missing", models.BillingActive)

	status, err := processBillingEvent(context.Background(), store, event)
	assert.Error(t, err)
	assert.Equal(t, http.StatusOK, status)

	// Marked processed: a redelivery does not retry the effect.
	calls := store.applyCalls
	status, _ = processBillingEvent(context.Background(), store, event)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, calls, store.applyCalls)
}

func TestProcessBillingEventUnknownTypeAcknowledged(t *testing.T) {
	store := newFakeBillingStore()
	event := billingEvent("evt_4", "customer.updated", "org1", "")

	status, err := processBillingEvent(context.Background(), store, event)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, store.applyCalls)
	assert.True(t, store.events["evt_4"])
}

func TestHandleBillingWebhookSignature(t *testing.T) {
	store := newFakeBillingStore()
	prev := billing
	billing = store
	defer func() { billing = prev }()

	prevSecret := config.BillingWebhookSecret
	config.BillingWebhookSecret = "whsec_test"
	defer func() { config.BillingWebhookSecret = prevSecret }()

	body, _ := json.Marshal(billingEvent("evt_5", "subscription.updated", "org1", models.BillingActive))

	// Missing signature: rejected, nothing processed.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	HandleBillingWebhook(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, store.events)
	assert.Equal(t, 0, store.applyCalls)

	// Bad signature: same, fail closed.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(body))
	req.Header.Set("X-Billing-Signature", utils.SignBillingPayload(body, "wrong_secret", time.Now()))
	rec = httptest.NewRecorder()
	HandleBillingWebhook(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, store.events)

	// Valid signature: processed.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(body))
	req.Header.Set("X-Billing-Signature", utils.SignBillingPayload(body, "whsec_test", time.Now()))
	rec = httptest.NewRecorder()
	HandleBillingWebhook(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.BillingActive, store.statuses["org1"])
}
