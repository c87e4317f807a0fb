// handlers/billing_webhook_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"opsmanager/config"
	"opsmanager/models"
	"opsmanager/utils"
)

const billingSignatureHeader = "X-Billing-Signature"

// BillingEvent is the provider's webhook payload.
type BillingEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		OrganizationID string `json:"organizationId"`
		BillingStatus  string `json:"billingStatus"`
	} `json:"data"`
}

var (
	errUnknownOrganization = errors.New("organization not found for billing event")
	// errEventInFlight means another delivery holds an unprocessed
	// claim on the event id. Treated as transient: the provider must
	// retry, because the holder may still fail and release.
	errEventInFlight = errors.New("billing event claim held by concurrent delivery")
)

// billingStore isolates the idempotency bookkeeping and the billing
// side effect so the processing logic is testable without a live
// database.
type billingStore interface {
	// ClaimEvent atomically claims the event id. It reports whether the
	// event was already processed; a false return with nil error means
	// this caller owns the claim. A claim held by a concurrent
	// unfinished delivery yields errEventInFlight so the caller signals
	// a retry rather than acknowledging an effect that may never land.
	ClaimEvent(ctx context.Context, eventID, eventType string) (alreadyProcessed bool, err error)
	// MarkProcessed finalizes the claim after the side effect landed.
	MarkProcessed(ctx context.Context, eventID string) error
	// ReleaseEvent gives the claim back so a provider retry can
	// reprocess after a transient failure.
	ReleaseEvent(ctx context.Context, eventID string) error
	// SetBillingStatus applies the event's effect to the organization.
	SetBillingStatus(ctx context.Context, orgID, status string) error
}

var billing billingStore

// HandleBillingWebhook verifies, deduplicates and applies a billing
// provider event. Replays of a processed event id acknowledge without
// reapplying side effects; transient failures release the claim and
// signal 5xx so the provider retries.
func HandleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	// Fail closed: no header or bad signature means no processing at all.
	sig := r.Header.Get(billingSignatureHeader)
	if err := utils.VerifyBillingSignature(body, sig, config.BillingWebhookSecret, time.Now()); err != nil {
		log.Printf("Billing webhook rejected: %v", err)
		utils.RespondWithError(w, http.StatusUnauthorized, "Signature verification failed")
		return
	}

	var event BillingEvent
	if err := json.Unmarshal(body, &event); err != nil || event.ID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Malformed event payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status, err := processBillingEvent(ctx, billing, &event)
	if err != nil {
		log.Printf("Billing webhook %s (%s) failed: %v", event.ID, event.Type, err)
	}
	if status >= 500 {
		utils.RespondWithError(w, status, "Internal error, please retry")
		return
	}
	utils.RespondWithJSON(w, status, map[string]interface{}{"received": true, "success": true})
}

// processBillingEvent applies the event at most once. The returned
// status follows the provider's retry contract: 2xx acknowledges
// (including non-retryable business failures), 5xx requests a retry.
func processBillingEvent(ctx context.Context, store billingStore, event *BillingEvent) (int, error) {
	alreadyProcessed, err := store.ClaimEvent(ctx, event.ID, event.Type)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	if alreadyProcessed {
		// Idempotent replay: acknowledge, no side effects.
		return http.StatusOK, nil
	}

	if err := applyBillingEvent(ctx, store, event); err != nil {
		if errors.Is(err, errUnknownOrganization) {
			// Non-retryable: acknowledge so the provider stops
			// redelivering, but keep the event marked processed and
			// surface the failure in logs.
			if markErr := store.MarkProcessed(ctx, event.ID); markErr != nil {
				log.Printf("Billing webhook %s: mark processed failed: %v", event.ID, markErr)
			}
			return http.StatusOK, err
		}
		// Transient: release the claim so the provider retry reprocesses.
		if relErr := store.ReleaseEvent(ctx, event.ID); relErr != nil {
			log.Printf("Billing webhook %s: release claim failed: %v", event.ID, relErr)
		}
		return http.StatusInternalServerError, err
	}

	if err := store.MarkProcessed(ctx, event.ID); err != nil {
		return http.StatusInternalServerError, err
	}
	return http.StatusOK, nil
}

func applyBillingEvent(ctx context.Context, store billingStore, event *BillingEvent) error {
	switch event.Type {
	case "subscription.updated":
		return store.SetBillingStatus(ctx, event.Data.OrganizationID, event.Data.BillingStatus)
	case "subscription.canceled":
		return store.SetBillingStatus(ctx, event.Data.OrganizationID, models.BillingCanceled)
	case "invoice.payment_failed":
		return store.SetBillingStatus(ctx, event.Data.OrganizationID, models.BillingPastDue)
	default:
		// Unknown event types are acknowledged and ignored; retrying
		// them would never succeed.
		log.Printf("Billing webhook: ignoring unknown event type %q (%s)", event.Type, event.ID)
		return nil
	}
}

// mongoBillingStore backs the billing webhook with the webhook_events
// and organizations collections. The unique index on providerEventId
// makes ClaimEvent atomic under concurrent retries.
type mongoBillingStore struct {
	events *mongo.Collection
	orgs   *mongo.Collection
}

func (s *mongoBillingStore) ClaimEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	_, err := s.events.InsertOne(ctx, models.WebhookEvent{
		ID:              primitive.NewObjectID(),
		ProviderEventID: eventID,
		Type:            eventType,
		Processed:       false,
		ReceivedAt:      time.Now().UTC(),
	})
	if err == nil {
		return false, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, err
	}

	// Someone holds or held the claim. Only a processed event is a
	// true replay that may be acknowledged; an unprocessed claim means
	// a concurrent delivery is mid-flight and may yet fail and
	// release, so this delivery must not be acknowledged.
	var existing models.WebhookEvent
	if err := s.events.FindOne(ctx, bson.M{"providerEventId": eventID}).Decode(&existing); err != nil {
		if err == mongo.ErrNoDocuments {
			// Claim released between our insert and lookup; the
			// provider retry will take it.
			return false, errEventInFlight
		}
		return false, err
	}
	if !existing.Processed {
		return false, errEventInFlight
	}
	return true, nil
}

func (s *mongoBillingStore) MarkProcessed(ctx context.Context, eventID string) error {
	now := time.Now().UTC()
	_, err := s.events.UpdateOne(ctx,
		bson.M{"providerEventId": eventID},
		bson.M{"$set": bson.M{"processed": true, "processedAt": now}},
	)
	return err
}

func (s *mongoBillingStore) ReleaseEvent(ctx context.Context, eventID string) error {
	_, err := s.events.DeleteOne(ctx, bson.M{"providerEventId": eventID, "processed": false})
	return err
}

func (s *mongoBillingStore) SetBillingStatus(ctx context.Context, orgID, status string) error {
	id, err := primitive.ObjectIDFromHex(orgID)
	if err != nil {
		return errUnknownOrganization
	}
	result, err := s.orgs.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"billingStatus": status}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errUnknownOrganization
	}
	return nil
}
