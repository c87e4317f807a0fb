package handlers

import (
	"context"
	"errors"
	"os"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsmanager/authz"
	"opsmanager/models"
)

// recordAudit broadcasts to the hub; the loop must be draining it.
func TestMain(m *testing.M) {
	InitHub()
	os.Exit(m.Run())
}

type fakeAuditSink struct {
	mu      sync.Mutex
	entries []models.AuditLog
	fail    bool
}

func (s *fakeAuditSink) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("insert failed")
	}
	entry, ok := document.(models.AuditLog)
	if !ok {
		return nil, errors.New("unexpected document type")
	}
	s.entries = append(s.entries, entry)
	return &mongo.InsertOneResult{InsertedID: entry.ID}, nil
}

func testActor() authz.Actor {
	return authz.Actor{
		ProfileID:      primitive.NewObjectID().Hex(),
		Email:          "actor@example.com",
		Role:           authz.RoleOwner,
		OrganizationID: primitive.NewObjectID().Hex(),
	}
}

func TestRecordAuditAppendOnly(t *testing.T) {
	sink := &fakeAuditSink{}
	prev := auditSink
	auditSink = sink
	defer func() { auditSink = prev }()

	actor := testActor()
	const n = 10
	for i := 0; i < n; i++ {
		recordAudit(context.Background(), actor, "approval.approve", "approval", primitive.NewObjectID(), bson.M{"i": i})
	}

	// Exactly N entries, created in non-decreasing timestamp order.
	assert.Len(t, sink.entries, n)
	for i := 1; i < len(sink.entries); i++ {
		assert.False(t, sink.entries[i].CreatedAt.Before(sink.entries[i-1].CreatedAt),
			"entry %d predates entry %d", i, i-1)
	}

	for _, entry := range sink.entries {
		assert.Equal(t, "approval.approve", entry.Action)
		assert.Equal(t, "approval", entry.ResourceType)
		assert.Equal(t, actor.Email, entry.ActorEmail)
	}
}

func TestRecordAuditFailureDoesNotPanic(t *testing.T) {
	sink := &fakeAuditSink{fail: true}
	prev := auditSink
	auditSink = sink
	defer func() { auditSink = prev }()

	// A failed audit write is logged, never propagated; the primary
	// action must not be rolled back or blocked.
	assert.NotPanics(t, func() {
		recordAudit(context.Background(), testActor(), "email.retry_processing", "inbound_email", primitive.NewObjectID(), nil)
	})
	assert.Empty(t, sink.entries)
}

func TestRecordAuditNilSink(t *testing.T) {
	prev := auditSink
	auditSink = nil
	defer func() { auditSink = prev }()

	assert.NotPanics(t, func() {
		recordAudit(context.Background(), testActor(), "organization.update", "organization", primitive.NewObjectID(), nil)
	})
}

func TestActionPrefixPatternEscapesMetacharacters(t *testing.T) {
	cases := []struct {
		input   string
		matches []string
		misses  []string
	}{
		{"approval.", []string{"approval.approve", "approval.reject"}, []string{"approvalXapprove", "email.retry"}},
		{"approval.approve", []string{"approval.approve"}, []string{"approval.reject"}},
		// Regex metacharacters are treated as literals, never as syntax.
		{"approval.(", []string{"approval.(weird"}, []string{"approval.approve"}},
		{"a+b", []string{"a+b.run"}, []string{"aab", "ab"}},
	}
	for _, tc := range cases {
		re, err := regexp.Compile(actionPrefixPattern(tc.input))
		assert.NoError(t, err, "pattern for %q must compile", tc.input)
		for _, action := range tc.matches {
			assert.True(t, re.MatchString(action), "%q should match %q", tc.input, action)
		}
		for _, action := range tc.misses {
			assert.False(t, re.MatchString(action), "%q should not match %q", tc.input, action)
		}
	}
}
