package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func findIndex(t *testing.T, collection string, keys bson.D) mongo.IndexModel {
	t.Helper()
	for _, model := range indexSpecs()[collection] {
		if assert.ObjectsAreEqual(keys, model.Keys) {
			return model
		}
	}
	t.Fatalf("no index on %s with keys %v", collection, keys)
	return mongo.IndexModel{}
}

func isUnique(model mongo.IndexModel) bool {
	return model.Options != nil && model.Options.Unique != nil && *model.Options.Unique
}

func TestIndexSpecsUniqueConstraints(t *testing.T) {
	// Idempotency and one-per-key guarantees hold only if these indexes
	// are unique.
	unique := []struct {
		collection string
		keys       bson.D
	}{
		{"webhook_events", bson.D{{Key: "providerEventId", Value: 1}}},
		{"inbound_emails", bson.D{{Key: "organizationId", Value: 1}, {Key: "providerMessageId", Value: 1}}},
		{"profiles", bson.D{{Key: "email", Value: 1}}},
		{"approvals", bson.D{{Key: "agentRunId", Value: 1}}},
	}
	for _, tc := range unique {
		assert.True(t, isUnique(findIndex(t, tc.collection, tc.keys)),
			"expected unique index on %s %v", tc.collection, tc.keys)
	}
}

func TestIndexSpecsQueryIndexes(t *testing.T) {
	// Plain (non-unique) indexes backing the common list queries.
	plain := []struct {
		collection string
		keys       bson.D
	}{
		{"approvals", bson.D{{Key: "organizationId", Value: 1}, {Key: "status", Value: 1}}},
		{"audit_logs", bson.D{{Key: "organizationId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	for _, tc := range plain {
		assert.False(t, isUnique(findIndex(t, tc.collection, tc.keys)),
			"index on %s %v should not be unique", tc.collection, tc.keys)
	}
}
