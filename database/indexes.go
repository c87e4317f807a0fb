// database/indexes.go
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsmanager/config"
)

// indexSpecs returns the indexes the application depends on for
// correctness, keyed by collection name. Webhook idempotency relies on
// the unique index over providerEventId: concurrent retries race on the
// insert and exactly one wins. Likewise, the unique index over
// approvals.agentRunId makes one-approval-per-run hold under races.
func indexSpecs() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		"webhook_events": {
			{
				Keys:    bson.D{{Key: "providerEventId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		"inbound_emails": {
			{
				Keys:    bson.D{{Key: "organizationId", Value: 1}, {Key: "providerMessageId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		"profiles": {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		"approvals": {
			{
				Keys:    bson.D{{Key: "agentRunId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "status", Value: 1}}},
		},
		"audit_logs": {
			{Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
}

// EnsureIndexes creates every index from indexSpecs on startup.
func EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := Client.Database(config.DatabaseName)

	for collection, models := range indexSpecs() {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
