// models/webhook_event.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebhookEvent records a billing event by its provider-assigned id to
// enforce at-most-once side effects across provider retries. A unique
// index over ProviderEventID makes the claim atomic.
type WebhookEvent struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProviderEventID string             `bson:"providerEventId" json:"providerEventId"`
	Type            string             `bson:"type" json:"type"`
	Processed       bool               `bson:"processed" json:"processed"`
	ReceivedAt      time.Time          `bson:"receivedAt" json:"receivedAt"`
	ProcessedAt     *time.Time         `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
}
