// models/inbound_email.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	EmailReceived   = "received"
	EmailProcessing = "processing"
	EmailProcessed  = "processed"
	EmailFailed     = "failed"
	EmailIgnored    = "ignored"
)

type InboundEmail struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID    primitive.ObjectID `bson:"organizationId" json:"organizationId"`
	ProviderMessageID string             `bson:"providerMessageId" json:"providerMessageId"`
	From              string             `bson:"from" json:"from"`
	Subject           string             `bson:"subject" json:"subject"`
	Status            string             `bson:"status" json:"status"`
	// ProcessingError is set only when Status is failed; retrying
	// clears it together with the status reset.
	ProcessingError string              `bson:"processingError,omitempty" json:"processingError,omitempty"`
	AgentRunID      *primitive.ObjectID `bson:"agentRunId,omitempty" json:"agentRunId,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}
