// models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Billing statuses mirror the payment provider's subscription states.
const (
	BillingTrialing = "trialing"
	BillingActive   = "active"
	BillingPastDue  = "past_due"
	BillingCanceled = "canceled"
)

type Organization struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	BillingStatus string             `bson:"billingStatus" json:"billingStatus"`
	// WebhookSecret signs org-scoped outbound callbacks; regenerated
	// by an owner, never returned in list responses.
	WebhookSecret string    `bson:"webhookSecret" json:"-"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
}
