// models/approval.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
	ApprovalExpired  = "expired"
)

const (
	RiskNone     = "none"
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// RequestedAction is one proposed operation awaiting a human decision.
// The server never executes these; on approval the ordered list is
// handed back to the external executor.
type RequestedAction struct {
	Type   string `bson:"type" json:"type"`
	Params bson.M `bson:"params,omitempty" json:"params,omitempty"`
}

type Approval struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrganizationID   primitive.ObjectID  `bson:"organizationId" json:"organizationId"`
	AgentRunID       primitive.ObjectID  `bson:"agentRunId" json:"agentRunId"`
	Status           string              `bson:"status" json:"status"`
	RiskLevel        string              `bson:"riskLevel" json:"riskLevel"`
	RequestedActions []RequestedAction   `bson:"requestedActions" json:"requestedActions"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
	ExpiresAt        *time.Time          `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	DecidedAt        *time.Time          `bson:"decidedAt,omitempty" json:"decidedAt,omitempty"`
	DecidedBy        *primitive.ObjectID `bson:"decidedBy,omitempty" json:"decidedBy,omitempty"`
	DecisionReason   string              `bson:"decisionReason,omitempty" json:"decisionReason,omitempty"`
}

// EffectiveStatus reports the status an approval should present as at
// the given time. A pending approval whose expiry has passed reads as
// expired even before the persisted status catches up (lazy expiry).
func (a *Approval) EffectiveStatus(now time.Time) string {
	if a.Status == ApprovalPending && a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
		return ApprovalExpired
	}
	return a.Status
}

// Decidable reports whether an approve/reject decision is permitted at
// the given time. Only effectively-pending approvals can be decided.
func (a *Approval) Decidable(now time.Time) bool {
	return a.EffectiveStatus(now) == ApprovalPending
}

// ValidRiskLevel reports whether s is a known risk classification.
func ValidRiskLevel(s string) bool {
	switch s {
	case RiskNone, RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}
