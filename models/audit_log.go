// models/audit_log.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditLog rows are append-only: the application never updates or
// deletes them.
type AuditLog struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organizationId" json:"organizationId"`
	ActorID        primitive.ObjectID `bson:"actorId" json:"actorId"`
	ActorEmail     string             `bson:"actorEmail,omitempty" json:"actorEmail,omitempty"`
	Action         string             `bson:"action" json:"action"` // dot-namespaced, e.g. "approval.reject"
	ResourceType   string             `bson:"resourceType" json:"resourceType"`
	ResourceID     primitive.ObjectID `bson:"resourceId,omitempty" json:"resourceId,omitempty"`
	Metadata       bson.M             `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}
