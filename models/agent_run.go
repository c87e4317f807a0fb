// models/agent_run.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

type AgentRun struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organizationId" json:"organizationId"`
	// Reference is a ULID shown in the dashboard and in external
	// communications; sortable by creation time.
	Reference string             `bson:"reference" json:"reference"`
	AgentType string             `bson:"agentType" json:"agentType"`
	Input     bson.M             `bson:"input,omitempty" json:"input,omitempty"`
	Status    string             `bson:"status" json:"status"`
	CreatedBy primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
