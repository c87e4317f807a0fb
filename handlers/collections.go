// handlers/collections.go
package handlers

import (
	"go.mongodb.org/mongo-driver/mongo"

	"opsmanager/config"
	"opsmanager/database"
)

var (
	orgCollection      *mongo.Collection
	profileCollection  *mongo.Collection
	agentRunCollection *mongo.Collection
	approvalCollection *mongo.Collection
	emailCollection    *mongo.Collection
	auditLogCollection *mongo.Collection
)

func InitCollections() {
	db := database.Client.Database(config.DatabaseName)
	orgCollection = db.Collection("organizations")
	profileCollection = db.Collection("profiles")
	agentRunCollection = db.Collection("agent_runs")
	approvalCollection = db.Collection("approvals")
	emailCollection = db.Collection("inbound_emails")
	auditLogCollection = db.Collection("audit_logs")

	auditSink = auditLogCollection
	approvals = &mongoApprovalStore{col: approvalCollection}
	billing = &mongoBillingStore{
		events: db.Collection("webhook_events"),
		orgs:   db.Collection("organizations"),
	}
}
