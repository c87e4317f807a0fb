// handlers/audit.go
package handlers

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsmanager/authz"
	"opsmanager/models"
)

// auditInserter is satisfied by *mongo.Collection; tests substitute an
// in-memory sink.
type auditInserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

var auditSink auditInserter

// recordAudit appends one immutable entry for a state-changing call.
// A write failure is logged loudly but never rolls back or fails the
// primary action.
func recordAudit(ctx context.Context, actor authz.Actor, action, resourceType string, resourceID primitive.ObjectID, metadata bson.M) {
	if auditSink == nil {
		log.Printf("AUDIT DROPPED (sink not initialized): %s on %s/%s", action, resourceType, resourceID.Hex())
		return
	}

	orgID, _ := primitive.ObjectIDFromHex(actor.OrganizationID)
	actorID, _ := primitive.ObjectIDFromHex(actor.ProfileID)

	entry := models.AuditLog{
		ID:             primitive.NewObjectID(),
		OrganizationID: orgID,
		ActorID:        actorID,
		ActorEmail:     actor.Email,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}

	if _, err := auditSink.InsertOne(ctx, entry); err != nil {
		// Security-relevant: must surface, must not be silent.
		log.Printf("AUDIT WRITE FAILED: action=%s resource=%s/%s actor=%s err=%v",
			action, resourceType, resourceID.Hex(), actor.ProfileID, err)
		return
	}

	BroadcastAuditEntry(orgID, &entry)
}
