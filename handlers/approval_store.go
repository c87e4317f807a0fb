// handlers/approval_store.go
package handlers

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"opsmanager/models"
)

// approvalStore isolates the decision path's persistence so the
// first-writer-wins serialization is testable without a live database.
type approvalStore interface {
	// Get loads a tenant-scoped approval; mongo.ErrNoDocuments when
	// absent or outside the organization.
	Get(ctx context.Context, id, orgID primitive.ObjectID) (*models.Approval, error)
	// ExpireIfPending persists the lazy-expiry flip, conditional on the
	// approval still being pending so a landed decision is never
	// overwritten.
	ExpireIfPending(ctx context.Context, id primitive.ObjectID) error
	// Decide applies the decision only if the approval is still
	// pending. It reports false when the conditional update matched
	// nothing, i.e. a concurrent decision won.
	Decide(ctx context.Context, id, orgID primitive.ObjectID, status string, decidedAt time.Time, decidedBy primitive.ObjectID, reason string) (bool, error)
}

var approvals approvalStore

type mongoApprovalStore struct {
	col *mongo.Collection
}

func (s *mongoApprovalStore) Get(ctx context.Context, id, orgID primitive.ObjectID) (*models.Approval, error) {
	var approval models.Approval
	err := s.col.FindOne(ctx, bson.M{"_id": id, "organizationId": orgID}).Decode(&approval)
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

func (s *mongoApprovalStore) ExpireIfPending(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.ApprovalPending},
		bson.M{"$set": bson.M{"status": models.ApprovalExpired}},
	)
	return err
}

func (s *mongoApprovalStore) Decide(ctx context.Context, id, orgID primitive.ObjectID, status string, decidedAt time.Time, decidedBy primitive.ObjectID, reason string) (bool, error) {
	result, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "organizationId": orgID, "status": models.ApprovalPending},
		bson.M{"$set": bson.M{
			"status":         status,
			"decidedAt":      decidedAt,
			"decidedBy":      decidedBy,
			"decisionReason": reason,
		}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}
