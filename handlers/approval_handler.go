// handlers/approval_handler.go
package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsmanager/authz"
	"opsmanager/config"
	"opsmanager/models"
	"opsmanager/utils"
)

// ListApprovals gets all approvals for the organization
func ListApprovals(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	orgID, err := primitive.ObjectIDFromHex(actor.OrganizationID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid organization ID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	filter := bson.M{"organizationId": orgID}

	query := r.URL.Query()
	if status := query.Get("status"); status != "" && status != "all" {
		filter["status"] = status
	}
	if risk := query.Get("riskLevel"); risk != "" && risk != "all" {
		filter["riskLevel"] = risk
	}

	limit := 50
	skip := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if skipStr := query.Get("skip"); skipStr != "" {
		if s, err := strconv.Atoi(skipStr); err == nil && s >= 0 {
			skip = s
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(skip))

	cursor, err := approvalCollection.Find(ctx, filter, opts)
	if err != nil {
		log.Printf("ListApprovals - Find failed: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch approvals")
		return
	}
	defer cursor.Close(ctx)

	var approvals []models.Approval
	if err = cursor.All(ctx, &approvals); err != nil {
		log.Printf("ListApprovals - cursor.All failed: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode approvals")
		return
	}

	if approvals == nil {
		approvals = []models.Approval{}
	}

	// Lazy expiry: present overdue pending approvals as expired even
	// before the persisted status catches up.
	now := time.Now().UTC()
	for i := range approvals {
		approvals[i].Status = approvals[i].EffectiveStatus(now)
	}

	totalCount, _ := approvalCollection.CountDocuments(ctx, filter)

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"approvals": approvals,
		"total":     totalCount,
		"limit":     limit,
		"skip":      skip,
		"success":   true,
	})
}

// GetApproval gets a specific approval by ID
func GetApproval(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	orgID, err := primitive.ObjectIDFromHex(actor.OrganizationID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid organization ID format")
		return
	}

	approvalID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid approval ID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var approval models.Approval
	err = approvalCollection.FindOne(ctx, bson.M{
		"_id":            approvalID,
		"organizationId": orgID,
	}).Decode(&approval)

	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "Approval not found")
		} else {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch approval")
		}
		return
	}

	approval.Status = approval.EffectiveStatus(time.Now().UTC())
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"approval": approval,
		"success":  true,
	})
}

// CreateApproval attaches a pending approval to an agent run.
func CreateApproval(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.Require(r.Context(), authz.RoleMember)
	if err != nil {
		utils.RespondWithError(w, http.StatusForbidden, "You don't have permission to perform this action")
		return
	}

	orgID, err := primitive.ObjectIDFromHex(actor.OrganizationID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}

	var req struct {
		AgentRunID       string                   `json:"agentRunId"`
		RiskLevel        string                   `json:"riskLevel"`
		RequestedActions []models.RequestedAction `json:"requestedActions"`
		ExpiresAt        *time.Time               `json:"expiresAt,omitempty"`
	}
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payload: "+err.Error())
		return
	}

	fields := map[string]string{}
	if req.AgentRunID == "" {
		fields["agentRunId"] = "agentRunId is required"
	}
	if !models.ValidRiskLevel(req.RiskLevel) {
		fields["riskLevel"] = "riskLevel must be one of none, low, medium, high, critical"
	}
	if len(req.RequestedActions) == 0 {
		fields["requestedActions"] = "at least one requested action is required"
	}
	if len(fields) > 0 {
		utils.RespondWithFieldErrors(w, fields)
		return
	}

	runID, err := primitive.ObjectIDFromHex(req.AgentRunID)
	if err != nil {
		utils.RespondWithFieldErrors(w, map[string]string{"agentRunId": "invalid agent run ID format"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// The run must exist inside the caller's tenant.
	runCount, err := agentRunCollection.CountDocuments(ctx, bson.M{"_id": runID, "organizationId": orgID})
	if err != nil || runCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Agent run not found")
		return
	}

	// One approval per run. The unique index on agentRunId is the real
	// guard; this check just gives the common case a cheap answer.
	existing, err := approvalCollection.CountDocuments(ctx, bson.M{"agentRunId": runID})
	if err == nil && existing > 0 {
		utils.RespondWithError(w, http.StatusConflict, "Agent run already has an approval")
		return
	}

	now := time.Now().UTC()
	approval := models.Approval{
		ID:               primitive.NewObjectID(),
		OrganizationID:   orgID,
		AgentRunID:       runID,
		Status:           models.ApprovalPending,
		RiskLevel:        req.RiskLevel,
		RequestedActions: req.RequestedActions,
		CreatedAt:        now,
		ExpiresAt:        req.ExpiresAt,
	}
	if approval.ExpiresAt == nil && config.ApprovalTTL > 0 {
		expires := now.Add(config.ApprovalTTL)
		approval.ExpiresAt = &expires
	}

	if _, err := approvalCollection.InsertOne(ctx, approval); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the insert race to a concurrent request for the same run.
			utils.RespondWithError(w, http.StatusConflict, "Agent run already has an approval")
			return
		}
		log.Printf("CreateApproval - insert error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create approval")
		return
	}

	recordAudit(ctx, actor, "approval.create", "approval", approval.ID, bson.M{
		"agentRunId": runID.Hex(),
		"riskLevel":  approval.RiskLevel,
		"actions":    len(approval.RequestedActions),
	})

	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"approval": approval,
		"success":  true,
	})
}

// DecideApproval approves or rejects a pending approval. The decision
// gate depends on the approval's risk level; concurrent deciders are
// serialized by a conditional update on status=pending so exactly one
// wins and the loser observes a conflict.
func DecideApproval(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	orgID, err := primitive.ObjectIDFromHex(actor.OrganizationID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}

	approvalID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid approval ID format")
		return
	}

	var req struct {
		Decision string `json:"decision"` // "approve" or "reject"
		Reason   string `json:"reason,omitempty"`
	}
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	var newStatus string
	switch req.Decision {
	case "approve":
		newStatus = models.ApprovalApproved
	case "reject":
		newStatus = models.ApprovalRejected
	default:
		utils.RespondWithFieldErrors(w, map[string]string{"decision": "decision must be approve or reject"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	approvalPtr, err := approvals.Get(ctx, approvalID, orgID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "Approval not found")
		} else {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch approval")
		}
		return
	}
	approval := *approvalPtr

	now := time.Now().UTC()

	// Lazy expiry: flip overdue pending approvals before rejecting the
	// decision. Conditional on still-pending so a concurrent decision
	// that already landed is not overwritten.
	if approval.Status == models.ApprovalPending && approval.EffectiveStatus(now) == models.ApprovalExpired {
		if err := approvals.ExpireIfPending(ctx, approvalID); err != nil {
			log.Printf("DecideApproval - expiry update error: %v", err)
		}
		utils.RespondWithError(w, http.StatusConflict, "Approval has expired and can no longer be decided")
		return
	}

	if !approval.Decidable(now) {
		utils.RespondWithError(w, http.StatusConflict, "Approval has already been decided")
		return
	}

	// The risk level determines the minimum decider role.
	minimum := authz.DecisionPolicy(approval.RiskLevel, config.ApprovalPolicy)
	if !authz.Allowed(actor.Role, minimum) {
		utils.RespondWithError(w, http.StatusForbidden, "You don't have permission to decide this approval")
		return
	}

	actorID, _ := primitive.ObjectIDFromHex(actor.ProfileID)
	won, err := approvals.Decide(ctx, approvalID, orgID, newStatus, now, actorID, req.Reason)
	if err != nil {
		log.Printf("DecideApproval - update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update approval")
		return
	}
	if !won {
		// Lost the race to a concurrent decision.
		utils.RespondWithError(w, http.StatusConflict, "Approval has already been decided")
		return
	}

	previousStatus := approval.Status
	approval.Status = newStatus
	approval.DecidedAt = &now
	approval.DecidedBy = &actorID
	approval.DecisionReason = req.Reason

	recordAudit(ctx, actor, "approval."+req.Decision, "approval", approvalID, bson.M{
		"riskLevel": approval.RiskLevel,
		"reason":    req.Reason,
	})
	BroadcastApprovalUpdate(orgID, &approval, previousStatus)

	response := map[string]interface{}{
		"approval": approval,
		"success":  true,
	}
	// On approval the ordered action list is handed back for the
	// external executor; the server does not run the actions itself.
	if newStatus == models.ApprovalApproved {
		response["actionsToExecute"] = approval.RequestedActions
	}

	utils.RespondWithJSON(w, http.StatusOK, response)
}
