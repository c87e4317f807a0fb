// handlers/agent_run_handler.go
package handlers

import (
	"context"
	"crypto/rand"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsmanager/authz"
	"opsmanager/config"
	"opsmanager/models"
	"opsmanager/utils"
)

func newRunReference() string {
	return "run_" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// CreateAgentRun records a new agent run. When the request carries
// proposed actions, a pending approval is attached in the same call.
func CreateAgentRun(w http.ResponseWriter, r *http.Request) {
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
		AgentType        string                   `json:"agentType"`
		Input            bson.M                   `json:"input,omitempty"`
		RiskLevel        string                   `json:"riskLevel,omitempty"`
		RequestedActions []models.RequestedAction `json:"requestedActions,omitempty"`
		ExpiresAt        *time.Time               `json:"expiresAt,omitempty"`
	}
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payload: "+err.Error())
		return
	}

	if req.AgentType == "" {
		utils.RespondWithFieldErrors(w, map[string]string{"agentType": "agentType is required"})
		return
	}
	if len(req.RequestedActions) > 0 && !models.ValidRiskLevel(req.RiskLevel) {
		utils.RespondWithFieldErrors(w, map[string]string{"riskLevel": "riskLevel must be one of none, low, medium, high, critical"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	actorID, _ := primitive.ObjectIDFromHex(actor.ProfileID)
	now := time.Now().UTC()

	run := models.AgentRun{
		ID:             primitive.NewObjectID(),
		OrganizationID: orgID,
		Reference:      newRunReference(),
		AgentType:      req.AgentType,
		Input:          req.Input,
		Status:         models.RunQueued,
		CreatedBy:      actorID,
		CreatedAt:      now,
	}

	if _, err := agentRunCollection.InsertOne(ctx, run); err != nil {
		log.Printf("CreateAgentRun - insert error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create agent run")
		return
	}

	response := map[string]interface{}{
		"run":     run,
		"success": true,
	}

	if len(req.RequestedActions) > 0 {
		approval := models.Approval{
			ID:               primitive.NewObjectID(),
			OrganizationID:   orgID,
			AgentRunID:       run.ID,
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
			log.Printf("CreateAgentRun - approval insert error: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Run created but approval could not be attached")
			return
		}
		response["approval"] = approval
	}

	recordAudit(ctx, actor, "agent_run.create", "agent_run", run.ID, bson.M{
		"reference": run.Reference,
		"agentType": run.AgentType,
	})

	utils.RespondWithJSON(w, http.StatusCreated, response)
}

// ListAgentRuns gets all agent runs for the organization
func ListAgentRuns(w http.ResponseWriter, r *http.Request) {
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
	if agentType := query.Get("agentType"); agentType != "" && agentType != "all" {
		filter["agentType"] = agentType
	}
	if status := query.Get("status"); status != "" && status != "all" {
		filter["status"] = status
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

	cursor, err := agentRunCollection.Find(ctx, filter, opts)
	if err != nil {
		log.Printf("ListAgentRuns - Find failed: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch agent runs")
		return
	}
	defer cursor.Close(ctx)

	var runs []models.AgentRun
	if err = cursor.All(ctx, &runs); err != nil {
		log.Printf("ListAgentRuns - cursor.All failed: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode agent runs")
		return
	}
	if runs == nil {
		runs = []models.AgentRun{}
	}

	totalCount, _ := agentRunCollection.CountDocuments(ctx, filter)

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"runs":    runs,
		"total":   totalCount,
		"limit":   limit,
		"skip":    skip,
		"success": true,
	})
}

// GetAgentRun gets a specific agent run with its approval, if any.
func GetAgentRun(w http.ResponseWriter, r *http.Request) {
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

	runID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid agent run ID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var run models.AgentRun
	err = agentRunCollection.FindOne(ctx, bson.M{"_id": runID, "organizationId": orgID}).Decode(&run)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "Agent run not found")
		} else {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch agent run")
		}
		return
	}

	response := map[string]interface{}{
		"run":     run,
		"success": true,
	}

	var approval models.Approval
	err = approvalCollection.FindOne(ctx, bson.M{"agentRunId": runID}).Decode(&approval)
	if err == nil {
		approval.Status = approval.EffectiveStatus(time.Now().UTC())
		response["approval"] = approval
	}

	utils.RespondWithJSON(w, http.StatusOK, response)
}
