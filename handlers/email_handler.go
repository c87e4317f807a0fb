// handlers/email_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"io"
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

const emailSignatureHeader = "X-Webhook-Signature"

// HandleEmailWebhook ingests an inbound email notification from the
// email provider. Signature is a plain hex HMAC-SHA256 of the body;
// missing or wrong signatures are rejected before any processing.
// Redeliveries of the same provider message id are absorbed by the
// unique index.
func HandleEmailWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	sig := r.Header.Get(emailSignatureHeader)
	if err := utils.VerifySimpleSignature(body, sig, config.EmailWebhookSecret); err != nil {
		log.Printf("Email webhook rejected: %v", err)
		utils.RespondWithError(w, http.StatusUnauthorized, "Signature verification failed")
		return
	}

	var payload struct {
		MessageID      string `json:"messageId"`
		OrganizationID string `json:"organizationId"`
		From           string `json:"from"`
		Subject        string `json:"subject"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.MessageID == "" || payload.OrganizationID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Malformed email payload")
		return
	}

	orgID, err := primitive.ObjectIDFromHex(payload.OrganizationID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	email := models.InboundEmail{
		ID:                primitive.NewObjectID(),
		OrganizationID:    orgID,
		ProviderMessageID: payload.MessageID,
		From:              payload.From,
		Subject:           payload.Subject,
		Status:            models.EmailReceived,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if _, err := emailCollection.InsertOne(ctx, email); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Provider redelivery; already recorded.
			utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"received": true, "success": true})
			return
		}
		log.Printf("Email webhook - insert error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal error, please retry")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"received": true,
		"emailId":  email.ID.Hex(),
		"success":  true,
	})
}

// ListInboundEmails gets all inbound emails for the organization
func ListInboundEmails(w http.ResponseWriter, r *http.Request) {
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

	cursor, err := emailCollection.Find(ctx, filter, opts)
	if err != nil {
		log.Printf("ListInboundEmails - Find failed: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch emails")
		return
	}
	defer cursor.Close(ctx)

	var emails []models.InboundEmail
	if err = cursor.All(ctx, &emails); err != nil {
		log.Printf("ListInboundEmails - cursor.All failed: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode emails")
		return
	}
	if emails == nil {
		emails = []models.InboundEmail{}
	}

	totalCount, _ := emailCollection.CountDocuments(ctx, filter)

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"emails":  emails,
		"total":   totalCount,
		"limit":   limit,
		"skip":    skip,
		"success": true,
	})
}

// RetryEmailProcessing resets a failed email back to received so the
// external job picker reprocesses it. Only valid from failed.
func RetryEmailProcessing(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.Require(r.Context(), authz.RoleAdmin)
	if err != nil {
		utils.RespondWithError(w, http.StatusForbidden, "You don't have permission to perform this action")
		return
	}

	orgID, err := primitive.ObjectIDFromHex(actor.OrganizationID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}

	emailID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid email ID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	result, err := emailCollection.UpdateOne(ctx,
		bson.M{"_id": emailID, "organizationId": orgID, "status": models.EmailFailed},
		bson.M{
			"$set":   bson.M{"status": models.EmailReceived, "updatedAt": time.Now().UTC()},
			"$unset": bson.M{"processingError": ""},
		},
	)
	if err != nil {
		log.Printf("RetryEmailProcessing - update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to retry email")
		return
	}
	if result.MatchedCount == 0 {
		// Distinguish missing from wrong-state for the conflict response.
		count, countErr := emailCollection.CountDocuments(ctx, bson.M{"_id": emailID, "organizationId": orgID})
		if countErr == nil && count > 0 {
			utils.RespondWithError(w, http.StatusConflict, "Only failed emails can be retried")
			return
		}
		utils.RespondWithError(w, http.StatusNotFound, "Email not found")
		return
	}

	recordAudit(ctx, actor, "email.retry_processing", "inbound_email", emailID, nil)

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// IgnoreEmail marks a received or failed email as ignored.
func IgnoreEmail(w http.ResponseWriter, r *http.Request) {
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

	emailID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid email ID format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	result, err := emailCollection.UpdateOne(ctx,
		bson.M{
			"_id":            emailID,
			"organizationId": orgID,
			"status":         bson.M{"$in": []string{models.EmailReceived, models.EmailFailed}},
		},
		bson.M{
			"$set":   bson.M{"status": models.EmailIgnored, "updatedAt": time.Now().UTC()},
			"$unset": bson.M{"processingError": ""},
		},
	)
	if err != nil {
		log.Printf("IgnoreEmail - update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to ignore email")
		return
	}
	if result.MatchedCount == 0 {
		count, countErr := emailCollection.CountDocuments(ctx, bson.M{"_id": emailID, "organizationId": orgID})
		if countErr == nil && count > 0 {
			utils.RespondWithError(w, http.StatusConflict, "Email cannot be ignored in its current state")
			return
		}
		utils.RespondWithError(w, http.StatusNotFound, "Email not found")
		return
	}

	recordAudit(ctx, actor, "email.ignore", "inbound_email", emailID, nil)

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// CompleteEmailProcessing is called by the processing worker to record
// the outcome: processed with a linked agent run, or failed with an
// error. processingError is only ever set together with failed.
func CompleteEmailProcessing(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.Require(r.Context(), authz.RoleAdmin)
	if err != nil {
		utils.RespondWithError(w, http.StatusForbidden, "You don't have permission to perform this action")
		return
	}

	orgID, err := primitive.ObjectIDFromHex(actor.OrganizationID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}

	emailID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid email ID format")
		return
	}

	var req struct {
		Status          string `json:"status"` // "processed" or "failed"
		AgentRunID      string `json:"agentRunId,omitempty"`
		ProcessingError string `json:"processingError,omitempty"`
	}
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	set := bson.M{"status": req.Status, "updatedAt": time.Now().UTC()}
	unset := bson.M{}

	switch req.Status {
	case models.EmailProcessed:
		if req.AgentRunID != "" {
			runID, err := primitive.ObjectIDFromHex(req.AgentRunID)
			if err != nil {
				utils.RespondWithFieldErrors(w, map[string]string{"agentRunId": "invalid agent run ID format"})
				return
			}
			set["agentRunId"] = runID
		}
		unset["processingError"] = ""
	case models.EmailFailed:
		if req.ProcessingError == "" {
			utils.RespondWithFieldErrors(w, map[string]string{"processingError": "processingError is required when status is failed"})
			return
		}
		set["processingError"] = req.ProcessingError
	default:
		utils.RespondWithFieldErrors(w, map[string]string{"status": "status must be processed or failed"})
		return
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := emailCollection.UpdateOne(ctx,
		bson.M{
			"_id":            emailID,
			"organizationId": orgID,
			"status":         bson.M{"$in": []string{models.EmailReceived, models.EmailProcessing}},
		},
		update,
	)
	if err != nil {
		log.Printf("CompleteEmailProcessing - update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update email")
		return
	}
	if result.MatchedCount == 0 {
		count, countErr := emailCollection.CountDocuments(ctx, bson.M{"_id": emailID, "organizationId": orgID})
		if countErr == nil && count > 0 {
			utils.RespondWithError(w, http.StatusConflict, "Email is not awaiting processing")
			return
		}
		utils.RespondWithError(w, http.StatusNotFound, "Email not found")
		return
	}

	recordAudit(ctx, actor, "email.complete_processing", "inbound_email", emailID, bson.M{
		"status": req.Status,
	})

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
