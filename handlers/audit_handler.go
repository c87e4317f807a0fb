// handlers/audit_handler.go
package handlers

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsmanager/authz"
	"opsmanager/models"
	"opsmanager/utils"
)

// actionPrefixPattern anchors an action filter as a literal prefix
// match. The value comes straight off the query string, so it is
// escaped before being handed to the regex engine.
func actionPrefixPattern(action string) string {
	return "^" + regexp.QuoteMeta(action)
}

// ListAuditLogs returns the organization's audit trail, newest first.
// Admin and above. The trail is read-only: there are no update or
// delete endpoints for audit rows anywhere in the API.
func ListAuditLogs(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	filter := bson.M{"organizationId": orgID}
	query := r.URL.Query()

	if action := query.Get("action"); action != "" {
		// Prefix match lets the dashboard filter by namespace
		// ("approval." matches approval.approve and approval.reject).
		filter["action"] = bson.M{"$regex": actionPrefixPattern(action)}
	}
	if resourceType := query.Get("resourceType"); resourceType != "" && resourceType != "all" {
		filter["resourceType"] = resourceType
	}
	if actorID := query.Get("actorId"); actorID != "" {
		if id, err := primitive.ObjectIDFromHex(actorID); err == nil {
			filter["actorId"] = id
		}
	}

	limit := 50
	skip := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
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

	cursor, err := auditLogCollection.Find(ctx, filter, opts)
	if err != nil {
		log.Printf("ListAuditLogs - Find failed: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch audit logs")
		return
	}
	defer cursor.Close(ctx)

	var entries []models.AuditLog
	if err = cursor.All(ctx, &entries); err != nil {
		log.Printf("ListAuditLogs - cursor.All failed: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode audit logs")
		return
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}

	totalCount, _ := auditLogCollection.CountDocuments(ctx, filter)

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   totalCount,
		"limit":   limit,
		"skip":    skip,
		"success": true,
	})
}
