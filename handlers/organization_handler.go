// handlers/organization_handler.go
package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"opsmanager/authz"
	"opsmanager/models"
	"opsmanager/utils"
)

// GetOrganization returns the caller's organization.
func GetOrganization(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var org models.Organization
	err = orgCollection.FindOne(ctx, bson.M{"_id": orgID}).Decode(&org)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "Organization not found")
		} else {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch organization")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"organization": org,
		"success":      true,
	})
}

// UpdateOrganization renames the organization. Admin and above.
func UpdateOrganization(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		Name string `json:"name"`
	}
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		utils.RespondWithFieldErrors(w, map[string]string{"name": "name is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	result, err := orgCollection.UpdateOne(ctx,
		bson.M{"_id": orgID},
		bson.M{"$set": bson.M{"name": req.Name}},
	)
	if err != nil {
		log.Printf("UpdateOrganization - update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update organization")
		return
	}
	if result.MatchedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Organization not found")
		return
	}

	recordAudit(ctx, actor, "organization.update", "organization", orgID, bson.M{"name": req.Name})

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// RegenerateWebhookSecret rotates the organization's signing secret.
// Owner only; the new secret is returned exactly once.
func RegenerateWebhookSecret(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.Require(r.Context(), authz.RoleOwner)
	if err != nil {
		utils.RespondWithError(w, http.StatusForbidden, "You don't have permission to perform this action")
		return
	}

	orgID, err := primitive.ObjectIDFromHex(actor.OrganizationID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	secret := utils.GenerateSecret()
	result, err := orgCollection.UpdateOne(ctx,
		bson.M{"_id": orgID},
		bson.M{"$set": bson.M{"webhookSecret": secret}},
	)
	if err != nil {
		log.Printf("RegenerateWebhookSecret - update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to regenerate secret")
		return
	}
	if result.MatchedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "Organization not found")
		return
	}

	recordAudit(ctx, actor, "organization.regenerate_secret", "organization", orgID, nil)

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"webhookSecret": secret,
		"success":       true,
	})
}
