// handlers/profile_handler.go
package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsmanager/authz"
	"opsmanager/models"
	"opsmanager/utils"
)

// GetCurrentProfile returns the authenticated profile.
func GetCurrentProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	profileID, err := primitive.ObjectIDFromHex(actor.ProfileID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid profile ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var profile models.Profile
	err = profileCollection.FindOne(ctx, bson.M{"_id": profileID}).Decode(&profile)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Profile not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"profile": profile,
		"success": true,
	})
}

// ListProfiles lists the organization's profiles. Admin and above.
func ListProfiles(w http.ResponseWriter, r *http.Request) {
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

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := profileCollection.Find(ctx, bson.M{"organizationId": orgID}, opts)
	if err != nil {
		log.Printf("ListProfiles - Find failed: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch profiles")
		return
	}
	defer cursor.Close(ctx)

	var profiles []models.Profile
	if err = cursor.All(ctx, &profiles); err != nil {
		log.Printf("ListProfiles - cursor.All failed: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode profiles")
		return
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"success":  true,
	})
}

// ChangeProfileRole sets another profile's role. Owner only; the last
// owner cannot be demoted.
func ChangeProfileRole(w http.ResponseWriter, r *http.Request) {
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

	profileID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid profile ID format")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if !authz.ValidRole(req.Role) {
		utils.RespondWithFieldErrors(w, map[string]string{"role": "role must be one of viewer, member, admin, owner"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var target models.Profile
	err = profileCollection.FindOne(ctx, bson.M{"_id": profileID, "organizationId": orgID}).Decode(&target)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "Profile not found")
		} else {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch profile")
		}
		return
	}

	if target.Role == authz.RoleOwner && req.Role != authz.RoleOwner {
		owners, err := profileCollection.CountDocuments(ctx, bson.M{"organizationId": orgID, "role": authz.RoleOwner})
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to verify owners")
			return
		}
		if owners <= 1 {
			utils.RespondWithError(w, http.StatusConflict, "Cannot demote the last owner")
			return
		}
	}

	_, err = profileCollection.UpdateOne(ctx,
		bson.M{"_id": profileID, "organizationId": orgID},
		bson.M{"$set": bson.M{"role": req.Role}},
	)
	if err != nil {
		log.Printf("ChangeProfileRole - update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update role")
		return
	}

	recordAudit(ctx, actor, "profile.change_role", "profile", profileID, bson.M{
		"previousRole": target.Role,
		"newRole":      req.Role,
	})

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
