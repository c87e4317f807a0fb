// handlers/auth_handler.go
package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"opsmanager/models"
	"opsmanager/utils"
)

// Login exchanges credentials for a JWT. Failures are deliberately
// indistinguishable between unknown email and wrong password.
func Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	fields := map[string]string{}
	if req.Email == "" {
		fields["email"] = "email is required"
	}
	if req.Password == "" {
		fields["password"] = "password is required"
	}
	if len(fields) > 0 {
		utils.RespondWithFieldErrors(w, fields)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var profile models.Profile
	err := profileCollection.FindOne(ctx, bson.M{"email": req.Email}).Decode(&profile)
	if err != nil {
		if err != mongo.ErrNoDocuments {
			log.Printf("Login - lookup error: %v", err)
		}
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if !utils.CheckPasswordHash(req.Password, profile.PasswordHash) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := utils.GenerateJWT(profile.ID.Hex(), profile.Email, profile.Role, profile.OrganizationID.Hex())
	if err != nil {
		log.Printf("Login - token generation error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"profile": profile,
		"success": true,
	})
}
