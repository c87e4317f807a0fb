package middleware

import (
	"log"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"opsmanager/authz"
	"opsmanager/config"
	"opsmanager/database"
	"opsmanager/models"
	"opsmanager/utils"
)

// AuthMiddleware resolves the bearer token into a Profile and threads
// the actor plus its organization through the request context. Every
// handler behind it reads tenant scope from the context, never from the
// request body.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication for WebSocket upgrade requests; the
		// handler validates the token from the query string itself.
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := utils.ValidateJWT(tokenString)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		profileID, err := primitive.ObjectIDFromHex(claims.ProfileID)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token subject")
			return
		}

		var profile models.Profile
		err = database.Client.Database(config.DatabaseName).Collection("profiles").
			FindOne(r.Context(), bson.M{"_id": profileID}).Decode(&profile)
		if err != nil {
			log.Printf("AuthMiddleware: profile %s not found: %v", profileID.Hex(), err)
			utils.RespondWithError(w, http.StatusUnauthorized, "Profile not found")
			return
		}

		if profile.OrganizationID.IsZero() {
			utils.RespondWithError(w, http.StatusForbidden, "Profile has no organization")
			return
		}

		ctx := authz.ContextWithActor(r.Context(), authz.Actor{
			ProfileID:      profile.ID.Hex(),
			Email:          profile.Email,
			Role:           profile.Role,
			OrganizationID: profile.OrganizationID.Hex(),
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
