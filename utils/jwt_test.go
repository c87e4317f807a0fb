package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"opsmanager/config"
)

func TestJWTRoundTrip(t *testing.T) {
	config.JWTKey = []byte("test-signing-key")
	config.JWTExpiration = time.Hour

	token, err := GenerateJWT("profile1", "user@example.com", "admin", "org1")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := ValidateJWT(token)
	assert.NoError(t, err)
	assert.Equal(t, "profile1", claims.ProfileID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "org1", claims.OrganizationID)
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	config.JWTKey = []byte("test-signing-key")
	config.JWTExpiration = time.Hour

	token, err := GenerateJWT("profile1", "user@example.com", "admin", "org1")
	assert.NoError(t, err)

	_, err = ValidateJWT(token + "x")
	assert.Error(t, err)

	config.JWTKey = []byte("different-key")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	config.JWTKey = []byte("test-signing-key")
	config.JWTExpiration = -time.Minute

	token, err := GenerateJWT("profile1", "user@example.com", "admin", "org1")
	assert.NoError(t, err)

	_, err = ValidateJWT(token)
	assert.Error(t, err)
}
