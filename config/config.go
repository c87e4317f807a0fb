// config/config.go
package config

import (
	"log"
	"os"
	"strings"
	"time"
)

var (
	Port          string
	MongoURI      string
	DatabaseName  string
	JWTKey        []byte
	JWTExpiration time.Duration

	// Shared secrets for inbound webhook signature verification.
	BillingWebhookSecret string
	EmailWebhookSecret   string

	// Default time-to-live for newly created approvals. Zero means
	// approvals never expire unless the request sets expiresAt.
	ApprovalTTL time.Duration

	// Risk level -> minimum decider role overrides, parsed from
	// APPROVAL_POLICY ("low=member,high=owner"). Levels not listed
	// keep the built-in defaults.
	ApprovalPolicy map[string]string
)

func LoadConfig() {
	Port = os.Getenv("PORT")
	if Port == "" {
		Port = "8080"
	}

	MongoURI = os.Getenv("MONGO_URI")
	if MongoURI == "" {
		MongoURI = "mongodb://localhost:27017"
	}

	DatabaseName = os.Getenv("MONGO_DATABASE")
	if DatabaseName == "" {
		DatabaseName = "opsmanager"
	}

	JWTKey = []byte(os.Getenv("JWT_SECRET"))
	if len(JWTKey) == 0 {
		JWTKey = []byte("secret")
	}

	expireStr := os.Getenv("JWT_EXPIRE")
	dur := 24 * time.Hour
	if expireStr != "" {
		if expireStr == "7d" {
			dur = 7 * 24 * time.Hour
		} else {
			var err error
			dur, err = time.ParseDuration(expireStr)
			if err != nil {
				log.Printf("Invalid JWT_EXPIRE: %s, using 24h", expireStr)
				dur = 24 * time.Hour
			}
		}
	}
	JWTExpiration = dur

	BillingWebhookSecret = os.Getenv("BILLING_WEBHOOK_SECRET")
	EmailWebhookSecret = os.Getenv("EMAIL_WEBHOOK_SECRET")

	ApprovalTTL = 0
	if ttlStr := os.Getenv("APPROVAL_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			log.Printf("Invalid APPROVAL_TTL: %s, approvals will not expire by default", ttlStr)
		} else {
			ApprovalTTL = ttl
		}
	}

	ApprovalPolicy = ParseApprovalPolicy(os.Getenv("APPROVAL_POLICY"))
}

// ParseApprovalPolicy parses "level=role" pairs separated by commas.
// Malformed pairs are skipped with a warning rather than failing boot.
func ParseApprovalPolicy(raw string) map[string]string {
	policy := make(map[string]string)
	if raw == "" {
		return policy
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			log.Printf("Invalid APPROVAL_POLICY entry %q, skipping", pair)
			continue
		}
		policy[strings.ToLower(parts[0])] = strings.ToLower(parts[1])
	}
	return policy
}
