package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"opsmanager/handlers"
	"opsmanager/middleware"
)

// HTTP method constants for better maintainability
var (
	MethodsGetOnly  = []string{"GET", "OPTIONS"}
	MethodsPostOnly = []string{"POST", "OPTIONS"}
	MethodsPutOnly  = []string{"PUT", "OPTIONS"}
)

// Route grouping constants
const (
	PathAPI      = "/api"
	PathHealth   = "/health"
	PathMetrics  = "/metrics"
	PathWebhooks = "/webhooks"
)

func RegisterRoutes(r *mux.Router) {
	// ====================
	// HEALTH & METRICS (Public)
	// ====================
	r.HandleFunc(PathHealth, handlers.HealthCheck).Methods(MethodsGetOnly...)
	r.Handle(PathMetrics, middleware.MetricsHandler()).Methods(MethodsGetOnly...)

	// ====================
	// WEBHOOKS (Public, signature-verified)
	// ====================
	r.HandleFunc(PathWebhooks+"/billing", handlers.HandleBillingWebhook).Methods(MethodsPostOnly...)
	r.HandleFunc(PathWebhooks+"/email", handlers.HandleEmailWebhook).Methods(MethodsPostOnly...)

	// ====================
	// AUTHENTICATION (Public, rate limited)
	// ====================
	loginLimiter := middleware.NewLoginRateLimiter(5)
	r.Handle("/api/auth/login", loginLimiter.Middleware(http.HandlerFunc(handlers.Login))).Methods(MethodsPostOnly...)

	// ====================
	// LIVE UPDATES (token validated in handler)
	// ====================
	r.HandleFunc("/api/ws", handlers.HandleWebSocket)

	// ====================
	// PROTECTED API ROUTES (Require authentication)
	// ====================
	apiRouter := r.PathPrefix(PathAPI).Subrouter()
	apiRouter.Use(middleware.AuthMiddleware)

	// Profiles
	apiRouter.HandleFunc("/profile/me", handlers.GetCurrentProfile).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/profiles", handlers.ListProfiles).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/profiles/{id}/role", handlers.ChangeProfileRole).Methods(MethodsPutOnly...)

	// Organization
	apiRouter.HandleFunc("/organization", handlers.GetOrganization).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/organization", handlers.UpdateOrganization).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/organization/webhook-secret", handlers.RegenerateWebhookSecret).Methods(MethodsPostOnly...)

	// Agent runs
	apiRouter.HandleFunc("/runs", handlers.ListAgentRuns).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/runs", handlers.CreateAgentRun).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/runs/{id}", handlers.GetAgentRun).Methods(MethodsGetOnly...)

	// Approvals
	apiRouter.HandleFunc("/approvals", handlers.ListApprovals).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/approvals", handlers.CreateApproval).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/approvals/{id}", handlers.GetApproval).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/approvals/{id}/decision", handlers.DecideApproval).Methods(MethodsPostOnly...)

	// Inbound emails
	apiRouter.HandleFunc("/emails", handlers.ListInboundEmails).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/emails/{id}/retry", handlers.RetryEmailProcessing).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/emails/{id}/ignore", handlers.IgnoreEmail).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/emails/{id}/complete", handlers.CompleteEmailProcessing).Methods(MethodsPostOnly...)

	// Audit logs
	apiRouter.HandleFunc("/audit", handlers.ListAuditLogs).Methods(MethodsGetOnly...)
}
