// handlers/health_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"opsmanager/database"
)

// degradedLatency is the database ping latency beyond which the service
// reports degraded instead of healthy.
const degradedLatency = 250 * time.Millisecond

type CheckStatus struct {
	Status    string `json:"status"` // up | down
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

// HealthCheckResponse represents health check status
type HealthCheckResponse struct {
	Status    string                 `json:"status"` // healthy | degraded | unhealthy
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

// HealthCheck handles health check requests
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Checks:    map[string]CheckStatus{},
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := database.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Checks["database"] = CheckStatus{Status: "down"}
	} else {
		latency := time.Since(start)
		response.Checks["database"] = CheckStatus{
			Status:    "up",
			LatencyMS: latency.Milliseconds(),
		}
		if latency > degradedLatency {
			response.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}
