package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/notehub/notes-api/app"
)

// Version is reported by the status endpoint
const Version = "0.1.0"

// HealthCheck returns a simple health check handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// ReadinessCheck reports whether the auth gate is wired and whether Supabase auth is configured.
// A process without auth configuration is ready but rejects every protected route.
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		response := map[string]interface{}{
			"status": "ready",
			"checks": checks,
		}

		if deps.Gate == nil || deps.AuthMiddleware == nil {
			response["status"] = "not_ready"
			checks["gate"] = "not_initialized"
		} else {
			checks["gate"] = "healthy"
		}

		if deps.Config != nil && deps.Config.Auth.Enabled() {
			checks["auth"] = "configured"
		} else {
			checks["auth"] = "not_configured"
		}

		if deps.Metrics != nil {
			checks["metrics"] = "enabled"
		} else {
			checks["metrics"] = "disabled"
		}

		w.Header().Set("Content-Type", "application/json")
		if response["status"] == "ready" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}

// StatusHandler returns application status information
func StatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		environment := ""
		if deps.Config != nil {
			environment = deps.Config.Environment
		}
		response := map[string]interface{}{
			"version":     Version,
			"environment": environment,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
