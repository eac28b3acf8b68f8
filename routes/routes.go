package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/notehub/notes-api/app"
	"github.com/notehub/notes-api/handlers"
	authmiddleware "github.com/notehub/notes-api/middleware"
	"github.com/notehub/notes-api/utils"
	"go.uber.org/zap"
)

// GroupPrefix is the path every route group is mounted under
const GroupPrefix = "/routes"

var requestTimeout = middleware.Timeout(60 * time.Second)

// SetupRoutes configures all application routes and middleware.
// The router policy is read from deps.Config.Routers.ConfigPath.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	policy, err := LoadPolicy(deps.Config.Routers.ConfigPath)
	if err != nil {
		deps.Logger.Warn("router policy unavailable, every route group requires auth",
			zap.Error(err))
	}

	return NewRouter(deps, policy, DefaultGroups(deps))
}

// NewRouter builds the HTTP handler for the given groups and policy
func NewRouter(deps *app.Dependencies, policy *Policy, groups []Group) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(deps),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   allowedHeaders(deps),
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.With(requestTimeout).Get("/healthz", handlers.HealthCheck(deps))
	r.With(requestTimeout).Get("/readyz", handlers.ReadinessCheck(deps))

	if deps.Metrics != nil {
		r.With(requestTimeout).Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route(GroupPrefix, func(r chi.Router) {
		MountGroups(r, groups, policy, deps.AuthMiddleware.RequireAuth, deps.Logger)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	logRoutes(r, deps.Logger)

	return r
}

// allowedOrigins admits local development origins everywhere except production
func allowedOrigins(deps *app.Dependencies) []string {
	if deps.Config != nil && deps.Config.IsProduction() {
		return []string{"https://*"}
	}
	return []string{"http://localhost:*", "https://*"}
}

// allowedHeaders lists the CORS request headers, including a custom auth header when configured
func allowedHeaders(deps *app.Dependencies) []string {
	headers := []string{"Accept", "Authorization", "Content-Type", authmiddleware.WebSocketProtocolHeader}
	if deps.Config == nil {
		return headers
	}
	if authCfg, ok := deps.Config.Auth.Config(); ok && http.CanonicalHeaderKey(authCfg.Header) != "Authorization" {
		headers = append(headers, authCfg.Header)
	}
	return headers
}

func logRoutes(r chi.Routes, logger *zap.Logger) {
	walk := func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		logger.Info("route registered",
			zap.String("method", method),
			zap.String("path", route))
		return nil
	}
	if err := chi.Walk(r, walk); err != nil {
		logger.Warn("failed to list routes", zap.Error(err))
	}
}
