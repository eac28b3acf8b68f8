package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/notehub/notes-api/app"
	"github.com/notehub/notes-api/handlers"
	"go.uber.org/zap"
)

// Group is a named set of routes mounted under /routes.
// Its name is the key looked up in routers.json.
type Group struct {
	Name string

	// Streaming groups hold connections open and are exempt from the request timeout
	Streaming bool

	Mount func(r chi.Router)
}

// DefaultGroups returns the route groups served by the API
func DefaultGroups(deps *app.Dependencies) []Group {
	return []Group{
		{
			Name: "status",
			Mount: func(r chi.Router) {
				r.Get("/status", handlers.StatusHandler(deps))
			},
		},
		{
			Name: "users",
			Mount: func(r chi.Router) {
				r.Get("/users/me", handlers.GetCurrentUserHandler(deps))
			},
		},
		{
			Name:      "stream",
			Streaming: true,
			Mount: func(r chi.Router) {
				r.Get("/stream/ws", handlers.StreamHandler(deps))
			},
		},
	}
}

// MountGroups mounts every group on r, wrapping it in requireAuth unless policy disables auth for it
func MountGroups(r chi.Router, groups []Group, policy *Policy, requireAuth func(http.Handler) http.Handler, logger *zap.Logger) {
	for _, group := range groups {
		protected := policy.RequiresAuth(group.Name)

		r.Group(func(r chi.Router) {
			if !group.Streaming {
				r.Use(requestTimeout)
			}
			if protected {
				r.Use(requireAuth)
			}
			group.Mount(r)
		})

		logger.Info("route group mounted",
			zap.String("group", group.Name),
			zap.Bool("auth_required", protected))
	}
}
