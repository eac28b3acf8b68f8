package handlers

import (
	"net/http"

	"github.com/notehub/notes-api/app"
	"github.com/notehub/notes-api/middleware"
	"github.com/notehub/notes-api/utils"
)

// GetCurrentUserHandler returns the identity the auth gate attached to the request
func GetCurrentUserHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.GetIdentityFromContext(r.Context())
		if identity == nil {
			_ = utils.WriteUnauthorized(w, middleware.RejectionMessage)
			return
		}
		_ = utils.WriteOK(w, identity)
	}
}
