package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notehub/notes-api/utils"
	"go.uber.org/zap"
)

const closeWriteTimeout = time.Second

// AuthMiddleware adapts the Gate to chi route groups
type AuthMiddleware struct {
	gate   *Gate
	logger *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(gate *Gate, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		gate:   gate,
		logger: logger,
	}
}

// RequireAuth runs the gate for every request. Authenticated requests continue with
// the identity in their context; everything else is rejected in the transport's own terms.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn := ConnectionFromRequest(r)

		identity, err := m.gate.Authorize(r.Context(), conn)
		if err != nil {
			m.reject(w, r, conn.Transport)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// reject is the only place a failed authorization is turned into a response.
// Every failure kind produces the same generic rejection.
func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, transport Transport) {
	if transport == TransportWebSocket {
		m.rejectWebSocket(w, r)
		return
	}
	_ = utils.WriteUnauthorized(w, RejectionMessage)
}

// rejectWebSocket completes the handshake only to close it with 1008 (policy violation).
// A handshake that cannot be completed is answered with the plain HTTP rejection instead.
func (m *AuthMiddleware) rejectWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := NewUpgrader(r)
	upgrader.Error = func(w http.ResponseWriter, _ *http.Request, _ int, _ error) {
		_ = utils.WriteUnauthorized(w, RejectionMessage)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Debug("websocket rejection could not upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, RejectionMessage)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout)); err != nil {
		m.logger.Debug("failed to send websocket close", zap.Error(err))
	}
}

// NewUpgrader returns an upgrader that answers with the subprotocol chosen by NegotiateSubprotocol.
// Credentials travel in the subprotocol list rather than cookies, so any origin is accepted.
func NewUpgrader(r *http.Request) *websocket.Upgrader {
	upgrader := &websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	if protocol := NegotiateSubprotocol(r); protocol != "" {
		upgrader.Subprotocols = []string{protocol}
	}
	return upgrader
}
