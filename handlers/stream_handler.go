package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/notehub/notes-api/app"
	"github.com/notehub/notes-api/middleware"
	"github.com/notehub/notes-api/models"
	"github.com/notehub/notes-api/utils"
	"go.uber.org/zap"
)

const (
	streamReadLimit  = 64 * 1024
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	welcomeFrameType = "welcome"
)

// streamTimings bounds how long a stream may stay silent. Pings go out every
// pingPeriod, which must be shorter than pongWait.
type streamTimings struct {
	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func newStreamTimings(pongWait time.Duration) streamTimings {
	return streamTimings{
		writeWait:  streamWriteWait,
		pongWait:   pongWait,
		pingPeriod: pongWait * 9 / 10,
	}
}

// WelcomeFrame is the first message sent on an authenticated stream
type WelcomeFrame struct {
	Type         string           `json:"type"`
	ConnectionID string           `json:"connection_id"`
	Identity     *models.Identity `json:"identity"`
}

// StreamHandler upgrades an authenticated request, greets the caller with their
// identity and then echoes every text frame until the client goes away.
// Idle streams are kept open with pings.
func StreamHandler(deps *app.Dependencies) http.HandlerFunc {
	return newStreamHandler(deps, newStreamTimings(streamPongWait))
}

func newStreamHandler(deps *app.Dependencies, timings streamTimings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.GetIdentityFromContext(r.Context())
		if identity == nil {
			// RequireAuth always runs first; reaching here means the group was mounted without it
			deps.Logger.Error("stream reached without identity")
			_ = utils.WriteUnauthorized(w, middleware.RejectionMessage)
			return
		}

		conn, err := middleware.NewUpgrader(r).Upgrade(w, r, nil)
		if err != nil {
			deps.Logger.Debug("stream upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		connID := uuid.NewString()
		logger := deps.Logger.With(
			zap.String("connection_id", connID),
			zap.String("sub", identity.Sub),
		)
		logger.Info("stream opened",
			zap.String("user", identity.DisplayName()),
			zap.String("subprotocol", conn.Subprotocol()))

		conn.SetReadLimit(streamReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(timings.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(timings.pongWait))
		})

		_ = conn.SetWriteDeadline(time.Now().Add(timings.writeWait))
		if err := conn.WriteJSON(WelcomeFrame{
			Type:         welcomeFrameType,
			ConnectionID: connID,
			Identity:     identity,
		}); err != nil {
			logger.Warn("failed to send welcome frame", zap.Error(err))
			return
		}

		done := make(chan struct{})
		defer close(done)
		go keepAlive(conn, timings, done, logger)

		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warn("stream closed unexpectedly", zap.Error(err))
				}
				break
			}
			_ = conn.SetReadDeadline(time.Now().Add(timings.pongWait))

			_ = conn.SetWriteDeadline(time.Now().Add(timings.writeWait))
			if err := conn.WriteMessage(msgType, payload); err != nil {
				logger.Warn("failed to echo frame", zap.Error(err))
				break
			}
		}

		logger.Info("stream closed")
	}
}

// keepAlive pings the peer until done is closed or a ping cannot be written.
// WriteControl may run alongside the echo loop's writes.
func keepAlive(conn *websocket.Conn, timings streamTimings, done <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(timings.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timings.writeWait)); err != nil {
				logger.Debug("stream ping failed", zap.Error(err))
				return
			}
		}
	}
}
