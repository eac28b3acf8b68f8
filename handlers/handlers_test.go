package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notehub/notes-api/app"
	"github.com/notehub/notes-api/config"
	"github.com/notehub/notes-api/internal/observability"
	"github.com/notehub/notes-api/middleware"
	"github.com/notehub/notes-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDeps(t *testing.T, auth config.AuthSettings) *app.Dependencies {
	t.Helper()
	logger := zap.NewNop()
	gate := middleware.NewGate(auth, nil, nil, logger)
	return &app.Dependencies{
		Config:         &config.Config{Environment: "test", Auth: auth},
		Logger:         logger,
		Gate:           gate,
		AuthMiddleware: middleware.NewAuthMiddleware(gate, logger),
	}
}

func enabledAuth() config.AuthSettings {
	return config.EnabledAuth(config.AuthConfig{
		SupabaseURL: "https://project.supabase.co",
		SupabaseKey: "anon-key",
	})
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheck(testDeps(t, enabledAuth()))(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name           string
		deps           func(t *testing.T) *app.Dependencies
		expectedStatus int
		expectedBody   string
		expectedChecks map[string]interface{}
	}{
		{
			name:           "ready with auth configured",
			deps:           func(t *testing.T) *app.Dependencies { return testDeps(t, enabledAuth()) },
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
			expectedChecks: map[string]interface{}{"gate": "healthy", "auth": "configured", "metrics": "disabled"},
		},
		{
			name:           "ready without auth configuration",
			deps:           func(t *testing.T) *app.Dependencies { return testDeps(t, config.DisabledAuth()) },
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
			expectedChecks: map[string]interface{}{"gate": "healthy", "auth": "not_configured", "metrics": "disabled"},
		},
		{
			name: "metrics enabled",
			deps: func(t *testing.T) *app.Dependencies {
				deps := testDeps(t, enabledAuth())
				provider, err := observability.NewMetricsProvider()
				require.NoError(t, err)
				deps.Metrics = provider
				return deps
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
			expectedChecks: map[string]interface{}{"gate": "healthy", "auth": "configured", "metrics": "enabled"},
		},
		{
			name: "not ready without gate",
			deps: func(t *testing.T) *app.Dependencies {
				return &app.Dependencies{Config: &config.Config{}, Logger: zap.NewNop()}
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "not_ready",
			expectedChecks: map[string]interface{}{"gate": "not_initialized", "auth": "not_configured", "metrics": "disabled"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ReadinessCheck(tt.deps(t))(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.expectedBody, body["status"])
			assert.Equal(t, tt.expectedChecks, body["checks"])
		})
	}
}

func TestStatusHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	StatusHandler(testDeps(t, enabledAuth()))(rec, httptest.NewRequest(http.MethodGet, "/routes/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, Version, body["version"])
	assert.Equal(t, "test", body["environment"])
}

func TestGetCurrentUserHandler(t *testing.T) {
	deps := testDeps(t, enabledAuth())

	t.Run("returns 200 with identity when authenticated", func(t *testing.T) {
		identity := models.NewIdentity("u2")
		email, name := "u2@y.com", "U Two"
		identity.Email = &email
		identity.Name = &name

		req := httptest.NewRequest(http.MethodGet, "/routes/users/me", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), identity))
		rec := httptest.NewRecorder()

		GetCurrentUserHandler(deps)(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body struct {
			Data models.Identity `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, *identity, body.Data)
	})

	t.Run("returns 401 when identity missing in context", func(t *testing.T) {
		rec := httptest.NewRecorder()
		GetCurrentUserHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/routes/users/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestStreamHandler(t *testing.T) {
	deps := testDeps(t, enabledAuth())
	identity := models.NewIdentity("u1")

	withIdentity := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), identity)))
		})
	}

	server := httptest.NewServer(withIdentity(StreamHandler(deps)))
	defer server.Close()

	dialer := websocket.Dialer{Subprotocols: []string{"notes.v1", "Authorization.Bearer.tok"}}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "notes.v1", conn.Subprotocol())

	var welcome WelcomeFrame
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "welcome", welcome.Type)
	assert.NotEmpty(t, welcome.ConnectionID)
	require.NotNil(t, welcome.Identity)
	assert.Equal(t, "u1", welcome.Identity.Sub)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	msgType, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Equal(t, "hello", string(payload))
}

func TestStreamHandler_KeepsIdleStreamAlive(t *testing.T) {
	deps := testDeps(t, enabledAuth())
	identity := models.NewIdentity("u1")
	timings := streamTimings{
		writeWait:  time.Second,
		pongWait:   600 * time.Millisecond,
		pingPeriod: 200 * time.Millisecond,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		newStreamHandler(deps, timings)(w, r.WithContext(middleware.WithIdentity(r.Context(), identity)))
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var pings atomic.Int32
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		_ = conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		return nil
	})

	var welcome WelcomeFrame
	require.NoError(t, conn.ReadJSON(&welcome))

	messages := make(chan string, 1)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			messages <- string(payload)
		}
	}()

	// stay silent for well over the pong wait
	select {
	case err := <-readErr:
		t.Fatalf("idle stream was closed: %v", err)
	case <-time.After(3 * timings.pongWait):
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("still here")))
	select {
	case msg := <-messages:
		assert.Equal(t, "still here", msg)
	case err := <-readErr:
		t.Fatalf("stream closed before echo: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	assert.GreaterOrEqual(t, pings.Load(), int32(2))
}

func TestNewStreamTimings(t *testing.T) {
	timings := newStreamTimings(streamPongWait)

	assert.Equal(t, streamPongWait, timings.pongWait)
	assert.Equal(t, 54*time.Second, timings.pingPeriod)
	assert.Less(t, timings.pingPeriod, timings.pongWait)
}

func TestStreamHandler_WithoutIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	StreamHandler(testDeps(t, enabledAuth()))(rec, httptest.NewRequest(http.MethodGet, "/routes/stream/ws", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized","message":"Not authenticated"}`, rec.Body.String())
}
