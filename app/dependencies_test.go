package app

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/notehub/notes-api/config"
	"github.com/notehub/notes-api/middleware"
	"github.com/notehub/notes-api/supabase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewDependencies(t *testing.T) {
	t.Run("successful initialization with metrics", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.NotNil(t, deps.Config)
		assert.NotNil(t, deps.Logger)
		assert.NotNil(t, deps.Metrics)
		assert.NotNil(t, deps.Verifier)
		assert.NotNil(t, deps.Gate)
		assert.NotNil(t, deps.AuthMiddleware)

		err = deps.Close(ctx)
		assert.NoError(t, err)
	})

	t.Run("metrics disabled", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Observability.MetricsEnabled = false

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)

		assert.Nil(t, deps.Metrics)
		assert.NotNil(t, deps.Gate)
		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("disabled auth still builds a gate that rejects", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Auth = config.DisabledAuth()

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer anything")

		_, err = deps.Gate.Authorize(ctx, middleware.ConnectionFromRequest(req))
		assert.ErrorIs(t, err, middleware.ErrConfigMissing)
	})
}

func TestNewDependencies_RecordsDecisions(t *testing.T) {
	ctx := context.Background()
	deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close(ctx)

	req := httptest.NewRequest(http.MethodGet, "/routes/users/me", nil)
	_, err = deps.Gate.Authorize(ctx, middleware.ConnectionFromRequest(req))
	require.ErrorIs(t, err, middleware.ErrTokenMissing)

	rec := httptest.NewRecorder()
	deps.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `auth_outcome="token_absent"`)
}

func TestNewDependencies_NoClockLeeway(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	original := verifierConfig
	t.Cleanup(func() { verifierConfig = original })
	verifierConfig.PublicKeyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Observability.MetricsEnabled = false
	deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close(ctx)

	sign := func(exp time.Time) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"sub": "u1",
			"exp": exp.Unix(),
		}).SignedString(key)
		require.NoError(t, err)
		return token
	}

	_, err = deps.Verifier.VerifyToken(ctx, sign(time.Now().Add(time.Minute)))
	assert.NoError(t, err)

	_, err = deps.Verifier.VerifyToken(ctx, sign(time.Now().Add(-2*time.Second)))
	assert.ErrorIs(t, err, supabase.ErrTokenExpired)
}

func TestDependenciesClose(t *testing.T) {
	t.Run("graceful shutdown without metrics", func(t *testing.T) {
		deps := &Dependencies{Config: testConfig(t), Logger: zaptest.NewLogger(t)}
		assert.NoError(t, deps.Close(context.Background()))
	})

	t.Run("graceful shutdown with metrics", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.NoError(t, deps.Close(ctx))
	})
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Auth: config.EnabledAuth(config.AuthConfig{
			SupabaseURL: "https://project.supabase.co",
			SupabaseKey: "anon-key",
		}),
		Routers: config.RoutersConfig{ConfigPath: "routers.json"},
		Observability: config.ObservabilityConfig{
			LogLevel:       "error",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}
