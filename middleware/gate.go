package middleware

import (
	"context"
	"errors"
	"fmt"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/notehub/notes-api/config"
	"github.com/notehub/notes-api/internal/observability"
	"github.com/notehub/notes-api/models"
	"github.com/notehub/notes-api/supabase"
	"go.uber.org/zap"
)

// TokenVerifier defines the interface for verifying bearer tokens
type TokenVerifier interface {
	// VerifyToken checks a raw token and returns its verified claims
	VerifyToken(ctx context.Context, token string) (*supabase.VerifiedClaims, error)
}

// Gate decides whether a connection carries a valid Supabase identity.
// It holds no per-request state and may be shared by any number of goroutines.
type Gate struct {
	auth     config.AuthSettings
	verifier TokenVerifier
	metrics  observability.AuthMetrics
	logger   *zap.Logger
}

// NewGate creates a Gate. A nil metrics recorder disables metrics.
func NewGate(auth config.AuthSettings, verifier TokenVerifier, metrics observability.AuthMetrics, logger *zap.Logger) *Gate {
	if metrics == nil {
		metrics = observability.NoopAuthMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		auth:     auth,
		verifier: verifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Authorize returns the identity behind conn, or an *AuthError describing why there is none.
// It never panics: unexpected faults are recovered and reported as FailureInternal.
func (g *Gate) Authorize(ctx context.Context, conn Connection) (identity *models.Identity, err error) {
	logger := g.logger.With(
		zap.String("request_id", chimiddleware.GetReqID(ctx)),
		zap.Stringer("transport", conn.Transport),
	)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("authorization panicked",
				zap.Any("panic", rec),
				zap.Stack("stack"))
			identity = nil
			err = newAuthError(FailureInternal, conn.Transport, fmt.Errorf("panic: %v", rec))
		}

		outcome := "success"
		if err != nil {
			outcome = string(FailureKindOf(err))
		}
		g.metrics.RecordDecision(ctx, conn.Transport.String(), outcome)
	}()

	authCfg, ok := g.auth.Config()
	if !ok {
		logger.Error("rejecting connection: no auth configuration")
		return nil, newAuthError(FailureConfigMissing, conn.Transport, ErrAuthNotConfigured)
	}

	token, err := ExtractToken(conn, authCfg.Header)
	if err != nil {
		if !errors.Is(err, ErrTokenAbsent) {
			logger.Error("token extraction failed", zap.Error(err))
			return nil, newAuthError(FailureInternal, conn.Transport, err)
		}
		logger.Debug("no bearer token",
			zap.String("header", headerFor(conn.Transport, authCfg.Header)),
			zap.Error(err))
		return nil, newAuthError(FailureTokenAbsent, conn.Transport, err)
	}

	claims, err := g.verifier.VerifyToken(ctx, token)
	if err != nil {
		logger.Warn("token verification failed", zap.Error(err))
		return nil, newAuthError(FailureTokenInvalid, conn.Transport, err)
	}
	if claims == nil {
		logger.Error("verifier returned no claims")
		return nil, newAuthError(FailureInternal, conn.Transport, errNoClaims)
	}

	identity = claims.Identity()

	logger.Debug("authentication successful",
		zap.String("sub", identity.Sub))

	return identity, nil
}

var errNoClaims = errors.New("verifier returned no claims and no error")

func headerFor(transport Transport, configured string) string {
	if transport == TransportWebSocket {
		return WebSocketProtocolHeader
	}
	return configured
}
