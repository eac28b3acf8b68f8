package app

import (
	"context"
	"fmt"

	"github.com/notehub/notes-api/config"
	"github.com/notehub/notes-api/internal/observability"
	"github.com/notehub/notes-api/middleware"
	"github.com/notehub/notes-api/supabase"
	"go.uber.org/zap"
)

// verifierConfig selects the Supabase signing key; exp and nbf are checked with no clock leeway
var verifierConfig = supabase.Config{}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Metrics is nil when METRICS_ENABLED=false
	Metrics *observability.MetricsProvider

	// Auth
	Verifier       middleware.TokenVerifier
	Gate           *middleware.Gate
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	authMetrics, err := deps.initMetrics(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := deps.initAuth(cfg, authMetrics); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initMetrics sets up the Prometheus-backed meter provider and the auth decision recorder
func (d *Dependencies) initMetrics(cfg *config.Config) (observability.AuthMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		d.Logger.Info("metrics disabled")
		return observability.NoopAuthMetrics(), nil
	}

	provider, err := observability.NewMetricsProvider()
	if err != nil {
		return nil, err
	}

	authMetrics, err := observability.NewAuthMetrics(provider.Meter())
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}

	d.Metrics = provider
	d.Logger.Info("metrics initialized")
	return authMetrics, nil
}

// initAuth builds the Supabase verifier and the gate shared by every protected route group
func (d *Dependencies) initAuth(cfg *config.Config, authMetrics observability.AuthMetrics) error {
	validator, err := supabase.NewValidator(verifierConfig)
	if err != nil {
		return err
	}
	d.Verifier = validator

	if authCfg, ok := cfg.Auth.Config(); ok {
		d.Logger.Info("supabase auth configured",
			zap.String("supabase_url", authCfg.SupabaseURL),
			zap.String("header", authCfg.Header))
	} else {
		d.Logger.Warn("supabase auth not configured, protected routes will reject every request")
	}

	d.Gate = middleware.NewGate(cfg.Auth, validator, authMetrics, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Gate, d.Logger)
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Metrics != nil {
		if err := d.Metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down metrics: %w", err))
		} else {
			d.Logger.Info("metrics provider stopped")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
