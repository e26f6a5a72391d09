// Package di assembles the wayfinder object graph with google/wire.
package di

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"wayfinder/internal/config"
	"wayfinder/internal/notify"
	"wayfinder/internal/observability"
	"wayfinder/internal/query"
	"wayfinder/internal/rpc"
	"wayfinder/internal/session"
	"wayfinder/internal/uploads"
)

func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	atom := zap.NewAtomicLevel()
	if err := observability.SetLevel(atom, cfg.Logging.Level); err != nil {
		return atom, err
	}
	return atom, nil
}

func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	logger, err := observability.BuildLogger(level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("environment", string(cfg.Environment)))
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideTracing returns nil when tracing is disabled.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.Tracing.Enabled {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.Tracing.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

func ProvideSessionManager(logger *zap.Logger) *session.Manager {
	return session.NewManager(logger)
}

func ProvideRPCClient(cfg *config.Config, sessions *session.Manager, metrics *observability.Collector, logger *zap.Logger) *rpc.Client {
	return rpc.NewClient(rpc.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		Breaker: rpc.BreakerConfig{
			Name:             "api",
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			MinRequests:      cfg.Breaker.MinRequests,
		},
		Tokens:  session.Tokens(sessions),
		Metrics: metrics,
		Logger:  logger,
	})
}

func ProvideNotifier(logger *zap.Logger) notify.Sink {
	return notify.NewLogSink(logger)
}

// ProvideQueryClient starts cache garbage collection; the cleanup stops it.
func ProvideQueryClient(cfg *config.Config, logger *zap.Logger, metrics *observability.Collector, sink notify.Sink) (*query.Client, func()) {
	c := query.NewClient(
		query.WithLogger(logger),
		query.WithMetrics(metrics),
		query.WithNotifier(sink),
		query.WithStaleTime(cfg.Query.StaleTime),
		query.WithGCTime(cfg.Query.GCTime),
		query.WithRetryDelay(cfg.Query.RetryDelay),
	)
	c.StartGC(cfg.Query.GCInterval)
	return c, c.Close
}

func ProvideVerifier(cfg *config.Config) (*session.Verifier, error) {
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	return session.NewVerifier(session.VerifierConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
}

func ProvideSigner(cfg *config.Config) (*uploads.Signer, error) {
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	return uploads.NewSigner(uploads.SignerConfig{
		CloudName: cfg.Uploads.CloudName,
		APIKey:    cfg.Uploads.APIKey,
		APISecret: cfg.Uploads.APISecret,
		Folder:    cfg.Uploads.Folder,
	})
}

func ProvideHandler(cfg *config.Config, signer *uploads.Signer, verifier *session.Verifier, metrics *observability.Collector, logger *zap.Logger) *chi.Mux {
	rc := uploads.RouterConfig{
		Signer:         signer,
		Verifier:       verifier,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		CORSMaxAge:     cfg.CORS.MaxAge,
		Logger:         logger,
	}
	if cfg.Metrics.Enabled {
		rc.Metrics = metrics
		rc.MetricsPath = cfg.Metrics.Path
	}
	return uploads.NewRouter(rc)
}
