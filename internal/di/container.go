package di

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"wayfinder/internal/config"
	"wayfinder/internal/observability"
	"wayfinder/internal/query"
	"wayfinder/internal/resources"
	"wayfinder/internal/rpc"
	"wayfinder/internal/session"
)

// Client is everything a consumer of the remote API needs.
type Client struct {
	Config   *config.Config
	Logger   *zap.Logger
	LogLevel zap.AtomicLevel
	Metrics  *observability.Collector
	Tracing  *observability.TracerProvider
	Sessions *session.Manager
	RPC      *rpc.Client
	Query    *query.Client
	API      *resources.API
}

// Server is the upload signing service.
type Server struct {
	Config   *config.Config
	Logger   *zap.Logger
	LogLevel zap.AtomicLevel
	Metrics  *observability.Collector
	Tracing  *observability.TracerProvider
	Handler  *chi.Mux
}
