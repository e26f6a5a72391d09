//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"wayfinder/internal/config"
	"wayfinder/internal/resources"
	"wayfinder/internal/rpc"
	"wayfinder/internal/session"
)

// CommonSet is shared by both binaries.
var CommonSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideMetrics,
	ProvideTracing,
)

var ClientSet = wire.NewSet(
	CommonSet,
	ProvideSessionManager,
	wire.Bind(new(session.Provider), new(*session.Manager)),
	ProvideRPCClient,
	wire.Bind(new(rpc.Caller), new(*rpc.Client)),
	ProvideNotifier,
	ProvideQueryClient,
	resources.New,
	wire.Struct(new(Client), "*"),
)

var ServerSet = wire.NewSet(
	CommonSet,
	ProvideVerifier,
	ProvideSigner,
	ProvideHandler,
	wire.Struct(new(Server), "*"),
)

// InitializeClient builds the query layer and its resource API.
func InitializeClient(ctx context.Context, cfg *config.Config) (*Client, func(), error) {
	wire.Build(ClientSet)
	return nil, nil, nil
}

// InitializeServer builds the upload signing service.
func InitializeServer(ctx context.Context, cfg *config.Config) (*Server, func(), error) {
	wire.Build(ServerSet)
	return nil, nil, nil
}
