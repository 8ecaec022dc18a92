//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/chidi150c/vwaplive/internal/app"
	"github.com/chidi150c/vwaplive/internal/engine"
	"github.com/chidi150c/vwaplive/internal/guards"
)

// InitializeApp builds App via Wire. The returned cleanup closes journals,
// the feed, the model and the audit log, then releases the pid lock.
func InitializeApp(ctx context.Context, f app.Flags) (*App, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvidePidLock,
		app.ProvideLogger,
		app.ProvideRegistry,
		app.ProvideGuard,
		app.ProvideFeed,
		app.ProvideSource,
		app.ProvideModel,
		app.ProvideAudit,
		app.ProvideBrokerClient,
		app.ProvideSafeBroker,
		app.ProvideBooks,
		app.ProvideEngine,
		wire.Bind(new(engine.Executor), new(*guards.SafeBroker)),
		wire.Struct(new(App), "Lock", "Config", "Logger", "Engine"),
	)
	return nil, nil, nil
}
