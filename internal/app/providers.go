package app

import (
	"context"

	"salesboard/internal/config"

	"github.com/google/wire"
)

var providerSet = wire.NewSet(
	provideAppBuilder,
	wire.Bind(new(appBuilderDeps), new(*AppBuilder)),
	provideAppFromBuilder,
)

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

func provideAppFromBuilder(b appBuilderDeps, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}

func provideAppBuilder(cfg *config.Config, w *config.Watcher) *AppBuilder {
	if w == nil {
		return NewAppBuilder(cfg)
	}
	return NewAppBuilder(cfg, WithWatcher(w))
}
