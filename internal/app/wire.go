//go:build wireinject

package app

import (
	"context"

	"salesboard/internal/config"

	"github.com/google/wire"
)

func buildAppWithWire(ctx context.Context, cfg *config.Config, w *config.Watcher) (*App, error) {
	wire.Build(providerSet)
	return nil, nil
}
