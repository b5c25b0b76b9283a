package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salesboard/internal/config"
	"salesboard/internal/logger"
	"salesboard/internal/pipeline"
	"salesboard/internal/scheduler"
	dashboardhttp "salesboard/internal/transport/http/dashboard"
	salesapihttp "salesboard/internal/transport/http/salesapi"

	"golang.org/x/sync/errgroup"
)

const (
	initialFetchAttempts = 5
	initialFetchBackoff  = 500 * time.Millisecond
)

// App 负责应用级编排：加载配置→初始化依赖→启动看板与参考数据服务。
type App struct {
	cfg       *config.Config
	watcher   *config.Watcher
	pipe      *pipeline.Pipeline
	dashboard *dashboardhttp.Server
	salesAPI  *salesapihttp.Server
	closers   []func() error
	Summary   *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, nil)
}

// NewWatchedApp is NewApp with render and log settings hot-reloaded from w.
func NewWatchedApp(w *config.Watcher) (*App, error) {
	if w == nil {
		return nil, fmt.Errorf("nil config watcher")
	}
	cfg := w.Current()
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, w)
}

// Run 启动看板、参考接口与配置监听，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)

	if a.salesAPI != nil {
		group.Go(func() error {
			if err := a.salesAPI.Start(ctx); err != nil {
				return fmt.Errorf("sales api server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		if err := a.dashboard.Start(ctx); err != nil {
			return fmt.Errorf("dashboard server error: %w", err)
		}
		return nil
	})

	if a.watcher != nil {
		a.watcher.Subscribe(a.applyConfig)
		group.Go(func() error {
			return a.watcher.Run(ctx)
		})
	}

	group.Go(func() error {
		a.initialFetch(ctx)
		return nil
	})

	if every := a.cfg.Source.RefreshEvery(); every > 0 {
		refresher := scheduler.NewAlignedScheduler("auto-refresh", every, 0)
		group.Go(func() error {
			return refresher.Run(ctx, a.autoRefresh)
		})
	}

	return group.Wait()
}

func (a *App) autoRefresh(ctx context.Context) {
	err := a.pipe.Refresh(ctx)
	switch {
	case err == nil:
		logger.Debugf("auto refresh ok: %d records", len(a.pipe.Records()))
	case errors.Is(err, pipeline.ErrSuperseded), ctx.Err() != nil:
	default:
		logger.Warnf("auto refresh failed, keep last chart: %v", err)
	}
}

// initialFetch loads the first records, retrying while an embedded backend starts.
func (a *App) initialFetch(ctx context.Context) {
	var err error
	for attempt := 1; attempt <= initialFetchAttempts; attempt++ {
		if err = a.pipe.Refresh(ctx); err == nil {
			logger.Infof("initial sales fetch ok: %d records", len(a.pipe.Records()))
			return
		}
		if ctx.Err() != nil || errors.Is(err, pipeline.ErrSuperseded) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialFetchBackoff * time.Duration(attempt)):
		}
	}
	logger.Warnf("initial sales fetch failed, serving empty chart: %v", err)
}

// applyConfig reacts to a reloaded configuration. Log and render settings,
// including the locale used for label ordering, apply live; addresses and the
// data source need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	logger.SetLevel(cfg.App.LogLevel)
	r, err := newRenderer(cfg.Render)
	if err != nil {
		logger.Warnf("config reload: keep previous render settings: %v", err)
		return
	}
	a.dashboard.SetRenderer(r, cfg.Render.SnapshotEnabled)
	a.pipe.SetLocale(r.Formatter().Tag())
	logger.Infof("config reload: render settings applied (title=%q %dx%d)", cfg.Render.Title, cfg.Render.Width, cfg.Render.Height)
}

// Close releases stores opened by the builder.
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warnf("close resource: %v", err)
		}
	}
	a.closers = nil
}

// Pipeline exposes the chart pipeline (for tests and one-shot commands).
func (a *App) Pipeline() *pipeline.Pipeline {
	if a == nil {
		return nil
	}
	return a.pipe
}
