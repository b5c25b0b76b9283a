package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salesboard/internal/config"
	"salesboard/internal/gateway/notifier"
	"salesboard/internal/gateway/salesrest"
	"salesboard/internal/logger"
	"salesboard/internal/pipeline"
	"salesboard/internal/pkg/circuit"
	"salesboard/internal/render"
	"salesboard/internal/store/gormstore"
	"salesboard/internal/store/querylog"
	dashboardhttp "salesboard/internal/transport/http/dashboard"
	salesapihttp "salesboard/internal/transport/http/salesapi"
)

// Backend is the embedded reference sales API and the resources it owns.
type Backend struct {
	Server  *salesapihttp.Server
	Closers []func() error
	Rows    int64
}

type AppBuilder struct {
	cfg     *config.Config
	watcher *config.Watcher

	sourceFn   func(config.SourceConfig) (pipeline.DataSource, error)
	rendererFn func(config.RenderConfig) (*render.Renderer, error)
	backendFn  func(context.Context, config.BackendConfig) (*Backend, error)
}

type AppBuilderOption func(*AppBuilder)

// WithDataSource replaces the HTTP data source, e.g. with an in-process fake.
func WithDataSource(src pipeline.DataSource) AppBuilderOption {
	return func(b *AppBuilder) {
		b.sourceFn = func(config.SourceConfig) (pipeline.DataSource, error) { return src, nil }
	}
}

func WithWatcher(w *config.Watcher) AppBuilderOption {
	return func(b *AppBuilder) { b.watcher = w }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		rendererFn: newRenderer,
		backendFn:  BuildBackend,
	}
	b.sourceFn = b.buildSource
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	a := &App{cfg: cfg, watcher: b.watcher}
	fail := func(err error) (*App, error) {
		a.Close()
		return nil, err
	}

	var backendRows int64 = -1
	if cfg.Backend.Enabled {
		backend, err := b.backendFn(ctx, cfg.Backend)
		if err != nil {
			return fail(fmt.Errorf("build sales backend: %w", err))
		}
		a.salesAPI = backend.Server
		a.closers = append(a.closers, backend.Closers...)
		backendRows = backend.Rows
	}

	src, err := b.sourceFn(cfg.Source)
	if err != nil {
		return fail(fmt.Errorf("build data source: %w", err))
	}
	renderer, err := b.rendererFn(cfg.Render)
	if err != nil {
		return fail(fmt.Errorf("build renderer: %w", err))
	}
	pipe, err := pipeline.New(src,
		pipeline.WithName("dashboard"),
		pipeline.WithSelection(cfg.Selection.Selection()),
		pipeline.WithLocale(renderer.Formatter().Tag()),
	)
	if err != nil {
		return fail(fmt.Errorf("build pipeline: %w", err))
	}
	a.pipe = pipe

	dash, err := dashboardhttp.NewServer(dashboardhttp.Config{
		Addr:            cfg.App.HTTPAddr,
		Pipeline:        pipe,
		Renderer:        renderer,
		SnapshotEnabled: cfg.Render.SnapshotEnabled,
	})
	if err != nil {
		return fail(err)
	}
	a.dashboard = dash

	a.Summary = &StartupSummary{
		Env:         cfg.App.Env,
		Dashboard:   cfg.App.HTTPAddr,
		SourceURL:   strings.TrimRight(cfg.Source.APIURL, "/") + cfg.Source.Resource,
		Refresh:     strings.TrimSpace(cfg.Source.RefreshInterval),
		Selection:   pipe.Selection(),
		Locale:      cfg.Render.Locale,
		Snapshots:   cfg.Render.SnapshotEnabled,
		Backend:     cfg.Backend.Enabled,
		BackendAddr: cfg.Backend.HTTPAddr,
		BackendRows: backendRows,
		HotReload:   b.watcher != nil,
	}
	return a, nil
}

func (b *AppBuilder) buildSource(cfg config.SourceConfig) (pipeline.DataSource, error) {
	client, err := salesrest.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	var alerts notifier.TextNotifier
	if tg := notifier.FromConfig(b.cfg.Notify.Telegram); tg != nil {
		alerts = tg
	}
	endpoint := strings.TrimRight(cfg.APIURL, "/") + cfg.Resource
	client.Breaker().SetStateChangeHandler(breakerAlert(alerts, endpoint))
	return client, nil
}

// breakerAlert logs every transition and pushes open/closed ones to alerts.
func breakerAlert(alerts notifier.TextNotifier, endpoint string) func(string, circuit.State, circuit.State) {
	return func(name string, from, to circuit.State) {
		logger.Warnf("sales source %s breaker %s -> %s", name, from, to)
		if alerts == nil || to == circuit.StateHalfOpen {
			return
		}
		msg := notifier.BreakerMessage(name, from.String(), to.String(), endpoint, time.Now()).Markdown()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := alerts.SendText(ctx, msg); err != nil {
			logger.Warnf("breaker alert not delivered: %v", err)
		}
	}
}

func newRenderer(cfg config.RenderConfig) (*render.Renderer, error) {
	return render.New(render.OptionsFromConfig(cfg))
}

// BuildBackend opens the sales store, seeds it when empty and builds the API server.
func BuildBackend(ctx context.Context, cfg config.BackendConfig) (*Backend, error) {
	store, err := gormstore.NewGormStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	backend := &Backend{Closers: []func() error{store.Close}}
	closeAll := func() {
		for _, c := range backend.Closers {
			_ = c()
		}
	}

	rows, err := store.Count(ctx)
	if err != nil {
		closeAll()
		return nil, err
	}
	if rows == 0 && strings.TrimSpace(cfg.SeedPath) != "" {
		n, err := store.SeedFromFile(ctx, cfg.SeedPath)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("seed %s: %w", cfg.SeedPath, err)
		}
		logger.Infof("seeded %d sales from %s", n, cfg.SeedPath)
		rows = int64(n)
	}
	backend.Rows = rows

	var qlog salesapihttp.QueryLog
	if strings.TrimSpace(cfg.QueryLogPath) != "" {
		ql, err := querylog.NewStore(cfg.QueryLogPath)
		if err != nil {
			closeAll()
			return nil, err
		}
		backend.Closers = append(backend.Closers, ql.Close)
		qlog = ql
	}

	srv, err := salesapihttp.NewServer(salesapihttp.Config{Addr: cfg.HTTPAddr, Store: store, Log: qlog})
	if err != nil {
		closeAll()
		return nil, err
	}
	backend.Server = srv
	return backend, nil
}
