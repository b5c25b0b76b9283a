package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"salesboard/internal/config"
	"salesboard/internal/pipeline"
	"salesboard/internal/sales"
	"salesboard/internal/store/gormstore"
)

// RenderRequest describes a one-shot chart render.
type RenderRequest struct {
	Patch   sales.SelectionPatch
	Format  string // html, png or json
	Offline bool   // read backend.db_path directly instead of calling the API
}

type storeSource struct {
	store *gormstore.GormStore
}

func (s storeSource) Query(ctx context.Context, statistic, cohort string) ([]sales.Record, error) {
	return s.store.Aggregate(ctx, sales.Statistic(statistic), sales.Cohort(cohort))
}

// RenderOnce fetches once for the configured selection with req.Patch applied
// and writes the chart to w.
func (b *AppBuilder) RenderOnce(ctx context.Context, req RenderRequest, w io.Writer) error {
	cfg := b.cfg
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	var src pipeline.DataSource
	if req.Offline {
		store, err := gormstore.NewGormStore(cfg.Backend.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		src = storeSource{store: store}
	} else {
		var err error
		if src, err = b.sourceFn(cfg.Source); err != nil {
			return err
		}
	}
	renderer, err := b.rendererFn(cfg.Render)
	if err != nil {
		return err
	}
	pipe, err := pipeline.New(src,
		pipeline.WithName("render"),
		pipeline.WithSelection(cfg.Selection.Selection().Apply(req.Patch)),
		pipeline.WithLocale(renderer.Formatter().Tag()),
	)
	if err != nil {
		return err
	}
	if err := pipe.Refresh(ctx); err != nil {
		return err
	}

	snap := pipe.Snapshot()
	switch strings.ToLower(strings.TrimSpace(req.Format)) {
	case "", "html":
		return renderer.Render(w, snap.Spec, snap.Labels)
	case "png":
		png, err := renderer.PNG(ctx, snap.Spec, snap.Labels)
		if err != nil {
			return err
		}
		_, err = w.Write(png)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"selection": snap.Selection,
			"labels":    snap.Labels,
			"spec":      snap.Spec,
			"summary":   renderer.Subtitle(snap.Spec),
		})
	default:
		return fmt.Errorf("unknown render format %q", req.Format)
	}
}

// RenderOnce is AppBuilder.RenderOnce with the default providers.
func RenderOnce(ctx context.Context, cfg *config.Config, req RenderRequest, w io.Writer) error {
	return NewAppBuilder(cfg).RenderOnce(ctx, req, w)
}
