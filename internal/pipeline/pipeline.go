package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"salesboard/internal/catalog"
	"salesboard/internal/logger"
	"salesboard/internal/sales"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// DataSource returns the records for a (statistic, cohort) pair. Empty strings
// mean no filter.
type DataSource interface {
	Query(ctx context.Context, statistic, cohort string) ([]sales.Record, error)
}

// State is Idle when the records match the selection and Loading while a fetch
// is in flight.
type State int

const (
	StateIdle State = iota
	StateLoading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent view of the pipeline after a change. Version grows
// with every recompute; Generation only with every fetch.
type Snapshot struct {
	Selection  sales.Selection
	Records    []sales.Record
	Spec       sales.RenderSpec
	Labels     sales.AxisLabels
	State      State
	Generation uint64
	Version    uint64
	UpdatedAt  time.Time
}

// Listener receives a snapshot after every recompute. Snapshots arrive in
// Version order; one overtaken by a newer recompute is never delivered.
// Listeners must not call back into the pipeline.
type Listener func(Snapshot)

// query is the (statistic, cohort) pair a set of records was fetched for.
type query struct {
	statistic sales.Statistic
	cohort    sales.Cohort
}

// Pipeline owns the selection and the last fetched records and derives the
// render spec from them.
type Pipeline struct {
	name    string
	src     DataSource
	catalog catalog.Catalog
	locale  language.Tag

	mu         sync.Mutex
	selection  sales.Selection
	loaded     query
	records    []sales.Record
	spec       sales.RenderSpec
	labels     sales.AxisLabels
	state      State
	generation uint64
	version    uint64
	cancel     context.CancelFunc
	updatedAt  time.Time

	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextID     int

	// notifyMu orders deliveries; delivered is the last Version sent out.
	notifyMu  sync.Mutex
	delivered uint64
}

// Option customises a Pipeline at construction.
type Option func(*Pipeline)

func WithName(name string) Option {
	return func(p *Pipeline) { p.name = name }
}

func WithCatalog(c catalog.Catalog) Option {
	return func(p *Pipeline) { p.catalog = c }
}

// WithSelection sets the initial selection. It is validated by New.
func WithSelection(sel sales.Selection) Option {
	return func(p *Pipeline) { p.selection = sel }
}

// WithLocale sets the collation used for label ordering.
func WithLocale(tag language.Tag) Option {
	return func(p *Pipeline) { p.locale = tag }
}

// New builds an idle pipeline with no records. Call Refresh for the initial load.
func New(src DataSource, opts ...Option) (*Pipeline, error) {
	if src == nil {
		return nil, errors.New("pipeline requires a data source")
	}
	p := &Pipeline{
		name:      "sales",
		src:       src,
		catalog:   catalog.Default(),
		locale:    language.English,
		listeners: make(map[int]Listener),
	}
	p.selection = p.catalog.DefaultSelection()
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if err := p.checkSelection(p.selection); err != nil {
		return nil, err
	}
	p.loaded = queryOf(p.selection)
	p.recomputeLocked()
	return p, nil
}

func queryOf(sel sales.Selection) query {
	return query{statistic: sel.Statistic, cohort: sel.Cohort}
}

// SetSelection merges patch into the selection. A cohort or statistic change
// triggers a fetch; any other change only re-sorts and reshapes the stored
// records.
func (p *Pipeline) SetSelection(ctx context.Context, patch sales.SelectionPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	p.mu.Lock()
	next := p.selection.Apply(patch)
	if err := p.checkSelection(next); err != nil {
		p.mu.Unlock()
		return err
	}
	refetch := p.selection.NeedsFetch(next)
	p.selection = next
	if !refetch {
		p.recomputeLocked()
		snap := p.snapshotLocked()
		p.mu.Unlock()
		p.notify(snap)
		return nil
	}
	p.mu.Unlock()
	return p.Refresh(ctx)
}

// SetLocale switches the label collation and re-sorts the stored records.
func (p *Pipeline) SetLocale(tag language.Tag) {
	p.mu.Lock()
	if p.locale == tag {
		p.mu.Unlock()
		return
	}
	p.locale = tag
	p.recomputeLocked()
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snap)
}

// Locale reports the collation used for label ordering.
func (p *Pipeline) Locale() language.Tag {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locale
}

// Refresh fetches records for the current selection and replaces the stored
// records wholesale. A newer Refresh supersedes an older one: the older fetch is
// cancelled and its result is discarded with ErrSuperseded.
func (p *Pipeline) Refresh(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	gen := p.generation
	fetchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = StateLoading
	stat, cohort := string(p.selection.Statistic), string(p.selection.Cohort)
	p.mu.Unlock()
	defer cancel()

	log := logger.With("pipeline", p.name, "trace", uuid.NewString(), "generation", gen)
	start := time.Now()
	log.Debug("fetch start", "stat", stat, "cohort", cohort)
	records, err := p.src.Query(fetchCtx, stat, cohort)

	p.mu.Lock()
	if gen != p.generation {
		current := p.generation
		p.mu.Unlock()
		log.Debug("fetch discarded", "current", current)
		return &FetchError{Statistic: stat, Cohort: cohort, Generation: gen, Err: ErrSuperseded}
	}
	p.cancel = nil
	p.state = StateIdle
	if err != nil {
		// 失败时查询参数回退到已加载记录对应的值，保证 selection 与 records 一致
		p.selection.Statistic, p.selection.Cohort = p.loaded.statistic, p.loaded.cohort
		p.mu.Unlock()
		log.Warn("fetch failed", "stat", stat, "cohort", cohort, "err", err)
		return &FetchError{Statistic: stat, Cohort: cohort, Generation: gen, Err: err}
	}
	p.loaded = query{statistic: sales.Statistic(stat), cohort: sales.Cohort(cohort)}
	p.records = slices.Clone(records)
	p.recomputeLocked()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	log.Debug("fetch applied", "records", len(records), "dur", time.Since(start))
	p.notify(snap)
	return nil
}

// recomputeLocked sorts the stored records in place of the previous order and
// rebuilds spec and labels. The series key and axis labels follow the query the
// records were fetched for, not a pending one. Callers hold p.mu.
func (p *Pipeline) recomputeLocked() {
	shown := p.selection
	shown.Statistic, shown.Cohort = p.loaded.statistic, p.loaded.cohort
	p.records = Sort(p.records, shown.OrderBy, p.locale)
	p.spec = Reshape(p.records, shown.ChartType, shown.Cohort)
	p.labels = MustDeriveAxisLabels(p.catalog, shown)
	p.version++
	p.updatedAt = time.Now()
}

// checkSelection validates the fields that feed the query and the sort. The
// chart type is free: unknown types render as a pie.
func (p *Pipeline) checkSelection(sel sales.Selection) error {
	if _, err := p.catalog.CohortName(sel.Cohort); err != nil {
		return fmt.Errorf("set selection: %w", err)
	}
	if _, err := p.catalog.StatisticName(sel.Statistic); err != nil {
		return fmt.Errorf("set selection: %w", err)
	}
	if _, err := p.catalog.OrderByName(sel.OrderBy); err != nil {
		return fmt.Errorf("set selection: %w", err)
	}
	return nil
}

func (p *Pipeline) snapshotLocked() Snapshot {
	return Snapshot{
		Selection:  p.selection,
		Records:    p.records,
		Spec:       p.spec,
		Labels:     p.labels,
		State:      p.state,
		Generation: p.generation,
		Version:    p.version,
		UpdatedAt:  p.updatedAt,
	}
}

// Snapshot returns the current selection, records and derived spec together.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) Selection() sales.Selection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selection
}

// Records returns the stored records in their current order.
func (p *Pipeline) Records() []sales.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.records)
}

func (p *Pipeline) RenderSpec() sales.RenderSpec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spec
}

func (p *Pipeline) AxisLabels() sales.AxisLabels {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.labels
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Catalog() catalog.Catalog {
	return p.catalog
}

// Subscribe registers fn for every recompute and returns a function that
// removes it.
func (p *Pipeline) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	p.listenerMu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.listenerMu.Unlock()
	return func() {
		p.listenerMu.Lock()
		delete(p.listeners, id)
		p.listenerMu.Unlock()
	}
}

func (p *Pipeline) notify(snap Snapshot) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	if snap.Version <= p.delivered {
		return
	}
	p.delivered = snap.Version
	p.listenerMu.RLock()
	listeners := make([]Listener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.listenerMu.RUnlock()
	for _, fn := range listeners {
		safeCall(p.name, fn, snap)
	}
}

func safeCall(name string, fn Listener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[pipeline] %s listener panic: %v", name, r)
		}
	}()
	fn(snap)
}
