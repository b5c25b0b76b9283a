package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"salesboard/internal/catalog"
	"salesboard/internal/sales"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/text/language"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) Query(ctx context.Context, statistic, cohort string) ([]sales.Record, error) {
	args := m.Called(ctx, statistic, cohort)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sales.Record), args.Error(1)
}

func ptr[T any](v T) *T { return &v }

func sampleRecords() []sales.Record {
	return []sales.Record{{Label: "B", Value: 2}, {Label: "A", Value: 5}}
}

func TestNewRejectsNilSource(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNewRejectsUnknownInitialSelection(t *testing.T) {
	src := new(MockDataSource)
	sel := catalog.Default().DefaultSelection()
	sel.Cohort = "region"
	_, err := New(src, WithSelection(sel))
	assert.ErrorIs(t, err, catalog.ErrUnknownOption)
}

func TestRefreshAppliesRecords(t *testing.T) {
	src := new(MockDataSource)
	src.On("Query", mock.Anything, "", "").Return(sampleRecords(), nil).Once()

	p, err := New(src)
	require.NoError(t, err)
	require.NoError(t, p.Refresh(context.Background()))

	assert.Equal(t, StateIdle, p.State())
	assert.Equal(t, []sales.Record{{Label: "A", Value: 5}, {Label: "B", Value: 2}}, p.Records())
	assert.Equal(t, sales.AxisLabels{X: "All Records", Y: "Count"}, p.AxisLabels())
	src.AssertExpectations(t)
}

func TestOrderByChangeDoesNotFetch(t *testing.T) {
	src := new(MockDataSource)
	src.On("Query", mock.Anything, "", "").Return(sampleRecords(), nil).Once()

	p, err := New(src)
	require.NoError(t, err)
	require.NoError(t, p.Refresh(context.Background()))

	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{OrderBy: ptr(sales.OrderDescValue)}))
	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{ChartType: ptr(sales.ChartLine)}))

	src.AssertNumberOfCalls(t, "Query", 1)
	assert.Equal(t, []sales.Record{{Label: "A", Value: 5}, {Label: "B", Value: 2}}, p.Records())
	assert.Equal(t, sales.ChartLine, p.RenderSpec().ChartType)
}

func TestEmptyPatchIsNoop(t *testing.T) {
	src := new(MockDataSource)
	p, err := New(src)
	require.NoError(t, err)
	before := p.Snapshot()

	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{}))
	assert.Equal(t, before.Version, p.Snapshot().Version)
	src.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestCohortAndStatisticChangeFetchOnce(t *testing.T) {
	src := new(MockDataSource)
	src.On("Query", mock.Anything, "", "").Return(sampleRecords(), nil).Once()
	src.On("Query", mock.Anything, "", "product").Return([]sales.Record{{Label: "Widget", Value: 3}}, nil).Once()
	src.On("Query", mock.Anything, "sum", "product").Return([]sales.Record{{Label: "Widget", Value: 42.5}}, nil).Once()

	p, err := New(src)
	require.NoError(t, err)
	require.NoError(t, p.Refresh(context.Background()))

	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{Cohort: ptr(sales.CohortProduct)}))
	src.AssertNumberOfCalls(t, "Query", 2)
	assert.Equal(t, []sales.Record{{Label: "Widget", Value: 3}}, p.Records())

	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{Statistic: ptr(sales.StatSum)}))
	src.AssertNumberOfCalls(t, "Query", 3)
	assert.Equal(t, sales.AxisLabels{X: "Product", Y: "Sum"}, p.AxisLabels())
	src.AssertExpectations(t)
}

func TestUnknownOptionLeavesSelectionUntouched(t *testing.T) {
	src := new(MockDataSource)
	p, err := New(src)
	require.NoError(t, err)
	before := p.Selection()

	err = p.SetSelection(context.Background(), sales.SelectionPatch{Statistic: ptr(sales.Statistic("median"))})
	assert.ErrorIs(t, err, catalog.ErrUnknownOption)
	assert.Equal(t, before, p.Selection())
	src.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnknownChartTypeFallsBackToPie(t *testing.T) {
	src := new(MockDataSource)
	src.On("Query", mock.Anything, "", "").Return(sampleRecords(), nil).Once()
	p, err := New(src)
	require.NoError(t, err)
	require.NoError(t, p.Refresh(context.Background()))

	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{ChartType: ptr(sales.ChartType("donut"))}))
	spec := p.RenderSpec()
	assert.Equal(t, sales.ChartPie, spec.ChartType)
	assert.Len(t, spec.Slices, 2)
}

func TestFetchFailureKeepsLastKnownGood(t *testing.T) {
	src := new(MockDataSource)
	boom := errors.New("backend unavailable")
	src.On("Query", mock.Anything, "", "").Return(sampleRecords(), nil).Once()
	src.On("Query", mock.Anything, "", "channel").Return(nil, boom).Once()

	p, err := New(src)
	require.NoError(t, err)
	require.NoError(t, p.Refresh(context.Background()))
	specBefore := p.RenderSpec()
	recordsBefore := p.Records()

	err = p.SetSelection(context.Background(), sales.SelectionPatch{Cohort: ptr(sales.CohortChannel)})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "channel", fetchErr.Cohort)

	assert.Equal(t, recordsBefore, p.Records())
	assert.Equal(t, specBefore, p.RenderSpec())
	assert.Equal(t, StateIdle, p.State())
}

func TestFailedFetchRollsBackQueryAndAllowsRetry(t *testing.T) {
	src := new(MockDataSource)
	boom := errors.New("backend unavailable")
	src.On("Query", mock.Anything, "", "").Return(sampleRecords(), nil).Once()
	src.On("Query", mock.Anything, "", "channel").Return(nil, boom).Once()
	src.On("Query", mock.Anything, "", "channel").Return([]sales.Record{{Label: "Online", Value: 9}}, nil).Once()

	p, err := New(src)
	require.NoError(t, err)
	require.NoError(t, p.Refresh(context.Background()))

	err = p.SetSelection(context.Background(), sales.SelectionPatch{Cohort: ptr(sales.CohortChannel)})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, sales.CohortAll, p.Selection().Cohort)

	// a later re-sort still describes the records it shows
	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{OrderBy: ptr(sales.OrderDescValue)}))
	spec := p.RenderSpec()
	require.Len(t, spec.Bars, 1)
	assert.Equal(t, "", spec.Bars[0].Key)
	assert.Equal(t, []sales.Record{{Label: "A", Value: 5}, {Label: "B", Value: 2}}, spec.Bars[0].Values)
	assert.Equal(t, sales.AxisLabels{X: "All Records", Y: "Count"}, p.AxisLabels())
	assert.Equal(t, sales.OrderDescValue, p.Selection().OrderBy)

	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{Cohort: ptr(sales.CohortChannel)}))
	src.AssertNumberOfCalls(t, "Query", 3)
	assert.Equal(t, sales.CohortChannel, p.Selection().Cohort)
	assert.Equal(t, "channel", p.RenderSpec().Bars[0].Key)
	assert.Equal(t, sales.AxisLabels{X: "Channel", Y: "Count"}, p.AxisLabels())
	assert.Equal(t, []sales.Record{{Label: "Online", Value: 9}}, p.Records())
}

func TestPendingCohortDoesNotRelabelLoadedRecords(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	p, err := New(src)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.SetSelection(context.Background(), sales.SelectionPatch{Cohort: ptr(sales.CohortProduct)})
	}()
	<-src.started

	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{OrderBy: ptr(sales.OrderDescLabel)}))
	assert.Equal(t, "", p.RenderSpec().Bars[0].Key)
	assert.Equal(t, "All Records", p.AxisLabels().X)

	close(src.release)
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not return")
	}
	assert.Equal(t, "product", p.RenderSpec().Bars[0].Key)
	assert.Equal(t, "Product", p.AxisLabels().X)
	src.mu.Lock()
	assert.Equal(t, 1, src.calls)
	src.mu.Unlock()
}

// gatedSource blocks the first query until released and ignores cancellation,
// so the stale result arrives after the newer one.
type gatedSource struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (g *gatedSource) Query(ctx context.Context, statistic, cohort string) ([]sales.Record, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()
	if call == 1 {
		close(g.started)
		<-g.release
		return []sales.Record{{Label: "stale", Value: 1}}, nil
	}
	return []sales.Record{{Label: "fresh-" + cohort, Value: 2}}, nil
}

func TestStaleResultIsDiscarded(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	p, err := New(src)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.SetSelection(context.Background(), sales.SelectionPatch{Cohort: ptr(sales.CohortProduct)})
	}()
	<-src.started
	assert.Equal(t, StateLoading, p.State())

	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{Cohort: ptr(sales.CohortCategory)}))
	close(src.release)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("stale refresh did not return")
	}
	assert.Equal(t, []sales.Record{{Label: "fresh-category", Value: 2}}, p.Records())
	assert.Equal(t, sales.CohortCategory, p.Selection().Cohort)
	assert.Equal(t, StateIdle, p.State())
}

// cancelAwareSource waits for cancellation on the first call.
type cancelAwareSource struct {
	once    sync.Once
	started chan struct{}
}

func (c *cancelAwareSource) Query(ctx context.Context, statistic, cohort string) ([]sales.Record, error) {
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []sales.Record{{Label: cohort, Value: 7}}, nil
}

func TestNewerRefreshCancelsInFlightFetch(t *testing.T) {
	src := &cancelAwareSource{started: make(chan struct{})}
	p, err := New(src)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- p.Refresh(context.Background()) }()
	<-src.started

	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{Cohort: ptr(sales.CohortChannel)}))
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight fetch was not cancelled")
	}
	assert.Equal(t, []sales.Record{{Label: "channel", Value: 7}}, p.Records())
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	src := new(MockDataSource)
	src.On("Query", mock.Anything, "", "").Return(sampleRecords(), nil).Once()
	p, err := New(src)
	require.NoError(t, err)

	var got []Snapshot
	unsubscribe := p.Subscribe(func(s Snapshot) { got = append(got, s) })
	require.NoError(t, p.Refresh(context.Background()))
	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{OrderBy: ptr(sales.OrderDescLabel)}))
	unsubscribe()
	require.NoError(t, p.SetSelection(context.Background(), sales.SelectionPatch{OrderBy: ptr(sales.OrderAscLabel)}))

	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Records[0].Label)
	assert.Equal(t, "B", got[1].Records[0].Label)
}

func TestConcurrentSelectionsDeliverInVersionOrder(t *testing.T) {
	src := new(MockDataSource)
	src.On("Query", mock.Anything, "", "").Return(sampleRecords(), nil).Once()
	p, err := New(src)
	require.NoError(t, err)
	require.NoError(t, p.Refresh(context.Background()))

	var (
		mu   sync.Mutex
		seen []Snapshot
	)
	p.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	orders := []sales.OrderBy{sales.OrderAscLabel, sales.OrderDescLabel, sales.OrderAscValue, sales.OrderDescValue}
	charts := []sales.ChartType{sales.ChartBar, sales.ChartLine, sales.ChartPie}
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			patch := sales.SelectionPatch{OrderBy: ptr(orders[i%len(orders)]), ChartType: ptr(charts[i%len(charts)])}
			assert.NoError(t, p.SetSelection(context.Background(), patch))
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i].Version, seen[i-1].Version)
	}
	final := p.Snapshot()
	last := seen[len(seen)-1]
	assert.Equal(t, final.Version, last.Version)
	assert.Equal(t, final.Selection, last.Selection)
	assert.Equal(t, final.Spec.ChartType, last.Spec.ChartType)
}

func TestSetLocaleResortsLabels(t *testing.T) {
	src := new(MockDataSource)
	src.On("Query", mock.Anything, "", "").Return([]sales.Record{{Label: "Zebra", Value: 1}, {Label: "Äpfel", Value: 2}}, nil).Once()
	p, err := New(src, WithLocale(language.English))
	require.NoError(t, err)
	require.NoError(t, p.Refresh(context.Background()))
	require.Equal(t, "Äpfel", p.Records()[0].Label)

	var got []Snapshot
	p.Subscribe(func(s Snapshot) { got = append(got, s) })
	p.SetLocale(language.Swedish)
	assert.Equal(t, language.Swedish, p.Locale())
	assert.Equal(t, "Zebra", p.Records()[0].Label)
	require.Len(t, got, 1)

	p.SetLocale(language.Swedish)
	assert.Len(t, got, 1)
}

func TestListenerPanicIsContained(t *testing.T) {
	src := new(MockDataSource)
	src.On("Query", mock.Anything, "", "").Return(sampleRecords(), nil).Once()
	p, err := New(src)
	require.NoError(t, err)
	p.Subscribe(func(Snapshot) { panic("listener bug") })
	assert.NoError(t, p.Refresh(context.Background()))
}
