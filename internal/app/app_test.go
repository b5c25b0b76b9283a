package app

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"salesboard/internal/config"
	"salesboard/internal/logger"
	"salesboard/internal/pkg/circuit"
	"salesboard/internal/sales"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) Query(ctx context.Context, statistic, cohort string) ([]sales.Record, error) {
	args := m.Called(ctx, statistic, cohort)
	recs, _ := args.Get(0).([]sales.Record)
	return recs, args.Error(1)
}

func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestBuildWithInjectedSource(t *testing.T) {
	cfg := loadConfig(t, "selection:\n  cohort: product\n  order_by: max to min\n")
	a, err := NewAppBuilder(cfg, WithDataSource(new(MockDataSource))).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sales.CohortProduct, a.Pipeline().Selection().Cohort)
	assert.Nil(t, a.salesAPI)
	require.NotNil(t, a.Summary)
	assert.Contains(t, a.Summary.String(), "/api/sales")
	assert.Contains(t, a.Summary.String(), "(未启用)")
}

func TestSummaryPrintGoesThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	(&StartupSummary{Env: "test", Dashboard: ":9991"}).Print()
	out := buf.String()
	assert.Contains(t, out, "STARTUP SUMMARY")
	assert.Contains(t, out, ":9991")
	assert.Greater(t, strings.Count(out, "level=INFO"), 5)
}

func TestBuildRejectsBadRenderConfig(t *testing.T) {
	cfg := loadConfig(t, "app:\n  env: test\n")
	cfg.Render.Width = -1
	_, err := NewAppBuilder(cfg, WithDataSource(new(MockDataSource))).Build(context.Background())
	assert.Error(t, err)
}

func TestBuildBackendSeedsEmptyStore(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte("sales:\n  - product: A\n    amount: \"1.5\"\n  - product: B\n    amount: \"2\"\n"), 0o644))

	cfg := config.BackendConfig{
		Enabled:      true,
		HTTPAddr:     "127.0.0.1:0",
		DBPath:       filepath.Join(dir, "sales.db"),
		SeedPath:     seed,
		QueryLogPath: filepath.Join(dir, "queries.db"),
	}
	backend, err := BuildBackend(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(2), backend.Rows)
	assert.Len(t, backend.Closers, 2)
	for _, c := range backend.Closers {
		require.NoError(t, c())
	}

	again, err := BuildBackend(context.Background(), cfg)
	require.NoError(t, err)
	defer func() {
		for _, c := range again.Closers {
			_ = c()
		}
	}()
	assert.Equal(t, int64(2), again.Rows, "a non-empty store is not reseeded")
}

func TestApplyConfigSwapsRenderer(t *testing.T) {
	cfg := loadConfig(t, "render:\n  title: Before\n")
	a, err := NewAppBuilder(cfg, WithDataSource(new(MockDataSource))).Build(context.Background())
	require.NoError(t, err)

	next := *cfg
	next.Render.Title = "After"
	next.Render.Locale = "de-DE"
	a.applyConfig(&next)
	assert.Equal(t, "de-DE", a.Pipeline().Locale().String())

	var buf bytes.Buffer
	snap := a.pipe.Snapshot()
	r, _ := a.dashboard.CurrentRenderer()
	require.NoError(t, r.Render(&buf, snap.Spec, snap.Labels))
	assert.Contains(t, buf.String(), "After")
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := loadConfig(t, "app:\n  http_addr: \""+freeAddr(t)+"\"\n")
	src := new(MockDataSource)
	src.On("Query", mock.Anything, "", "").Return([]sales.Record{{Label: "All Records", Value: 4}}, nil)

	a, err := NewAppBuilder(cfg, WithDataSource(src)).Build(context.Background())
	require.NoError(t, err)
	a.Summary = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(a.Pipeline().Records()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestRenderOnceJSON(t *testing.T) {
	cfg := loadConfig(t, "app:\n  env: test\n")
	src := new(MockDataSource)
	src.On("Query", mock.Anything, "sum", "channel").
		Return([]sales.Record{{Label: "Web", Value: 10}, {Label: "Store", Value: 1234}}, nil).Once()

	chart := sales.ChartPie
	cohort := sales.CohortChannel
	stat := sales.StatSum
	order := sales.OrderDescValue
	var buf bytes.Buffer
	err := NewAppBuilder(cfg, WithDataSource(src)).RenderOnce(context.Background(), RenderRequest{
		Patch:  sales.SelectionPatch{ChartType: &chart, Cohort: &cohort, Statistic: &stat, OrderBy: &order},
		Format: "json",
	}, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.Index(out, `"Store"`) < strings.Index(out, `"Web"`))
	assert.Contains(t, out, `"xLabel": "Channel"`)
	assert.Contains(t, out, `"summary": "2 points | total 1,244"`)
	src.AssertExpectations(t)
}

func TestRenderOnceUnknownFormat(t *testing.T) {
	cfg := loadConfig(t, "app:\n  env: test\n")
	src := new(MockDataSource)
	src.On("Query", mock.Anything, mock.Anything, mock.Anything).Return([]sales.Record{}, nil)
	err := NewAppBuilder(cfg, WithDataSource(src)).RenderOnce(context.Background(), RenderRequest{Format: "svg"}, &bytes.Buffer{})
	assert.Error(t, err)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendText(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func TestBreakerAlertPushesOpenAndClosed(t *testing.T) {
	n := new(MockNotifier)
	n.On("SendText", mock.Anything, mock.MatchedBy(func(s string) bool {
		return strings.Contains(s, "CLOSED -> OPEN") && strings.Contains(s, "http://api/sales")
	})).Return(nil).Once()
	n.On("SendText", mock.Anything, mock.MatchedBy(func(s string) bool {
		return strings.Contains(s, "HALF-OPEN -> CLOSED")
	})).Return(errors.New("offline")).Once()

	alert := breakerAlert(n, "http://api/sales")
	alert("sales-api", circuit.StateClosed, circuit.StateOpen)
	alert("sales-api", circuit.StateOpen, circuit.StateHalfOpen)
	alert("sales-api", circuit.StateHalfOpen, circuit.StateClosed)
	n.AssertExpectations(t)
	n.AssertNumberOfCalls(t, "SendText", 2)

	assert.NotPanics(t, func() { breakerAlert(nil, "x")("sales-api", circuit.StateClosed, circuit.StateOpen) })
}

func TestAutoRefreshKeepsLastGoodChart(t *testing.T) {
	cfg := loadConfig(t, "source:\n  refresh_interval: \"30s\"\n")
	src := new(MockDataSource)
	src.On("Query", mock.Anything, "", "").Return([]sales.Record{{Label: "All Records", Value: 3}}, nil).Once()
	src.On("Query", mock.Anything, "", "").Return(nil, errors.New("upstream down")).Once()

	a, err := NewAppBuilder(cfg, WithDataSource(src)).Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, a.Summary.String(), "自动刷新: 30s")

	a.autoRefresh(context.Background())
	a.autoRefresh(context.Background())
	require.Len(t, a.Pipeline().Records(), 1)
	assert.Equal(t, 3.0, a.Pipeline().Records()[0].Value)
	src.AssertNumberOfCalls(t, "Query", 2)
}
