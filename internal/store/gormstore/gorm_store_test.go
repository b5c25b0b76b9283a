package gormstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"salesboard/internal/sales"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewGormStore(filepath.Join(t.TempDir(), "sales.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSales(t *testing.T, s *GormStore) {
	t.Helper()
	require.NoError(t, s.Insert(context.Background(), []Sale{
		{Product: "Widget", Category: "Hardware", Channel: "Online", Amount: decimal.RequireFromString("0.10")},
		{Product: "Widget", Category: "Hardware", Channel: "Retail", Amount: decimal.RequireFromString("0.20")},
		{Product: "Gadget", Category: "Hardware", Channel: "Online", Amount: decimal.RequireFromString("5")},
		{Product: "Manual", Category: "Books", Channel: "Online", Amount: decimal.RequireFromString("12.5"), Attributes: map[string]any{"lang": "en"}},
	}))
}

func TestAggregate(t *testing.T) {
	s := newTestStore(t)
	seedSales(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		stat   sales.Statistic
		cohort sales.Cohort
		want   []sales.Record
	}{
		{"count all", sales.StatCount, sales.CohortAll, []sales.Record{{Label: AllRecordsLabel, Value: 4}}},
		{"sum all", sales.StatSum, sales.CohortAll, []sales.Record{{Label: AllRecordsLabel, Value: 17.8}}},
		{"count product", sales.StatCount, sales.CohortProduct, []sales.Record{
			{Label: "Gadget", Value: 1}, {Label: "Manual", Value: 1}, {Label: "Widget", Value: 2},
		}},
		{"sum product exact decimals", sales.StatSum, sales.CohortProduct, []sales.Record{
			{Label: "Gadget", Value: 5}, {Label: "Manual", Value: 12.5}, {Label: "Widget", Value: 0.3},
		}},
		{"count category", sales.StatCount, sales.CohortCategory, []sales.Record{
			{Label: "Books", Value: 1}, {Label: "Hardware", Value: 3},
		}},
		{"sum channel", sales.StatSum, sales.CohortChannel, []sales.Record{
			{Label: "Online", Value: 17.6}, {Label: "Retail", Value: 0.2},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Aggregate(ctx, tt.stat, tt.cohort)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregateEmptyTable(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Aggregate(context.Background(), sales.StatCount, sales.CohortAll)
	require.NoError(t, err)
	assert.Equal(t, []sales.Record{}, got)
}

func TestAggregateRejectsUnknownParams(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Aggregate(context.Background(), "median", sales.CohortAll)
	assert.ErrorIs(t, err, ErrUnknownStatistic)
	_, err = s.Aggregate(context.Background(), sales.StatCount, "region; DROP TABLE sales")
	assert.ErrorIs(t, err, ErrUnknownCohort)
}

func TestInsertRequiresProduct(t *testing.T) {
	s := newTestStore(t)
	err := s.Insert(context.Background(), []Sale{{Amount: decimal.NewFromInt(1)}})
	assert.Error(t, err)
}

func TestSeedFromFile(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sales:
  - product: Widget
    category: Hardware
    channel: Online
    amount: "19.99"
    sold_at: "2024-03-01T10:00:00Z"
    attributes:
      color: red
  - product: Gadget
    category: Hardware
    channel: Retail
    amount: "5"
`), 0o644))

	n, err := s.SeedFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestParseSeedRejects(t *testing.T) {
	tests := map[string]string{
		"unknown field": "sales:\n  - product: A\n    amount: \"1\"\n    region: EU\n",
		"bad amount":    "sales:\n  - product: A\n    amount: lots\n",
		"bad date":      "sales:\n  - product: A\n    amount: \"1\"\n    sold_at: yesterday\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSeed([]byte(body))
			assert.Error(t, err)
		})
	}
}
