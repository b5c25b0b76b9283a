package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"salesboard/internal/sales"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AllRecordsLabel names the single group returned when no cohort is selected.
const AllRecordsLabel = "All Records"

var (
	ErrUnknownStatistic = errors.New("unknown statistic")
	ErrUnknownCohort    = errors.New("unknown cohort")
)

// cohortColumns whitelists the columns a cohort may group by.
var cohortColumns = map[sales.Cohort]string{
	sales.CohortProduct:  "product",
	sales.CohortCategory: "category",
	sales.CohortChannel:  "channel",
}

// GormStore keeps sale rows in SQLite and answers aggregate queries.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (creating if needed) the database at path.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: db path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SaleModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Insert stores sales in one transaction.
func (s *GormStore) Insert(ctx context.Context, items []Sale) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if len(items) == 0 {
		return nil
	}
	now := time.Now()
	models := make([]SaleModel, 0, len(items))
	for i, it := range items {
		if strings.TrimSpace(it.Product) == "" {
			return fmt.Errorf("sale %d: product is required", i)
		}
		attrs := datatypes.JSON([]byte("{}"))
		if len(it.Attributes) > 0 {
			raw, err := json.Marshal(it.Attributes)
			if err != nil {
				return fmt.Errorf("sale %d: encode attributes: %w", i, err)
			}
			attrs = datatypes.JSON(raw)
		}
		soldAt := it.SoldAt
		if soldAt.IsZero() {
			soldAt = now
		}
		models = append(models, SaleModel{
			ID:         uuid.NewString(),
			Product:    strings.TrimSpace(it.Product),
			Category:   strings.TrimSpace(it.Category),
			Channel:    strings.TrimSpace(it.Channel),
			Amount:     it.Amount,
			Attributes: attrs,
			SoldAt:     soldAt.UTC(),
			CreatedAt:  now,
		})
	}
	return s.db.WithContext(ctx).CreateInBatches(&models, 200).Error
}

// Count returns the number of stored sales.
func (s *GormStore) Count(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store not initialized")
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&SaleModel{}).Count(&n).Error
	return n, err
}

// Aggregate groups sales by cohort and applies statistic. An empty cohort
// yields one record labelled AllRecordsLabel; results are in label order.
func (s *GormStore) Aggregate(ctx context.Context, statistic sales.Statistic, cohort sales.Cohort) ([]sales.Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if statistic != sales.StatCount && statistic != sales.StatSum {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatistic, statistic)
	}
	groupExpr := "'" + AllRecordsLabel + "'"
	if cohort != sales.CohortAll {
		col, ok := cohortColumns[cohort]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCohort, cohort)
		}
		groupExpr = col
	}

	var rows []struct {
		Label  string
		Amount decimal.Decimal
	}
	err := s.db.WithContext(ctx).
		Model(&SaleModel{}).
		Select(groupExpr + " AS label, amount").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate sales: %w", err)
	}
	if len(rows) == 0 {
		return []sales.Record{}, nil
	}

	counts := make(map[string]int64)
	sums := make(map[string]decimal.Decimal)
	for _, r := range rows {
		counts[r.Label]++
		sums[r.Label] = sums[r.Label].Add(r.Amount)
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	out := make([]sales.Record, 0, len(labels))
	for _, label := range labels {
		rec := sales.Record{Label: label, Value: float64(counts[label])}
		if statistic == sales.StatSum {
			rec.Value = sums[label].InexactFloat64()
		}
		out = append(out, rec)
	}
	return out, nil
}
