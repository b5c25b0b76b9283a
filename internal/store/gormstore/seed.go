package gormstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Sales []seedSale `yaml:"sales"`
}

type seedSale struct {
	Product    string         `yaml:"product"`
	Category   string         `yaml:"category"`
	Channel    string         `yaml:"channel"`
	Amount     string         `yaml:"amount"`
	SoldAt     string         `yaml:"sold_at"`
	Attributes map[string]any `yaml:"attributes"`
}

// ParseSeed decodes a YAML seed document. Unknown keys are rejected.
func ParseSeed(data []byte) ([]Sale, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc seedFile
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	out := make([]Sale, 0, len(doc.Sales))
	for i, s := range doc.Sales {
		amount, err := decimal.NewFromString(strings.TrimSpace(s.Amount))
		if err != nil {
			return nil, fmt.Errorf("seed sale %d: amount %q: %w", i, s.Amount, err)
		}
		var soldAt time.Time
		if v := strings.TrimSpace(s.SoldAt); v != "" {
			soldAt, err = time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("seed sale %d: sold_at: %w", i, err)
			}
		}
		out = append(out, Sale{
			Product:    s.Product,
			Category:   s.Category,
			Channel:    s.Channel,
			Amount:     amount,
			Attributes: s.Attributes,
			SoldAt:     soldAt,
		})
	}
	return out, nil
}

// SeedFromFile loads path and inserts its sales. It returns the number inserted.
func (s *GormStore) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	items, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	if err := s.Insert(ctx, items); err != nil {
		return 0, err
	}
	return len(items), nil
}
