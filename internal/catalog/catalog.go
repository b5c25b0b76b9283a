// Package catalog is the closed, static list of selectable chart options and
// their display names.
package catalog

import (
	"errors"
	"fmt"

	"salesboard/internal/sales"
)

// ErrUnknownOption is returned for any value outside the catalog.
var ErrUnknownOption = errors.New("unknown option")

// Option pairs an internal value with its display name.
type Option struct {
	Value string `json:"value"`
	Name  string `json:"name"`
}

// Catalog enumerates the options of every selectable field.
type Catalog struct {
	ChartTypes []Option `json:"chartTypes"`
	Cohorts    []Option `json:"cohorts"`
	Statistics []Option `json:"statistics"`
	OrderBy    []Option `json:"orderBy"`
}

// Default returns the catalog served by the dashboard. The first option of each
// field is the initial selection.
func Default() Catalog {
	return Catalog{
		ChartTypes: []Option{
			{Value: string(sales.ChartBar), Name: "Bar"},
			{Value: string(sales.ChartLine), Name: "Line"},
			{Value: string(sales.ChartPie), Name: "Pie"},
		},
		Cohorts: []Option{
			{Value: string(sales.CohortAll), Name: "All Records"},
			{Value: string(sales.CohortProduct), Name: "Product"},
			{Value: string(sales.CohortCategory), Name: "Category"},
			{Value: string(sales.CohortChannel), Name: "Channel"},
		},
		Statistics: []Option{
			{Value: string(sales.StatCount), Name: "Count"},
			{Value: string(sales.StatSum), Name: "Sum"},
		},
		OrderBy: []Option{
			{Value: string(sales.OrderAscLabel), Name: "Ascending"},
			{Value: string(sales.OrderDescLabel), Name: "Descending"},
			{Value: string(sales.OrderAscValue), Name: "Smallest to Largest"},
			{Value: string(sales.OrderDescValue), Name: "Largest to Smallest"},
		},
	}
}

// DefaultSelection is built from the first option of every field.
func (c Catalog) DefaultSelection() sales.Selection {
	first := func(opts []Option) string {
		if len(opts) == 0 {
			return ""
		}
		return opts[0].Value
	}
	return sales.Selection{
		ChartType: sales.ChartType(first(c.ChartTypes)),
		Cohort:    sales.Cohort(first(c.Cohorts)),
		Statistic: sales.Statistic(first(c.Statistics)),
		OrderBy:   sales.OrderBy(first(c.OrderBy)),
	}
}

func (c Catalog) ChartTypeName(v sales.ChartType) (string, error) {
	return lookup("chartType", c.ChartTypes, string(v))
}

func (c Catalog) CohortName(v sales.Cohort) (string, error) {
	return lookup("cohort", c.Cohorts, string(v))
}

func (c Catalog) StatisticName(v sales.Statistic) (string, error) {
	return lookup("statistic", c.Statistics, string(v))
}

func (c Catalog) OrderByName(v sales.OrderBy) (string, error) {
	return lookup("orderBy", c.OrderBy, string(v))
}

// Validate checks every field of sel against the catalog.
func (c Catalog) Validate(sel sales.Selection) error {
	if _, err := c.ChartTypeName(sel.ChartType); err != nil {
		return err
	}
	if _, err := c.CohortName(sel.Cohort); err != nil {
		return err
	}
	if _, err := c.StatisticName(sel.Statistic); err != nil {
		return err
	}
	if _, err := c.OrderByName(sel.OrderBy); err != nil {
		return err
	}
	return nil
}

func lookup(field string, opts []Option, value string) (string, error) {
	for _, opt := range opts {
		if opt.Value == value {
			return opt.Name, nil
		}
	}
	return "", fmt.Errorf("%s %q: %w", field, value, ErrUnknownOption)
}
