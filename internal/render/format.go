package render

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter prints values with the locale's grouping and decimal separators.
type Formatter struct {
	mu      sync.Mutex
	tag     language.Tag
	printer *message.Printer
}

// NewFormatter parses locale as a BCP 47 tag. An empty locale means en-US.
func NewFormatter(locale string) (*Formatter, error) {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = "en-US"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return &Formatter{tag: tag, printer: message.NewPrinter(tag)}, nil
}

func (f *Formatter) Tag() language.Tag {
	return f.tag
}

// Value formats v with at most two fraction digits, e.g. 1234567 -> "1,234,567".
func (f *Formatter) Value(v float64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// JSValue is the browser-side twin of Value: a function (value) -> string
// using Intl.NumberFormat with the same locale. Single quotes only, the body
// travels inside the JSON chart options.
func (f *Formatter) JSValue() string {
	return fmt.Sprintf("function (v) { return %s.format(v); }", f.jsNumberFormat())
}

// JSPieLabel formats a pie item as "name: value".
func (f *Formatter) JSPieLabel() string {
	return fmt.Sprintf("function (p) { return p.name + ': ' + %s.format(p.value); }", f.jsNumberFormat())
}

func (f *Formatter) jsNumberFormat() string {
	return fmt.Sprintf("new Intl.NumberFormat('%s', {maximumFractionDigits: 2})", f.tag.String())
}
