package pipeline

import (
	"errors"
	"fmt"
)

// ErrSuperseded marks a fetch whose result was dropped because a newer fetch
// started before it completed.
var ErrSuperseded = errors.New("fetch superseded by a newer selection")

// FetchError wraps a failed or discarded DataSource query.
type FetchError struct {
	Statistic  string
	Cohort     string
	Generation uint64
	Err        error
}

func (e *FetchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("fetch stat=%q cohort=%q gen=%d: %v", e.Statistic, e.Cohort, e.Generation, e.Err)
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
