// Package scheduler runs a task on wall-clock aligned boundaries.
package scheduler

import (
	"context"
	"time"

	"salesboard/internal/logger"
)

// AlignedScheduler fires at every multiple of Interval (UTC) plus Offset.
// A task that overruns a boundary skips the missed ticks.
type AlignedScheduler struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn   func() time.Time
	afterFn func(time.Duration) <-chan time.Time
}

func NewAlignedScheduler(name string, interval, offset time.Duration) *AlignedScheduler {
	return &AlignedScheduler{
		Name:     name,
		Interval: interval,
		Offset:   offset,
		nowFn:    time.Now,
		afterFn:  time.After,
	}
}

// Run calls task on every boundary until ctx is done. It returns nil on
// cancellation and does nothing for a non-positive interval.
func (s *AlignedScheduler) Run(ctx context.Context, task func(context.Context)) error {
	if s == nil || task == nil {
		return nil
	}
	if s.Interval <= 0 {
		logger.Debugf("scheduler %s: disabled (interval=%s)", s.Name, s.Interval)
		return nil
	}
	if s.Offset < 0 || s.Offset >= s.Interval {
		logger.Warnf("scheduler %s: offset=%s out of range, clamp to 0", s.Name, s.Offset)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	if s.afterFn == nil {
		s.afterFn = time.After
	}

	logger.Infof("scheduler %s: started interval=%s offset=%s run_immediately=%v",
		s.Name, s.Interval, s.Offset, s.RunImmediately)
	if s.RunImmediately {
		task(ctx)
	}
	for {
		wakeAt, wait := s.nextTimes(s.nowFn())
		logger.Debugf("scheduler %s: next run at %s (in %s)", s.Name, wakeAt.Format(time.RFC3339), wait.Truncate(time.Millisecond))
		select {
		case <-ctx.Done():
			logger.Debugf("scheduler %s: ctx done, exit", s.Name)
			return nil
		case <-s.afterFn(wait):
		}
		task(ctx)
	}
}

func (s *AlignedScheduler) nextTimes(now time.Time) (wakeAt time.Time, wait time.Duration) {
	now = now.UTC()
	wakeAt = now.Truncate(s.Interval).Add(s.Offset)
	if !wakeAt.After(now) {
		wakeAt = wakeAt.Add(s.Interval)
	}
	return wakeAt, wakeAt.Sub(now)
}
