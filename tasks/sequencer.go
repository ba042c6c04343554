package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrBatchCancelled = errors.New("batch cancelled")

// CancelToken is polled before every step.
type CancelToken interface {
	Cancelled(ctx context.Context) (bool, error)
}

type CancelFunc func(ctx context.Context) (bool, error)

func (f CancelFunc) Cancelled(ctx context.Context) (bool, error) {
	return f(ctx)
}

// StepError carries the index of the step that stopped the run.
type StepError struct {
	Index int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Index, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Report struct {
	Completed []int
	Failed    map[int]error
	Elapsed   time.Duration
}

// Sequencer runs steps one at a time, in index order, waiting Delay between
// consecutive steps. External model calls go through it so they never overlap.
type Sequencer struct {
	Delay       time.Duration
	StopOnError bool
	// Sleep replaces the real wait in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Token CancelToken
}

func (s Sequencer) Run(ctx context.Context, n int, step func(ctx context.Context, i int) error) (Report, error) {
	start := time.Now()
	report := Report{Completed: []int{}, Failed: map[int]error{}}
	finish := func(err error) (Report, error) {
		report.Elapsed = time.Since(start)
		return report, err
	}

	for i := 0; i < n; i++ {
		if i > 0 && s.Delay > 0 {
			if err := s.sleep(ctx, s.Delay); err != nil {
				return finish(err)
			}
		}
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		if s.Token != nil {
			cancelled, err := s.Token.Cancelled(ctx)
			if err != nil {
				return finish(fmt.Errorf("failed to check cancellation: %w", err))
			}
			if cancelled {
				return finish(ErrBatchCancelled)
			}
		}

		if err := step(ctx, i); err != nil {
			report.Failed[i] = err
			if s.StopOnError {
				return finish(&StepError{Index: i, Err: err})
			}
			continue
		}
		report.Completed = append(report.Completed, i)
	}
	return finish(nil)
}

func (s Sequencer) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
