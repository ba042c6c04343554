package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func recordSleeps(sleeps *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return ctx.Err()
	}
}

func TestSequencerRunsInOrderWithDelayBetweenSteps(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var sleeps []time.Duration
	var order []int
	sequencer := Sequencer{Delay: 4500 * time.Millisecond, Sleep: recordSleeps(&sleeps)}

	report, err := sequencer.Run(context.Background(), 3, func(ctx context.Context, i int) error {
		order = append(order, i)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Equal(t, []int{0, 1, 2}, report.Completed)
	assert.Empty(t, report.Failed)
	assert.Equal(t, []time.Duration{4500 * time.Millisecond, 4500 * time.Millisecond}, sleeps)
}

func TestSequencerNoSteps(t *testing.T) {
	called := false
	report, err := Sequencer{Delay: time.Second, Sleep: func(ctx context.Context, d time.Duration) error {
		called = true
		return nil
	}}.Run(context.Background(), 0, func(ctx context.Context, i int) error {
		t.Fatal("step must not run")
		return nil
	})

	require.NoError(t, err)
	assert.False(t, called)
	assert.Empty(t, report.Completed)
}

func TestSequencerContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	report, err := Sequencer{}.Run(context.Background(), 4, func(ctx context.Context, i int) error {
		if i%2 == 1 {
			return boom
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, report.Completed)
	assert.Equal(t, map[int]error{1: boom, 3: boom}, report.Failed)
}

func TestSequencerStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	report, err := Sequencer{StopOnError: true}.Run(context.Background(), 5, func(ctx context.Context, i int) error {
		calls++
		if i == 2 {
			return boom
		}
		return nil
	})

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 2, stepErr.Index)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{0, 1}, report.Completed)
}

func TestSequencerCancelToken(t *testing.T) {
	calls := 0
	token := CancelFunc(func(ctx context.Context) (bool, error) {
		return calls == 2, nil
	})

	report, err := Sequencer{Token: token}.Run(context.Background(), 5, func(ctx context.Context, i int) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, ErrBatchCancelled)
	assert.Equal(t, []int{0, 1}, report.Completed)
}

func TestSequencerTokenError(t *testing.T) {
	token := CancelFunc(func(ctx context.Context) (bool, error) {
		return false, errors.New("database is locked")
	})

	_, err := Sequencer{Token: token}.Run(context.Background(), 1, func(ctx context.Context, i int) error {
		t.Fatal("step must not run")
		return nil
	})

	assert.ErrorContains(t, err, "database is locked")
}

func TestSequencerRealSleepHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Sequencer{Delay: time.Hour}.Run(ctx, 2, func(ctx context.Context, i int) error {
			calls++
			close(started)
			return nil
		})
		done <- err
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("sequencer did not stop on cancel")
	}
}
