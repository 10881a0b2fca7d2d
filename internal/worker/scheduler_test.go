package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/services"
)

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func fixedClock() services.Clock {
	return services.FixedClock(time.Date(2025, 3, 31, 6, 0, 0, 0, time.UTC))
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(fixedClock(), quietLogger())
	err := s.Add("recurring", "every day please", func(context.Context, core.Date) (services.SweepResult, error) {
		return services.SweepResult{}, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recurring")
}

func TestSchedulerRunAllPassesToday(t *testing.T) {
	s := NewScheduler(fixedClock(), quietLogger())

	var days []core.Date
	var order []string
	require.NoError(t, s.Add("recurring", "@daily", func(_ context.Context, today core.Date) (services.SweepResult, error) {
		days = append(days, today)
		order = append(order, "recurring")
		return services.SweepResult{Checked: 2, Materialized: 1}, nil
	}))
	require.NoError(t, s.Add("reminders", "0 8 * * *", func(_ context.Context, today core.Date) (services.SweepResult, error) {
		days = append(days, today)
		order = append(order, "reminders")
		return services.SweepResult{}, errors.New("store unavailable")
	}))

	got := s.RunAll(context.Background())

	assert.Equal(t, []string{"recurring", "reminders"}, order)
	for _, d := range days {
		assert.Equal(t, "2025-03-31", d.String())
	}
	require.Contains(t, got, "recurring")
	assert.Equal(t, 1, got["recurring"].Materialized)
	assert.NotContains(t, got, "reminders")
}

func TestSchedulerFiresOnSchedule(t *testing.T) {
	s := NewScheduler(fixedClock(), quietLogger())

	fired := make(chan core.Date, 4)
	require.NoError(t, s.Add("recurring", "@every 1s", func(_ context.Context, today core.Date) (services.SweepResult, error) {
		fired <- today
		return services.SweepResult{}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	select {
	case d := <-fired:
		assert.Equal(t, "2025-03-31", d.String())
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), timeout)
	defer stopCancel()
	assert.NoError(t, s.Stop(stopCtx))
}
