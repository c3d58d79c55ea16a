package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type countingOptimizer struct {
	calls atomic.Int32
	err   error
}

func (c *countingOptimizer) Optimize(ctx context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestScheduler_DisabledWhenScheduleEmpty(t *testing.T) {
	s := New(&countingOptimizer{}, "")

	started, err := s.Start()
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if started {
		t.Fatal("expected scheduler to stay disabled")
	}
	if !s.NextRun().IsZero() {
		t.Fatal("disabled scheduler must not report a next run")
	}
	s.Stop()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := New(&countingOptimizer{}, "not a schedule")

	if _, err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(&countingOptimizer{}, DefaultSchedule)

	started, err := s.Start()
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !started {
		t.Fatal("expected scheduler to start")
	}
	if s.NextRun().IsZero() {
		t.Fatal("expected a next run time")
	}

	// Starting twice is harmless
	if started, err := s.Start(); err != nil || !started {
		t.Fatalf("second Start = %v, %v", started, err)
	}

	s.Stop()
	if !s.NextRun().IsZero() {
		t.Fatal("stopped scheduler must not report a next run")
	}
	s.Stop()
}

func TestScheduler_RunCallsOptimizer(t *testing.T) {
	opt := &countingOptimizer{}
	s := New(opt, DefaultSchedule)

	s.run()
	opt.err = errors.New("disk full")
	s.run()

	if got := opt.calls.Load(); got != 2 {
		t.Fatalf("expected 2 optimize calls, got %d", got)
	}
}
