//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSweeper struct{ calls atomic.Int32 }

func (s *countingSweeper) Sweep() int {
	s.calls.Add(1)
	return 1
}

func TestSweepWorker_RunsUntilCancelled(t *testing.T) {
	logger := zerolog.Nop()
	store := &countingSweeper{}
	w := NewSweepWorker(5*time.Millisecond, store, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if store.calls.Load() == 0 {
		t.Fatal("expected at least one sweep")
	}
}

func TestNewSweepWorker_DefaultInterval(t *testing.T) {
	logger := zerolog.Nop()
	w := NewSweepWorker(0, &countingSweeper{}, &logger)
	if w.interval != 5*time.Minute {
		t.Fatalf("interval = %s", w.interval)
	}
}
