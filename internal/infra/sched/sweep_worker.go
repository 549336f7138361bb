package sched

import (
	"context"
	"time"

	"gifting-service/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Sweeper removes expired entries from a process-local store.
type Sweeper interface {
	Sweep() int
}

// SweepWorker periodically purges expired quota counters so yesterday's keys
// do not sit in memory until LRU pressure evicts them.
type SweepWorker struct {
	interval time.Duration
	store    Sweeper
	log      *zerolog.Logger
}

func NewSweepWorker(interval time.Duration, store Sweeper, logger *zerolog.Logger) *SweepWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	sweepLog := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		interval: interval,
		store:    store,
		log:      &sweepLog,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting quota sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping quota sweep worker")
			return ctx.Err()
		case <-ticker.C:
			if n := w.store.Sweep(); n > 0 {
				metrics.AddQuotaKeysSwept(n)
				w.log.Debug().Int("count", n).Msg("expired quota counters removed")
			}
		}
	}
}
