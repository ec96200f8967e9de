package hub

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultwire/vaultwire/internal/store"
)

// SweeperConfig controls the retention sweep cadence and window.
type SweeperConfig struct {
	Retention time.Duration // how long undelivered envelopes are kept
	Interval  time.Duration // poll interval
}

// Sweeper periodically purges queued envelopes older than the retention
// window so undeliverable traffic cannot grow storage without bound. It
// runs concurrently with all other operations; Sweep only ever deletes
// fully written rows older than the cutoff.
type Sweeper struct {
	store store.Store
	cfg   SweeperConfig
	log   zerolog.Logger
}

// NewSweeper constructs a Sweeper, applying defaults for zero config values.
func NewSweeper(s store.Store, cfg SweeperConfig, log zerolog.Logger) *Sweeper {
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Sweeper{store: s, cfg: cfg, log: log}
}

// Run starts the sweep loop until ctx is canceled.
func (w *Sweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("retention", w.cfg.Retention).Dur("interval", w.cfg.Interval).Msg("retention sweeper starting")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("retention sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.SweepOnce(ctx); err != nil {
				// Log and continue; the next tick retries.
				w.log.Error().Err(err).Msg("retention sweep failed")
			}
		}
	}
}

// SweepOnce purges expired envelopes a single time.
func (w *Sweeper) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-w.cfg.Retention)
	n, err := w.store.Queues().Sweep(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info().Int("purged", n).Time("cutoff", cutoff).Msg("expired envelopes purged")
	}
	return nil
}
