package server

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZacxDev/video-composer/internal/store"
)

// Reaper deletes served outputs once their runs expire.
type Reaper struct {
	store    *store.Store
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewReaper(s *store.Store, interval time.Duration, logger zerolog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{store: s, interval: interval, logger: logger, now: time.Now}
}

// Run reaps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.ReapOnce(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("reap failed")
			} else if n > 0 {
				r.logger.Info().Int("deleted", n).Msg("expired outputs deleted")
			}
		}
	}
}

// ReapOnce deletes every expired output and returns how many runs it expired.
func (r *Reaper) ReapOnce(ctx context.Context) (int, error) {
	runs, err := r.store.ExpiredRuns(ctx, r.now())
	if err != nil {
		return 0, err
	}

	n := 0
	for _, run := range runs {
		if err := os.Remove(run.Output); err != nil && !os.IsNotExist(err) {
			r.logger.Warn().Err(err).Str("run_id", run.ID).Str("path", run.Output).Msg("failed to delete expired output")
			continue
		}
		if err := r.store.MarkExpired(ctx, run.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
