package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one poll cycle.
type TickFunc func(ctx context.Context) error

// NextFunc reports when the following cycle should run. It is consulted after
// every successful tick, so the pace follows the poller's adaptive interval.
type NextFunc func() time.Time

// Options tune scheduler behaviour.
type Options struct {
	StartupDelay time.Duration
	ErrorBackoff time.Duration
}

// Scheduler drives the polling loop: tick, sleep until the next poll time,
// repeat until the context is cancelled. A failed tick backs off for a fixed
// short delay instead of hammering the endpoint. Cancellation is cooperative;
// a tick already in flight completes.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 30 * time.Second
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick on the cadence implied by next until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context, next NextFunc, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var wait time.Duration
		if err := tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error().Err(err).Dur("backoff", s.opts.ErrorBackoff).Msg("poll cycle failed, backing off")
			wait = s.opts.ErrorBackoff
		} else {
			wait = time.Until(next())
			if wait < 0 {
				wait = 0
			}
			s.logger.Debug().Dur("wait", wait).Msg("waiting for next poll")
		}

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
