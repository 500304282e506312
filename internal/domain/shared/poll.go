package shared

import (
	"context"
	"fmt"
	"time"
)

// PollConfig bounds a wait-for-eventual-state loop
type PollConfig struct {
	Timeout    time.Duration // Hard deadline for the precondition to hold
	Initial    time.Duration // First delay between polls
	Max        time.Duration // Ceiling for the backoff schedule
	Multiplier float64       // Backoff growth factor
}

// DefaultPollConfig matches the cadence ship-state polling has always used
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Timeout:    10 * time.Minute,
		Initial:    2 * time.Second,
		Max:        30 * time.Second,
		Multiplier: 1.5,
	}
}

// PollUntil fetches a value repeatedly until the predicate holds, backing off
// between attempts. Every dock/orbit/refuel flow funnels through this instead
// of ad-hoc sleep-and-check loops.
//
// Returns the first value satisfying the predicate, a Cancelled error if the
// context ends, or a Timeout error once the deadline elapses. Fetch errors
// abort the wait immediately.
func PollUntil[T any](
	ctx context.Context,
	clock Clock,
	cfg PollConfig,
	fetch func(ctx context.Context) (T, error),
	pred func(T) bool,
) (T, error) {
	var zero T

	if cfg.Initial <= 0 {
		cfg.Initial = 2 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1.5
	}
	if cfg.Max <= 0 {
		cfg.Max = 30 * time.Second
	}

	deadline := clock.Now().Add(cfg.Timeout)
	delay := cfg.Initial

	for {
		if ctx.Err() != nil {
			return zero, WrapError(KindCancelled, "wait cancelled", ctx.Err())
		}

		value, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		if pred(value) {
			return value, nil
		}

		if cfg.Timeout > 0 && !clock.Now().Add(delay).Before(deadline) {
			return zero, NewDomainError(KindTimeout,
				fmt.Sprintf("condition not met within %s", cfg.Timeout))
		}

		select {
		case <-ctx.Done():
			return zero, WrapError(KindCancelled, "wait cancelled", ctx.Err())
		case <-clock.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.Max {
			delay = cfg.Max
		}
	}
}

// SleepContext sleeps for the given duration or until the context is done.
// Returns a Cancelled error when interrupted.
func SleepContext(ctx context.Context, clock Clock, d time.Duration) error {
	select {
	case <-ctx.Done():
		return WrapError(KindCancelled, "sleep cancelled", ctx.Err())
	case <-clock.After(d):
		return nil
	}
}
