// Package janitor runs periodic cleanup of persisted auth state.
package janitor

import (
	"context"
	"log/slog"
	"time"
)

// TokenPurger deletes token records created before a cutoff.
type TokenPurger interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor removes token records once the tokens they back have expired.
type Janitor struct {
	tokens   TokenPurger
	lifetime time.Duration
	interval time.Duration
	now      func() time.Time
}

const defaultInterval = time.Hour

// New creates a Janitor. Records older than lifetime are purged every
// interval; a non-positive interval falls back to one hour.
func New(tokens TokenPurger, lifetime, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Janitor{
		tokens:   tokens,
		lifetime: lifetime,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs a sweep immediately and then on every tick. It blocks until ctx
// is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	slog.Info("token janitor started", "interval", j.interval.String(), "lifetime", j.lifetime.String())
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("token janitor stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep purges expired token records once and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context) int64 {
	if ctx.Err() != nil {
		return 0
	}
	cutoff := j.now().Add(-j.lifetime)
	n, err := j.tokens.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		slog.Error("janitor: failed to purge expired tokens", "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("janitor: purged expired tokens", "count", n)
	}
	return n
}
