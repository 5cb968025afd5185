package janitor

import (
	"context"
	"log/slog"
	"time"
)

// TokenPurger deletes expired one-time verification tokens.
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// InviteExpirer transitions stale PENDING invitations to EXPIRED.
type InviteExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// MetricsRecorder is an optional sink for sweep outcome metrics.
type MetricsRecorder interface {
	ObserveJanitorSweep(status string, seconds float64)
	AddTokensPurged(n int64)
	AddInvitesExpired(n int64)
}

// Janitor periodically clears expired verification tokens and stale
// invitations. Sweeps are best-effort: a failing sweep logs and waits for the
// next tick.
type Janitor struct {
	tokens   TokenPurger
	invites  InviteExpirer
	interval time.Duration
	metrics  MetricsRecorder
	now      func() time.Time
	done     chan struct{}
}

// New creates a janitor sweeping at the given interval.
func New(tokens TokenPurger, invites InviteExpirer, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		tokens:   tokens,
		invites:  invites,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// SetMetrics sets the optional metrics recorder.
func (j *Janitor) SetMetrics(m MetricsRecorder) {
	j.metrics = m
}

// Start runs the sweep loop until the context is cancelled or Stop is called.
// An initial sweep runs immediately so restarts don't postpone cleanup by a
// full interval.
func (j *Janitor) Start(ctx context.Context) {
	j.Sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep(ctx)
		case <-ctx.Done():
			return
		case <-j.done:
			return
		}
	}
}

// Stop terminates the sweep loop.
func (j *Janitor) Stop() {
	close(j.done)
}

// Sweep runs one cleanup pass and reports its outcome.
func (j *Janitor) Sweep(ctx context.Context) {
	start := j.now()
	status := "ok"

	purged, err := j.tokens.PurgeExpired(ctx)
	if err != nil {
		status = "error"
		slog.Error("janitor: purging expired tokens failed", "error", err)
	} else if j.metrics != nil {
		j.metrics.AddTokensPurged(purged)
	}

	expired, err := j.invites.ExpireStale(ctx, j.now())
	if err != nil {
		status = "error"
		slog.Error("janitor: expiring stale invitations failed", "error", err)
	} else if j.metrics != nil {
		j.metrics.AddInvitesExpired(expired)
	}

	elapsed := j.now().Sub(start)
	if j.metrics != nil {
		j.metrics.ObserveJanitorSweep(status, elapsed.Seconds())
	}
	if purged > 0 || expired > 0 {
		slog.Info("janitor sweep completed",
			"tokens_purged", purged,
			"invites_expired", expired,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}
