package janitor

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePurger struct {
	n   int64
	err error
}

func (f *fakePurger) PurgeExpired(_ context.Context) (int64, error) { return f.n, f.err }

type fakeExpirer struct {
	n   int64
	err error
}

func (f *fakeExpirer) ExpireStale(_ context.Context, _ time.Time) (int64, error) { return f.n, f.err }

type recordedMetrics struct {
	sweepStatus string
	purged      int64
	expired     int64
}

func (m *recordedMetrics) ObserveJanitorSweep(status string, _ float64) { m.sweepStatus = status }
func (m *recordedMetrics) AddTokensPurged(n int64)                      { m.purged += n }
func (m *recordedMetrics) AddInvitesExpired(n int64)                    { m.expired += n }

func TestSweepRecordsCounts(t *testing.T) {
	j := New(&fakePurger{n: 3}, &fakeExpirer{n: 2}, time.Hour)
	m := &recordedMetrics{}
	j.SetMetrics(m)

	j.Sweep(context.Background())

	if m.sweepStatus != "ok" {
		t.Errorf("expected status ok, got %q", m.sweepStatus)
	}
	if m.purged != 3 {
		t.Errorf("expected 3 purged tokens, got %d", m.purged)
	}
	if m.expired != 2 {
		t.Errorf("expected 2 expired invites, got %d", m.expired)
	}
}

func TestSweepContinuesPastFailure(t *testing.T) {
	j := New(&fakePurger{err: errors.New("db down")}, &fakeExpirer{n: 1}, time.Hour)
	m := &recordedMetrics{}
	j.SetMetrics(m)

	j.Sweep(context.Background())

	if m.sweepStatus != "error" {
		t.Errorf("expected status error, got %q", m.sweepStatus)
	}
	// The invite pass still ran.
	if m.expired != 1 {
		t.Errorf("expected 1 expired invite despite token failure, got %d", m.expired)
	}
}

func TestStartStops(t *testing.T) {
	j := New(&fakePurger{}, &fakeExpirer{}, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		j.Start(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	j.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
