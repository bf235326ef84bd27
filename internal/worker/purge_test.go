package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeEntryPurger struct {
	calls   int
	removed int64
	err     error
}

func (p *fakeEntryPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls++
	return p.removed, p.err
}

type fakeSessionPurger struct {
	cutoffs []time.Time
	removed int64
}

func (p *fakeSessionPurger) DeleteCreatedBefore(cutoff time.Time) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	return p.removed, nil
}

func TestPurgeServiceRunOnceUsesRetentionWindow(t *testing.T) {
	entries := &fakeEntryPurger{removed: 3}
	sessions := &fakeSessionPurger{removed: 2}
	svc := NewPurgeService(entries, sessions, 48*time.Hour, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.RunOnce(context.Background())

	if entries.calls != 1 {
		t.Fatalf("entries purge calls want 1 got %d", entries.calls)
	}
	if len(sessions.cutoffs) != 1 {
		t.Fatalf("session purge calls want 1 got %d", len(sessions.cutoffs))
	}
	if want := now.Add(-48 * time.Hour); !sessions.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff want %v got %v", want, sessions.cutoffs[0])
	}
}

func TestPurgeServiceToleratesFailuresAndNilPurgers(t *testing.T) {
	entries := &fakeEntryPurger{err: errors.New("db down")}
	sessions := &fakeSessionPurger{}
	svc := NewPurgeService(entries, sessions, 0, 0)
	svc.RunOnce(context.Background())
	if len(sessions.cutoffs) != 0 {
		t.Fatalf("zero retention should skip session purge")
	}
	if svc.interval != defaultPurgeInterval {
		t.Fatalf("interval want default got %v", svc.interval)
	}

	NewPurgeService(nil, nil, time.Hour, time.Minute).RunOnce(context.Background())
}

func TestPurgeServiceStopsWithContext(t *testing.T) {
	svc := NewPurgeService(&fakeEntryPurger{}, nil, 0, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("purge service did not stop")
	}
}
