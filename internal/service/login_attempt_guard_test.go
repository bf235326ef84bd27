package service

import (
	"context"
	"testing"
	"time"

	"github.com/panierscan/authcore/internal/kvstore"
)

type guardFixture struct {
	guard *LoginAttemptGuard
	store *kvstore.MemoryStore
	now   time.Time
}

func setupGuard(t *testing.T, opts LoginGuardOptions) *guardFixture {
	t.Helper()
	f := &guardFixture{
		store: kvstore.NewMemoryStore(),
		now:   time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
	f.guard = NewLoginAttemptGuard(f.store, opts)
	clock := func() time.Time { return f.now }
	f.guard.SetClock(clock)
	f.store.SetClock(clock)
	return f
}

func (f *guardFixture) fail(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := f.guard.RecordAttempt(context.Background(), testPhoneE164, false); err != nil {
			t.Fatalf("record attempt failed: %v", err)
		}
	}
}

func TestLoginGuardLocksAtThreshold(t *testing.T) {
	f := setupGuard(t, LoginGuardOptions{FailureThreshold: 3, LockoutDuration: 15 * time.Minute})
	ctx := context.Background()

	f.fail(t, 2)
	status := f.guard.GetStatus(ctx, testPhoneE164)
	if status.Locked || status.RemainingAttempts != 1 {
		t.Fatalf("want unlocked with 1 attempt left, got %+v", status)
	}

	f.fail(t, 1)
	status = f.guard.GetStatus(ctx, testPhoneE164)
	if !status.Locked || status.RemainingAttempts != 0 {
		t.Fatalf("want locked, got %+v", status)
	}
	if status.LockTimeRemainingSeconds != 900 {
		t.Fatalf("lock seconds want 900 got %d", status.LockTimeRemainingSeconds)
	}
	lock := f.guard.IsAccountLocked(ctx, testPhoneLocal)
	if !lock.Locked || lock.RemainingTimeSeconds != 900 {
		t.Fatalf("local number form must resolve to the same record, got %+v", lock)
	}
}

func TestLoginGuardFailuresDuringLockDoNotExtend(t *testing.T) {
	f := setupGuard(t, LoginGuardOptions{FailureThreshold: 2, LockoutDuration: 10 * time.Minute})
	f.fail(t, 2)
	f.now = f.now.Add(4 * time.Minute)
	f.fail(t, 3)

	lock := f.guard.IsAccountLocked(context.Background(), testPhoneE164)
	if lock.RemainingTimeSeconds != 360 {
		t.Fatalf("lock must not be extended, remaining %d", lock.RemainingTimeSeconds)
	}
	record, err := f.guard.Inspect(context.Background(), testPhoneE164)
	if err != nil || record == nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if record.LockoutCount != 1 {
		t.Fatalf("lockout count want 1 got %d", record.LockoutCount)
	}
}

func TestLoginGuardEscalatesAndCaps(t *testing.T) {
	f := setupGuard(t, LoginGuardOptions{
		FailureThreshold: 1,
		LockoutDuration:  10 * time.Minute,
		EscalationFactor: 3,
		MaxLockout:       time.Hour,
	})
	ctx := context.Background()
	wants := []int{600, 1800, 3600, 3600}
	for i, want := range wants {
		f.fail(t, 1)
		lock := f.guard.IsAccountLocked(ctx, testPhoneE164)
		if !lock.Locked || lock.RemainingTimeSeconds != want {
			t.Fatalf("lockout %d want %ds got %+v", i+1, want, lock)
		}
		f.now = f.now.Add(time.Duration(want) * time.Second)
		if f.guard.IsAccountLocked(ctx, testPhoneE164).Locked {
			t.Fatalf("lock %d must expire on time", i+1)
		}
	}
}

func TestLoginGuardExpiredLockResetsFailures(t *testing.T) {
	f := setupGuard(t, LoginGuardOptions{FailureThreshold: 3, LockoutDuration: time.Minute})
	f.fail(t, 3)
	f.now = f.now.Add(time.Minute)
	status := f.guard.GetStatus(context.Background(), testPhoneE164)
	if status.Locked || status.RemainingAttempts != 3 {
		t.Fatalf("want fresh attempts after lock expiry, got %+v", status)
	}
}

func TestLoginGuardSuccessClearsRecord(t *testing.T) {
	f := setupGuard(t, LoginGuardOptions{FailureThreshold: 3})
	f.fail(t, 2)
	if err := f.guard.RecordAttempt(context.Background(), testPhoneE164, true); err != nil {
		t.Fatalf("record success failed: %v", err)
	}
	record, err := f.guard.Inspect(context.Background(), testPhoneE164)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if record != nil {
		t.Fatalf("success must clear the record, got %+v", record)
	}
}

func TestLoginGuardShouldDelayLogin(t *testing.T) {
	f := setupGuard(t, LoginGuardOptions{MinAttemptSpacing: 3 * time.Second})
	ctx := context.Background()
	if d := f.guard.ShouldDelayLogin(ctx, testPhoneE164); d.Delay {
		t.Fatalf("no history must not delay, got %+v", d)
	}
	f.fail(t, 1)
	f.now = f.now.Add(time.Second)
	d := f.guard.ShouldDelayLogin(ctx, testPhoneE164)
	if !d.Delay || d.Seconds != 2 {
		t.Fatalf("want delay 2s got %+v", d)
	}
	f.now = f.now.Add(2 * time.Second)
	if d := f.guard.ShouldDelayLogin(ctx, testPhoneE164); d.Delay {
		t.Fatalf("spacing elapsed, got %+v", d)
	}
}

func TestLoginGuardFailsOpenWhenStoreDown(t *testing.T) {
	guard := NewLoginAttemptGuard(kvstore.FailingStore{}, LoginGuardOptions{FailureThreshold: 4, MinAttemptSpacing: time.Second})
	ctx := context.Background()
	if lock := guard.IsAccountLocked(ctx, testPhoneE164); lock.Locked {
		t.Fatalf("store failure must not lock out users")
	}
	if status := guard.GetStatus(ctx, testPhoneE164); status.Locked || status.RemainingAttempts != 4 {
		t.Fatalf("unexpected status %+v", status)
	}
	if d := guard.ShouldDelayLogin(ctx, testPhoneE164); d.Delay {
		t.Fatalf("store failure must not throttle")
	}
	if err := guard.RecordAttempt(ctx, testPhoneE164, false); err == nil {
		t.Fatalf("write failure must be reported")
	}
}

func TestLoginGuardResetUnlocks(t *testing.T) {
	f := setupGuard(t, LoginGuardOptions{FailureThreshold: 1})
	f.fail(t, 1)
	if err := f.guard.Reset(context.Background(), testPhoneE164); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if f.guard.IsAccountLocked(context.Background(), testPhoneE164).Locked {
		t.Fatalf("reset must unlock")
	}
}

func TestFormatRemainingTime(t *testing.T) {
	cases := []struct {
		seconds int
		locale  string
		want    string
	}{
		{seconds: 3900, locale: "fr", want: "1 h 05 min"},
		{seconds: 250, locale: "fr", want: "4 min 10 s"},
		{seconds: 35, locale: "fr", want: "35 s"},
		{seconds: 3900, locale: "en", want: "1h 05m"},
		{seconds: 250, locale: "en-US", want: "4m 10s"},
		{seconds: 35, locale: "en", want: "35s"},
		{seconds: -3, locale: "", want: "0 s"},
	}
	for _, tc := range cases {
		if got := FormatRemainingTime(tc.seconds, tc.locale); got != tc.want {
			t.Fatalf("format(%d,%q) want %q got %q", tc.seconds, tc.locale, tc.want, got)
		}
	}
}
