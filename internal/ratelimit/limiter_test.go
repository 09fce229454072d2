package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/avoronkov/todoist-bot/internal/storage"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *storage.MemoryStorage, *time.Time) {
	t.Helper()
	store := storage.NewMemoryStorage()
	l := New(store, cfg, zap.NewNop())

	// Pin the clock so window arithmetic is deterministic.
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, store, &now
}

func TestCanAttempt_OpenBelowThreshold(t *testing.T) {
	l, _, _ := newTestLimiter(t, DefaultConfig())
	ctx := context.Background()

	allowed, advisory := l.CanAttempt(ctx, 1)
	if !allowed {
		t.Fatal("expected first attempt to be allowed")
	}
	if advisory != "" {
		t.Fatalf("expected empty advisory, got %q", advisory)
	}

	if err := l.RecordAttempt(ctx, 1, false); err != nil {
		t.Fatalf("record: %v", err)
	}
	allowed, advisory = l.CanAttempt(ctx, 1)
	if !allowed {
		t.Fatal("expected second attempt to be allowed")
	}
	if advisory != "" {
		t.Fatalf("expected empty advisory after 1 of 4 attempts, got %q", advisory)
	}
}

func TestCanAttempt_WarnsNearThreshold(t *testing.T) {
	l, _, _ := newTestLimiter(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.RecordAttempt(ctx, 1, false); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	allowed, advisory := l.CanAttempt(ctx, 1)
	if !allowed {
		t.Fatal("expected attempt to be allowed with 2 remaining")
	}
	if !strings.Contains(advisory, "2 attempts remaining") {
		t.Fatalf("expected remaining-count warning, got %q", advisory)
	}

	if err := l.RecordAttempt(ctx, 1, false); err != nil {
		t.Fatalf("record: %v", err)
	}
	allowed, advisory = l.CanAttempt(ctx, 1)
	if !allowed {
		t.Fatal("expected attempt to be allowed with 1 remaining")
	}
	if !strings.Contains(advisory, "1 attempt remaining") {
		t.Fatalf("expected final warning, got %q", advisory)
	}
}

func TestCanAttempt_ClosesAtThreshold(t *testing.T) {
	l, _, _ := newTestLimiter(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := l.RecordAttempt(ctx, 1, false); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	allowed, advisory := l.CanAttempt(ctx, 1)
	if allowed {
		t.Fatal("expected gate to be closed at max attempts")
	}
	if !strings.Contains(advisory, "2 minutes") {
		t.Fatalf("expected lockout notice naming the window, got %q", advisory)
	}
}

func TestCanAttempt_SuccessCountsTowardLimit(t *testing.T) {
	// A successful attempt still counts until cleanup removes it, but
	// cleanup only reclaims failures and stale successes, so 4 rapid
	// successes also close the gate.
	l, _, _ := newTestLimiter(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := l.RecordAttempt(ctx, 1, true); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	allowed, _ := l.CanAttempt(ctx, 1)
	if allowed {
		t.Fatal("expected successes inside the window to close the gate")
	}
}

func TestCanAttempt_WindowExpires(t *testing.T) {
	l, _, now := newTestLimiter(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := l.RecordAttempt(ctx, 1, false); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if allowed, _ := l.CanAttempt(ctx, 1); allowed {
		t.Fatal("expected gate closed inside the window")
	}

	*now = now.Add(3 * time.Minute)
	if allowed, _ := l.CanAttempt(ctx, 1); !allowed {
		t.Fatal("expected gate to reopen after the window passed")
	}
}

func TestCanAttempt_IndependentPerUser(t *testing.T) {
	l, _, _ := newTestLimiter(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := l.RecordAttempt(ctx, 1, false); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if allowed, _ := l.CanAttempt(ctx, 1); allowed {
		t.Fatal("expected user 1 to be locked out")
	}
	if allowed, _ := l.CanAttempt(ctx, 2); !allowed {
		t.Fatal("expected user 2 to be unaffected")
	}
}

func TestRecordAttempt_SuccessSweepsFailures(t *testing.T) {
	l, store, now := newTestLimiter(t, DefaultConfig())
	ctx := context.Background()

	if err := l.RecordAttempt(ctx, 1, false); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := l.RecordAttempt(ctx, 1, true); err != nil {
		t.Fatalf("record success: %v", err)
	}

	// The failure is gone regardless of age; the success remains.
	count, err := store.CountAttemptsSince(ctx, 1, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the success to remain, got %d records", count)
	}
}

func TestRecordAttempt_FailureDoesNotSweep(t *testing.T) {
	l, store, now := newTestLimiter(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.RecordAttempt(ctx, 1, false); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	count, err := store.CountAttemptsSince(ctx, 1, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected failures to accumulate until a success, got %d", count)
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	l := New(storage.NewMemoryStorage(), Config{}, zap.NewNop())

	def := DefaultConfig()
	if l.cfg != def {
		t.Fatalf("expected zero config to fall back to defaults, got %+v", l.cfg)
	}
}
