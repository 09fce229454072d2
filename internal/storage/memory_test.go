package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avoronkov/todoist-bot/internal/models"
)

func TestMemoryStorage_UpsertAndGet(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	if err := s.UpsertToken(ctx, 1, "first"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.GetToken(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "first" {
		t.Fatalf("expected %q, got %q", "first", got)
	}

	// Last write wins, no duplicate rows.
	if err := s.UpsertToken(ctx, 1, "second"); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	got, err = s.GetToken(ctx, 1)
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if got != "second" {
		t.Fatalf("expected %q, got %q", "second", got)
	}
}

func TestMemoryStorage_GetMissing(t *testing.T) {
	s := NewMemoryStorage()

	_, err := s.GetToken(context.Background(), 42)
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestMemoryStorage_HasToken(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	has, err := s.HasToken(ctx, 1)
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if has {
		t.Fatal("expected no token")
	}

	if err := s.UpsertToken(ctx, 1, "tok"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	has, err = s.HasToken(ctx, 1)
	if err != nil {
		t.Fatalf("has after upsert: %v", err)
	}
	if !has {
		t.Fatal("expected token to exist")
	}
}

func TestMemoryStorage_Remove(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	removed, err := s.RemoveToken(ctx, 1)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed {
		t.Fatal("removing an absent token should report false")
	}

	if err := s.UpsertToken(ctx, 1, "tok"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	removed, err = s.RemoveToken(ctx, 1)
	if err != nil {
		t.Fatalf("remove after upsert: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to report true")
	}
	if _, err := s.GetToken(ctx, 1); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after removal, got %v", err)
	}
}

func TestMemoryStorage_CountAttemptsSince(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	now := time.Now()

	attempts := []models.AttemptRecord{
		{UserID: 7, AttemptTime: now.Add(-10 * time.Minute), Success: false},
		{UserID: 7, AttemptTime: now.Add(-1 * time.Minute), Success: false},
		{UserID: 7, AttemptTime: now, Success: true},
		{UserID: 8, AttemptTime: now, Success: true}, // other user
	}
	for i := range attempts {
		if err := s.RecordAttempt(ctx, &attempts[i]); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	count, err := s.CountAttemptsSince(ctx, 7, now.Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts in window, got %d", count)
	}
}

func TestMemoryStorage_PurgeAttempts(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	now := time.Now()

	attempts := []models.AttemptRecord{
		{UserID: 7, AttemptTime: now.Add(-48 * time.Hour), Success: true}, // stale success
		{UserID: 7, AttemptTime: now.Add(-time.Minute), Success: false},   // recent failure
		{UserID: 7, AttemptTime: now, Success: true},                      // recent success
	}
	for i := range attempts {
		if err := s.RecordAttempt(ctx, &attempts[i]); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if err := s.PurgeAttempts(ctx, 7, now.Add(-24*time.Hour)); err != nil {
		t.Fatalf("purge: %v", err)
	}

	count, err := s.CountAttemptsSince(ctx, 7, now.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the recent success to survive, got %d records", count)
	}
}
