package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avoronkov/todoist-bot/internal/models"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	dsn := fmt.Sprintf("file:tokens_%s?mode=memory&cache=shared", uuid.NewString())

	s, err := NewSQLiteStorage(dsn, 5*time.Second)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage_UpsertOverwrites(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	if err := s.UpsertToken(ctx, 42, "first"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertToken(ctx, 42, "second"); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err := s.GetToken(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "second" {
		t.Fatalf("expected last write to win, got %q", got)
	}

	// The primary key must have kept this to a single row.
	var rows int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM user_tokens WHERE telegram_user_id = 42").Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row, got %d", rows)
	}
}

func TestSQLiteStorage_RemoveSemantics(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	removed, err := s.RemoveToken(ctx, 1)
	if err != nil {
		t.Fatalf("remove absent: %v", err)
	}
	if removed {
		t.Fatal("removing an absent token should report false")
	}

	if err := s.UpsertToken(ctx, 1, "tok"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	removed, err = s.RemoveToken(ctx, 1)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to report true")
	}
	if _, err := s.GetToken(ctx, 1); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestSQLiteStorage_HasToken(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	has, err := s.HasToken(ctx, 5)
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if has {
		t.Fatal("expected no token")
	}

	if err := s.UpsertToken(ctx, 5, "tok"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	has, err = s.HasToken(ctx, 5)
	if err != nil {
		t.Fatalf("has after upsert: %v", err)
	}
	if !has {
		t.Fatal("expected token to exist")
	}
}

func TestSQLiteStorage_AttemptLog(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now()

	attempts := []models.AttemptRecord{
		{UserID: 7, AttemptTime: now.Add(-48 * time.Hour), Success: true},
		{UserID: 7, AttemptTime: now.Add(-time.Minute), Success: false},
		{UserID: 7, AttemptTime: now, Success: true},
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

	if err := s.PurgeAttempts(ctx, 7, now.Add(-24*time.Hour)); err != nil {
		t.Fatalf("purge: %v", err)
	}
	count, err = s.CountAttemptsSince(ctx, 7, now.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("count after purge: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the recent success to survive, got %d", count)
	}
}
