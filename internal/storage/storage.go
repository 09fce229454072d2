package storage

import (
	"context"
	"errors"
	"time"

	"github.com/avoronkov/todoist-bot/internal/models"
)

var (
	// ErrUnavailable wraps any backend failure so callers can tell an outage
	// apart from an absent row.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrTokenNotFound is returned by GetToken when the user has no token.
	ErrTokenNotFound = errors.New("token not found")
)

type Storage interface {
	TokenStore
	AttemptLog
	Close() error
}

// TokenStore persists one Todoist token per Telegram user.
type TokenStore interface {
	// UpsertToken stores the token, overwriting any previous one.
	UpsertToken(ctx context.Context, userID int64, token string) error
	// GetToken returns the stored token or ErrTokenNotFound. Backend
	// failures propagate wrapped in ErrUnavailable; callers doing a
	// privileged read must not treat them as absence.
	GetToken(ctx context.Context, userID int64) (string, error)
	HasToken(ctx context.Context, userID int64) (bool, error)
	// RemoveToken reports whether a token existed. Removing an absent
	// token is not an error.
	RemoveToken(ctx context.Context, userID int64) (bool, error)
}

// AttemptLog is the append-only record of token submission attempts.
type AttemptLog interface {
	RecordAttempt(ctx context.Context, rec *models.AttemptRecord) error
	// CountAttemptsSince counts all attempts since the cutoff, successful
	// or not. The cutoff is computed by the caller so one clock rules the
	// window arithmetic.
	CountAttemptsSince(ctx context.Context, userID int64, since time.Time) (int, error)
	// PurgeAttempts deletes every failed attempt for the user and every
	// attempt older than before, regardless of outcome.
	PurgeAttempts(ctx context.Context, userID int64, before time.Time) error
}
