package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/avoronkov/todoist-bot/internal/models"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations embed.FS

// SQLiteStorage is the embedded-file counterpart of PostgresStorage. It keeps
// timestamps as unix seconds internally; the dialect never leaks past the
// Storage interface.
type SQLiteStorage struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func NewSQLiteStorage(dsn string, queryTimeout time.Duration) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// SQLite allows one writer; a single pooled connection avoids lock
	// contention errors under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &SQLiteStorage{db: db, queryTimeout: queryTimeout}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initializeSchema() error {
	migrationSQL, err := sqliteMigrations.ReadFile("migrations_sqlite.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *SQLiteStorage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *SQLiteStorage) UpsertToken(ctx context.Context, userID int64, token string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().Unix()
	query := `
		INSERT INTO user_tokens (telegram_user_id, todoist_token, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (telegram_user_id)
		DO UPDATE SET
			todoist_token = excluded.todoist_token,
			updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, userID, token, now, now); err != nil {
		return fmt.Errorf("%w: error storing token: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStorage) GetToken(ctx context.Context, userID int64) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var token string
	err := s.db.QueryRowContext(ctx,
		"SELECT todoist_token FROM user_tokens WHERE telegram_user_id = ?",
		userID,
	).Scan(&token)
	if err == sql.ErrNoRows {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: error fetching token: %v", ErrUnavailable, err)
	}
	return token, nil
}

func (s *SQLiteStorage) HasToken(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM user_tokens WHERE telegram_user_id = ?",
		userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: error checking token: %v", ErrUnavailable, err)
	}
	return true, nil
}

func (s *SQLiteStorage) RemoveToken(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM user_tokens WHERE telegram_user_id = ?",
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("%w: error removing token: %v", ErrUnavailable, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: error getting rows affected: %v", ErrUnavailable, err)
	}
	return affected > 0, nil
}

func (s *SQLiteStorage) RecordAttempt(ctx context.Context, rec *models.AttemptRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO attempt_log (telegram_user_id, attempt_time, success) VALUES (?, ?, ?)",
		rec.UserID, rec.AttemptTime.Unix(), boolToInt(rec.Success),
	)
	if err != nil {
		return fmt.Errorf("%w: error recording attempt: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStorage) CountAttemptsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attempt_log WHERE telegram_user_id = ? AND attempt_time >= ?",
		userID, since.Unix(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: error counting attempts: %v", ErrUnavailable, err)
	}
	return count, nil
}

func (s *SQLiteStorage) PurgeAttempts(ctx context.Context, userID int64, before time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM attempt_log WHERE telegram_user_id = ? AND (success = 0 OR attempt_time < ?)",
		userID, before.Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: error purging attempts: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
