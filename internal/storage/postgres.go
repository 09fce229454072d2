package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/avoronkov/todoist-bot/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations embed.FS

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	QueryTimeout time.Duration
}

type PostgresStorage struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db, queryTimeout: config.QueryTimeout}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := postgresMigrations.ReadFile("migrations_postgres.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *PostgresStorage) UpsertToken(ctx context.Context, userID int64, token string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// The primary key makes concurrent upserts for the same user safe; the
	// last write wins without duplicate rows.
	query := `
		INSERT INTO user_tokens (telegram_user_id, todoist_token, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (telegram_user_id)
		DO UPDATE SET
			todoist_token = EXCLUDED.todoist_token,
			updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, userID, token); err != nil {
		return fmt.Errorf("%w: error storing token: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStorage) GetToken(ctx context.Context, userID int64) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var token string
	err := s.db.QueryRowContext(ctx,
		"SELECT todoist_token FROM user_tokens WHERE telegram_user_id = $1",
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

func (s *PostgresStorage) HasToken(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM user_tokens WHERE telegram_user_id = $1",
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

func (s *PostgresStorage) RemoveToken(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM user_tokens WHERE telegram_user_id = $1",
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

func (s *PostgresStorage) RecordAttempt(ctx context.Context, rec *models.AttemptRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO attempt_log (telegram_user_id, attempt_time, success) VALUES ($1, $2, $3)",
		rec.UserID, rec.AttemptTime, rec.Success,
	)
	if err != nil {
		return fmt.Errorf("%w: error recording attempt: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStorage) CountAttemptsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attempt_log WHERE telegram_user_id = $1 AND attempt_time >= $2",
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: error counting attempts: %v", ErrUnavailable, err)
	}
	return count, nil
}

func (s *PostgresStorage) PurgeAttempts(ctx context.Context, userID int64, before time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// Failed attempts go unconditionally; successes only past the horizon.
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM attempt_log WHERE telegram_user_id = $1 AND (success = FALSE OR attempt_time < $2)",
		userID, before,
	)
	if err != nil {
		return fmt.Errorf("%w: error purging attempts: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
