package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avoronkov/todoist-bot/internal/models"
	"github.com/avoronkov/todoist-bot/internal/storage"
)

// Config bounds token submission attempts per user.
type Config struct {
	// MaxAttempts closes the gate once this many attempts, successful or
	// not, land inside the trailing window.
	MaxAttempts int
	// Window is the trailing span the gate counts over.
	Window time.Duration
	// Retention is how long successful attempts stay in the log.
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 4,
		Window:      2 * time.Minute,
		Retention:   24 * time.Hour,
	}
}

// warningThreshold is the remaining-attempt count at which CanAttempt starts
// warning the user.
const warningThreshold = 2

// Limiter gates token submissions by counting recent attempts in the log.
// The open/warning/closed state is derived per call, never stored.
type Limiter struct {
	log    storage.AttemptLog
	cfg    Config
	logger *zap.Logger

	// now is the single clock for window arithmetic; cutoffs computed from
	// it are passed to storage so the database clock never participates.
	now func() time.Time
}

func New(log storage.AttemptLog, cfg Config, logger *zap.Logger) *Limiter {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	return &Limiter{
		log:    log,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// CanAttempt reports whether the user may submit a token now. The advisory is
// empty while the gate is comfortably open, a remaining-count warning near the
// threshold, and a lockout notice once it is closed.
func (l *Limiter) CanAttempt(ctx context.Context, userID int64) (bool, string) {
	now := l.now()
	count, err := l.log.CountAttemptsSince(ctx, userID, now.Add(-l.cfg.Window))
	if err != nil {
		// The gate is abuse control, not authorization; a storage outage
		// must not lock every user out.
		l.logger.Error("Failed to count attempts",
			zap.Error(err),
			zap.Int64("user_id", userID))
		return true, ""
	}

	if count >= l.cfg.MaxAttempts {
		return false, fmt.Sprintf("Too many attempts. Try again in %d minutes.",
			int(l.cfg.Window.Minutes()))
	}

	remaining := l.cfg.MaxAttempts - count
	if remaining <= warningThreshold {
		if remaining == 1 {
			return true, "1 attempt remaining before a temporary lockout."
		}
		return true, fmt.Sprintf("%d attempts remaining before a temporary lockout.", remaining)
	}
	return true, ""
}

// RecordAttempt appends one attempt. A successful attempt also sweeps the
// user's log: all failed attempts go, and successes older than the retention
// horizon go with them. Failures skip the sweep so the abuse path stays cheap.
func (l *Limiter) RecordAttempt(ctx context.Context, userID int64, success bool) error {
	now := l.now()
	rec := &models.AttemptRecord{
		UserID:      userID,
		AttemptTime: now,
		Success:     success,
	}
	if err := l.log.RecordAttempt(ctx, rec); err != nil {
		return err
	}
	if !success {
		return nil
	}

	if err := l.log.PurgeAttempts(ctx, userID, now.Add(-l.cfg.Retention)); err != nil {
		// The sweep retries on the next success; stale rows only cost space.
		l.logger.Warn("Failed to purge attempt log",
			zap.Error(err),
			zap.Int64("user_id", userID))
	}
	return nil
}
