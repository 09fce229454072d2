package models

import "time"

// AttemptRecord is one token submission attempt, successful or not.
// Records are append-only and only ever read in aggregate.
type AttemptRecord struct {
	UserID      int64     `json:"user_id"`
	AttemptTime time.Time `json:"attempt_time"`
	Success     bool      `json:"success"`
}
