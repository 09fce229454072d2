package models

import "time"

// UserToken is the stored Todoist credential of one Telegram user.
// There is at most one per user; storing again overwrites the old value.
type UserToken struct {
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
