package storage

import (
	"context"
	"sync"
	"time"

	"github.com/avoronkov/todoist-bot/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	tokens   map[int64]*models.UserToken
	attempts map[int64][]models.AttemptRecord
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tokens:   make(map[int64]*models.UserToken),
		attempts: make(map[int64][]models.AttemptRecord),
	}
}

func (s *MemoryStorage) UpsertToken(ctx context.Context, userID int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.tokens[userID]; ok {
		existing.Token = token
		existing.UpdatedAt = now
		return nil
	}
	s.tokens[userID] = &models.UserToken{
		UserID:    userID,
		Token:     token,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStorage) GetToken(ctx context.Context, userID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tokens[userID]; ok {
		return t.Token, nil
	}
	return "", ErrTokenNotFound
}

func (s *MemoryStorage) HasToken(ctx context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.tokens[userID]
	return ok, nil
}

func (s *MemoryStorage) RemoveToken(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[userID]; !ok {
		return false, nil
	}
	delete(s.tokens, userID)
	return true, nil
}

func (s *MemoryStorage) RecordAttempt(ctx context.Context, rec *models.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[rec.UserID] = append(s.attempts[rec.UserID], *rec)
	return nil
}

func (s *MemoryStorage) CountAttemptsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.attempts[userID] {
		if !rec.AttemptTime.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) PurgeAttempts(ctx context.Context, userID int64, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.attempts[userID][:0]
	for _, rec := range s.attempts[userID] {
		if rec.Success && !rec.AttemptTime.Before(before) {
			kept = append(kept, rec)
		}
	}
	if len(kept) == 0 {
		delete(s.attempts, userID)
		return nil
	}
	s.attempts[userID] = kept
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
