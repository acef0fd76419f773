package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"eduadmin-console/internal/school"
)

// MemoryStore is a simple in-memory session store for tests and early
// development. Expired sessions are dropped on read.

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]Session{}}
}

func (m *MemoryStore) Put(ctx context.Context, s Session) error {
	if s.UserID == "" {
		return errors.New("user_id required")
	}
	if !s.ExpiresAt.After(time.Now()) {
		return errors.New("expires_at must be in the future")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = s
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if !s.ExpiresAt.After(time.Now()) {
		delete(m.sessions, userID)
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) SetInstitution(ctx context.Context, userID string, inst *school.School) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return ErrNotFound
	}
	s.Institution = inst
	m.sessions[userID] = s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
