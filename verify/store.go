package verify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoSession signals that no verification is pending for the user.
var ErrNoSession = errors.New("verify: no verification pending")

// SessionStore holds at most one live session per user id. Put
// replaces any existing session for the same user. Redeem performs the
// check-and-mark as one atomic operation so at most one caller can
// ever redeem a given session.
type SessionStore interface {
	Put(ctx context.Context, session Session) error
	Get(ctx context.Context, userID int64) (Session, error)
	Redeem(ctx context.Context, userID int64, code string, now time.Time) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[int64]Session{}}
}

func (s *MemoryStore) Put(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = session
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		return Session{}, ErrNoSession
	}
	return session, nil
}

func (s *MemoryStore) Redeem(_ context.Context, userID int64, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		return ErrNoSession
	}
	if err := session.checkRedeem(code, now); err != nil {
		return err
	}
	session.Used = true
	s.sessions[userID] = session
	return nil
}
