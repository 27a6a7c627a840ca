package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use. Contents do
// not survive a restart.
type InMemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]Session // keyed by client session key
	recordings []Recording
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]Session)}
}

func (s *InMemoryStore) CreateSession(_ context.Context, in SessionInput) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[in.SessionID]; ok {
		return Session{}, ErrDuplicateSession
	}
	sess := Session{
		ID:           uuid.NewString(),
		SessionID:    in.SessionID,
		TotalImages:  in.TotalImages,
		CurrentIndex: in.CurrentIndex,
		IsCompleted:  in.IsCompleted,
		CreatedAt:    time.Now().UTC(),
	}
	s.sessions[in.SessionID] = sess
	return sess, nil
}

func (s *InMemoryStore) GetSession(_ context.Context, sessionID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *InMemoryStore) UpdateSession(_ context.Context, sessionID string, upd SessionUpdate) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if upd.CurrentIndex != nil {
		sess.CurrentIndex = *upd.CurrentIndex
	}
	if upd.IsCompleted != nil {
		sess.IsCompleted = *upd.IsCompleted
	}
	s.sessions[sessionID] = sess
	return sess, nil
}

func (s *InMemoryStore) CreateRecording(_ context.Context, in RecordingInput) (Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Recording{
		ID:        uuid.NewString(),
		SessionID: in.SessionID,
		Filename:  in.Filename,
		Filepath:  in.Filepath,
		Duration:  in.Duration,
		CreatedAt: time.Now().UTC(),
	}
	s.recordings = append(s.recordings, rec)
	return rec, nil
}

func (s *InMemoryStore) GetRecording(_ context.Context, sessionID string) (Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Latest wins: scan from the back so a full upload shadows an earlier
	// partial one for the same session.
	for i := len(s.recordings) - 1; i >= 0; i-- {
		if s.recordings[i].SessionID == sessionID {
			return s.recordings[i], nil
		}
	}
	return Recording{}, ErrNotFound
}

func (s *InMemoryStore) Close() error { return nil }
