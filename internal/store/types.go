package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches the given session key.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateSession is returned when a session key is already taken.
	ErrDuplicateSession = errors.New("session already exists")
)

// Session tracks one play-through attempt through a fixed deck.
type Session struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	TotalImages  int       `json:"totalImages"`
	CurrentIndex int       `json:"currentIndex"`
	IsCompleted  bool      `json:"isCompleted"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SessionInput is the client-supplied portion of a new session.
type SessionInput struct {
	SessionID    string `json:"sessionId"`
	TotalImages  int    `json:"totalImages"`
	CurrentIndex int    `json:"currentIndex"`
	IsCompleted  bool   `json:"isCompleted"`
}

// SessionUpdate carries the fields a progress update may touch. Nil fields
// are left untouched, so replayed or duplicated updates are harmless.
type SessionUpdate struct {
	CurrentIndex *int  `json:"currentIndex,omitempty"`
	IsCompleted  *bool `json:"isCompleted,omitempty"`
}

// Recording describes one uploaded audio artifact tied to a session.
type Recording struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Filename  string    `json:"filename"`
	Filepath  string    `json:"filepath"`
	Duration  *int      `json:"duration,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordingInput is the metadata persisted for an uploaded audio file.
type RecordingInput struct {
	SessionID string `json:"sessionId"`
	Filename  string `json:"filename"`
	Filepath  string `json:"filepath"`
	Duration  *int   `json:"duration,omitempty"`
}

// Store persists session progress and recording metadata. Each call is
// atomic in isolation; no transactional guarantees hold across calls.
type Store interface {
	CreateSession(ctx context.Context, in SessionInput) (Session, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
	UpdateSession(ctx context.Context, sessionID string, upd SessionUpdate) (Session, error)
	CreateRecording(ctx context.Context, in RecordingInput) (Recording, error)
	// GetRecording returns the most recent recording for the session when
	// several exist (a full upload can follow a partial one).
	GetRecording(ctx context.Context, sessionID string) (Recording, error)
	Close() error
}
