package cue

import (
	"context"
	"sync"
)

// MockEngine records utterances for tests.
type MockEngine struct {
	mu         sync.Mutex
	voices     []Voice
	spoken     []Utterance
	cancels    int
	speakError error
}

func NewMockEngine(voices ...Voice) *MockEngine {
	return &MockEngine{voices: voices}
}

func (e *MockEngine) SetSpeakError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speakError = err
}

func (e *MockEngine) Voices() []Voice { return e.voices }

func (e *MockEngine) Speak(_ context.Context, u Utterance) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.speakError != nil {
		return e.speakError
	}
	e.spoken = append(e.spoken, u)
	return nil
}

func (e *MockEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels++
}

func (e *MockEngine) Spoken() []Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Utterance, len(e.spoken))
	copy(out, e.spoken)
	return out
}

func (e *MockEngine) Cancels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels
}
