// Package cue pronounces the current word to prompt the child. The cue is
// cosmetic: it must never break a play-through, so every failure here
// degrades silently.
package cue

import "context"

// Settings tuned for young listeners: slow, slightly raised, and quiet
// enough not to dominate a simultaneous microphone recording.
type Settings struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

// DefaultSettings returns the fixed recognized options for child cues.
func DefaultSettings() Settings {
	return Settings{Rate: 0.8, Pitch: 1.1, Volume: 0.3}
}

// Voice describes one synthesis voice offered by an engine.
type Voice struct {
	Name string
	Lang string
}

// Utterance is a single synthesis request.
type Utterance struct {
	Text     string
	Voice    *Voice // nil means the engine default
	Settings Settings
}

// Engine is the host speech-synthesis capability. A missing engine is
// represented by a nil Engine on the Player, not by an erroring stub.
type Engine interface {
	Voices() []Voice
	Speak(ctx context.Context, u Utterance) error
	Cancel()
}
