package cue

import (
	"context"
	"log"
	"strings"
	"sync"
)

// Player wraps an Engine with cancel-then-speak semantics and voice
// preference. Safe to construct with a nil engine: Speak becomes a no-op.
type Player struct {
	engine   Engine
	settings Settings

	warnOnce sync.Once
}

func NewPlayer(engine Engine) *Player {
	return &Player{engine: engine, settings: DefaultSettings()}
}

// Speak cancels any in-flight utterance and pronounces word. Unavailable or
// failing synthesis is logged once and otherwise absorbed.
func (p *Player) Speak(ctx context.Context, word string) {
	if p.engine == nil {
		p.warnOnce.Do(func() {
			log.Printf("speech synthesis unavailable, cues disabled")
		})
		return
	}

	p.engine.Cancel()

	u := Utterance{
		Text:     word,
		Voice:    pickVoice(p.engine.Voices()),
		Settings: p.settings,
	}
	if err := p.engine.Speak(ctx, u); err != nil {
		log.Printf("speech cue failed for %q: %v", word, err)
	}
}

// Stop cancels the in-flight utterance immediately.
func (p *Player) Stop() {
	if p.engine == nil {
		return
	}
	p.engine.Cancel()
}

// pickVoice prefers an English female/child-sounding voice, then any English
// voice, then the engine default (nil).
func pickVoice(voices []Voice) *Voice {
	var english *Voice
	for i := range voices {
		v := &voices[i]
		if !strings.HasPrefix(v.Lang, "en") {
			continue
		}
		name := strings.ToLower(v.Name)
		if strings.Contains(name, "female") || strings.Contains(name, "woman") || strings.Contains(name, "child") {
			return v
		}
		if english == nil {
			english = v
		}
	}
	return english
}
