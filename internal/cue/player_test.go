package cue

import (
	"context"
	"errors"
	"testing"
)

func TestSpeakCancelsThenSpeaks(t *testing.T) {
	engine := NewMockEngine(Voice{Name: "Daniel", Lang: "en-GB"})
	p := NewPlayer(engine)

	p.Speak(context.Background(), "apple")
	p.Speak(context.Background(), "baby")

	spoken := engine.Spoken()
	if len(spoken) != 2 {
		t.Fatalf("spoken = %d utterances, want 2", len(spoken))
	}
	if engine.Cancels() != 2 {
		t.Fatalf("cancels = %d, want one per Speak", engine.Cancels())
	}
	if spoken[0].Text != "apple" || spoken[1].Text != "baby" {
		t.Fatalf("unexpected utterances: %+v", spoken)
	}

	s := spoken[0].Settings
	if s.Rate != 0.8 || s.Pitch != 1.1 || s.Volume != 0.3 {
		t.Fatalf("settings = %+v, want rate 0.8 pitch 1.1 volume 0.3", s)
	}
}

func TestVoicePreference(t *testing.T) {
	tests := []struct {
		name   string
		voices []Voice
		want   string // "" means engine default
	}{
		{
			name: "prefers english female",
			voices: []Voice{
				{Name: "Hans", Lang: "de-DE"},
				{Name: "Daniel", Lang: "en-GB"},
				{Name: "Samantha female", Lang: "en-US"},
			},
			want: "Samantha female",
		},
		{
			name: "falls back to any english",
			voices: []Voice{
				{Name: "Hans", Lang: "de-DE"},
				{Name: "Daniel", Lang: "en-GB"},
			},
			want: "Daniel",
		},
		{
			name:   "falls back to engine default",
			voices: []Voice{{Name: "Hans", Lang: "de-DE"}},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewMockEngine(tt.voices...)
			NewPlayer(engine).Speak(context.Background(), "cup")

			spoken := engine.Spoken()
			if len(spoken) != 1 {
				t.Fatalf("spoken = %d utterances, want 1", len(spoken))
			}
			if tt.want == "" {
				if spoken[0].Voice != nil {
					t.Fatalf("voice = %+v, want engine default", spoken[0].Voice)
				}
				return
			}
			if spoken[0].Voice == nil || spoken[0].Voice.Name != tt.want {
				t.Fatalf("voice = %+v, want %q", spoken[0].Voice, tt.want)
			}
		})
	}
}

func TestSpeakDegradesSilently(t *testing.T) {
	p := NewPlayer(nil)
	// Neither a missing engine nor a failing one may panic or surface.
	p.Speak(context.Background(), "dog")
	p.Stop()

	engine := NewMockEngine(Voice{Name: "Daniel", Lang: "en-GB"})
	engine.SetSpeakError(errors.New("engine busy"))
	NewPlayer(engine).Speak(context.Background(), "dog")
}
