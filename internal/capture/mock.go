package capture

import (
	"context"
	"errors"
	"time"

	"github.com/emlhoward/chatterbox/internal/audio"
)

// ErrPermissionDenied simulates the host refusing microphone access.
var ErrPermissionDenied = errors.New("microphone permission denied")

// MockDevice is a deterministic stand-in for a real microphone. Each segment
// of uninterrupted capture contributes a fixed slice of silence, so tests can
// assert on exact clip contents.
type MockDevice struct {
	// Deny makes Start fail with ErrPermissionDenied until cleared.
	Deny bool
	// SegmentDuration of audio credited per recording segment.
	SegmentDuration time.Duration
	SampleRate      int

	Starts int
}

func NewMockDevice() *MockDevice {
	return &MockDevice{SegmentDuration: time.Second, SampleRate: 16000}
}

func (d *MockDevice) Start(_ context.Context) (Stream, error) {
	d.Starts++
	if d.Deny {
		return nil, ErrPermissionDenied
	}
	return &mockStream{device: d, segments: 1}, nil
}

type mockStream struct {
	device   *MockDevice
	segments int
	paused   bool
	stopped  bool
}

func (s *mockStream) Pause() error {
	if s.stopped {
		return errors.New("mock stream already stopped")
	}
	s.paused = true
	return nil
}

func (s *mockStream) Resume() error {
	if s.stopped {
		return errors.New("mock stream already stopped")
	}
	if s.paused {
		s.paused = false
		s.segments++
	}
	return nil
}

func (s *mockStream) Stop() (Clip, error) {
	if s.stopped {
		return Clip{}, errors.New("mock stream already stopped")
	}
	s.stopped = true

	rate := s.device.SampleRate
	pcm := audio.SilencePCM16LE(time.Duration(s.segments)*s.device.SegmentDuration, rate)
	wav, err := audio.EncodeWAVPCM16LE(pcm, rate)
	if err != nil {
		return Clip{}, err
	}
	return Clip{
		Data:     wav,
		MIMEType: "audio/wav",
		Duration: audio.PCM16LEDuration(pcm, rate),
	}, nil
}
