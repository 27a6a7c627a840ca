// Package capture owns the microphone side of a play-through: a Device
// capability abstracts the host's audio input so the recorder state machine
// stays testable without real hardware.
package capture

import (
	"context"
	"time"
)

// Clip is the single finished artifact a recording yields.
type Clip struct {
	Data     []byte
	MIMEType string
	Duration time.Duration
}

// Device grants access to an audio input. Start performs whatever permission
// acquisition the host requires; denial or device absence is returned as an
// error, never retried silently.
type Device interface {
	Start(ctx context.Context) (Stream, error)
}

// Stream is one live capture. Pause suspends sample intake without ending
// the capture; Stop finalizes it and yields exactly one clip.
type Stream interface {
	Pause() error
	Resume() error
	Stop() (Clip, error)
}
