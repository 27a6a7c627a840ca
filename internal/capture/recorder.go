package capture

import (
	"context"
	"errors"
	"fmt"
)

// State models the recording lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
	StateError     State = "error"
)

var (
	// ErrInvalidState is returned for operations that are not legal in the
	// recorder's current state. Once stopped, pause/resume/stop are all
	// rejected rather than treated as no-ops.
	ErrInvalidState = errors.New("operation not valid in current recorder state")
	// ErrNoOutput is returned by Output before a clip exists.
	ErrNoOutput = errors.New("recorder has not produced output")
)

// Recorder drives a Device through the Idle -> Recording <-> Paused ->
// Stopped lifecycle and holds the finished clip. It is meant to be driven
// from a single goroutine (the game loop); it is not safe for concurrent use.
// One Recorder serves exactly one play-through.
type Recorder struct {
	device Device
	state  State
	stream Stream
	clip   Clip
	err    error
}

func NewRecorder(device Device) *Recorder {
	return &Recorder{device: device, state: StateIdle}
}

func (r *Recorder) State() State { return r.state }

// Err reports the capture error that put the recorder into StateError.
func (r *Recorder) Err() error { return r.err }

// Start requests the device and begins capturing. From StateError it
// re-attempts permission acquisition, which is the one sanctioned retry path.
func (r *Recorder) Start(ctx context.Context) error {
	if r.state != StateIdle && r.state != StateError {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, r.state)
	}
	stream, err := r.device.Start(ctx)
	if err != nil {
		r.state = StateError
		r.err = err
		return err
	}
	r.stream = stream
	r.state = StateRecording
	r.err = nil
	return nil
}

// Pause suspends capture, typically right before a speech cue plays so the
// synthesized audio never lands in the child's recording.
func (r *Recorder) Pause() error {
	if r.state != StateRecording {
		return fmt.Errorf("%w: pause from %s", ErrInvalidState, r.state)
	}
	if err := r.stream.Pause(); err != nil {
		return err
	}
	r.state = StatePaused
	return nil
}

func (r *Recorder) Resume() error {
	if r.state != StatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidState, r.state)
	}
	if err := r.stream.Resume(); err != nil {
		return err
	}
	r.state = StateRecording
	return nil
}

// Stop finalizes capture and retains the resulting clip. Valid from both
// Recording and Paused.
func (r *Recorder) Stop() (Clip, error) {
	if r.state != StateRecording && r.state != StatePaused {
		return Clip{}, fmt.Errorf("%w: stop from %s", ErrInvalidState, r.state)
	}
	clip, err := r.stream.Stop()
	if err != nil {
		r.state = StateError
		r.err = err
		return Clip{}, err
	}
	r.clip = clip
	r.state = StateStopped
	return clip, nil
}

// Output returns the finished clip once the recorder has stopped.
func (r *Recorder) Output() (Clip, error) {
	if r.state != StateStopped {
		return Clip{}, ErrNoOutput
	}
	return r.clip, nil
}
