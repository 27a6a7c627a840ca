// Package game holds the session state machine coordinating deck navigation,
// the audio recorder, speech cues and best-effort progress persistence.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emlhoward/chatterbox/internal/capture"
	"github.com/emlhoward/chatterbox/internal/cue"
	"github.com/emlhoward/chatterbox/internal/gesture"
	"github.com/emlhoward/chatterbox/internal/store"
)

// Phase models the play-through lifecycle. Completed and PartiallyStopped
// are terminal; a new play-through means a new Machine.
type Phase string

const (
	PhaseInitializing     Phase = "initializing"
	PhaseActive           Phase = "active"
	PhaseCompleted        Phase = "completed"
	PhasePartiallyStopped Phase = "partially_stopped"
)

var (
	ErrNotActive      = errors.New("play-through is not active")
	ErrEmptyDeck      = errors.New("deck must contain at least one card")
	ErrAlreadyStarted = errors.New("play-through already started")
)

// ProgressSink persists play-through state. Persistence is best-effort:
// the machine reports sink failures through its event channel but never lets
// them block or roll back a transition.
type ProgressSink interface {
	CreateSession(ctx context.Context, in store.SessionInput) error
	UpdateProgress(ctx context.Context, sessionID string, currentIndex int, isCompleted bool) error
	UploadRecording(ctx context.Context, sessionID string, clip capture.Clip) error
	UploadPartialRecording(ctx context.Context, sessionID string, currentIndex int, clip capture.Clip) error
}

// EventType identifies notifications for the UI layer.
type EventType string

const (
	// EventProgress fires on every navigation with the new index.
	EventProgress EventType = "progress"
	// EventCompleted fires when the deck is finished.
	EventCompleted EventType = "completed"
	// EventStopped fires on an explicit stop-and-save.
	EventStopped EventType = "stopped"
	// EventUploading / EventUploaded bracket the recording upload so the UI
	// can gate destructive actions while it is in flight.
	EventUploading EventType = "uploading"
	EventUploaded  EventType = "uploaded"
	// EventUploadFailed leaves the prior state consistent so a retry
	// remains possible.
	EventUploadFailed EventType = "upload_failed"
	// EventRecordingError is the one error users act on synchronously:
	// microphone denial or device absence.
	EventRecordingError EventType = "recording_error"
	// EventPersistError reports a failed best-effort progress write.
	EventPersistError EventType = "persist_error"
)

type Event struct {
	Type  EventType
	Index int
	Err   error
}

// Machine is the session state machine. It owns the authoritative navigation
// state during a play-through; the store becomes the system of record only
// through the sink's fire-and-forget writes. Drive it from a single
// goroutine: it is not safe for concurrent use.
type Machine struct {
	sessionID string
	deck      []Card
	phase     Phase
	index     int

	recorder *capture.Recorder
	cues     *cue.Player
	sink     ProgressSink
	notify   func(Event)

	startRecording bool
}

// Options configures a Machine.
type Options struct {
	// StartRecording requests microphone capture when the play-through
	// starts. Defaults to true via NewMachine.
	StartRecording bool
	// Notify receives UI events. Optional.
	Notify func(Event)
}

func NewMachine(sessionID string, deck []Card, recorder *capture.Recorder, cues *cue.Player, sink ProgressSink, opts Options) (*Machine, error) {
	if len(deck) == 0 {
		return nil, ErrEmptyDeck
	}
	if strings.TrimSpace(sessionID) == "" {
		sessionID = NewSessionKey()
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(Event) {}
	}
	return &Machine{
		sessionID:      sessionID,
		deck:           deck,
		phase:          PhaseInitializing,
		recorder:       recorder,
		cues:           cues,
		sink:           sink,
		notify:         notify,
		startRecording: opts.StartRecording,
	}, nil
}

// NewSessionKey generates the client-side correlation key: wall-clock time
// plus a random suffix, matching the wire format lookups key on.
func NewSessionKey() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}

func (m *Machine) SessionID() string { return m.sessionID }
func (m *Machine) Phase() Phase      { return m.phase }
func (m *Machine) CurrentIndex() int { return m.index }

func (m *Machine) CurrentCard() Card { return m.deck[m.index] }

// Start registers the session and begins recording. Session creation is
// best-effort: a failed create is reported but the play-through proceeds.
func (m *Machine) Start(ctx context.Context) error {
	if m.phase != PhaseInitializing {
		return ErrAlreadyStarted
	}

	err := m.sink.CreateSession(ctx, store.SessionInput{
		SessionID:    m.sessionID,
		TotalImages:  len(m.deck),
		CurrentIndex: 0,
		IsCompleted:  false,
	})
	if err != nil {
		m.notify(Event{Type: EventPersistError, Index: 0, Err: err})
	}

	m.phase = PhaseActive

	if m.startRecording {
		if err := m.recorder.Start(ctx); err != nil {
			m.notify(Event{Type: EventRecordingError, Index: 0, Err: err})
		}
	}

	m.announce(ctx)
	return nil
}

// RetryRecording re-attempts microphone acquisition after a denial.
func (m *Machine) RetryRecording(ctx context.Context) error {
	if m.phase != PhaseActive {
		return ErrNotActive
	}
	if err := m.recorder.Start(ctx); err != nil {
		m.notify(Event{Type: EventRecordingError, Index: m.index, Err: err})
		return err
	}
	return nil
}

// Advance moves to the next card, or finishes the play-through when the last
// card is showing. Forward navigation past the last image always completes,
// never no-ops.
func (m *Machine) Advance(ctx context.Context) error {
	if m.phase != PhaseActive {
		return ErrNotActive
	}

	if m.index < len(m.deck)-1 {
		m.index++
		m.persist(ctx, false)
		m.notify(Event{Type: EventProgress, Index: m.index})
		m.announce(ctx)
		return nil
	}

	// Last card: finish. Stop capture first so the clip exists before the
	// upload is attempted.
	clip, clipOK := m.stopRecorder()
	m.persist(ctx, true)
	m.phase = PhaseCompleted
	m.notify(Event{Type: EventCompleted, Index: m.index})

	if clipOK {
		m.upload(ctx, clip, -1)
	}
	return nil
}

// Retreat moves back one card. At the first card it is a pure no-op: no
// update request, no error.
func (m *Machine) Retreat(ctx context.Context) error {
	if m.phase != PhaseActive {
		return ErrNotActive
	}
	if m.index == 0 {
		return nil
	}
	m.index--
	m.persist(ctx, false)
	m.notify(Event{Type: EventProgress, Index: m.index})
	m.announce(ctx)
	return nil
}

// StopAndSave ends the play-through early, uploading whatever audio was
// captured tagged with the index reached. The session record is never marked
// completed by a partial stop.
func (m *Machine) StopAndSave(ctx context.Context) error {
	if m.phase != PhaseActive {
		return ErrNotActive
	}

	clip, clipOK := m.stopRecorder()
	m.phase = PhasePartiallyStopped
	m.notify(Event{Type: EventStopped, Index: m.index})

	if clipOK {
		m.upload(ctx, clip, m.index)
	}
	return nil
}

// SwipeDetector wires touch navigation to the machine. A left swipe advances
// only while more cards remain, so a gesture can never finish the deck; the
// final card is completed through the explicit control.
func (m *Machine) SwipeDetector(threshold float64) *gesture.SwipeDetector {
	return gesture.NewSwipeDetector(threshold,
		func() {
			if m.phase == PhaseActive && m.index < len(m.deck)-1 {
				_ = m.Advance(context.Background())
			}
		},
		func() {
			if m.phase == PhaseActive && m.index > 0 {
				_ = m.Retreat(context.Background())
			}
		},
	)
}

// announce pronounces the current word, pausing capture around the cue so the
// synthesized audio stays out of the recording.
func (m *Machine) announce(ctx context.Context) {
	if m.cues == nil {
		return
	}
	word := m.deck[m.index].Word

	if m.recorder != nil && m.recorder.State() == capture.StateRecording {
		if err := m.recorder.Pause(); err == nil {
			m.cues.Speak(ctx, word)
			if err := m.recorder.Resume(); err != nil {
				m.notify(Event{Type: EventRecordingError, Index: m.index, Err: err})
			}
			return
		}
	}
	m.cues.Speak(ctx, word)
}

func (m *Machine) persist(ctx context.Context, completed bool) {
	err := m.sink.UpdateProgress(ctx, m.sessionID, m.index, completed)
	if err != nil {
		m.notify(Event{Type: EventPersistError, Index: m.index, Err: err})
	}
}

// stopRecorder finalizes capture if it ever started. A recorder that never
// got past a denied permission has no clip, and the upload is skipped.
func (m *Machine) stopRecorder() (capture.Clip, bool) {
	if m.recorder == nil {
		return capture.Clip{}, false
	}
	switch m.recorder.State() {
	case capture.StateRecording, capture.StatePaused:
		clip, err := m.recorder.Stop()
		if err != nil {
			m.notify(Event{Type: EventRecordingError, Index: m.index, Err: err})
			return capture.Clip{}, false
		}
		return clip, true
	default:
		return capture.Clip{}, false
	}
}

// upload sends the finished clip; partialIndex < 0 means a full upload.
func (m *Machine) upload(ctx context.Context, clip capture.Clip, partialIndex int) {
	m.notify(Event{Type: EventUploading, Index: m.index})

	var err error
	if partialIndex >= 0 {
		err = m.sink.UploadPartialRecording(ctx, m.sessionID, partialIndex, clip)
	} else {
		err = m.sink.UploadRecording(ctx, m.sessionID, clip)
	}
	if err != nil {
		m.notify(Event{Type: EventUploadFailed, Index: m.index, Err: err})
		return
	}
	m.notify(Event{Type: EventUploaded, Index: m.index})
}
