package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/emlhoward/chatterbox/internal/capture"
	"github.com/emlhoward/chatterbox/internal/cue"
	"github.com/emlhoward/chatterbox/internal/store"
)

type sinkCall struct {
	op           string
	currentIndex int
	isCompleted  bool
	clipBytes    int
}

type fakeSink struct {
	mu        sync.Mutex
	calls     []sinkCall
	createErr error
	updateErr error
	uploadErr error
}

func (f *fakeSink) CreateSession(_ context.Context, in store.SessionInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sinkCall{op: "create", currentIndex: in.CurrentIndex, isCompleted: in.IsCompleted})
	return f.createErr
}

func (f *fakeSink) UpdateProgress(_ context.Context, _ string, currentIndex int, isCompleted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sinkCall{op: "update", currentIndex: currentIndex, isCompleted: isCompleted})
	return f.updateErr
}

func (f *fakeSink) UploadRecording(_ context.Context, _ string, clip capture.Clip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sinkCall{op: "upload", clipBytes: len(clip.Data)})
	return f.uploadErr
}

func (f *fakeSink) UploadPartialRecording(_ context.Context, _ string, currentIndex int, clip capture.Clip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sinkCall{op: "upload_partial", currentIndex: currentIndex, clipBytes: len(clip.Data)})
	return f.uploadErr
}

func (f *fakeSink) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

func deckOf(n int) []Card {
	deck := make([]Card, n)
	words := DefaultDeck()
	for i := range deck {
		deck[i] = words[i%len(words)]
	}
	return deck
}

func newTestMachine(t *testing.T, n int, sink ProgressSink, notify func(Event)) (*Machine, *capture.MockDevice) {
	t.Helper()
	dev := capture.NewMockDevice()
	m, err := NewMachine("", deckOf(n), capture.NewRecorder(dev), cue.NewPlayer(cue.NewMockEngine()), sink, Options{
		StartRecording: true,
		Notify:         notify,
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	return m, dev
}

func TestAdvanceThroughDeckCompletes(t *testing.T) {
	const n = 5
	sink := &fakeSink{}
	var events []Event
	m, _ := newTestMachine(t, n, sink, func(e Event) { events = append(events, e) })
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < n; i++ {
		if err := m.Advance(ctx); err != nil {
			t.Fatalf("Advance() #%d error = %v", i+1, err)
		}
	}

	if m.Phase() != PhaseCompleted {
		t.Fatalf("phase = %s, want completed", m.Phase())
	}
	if m.CurrentIndex() != n-1 {
		t.Fatalf("index = %d, want %d", m.CurrentIndex(), n-1)
	}

	// The N-th advance must complete with a single full upload.
	var uploads, completions int
	for _, c := range sink.calls {
		if c.op == "upload" {
			uploads++
		}
		if c.op == "update" && c.isCompleted {
			completions++
			if c.currentIndex != n-1 {
				t.Fatalf("completion persisted index %d, want %d", c.currentIndex, n-1)
			}
		}
	}
	if uploads != 1 {
		t.Fatalf("uploads = %d, want exactly 1", uploads)
	}
	if completions != 1 {
		t.Fatalf("completion updates = %d, want exactly 1", completions)
	}

	var uploaded bool
	for _, e := range events {
		if e.Type == EventUploaded {
			uploaded = true
		}
	}
	if !uploaded {
		t.Fatalf("UI never saw an uploaded event: %+v", events)
	}

	// Terminal: further navigation is rejected.
	if err := m.Advance(ctx); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Advance() after completion error = %v, want ErrNotActive", err)
	}
}

func TestRetreatAtZeroIsNoOp(t *testing.T) {
	sink := &fakeSink{}
	m, _ := newTestMachine(t, 3, sink, nil)
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	before := len(sink.calls)

	if err := m.Retreat(ctx); err != nil {
		t.Fatalf("Retreat() error = %v", err)
	}
	if m.CurrentIndex() != 0 {
		t.Fatalf("index = %d, want 0", m.CurrentIndex())
	}
	if len(sink.calls) != before {
		t.Fatalf("retreat at index 0 issued a sink call: %v", sink.ops())
	}
}

func TestRetreatAfterAdvance(t *testing.T) {
	sink := &fakeSink{}
	m, _ := newTestMachine(t, 3, sink, nil)
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Advance(ctx); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if err := m.Retreat(ctx); err != nil {
		t.Fatalf("Retreat() error = %v", err)
	}
	if m.CurrentIndex() != 0 {
		t.Fatalf("index = %d, want 0", m.CurrentIndex())
	}

	last := sink.calls[len(sink.calls)-1]
	if last.op != "update" || last.currentIndex != 0 || last.isCompleted {
		t.Fatalf("last sink call = %+v, want update to index 0, not completed", last)
	}
}

func TestStopAndSaveUploadsPartial(t *testing.T) {
	const n = 5
	sink := &fakeSink{}
	m, _ := newTestMachine(t, n, sink, nil)
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Advance(ctx); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	if err := m.StopAndSave(ctx); err != nil {
		t.Fatalf("StopAndSave() error = %v", err)
	}
	if m.Phase() != PhasePartiallyStopped {
		t.Fatalf("phase = %s, want partially_stopped", m.Phase())
	}

	var partial *sinkCall
	for i := range sink.calls {
		c := &sink.calls[i]
		if c.op == "upload_partial" {
			partial = c
		}
		if c.op == "update" && c.isCompleted {
			t.Fatalf("partial stop must never mark the session completed")
		}
	}
	if partial == nil {
		t.Fatalf("no partial upload issued: %v", sink.ops())
	}
	if partial.currentIndex != 1 {
		t.Fatalf("partial upload tagged index %d, want 1", partial.currentIndex)
	}
	if partial.clipBytes == 0 {
		t.Fatalf("partial upload carried an empty clip")
	}
}

func TestPersistFailureDoesNotBlockNavigation(t *testing.T) {
	sink := &fakeSink{updateErr: errors.New("network down")}
	var persistErrs int
	m, _ := newTestMachine(t, 3, sink, func(e Event) {
		if e.Type == EventPersistError {
			persistErrs++
		}
	})
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Advance(ctx); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if m.CurrentIndex() != 1 {
		t.Fatalf("index = %d, want 1 despite persist failure", m.CurrentIndex())
	}
	if persistErrs == 0 {
		t.Fatalf("persist failure was not reported")
	}
}

func TestMicrophoneDenialSurfacesAndRetries(t *testing.T) {
	sink := &fakeSink{}
	var micErrs int
	dev := capture.NewMockDevice()
	dev.Deny = true
	m, err := NewMachine("", deckOf(3), capture.NewRecorder(dev), cue.NewPlayer(nil), sink, Options{
		StartRecording: true,
		Notify: func(e Event) {
			if e.Type == EventRecordingError {
				micErrs++
			}
		},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if micErrs != 1 {
		t.Fatalf("mic errors = %d, want 1", micErrs)
	}
	if m.Phase() != PhaseActive {
		t.Fatalf("phase = %s, denial must not block the play-through", m.Phase())
	}

	dev.Deny = false
	if err := m.RetryRecording(ctx); err != nil {
		t.Fatalf("RetryRecording() error = %v", err)
	}

	// With capture running again, finishing the deck uploads a clip.
	for i := 0; i < 3; i++ {
		if err := m.Advance(ctx); err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
	}
	found := false
	for _, c := range sink.calls {
		if c.op == "upload" && c.clipBytes > 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("no upload after recording retry: %v", sink.ops())
	}
}

func TestCompletionWithoutClipSkipsUpload(t *testing.T) {
	sink := &fakeSink{}
	dev := capture.NewMockDevice()
	dev.Deny = true
	m, err := NewMachine("", deckOf(2), capture.NewRecorder(dev), cue.NewPlayer(nil), sink, Options{
		StartRecording: true,
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := m.Advance(ctx); err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
	}
	for _, c := range sink.calls {
		if strings.HasPrefix(c.op, "upload") {
			t.Fatalf("upload attempted without a clip: %v", sink.ops())
		}
	}
}

func TestAnnouncePausesCaptureAroundCue(t *testing.T) {
	engine := cue.NewMockEngine(cue.Voice{Name: "Daniel", Lang: "en-GB"})
	dev := capture.NewMockDevice()
	rec := capture.NewRecorder(dev)
	sink := &fakeSink{}
	m, err := NewMachine("", deckOf(3), rec, cue.NewPlayer(engine), sink, Options{StartRecording: true})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if rec.State() != capture.StateRecording {
		t.Fatalf("recorder state = %s after cue, want recording (resumed)", rec.State())
	}
	if len(engine.Spoken()) != 1 || engine.Spoken()[0].Text != "apple" {
		t.Fatalf("spoken = %+v, want the first word", engine.Spoken())
	}

	if err := m.Advance(ctx); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	spoken := engine.Spoken()
	if len(spoken) != 2 || spoken[1].Text != "baby" {
		t.Fatalf("spoken = %+v, want apple then baby", spoken)
	}
}

func TestSwipeNavigationBounds(t *testing.T) {
	sink := &fakeSink{}
	m, _ := newTestMachine(t, 2, sink, nil)
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	d := m.SwipeDetector(75)

	// Left swipe advances.
	d.TouchStart(400, 300)
	d.TouchEnd(300, 310)
	if m.CurrentIndex() != 1 {
		t.Fatalf("index after left swipe = %d, want 1", m.CurrentIndex())
	}

	// On the last card a left swipe must not finish the deck.
	d.TouchStart(400, 300)
	d.TouchEnd(300, 310)
	if m.Phase() != PhaseActive {
		t.Fatalf("phase = %s, swipe must never complete the deck", m.Phase())
	}

	// Right swipe retreats, and is a no-op at index 0.
	d.TouchStart(300, 300)
	d.TouchEnd(400, 310)
	if m.CurrentIndex() != 0 {
		t.Fatalf("index after right swipe = %d, want 0", m.CurrentIndex())
	}
	d.TouchStart(300, 300)
	d.TouchEnd(400, 310)
	if m.CurrentIndex() != 0 {
		t.Fatalf("index after right swipe at 0 = %d, want 0", m.CurrentIndex())
	}
}

func TestNewSessionKeyShape(t *testing.T) {
	k1 := NewSessionKey()
	k2 := NewSessionKey()
	if !strings.HasPrefix(k1, "session_") {
		t.Fatalf("key %q missing prefix", k1)
	}
	if k1 == k2 {
		t.Fatalf("session keys should be unique: %q", k1)
	}
}
