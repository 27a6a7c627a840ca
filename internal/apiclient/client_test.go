package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/emlhoward/chatterbox/internal/capture"
	"github.com/emlhoward/chatterbox/internal/config"
	"github.com/emlhoward/chatterbox/internal/content"
	"github.com/emlhoward/chatterbox/internal/cue"
	"github.com/emlhoward/chatterbox/internal/game"
	"github.com/emlhoward/chatterbox/internal/httpapi"
	"github.com/emlhoward/chatterbox/internal/observability"
	"github.com/emlhoward/chatterbox/internal/store"
)

var testNamespaceSeq atomic.Int64

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{MaxUploadBytes: 10 << 20, AllowAnyOrigin: true}
	files, err := content.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}
	metrics := observability.NewMetrics(fmt.Sprintf("test_apiclient_%d", testNamespaceSeq.Add(1)))
	srv := httptest.NewServer(httpapi.New(cfg, store.NewInMemoryStore(), files, metrics).Router())
	t.Cleanup(srv.Close)
	return srv
}

func newPlaythrough(t *testing.T, client *Client, n int) *game.Machine {
	t.Helper()
	deck := game.DefaultDeck()[:n]
	m, err := game.NewMachine("", deck, capture.NewRecorder(capture.NewMockDevice()), cue.NewPlayer(nil), client, game.Options{
		StartRecording: true,
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	return m
}

func TestFullPlaythroughAgainstServer(t *testing.T) {
	srv := newServer(t)
	client := New(srv.URL, srv.Client())
	ctx := context.Background()

	m := newPlaythrough(t, client, 3)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sess, err := client.GetSession(ctx, m.SessionID())
	if err != nil {
		t.Fatalf("GetSession() after start error = %v", err)
	}
	if sess.TotalImages != 3 || sess.CurrentIndex != 0 || sess.IsCompleted {
		t.Fatalf("unexpected created session: %+v", sess)
	}

	// Two advances walk the deck; the third completes it.
	for want := 1; want <= 2; want++ {
		if err := m.Advance(ctx); err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
		sess, err = client.GetSession(ctx, m.SessionID())
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}
		if sess.CurrentIndex != want || sess.IsCompleted {
			t.Fatalf("after advance: %+v, want index %d", sess, want)
		}
	}
	if err := m.Advance(ctx); err != nil {
		t.Fatalf("final Advance() error = %v", err)
	}

	sess, err = client.GetSession(ctx, m.SessionID())
	if err != nil {
		t.Fatalf("GetSession() after completion error = %v", err)
	}
	if !sess.IsCompleted || sess.CurrentIndex != 2 {
		t.Fatalf("completed session = %+v, want index 2 completed", sess)
	}

	rec, err := client.GetRecording(ctx, m.SessionID())
	if err != nil {
		t.Fatalf("GetRecording() error = %v", err)
	}
	if rec.SessionID != m.SessionID() {
		t.Fatalf("recording session = %q, want %q", rec.SessionID, m.SessionID())
	}

	body, filename, err := client.DownloadRecording(ctx, m.SessionID())
	if err != nil {
		t.Fatalf("DownloadRecording() error = %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if filename != rec.Filename {
		t.Fatalf("download filename = %q, want %q", filename, rec.Filename)
	}
	if len(data) < 44 || string(data[:4]) != "RIFF" {
		t.Fatalf("downloaded clip is not the uploaded WAV (len %d)", len(data))
	}
}

func TestPartialStopAgainstServer(t *testing.T) {
	srv := newServer(t)
	client := New(srv.URL, srv.Client())
	ctx := context.Background()

	m := newPlaythrough(t, client, 5)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Advance(ctx); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if err := m.StopAndSave(ctx); err != nil {
		t.Fatalf("StopAndSave() error = %v", err)
	}

	sess, err := client.GetSession(ctx, m.SessionID())
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if sess.IsCompleted {
		t.Fatalf("partial stop completed the session: %+v", sess)
	}

	rec, err := client.GetRecording(ctx, m.SessionID())
	if err != nil {
		t.Fatalf("GetRecording() error = %v", err)
	}
	if !strings.Contains(rec.Filename, "_index_1_") {
		t.Fatalf("partial recording filename = %q, want index 1 tag", rec.Filename)
	}
}

func TestClientSurfacesNotFound(t *testing.T) {
	srv := newServer(t)
	client := New(srv.URL, srv.Client())

	if _, err := client.GetSession(context.Background(), "ghost"); err == nil {
		t.Fatalf("GetSession(ghost) should fail")
	}
	if _, _, err := client.DownloadRecording(context.Background(), "ghost"); err == nil {
		t.Fatalf("DownloadRecording(ghost) should fail")
	}
	if err := client.UpdateProgress(context.Background(), "ghost", 1, false); err == nil {
		t.Fatalf("UpdateProgress(ghost) should fail")
	}
}

var _ game.ProgressSink = (*Client)(nil)
