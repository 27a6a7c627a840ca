// Command rehearse plays through a deck against a running chatterbox server
// using the client core with a mock microphone, then verifies what the server
// stored. Useful as a smoke test and as a reference for embedding the client.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emlhoward/chatterbox/internal/apiclient"
	"github.com/emlhoward/chatterbox/internal/capture"
	"github.com/emlhoward/chatterbox/internal/cue"
	"github.com/emlhoward/chatterbox/internal/game"
	"github.com/emlhoward/chatterbox/internal/protocol"
)

type options struct {
	baseURL   string
	cards     int
	stopAt    int
	stepDelay time.Duration
	watch     bool
	verbose   bool
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rehearse: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "rehearse: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	flag.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "server base URL")
	flag.IntVar(&cfg.cards, "cards", len(game.DefaultDeck()), "number of deck cards to play")
	flag.IntVar(&cfg.stopAt, "stop-at", -1, "stop-and-save at this index instead of finishing (-1 to finish)")
	flag.DurationVar(&cfg.stepDelay, "step-delay", 200*time.Millisecond, "pause between navigation steps")
	flag.BoolVar(&cfg.watch, "watch", false, "follow the live-progress feed while playing")
	flag.BoolVar(&cfg.verbose, "v", false, "log every state machine event")
	flag.Parse()

	if cfg.cards <= 0 || cfg.cards > len(game.DefaultDeck()) {
		return options{}, fmt.Errorf("-cards must be in [1,%d]", len(game.DefaultDeck()))
	}
	if cfg.stopAt >= cfg.cards {
		return options{}, fmt.Errorf("-stop-at must be below -cards")
	}
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := apiclient.New(cfg.baseURL, &http.Client{Timeout: 30 * time.Second})
	deck := game.DefaultDeck()[:cfg.cards]

	notify := func(e game.Event) {
		if cfg.verbose || e.Err != nil {
			fmt.Printf("event %-16s index=%d err=%v\n", e.Type, e.Index, e.Err)
		}
	}

	m, err := game.NewMachine("", deck, capture.NewRecorder(capture.NewMockDevice()), cue.NewPlayer(nil), client, game.Options{
		StartRecording: true,
		Notify:         notify,
	})
	if err != nil {
		return err
	}

	fmt.Printf("session %s: %d cards\n", m.SessionID(), cfg.cards)

	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	watchDone := make(chan struct{})
	if cfg.watch {
		go watchFeed(ctx, cfg, m.SessionID(), watchDone)
	} else {
		close(watchDone)
	}

	for m.Phase() == game.PhaseActive {
		if cfg.stopAt >= 0 && m.CurrentIndex() == cfg.stopAt {
			if err := m.StopAndSave(ctx); err != nil {
				return fmt.Errorf("stop-and-save: %w", err)
			}
			break
		}
		time.Sleep(cfg.stepDelay)
		if err := m.Advance(ctx); err != nil {
			return fmt.Errorf("advance: %w", err)
		}
	}
	fmt.Printf("play-through finished: phase=%s index=%d\n", m.Phase(), m.CurrentIndex())

	sess, err := client.GetSession(ctx, m.SessionID())
	if err != nil {
		return fmt.Errorf("verify session: %w", err)
	}
	fmt.Printf("server session: index=%d completed=%v\n", sess.CurrentIndex, sess.IsCompleted)

	body, filename, err := client.DownloadRecording(ctx, m.SessionID())
	if err != nil {
		return fmt.Errorf("download recording: %w", err)
	}
	defer body.Close()
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return fmt.Errorf("read recording: %w", err)
	}
	fmt.Printf("recording %s: %d bytes\n", filename, n)

	cancel()
	<-watchDone
	return nil
}

// watchFeed follows the live-progress websocket until the context ends.
func watchFeed(ctx context.Context, cfg options, sessionID string, done chan<- struct{}) {
	defer close(done)

	wsURL := strings.Replace(cfg.baseURL, "http", "ws", 1) + "/api/sessions/" + sessionID + "/watch"
	conn, res, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: dial failed: %v\n", err)
		return
	}
	defer conn.Close()
	if res != nil && res.Body != nil {
		res.Body.Close()
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Parse(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
			continue
		}
		switch m := msg.(type) {
		case protocol.Progress:
			fmt.Printf("watch: progress index=%d/%d completed=%v\n", m.CurrentIndex, m.TotalImages, m.IsCompleted)
		case protocol.Recording:
			fmt.Printf("watch: recording saved %s partial=%v\n", m.Filename, m.IsPartial)
		}
	}
}
