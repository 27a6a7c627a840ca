package httpapi

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emlhoward/chatterbox/internal/observability"
	"github.com/emlhoward/chatterbox/internal/protocol"
	"github.com/emlhoward/chatterbox/internal/store"
)

// watchHub fans session events out to websocket watchers (a parent's second
// device following a play-through). Delivery is best-effort: a saturated
// subscriber drops events rather than stalling the upload path.
type watchHub struct {
	mu      sync.Mutex
	subs    map[string]map[*watcher]struct{}
	metrics *observability.Metrics
}

type watcher struct {
	out chan any
}

func newWatchHub(metrics *observability.Metrics) *watchHub {
	return &watchHub{
		subs:    make(map[string]map[*watcher]struct{}),
		metrics: metrics,
	}
}

func (h *watchHub) subscribe(sessionID string) *watcher {
	w := &watcher{out: make(chan any, 64)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*watcher]struct{})
	}
	h.subs[sessionID][w] = struct{}{}
	h.metrics.ActiveWatchers.Inc()
	return w
}

func (h *watchHub) unsubscribe(sessionID string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sessionID]; ok {
		if _, ok := set[w]; ok {
			delete(set, w)
			h.metrics.ActiveWatchers.Dec()
		}
		if len(set) == 0 {
			delete(h.subs, sessionID)
		}
	}
}

func (h *watchHub) broadcast(sessionID string, msg any) {
	msgType := "unknown"
	switch msg.(type) {
	case protocol.Progress:
		msgType = string(protocol.TypeProgress)
	case protocol.Recording:
		msgType = string(protocol.TypeRecording)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.subs[sessionID] {
		select {
		case w.out <- msg:
			h.metrics.WatchEvents.WithLabelValues(msgType, "queued").Inc()
		default:
			h.metrics.WatchEvents.WithLabelValues(msgType, "drop_full").Inc()
		}
	}
}

func (s *Server) handleWatchSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if _, err := s.store.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.watchers.subscribe(sessionID)
	defer s.watchers.unsubscribe(sessionID, sub)

	done := make(chan struct{})

	// Watchers only listen; the read loop exists to notice disconnects and
	// answer pings.
	go func() {
		defer close(done)
		conn.SetReadLimit(4 << 10)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg := <-sub.out:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
