// Package httpapi exposes the session and recording stores over HTTP and
// pushes live progress to websocket watchers.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/emlhoward/chatterbox/internal/config"
	"github.com/emlhoward/chatterbox/internal/content"
	"github.com/emlhoward/chatterbox/internal/observability"
	"github.com/emlhoward/chatterbox/internal/protocol"
	"github.com/emlhoward/chatterbox/internal/store"
)

type Server struct {
	cfg      config.Config
	store    store.Store
	content  *content.DiskStore
	metrics  *observability.Metrics
	watchers *watchHub
	upgrader websocket.Upgrader
}

func New(cfg config.Config, st store.Store, files *content.DiskStore, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		content:  files,
		metrics:  metrics,
		watchers: newWatchHub(metrics),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up; a foreign page must
				// not be able to watch a child's session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/sessions", s.handleCreateSession)
	r.Get("/api/sessions/{sessionId}", s.handleGetSession)
	r.Patch("/api/sessions/{sessionId}", s.handleUpdateSession)
	r.Get("/api/sessions/{sessionId}/watch", s.handleWatchSession)

	r.Post("/api/recordings", s.handleUploadRecording)
	r.Post("/api/recordings/partial", s.handleUploadPartialRecording)
	r.Get("/api/recordings/{sessionId}", s.handleGetRecording)
	r.Get("/api/recordings/{sessionId}/download", s.handleDownloadRecording)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in store.SessionInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validateSessionInput(in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_session", err.Error())
		return
	}

	sess, err := s.store.CreateSession(r.Context(), in)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateSession) {
			respondError(w, http.StatusConflict, "session_exists", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	s.metrics.SessionEvents.WithLabelValues("created").Inc()
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	var upd store.SessionUpdate
	if err := decodeJSON(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess, err := s.store.UpdateSession(r.Context(), sessionID, upd)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	s.metrics.SessionEvents.WithLabelValues("updated").Inc()
	if sess.IsCompleted {
		s.metrics.SessionEvents.WithLabelValues("completed").Inc()
	}

	s.watchers.broadcast(sessionID, protocol.Progress{
		Type:         protocol.TypeProgress,
		SessionID:    sessionID,
		CurrentIndex: sess.CurrentIndex,
		TotalImages:  sess.TotalImages,
		IsCompleted:  sess.IsCompleted,
	})
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUploadRecording(w http.ResponseWriter, r *http.Request) {
	upload, status, code, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, status, code, err.Error())
		return
	}
	defer upload.file.Close()

	filename, path, err := s.content.SaveFull(upload.sessionID, upload.file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "content_write_failed", err.Error())
		return
	}

	rec, err := s.store.CreateRecording(r.Context(), store.RecordingInput{
		SessionID: upload.sessionID,
		Filename:  filename,
		Filepath:  path,
		Duration:  upload.duration,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	s.metrics.RecordingUploads.WithLabelValues("full").Inc()
	s.metrics.UploadBytes.Observe(float64(upload.size))
	s.watchers.broadcast(upload.sessionID, protocol.Recording{
		Type:      protocol.TypeRecording,
		SessionID: upload.sessionID,
		Filename:  filename,
	})
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUploadPartialRecording(w http.ResponseWriter, r *http.Request) {
	upload, status, code, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, status, code, err.Error())
		return
	}
	defer upload.file.Close()

	currentIndex, _ := strconv.Atoi(r.FormValue("currentIndex"))

	filename, path, err := s.content.SavePartial(upload.sessionID, currentIndex, upload.file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "content_write_failed", err.Error())
		return
	}

	rec, err := s.store.CreateRecording(r.Context(), store.RecordingInput{
		SessionID: upload.sessionID,
		Filename:  filename,
		Filepath:  path,
		Duration:  upload.duration,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	s.metrics.RecordingUploads.WithLabelValues("partial").Inc()
	s.metrics.UploadBytes.Observe(float64(upload.size))
	s.watchers.broadcast(upload.sessionID, protocol.Recording{
		Type:      protocol.TypeRecording,
		SessionID: upload.sessionID,
		Filename:  filename,
		IsPartial: true,
	})

	respondJSON(w, http.StatusCreated, partialRecordingResponse{
		Recording:    rec,
		CurrentIndex: currentIndex,
		IsPartial:    true,
	})
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRecording(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "recording_not_found", "recording not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDownloadRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRecording(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "recording_not_found", "recording not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	f, err := s.content.Open(rec.Filepath)
	if err != nil {
		respondError(w, http.StatusNotFound, "recording_file_missing", "recording file not found")
		return
	}
	defer f.Close()

	s.metrics.RecordingDownloads.Inc()
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Filename))
	_, _ = io.Copy(w, f)
}

type partialRecordingResponse struct {
	store.Recording
	CurrentIndex int  `json:"currentIndex"`
	IsPartial    bool `json:"isPartial"`
}

type uploadRequest struct {
	sessionID string
	duration  *int
	file      io.ReadCloser
	size      int64
}

// readUpload parses a multipart recording upload, enforcing the configured
// size ceiling. On error it returns the HTTP status and code to respond with.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (uploadRequest, int, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		var maxErr *http.MaxBytesError
		// The multipart reader can wrap the size error in a plain string.
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return uploadRequest{}, http.StatusRequestEntityTooLarge, "upload_too_large",
				fmt.Errorf("upload exceeds %d bytes", s.cfg.MaxUploadBytes)
		}
		return uploadRequest{}, http.StatusBadRequest, "invalid_multipart", err
	}

	sessionID := strings.TrimSpace(r.FormValue("sessionId"))
	if sessionID == "" {
		return uploadRequest{}, http.StatusBadRequest, "missing_session_id", errors.New("field sessionId is required")
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return uploadRequest{}, http.StatusBadRequest, "missing_audio", errors.New("no audio file provided")
	}

	var duration *int
	if v := strings.TrimSpace(r.FormValue("duration")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			duration = &n
		}
	}

	return uploadRequest{sessionID: sessionID, duration: duration, file: file, size: header.Size}, 0, "", nil
}

func validateSessionInput(in store.SessionInput) error {
	if strings.TrimSpace(in.SessionID) == "" {
		return errors.New("sessionId is required")
	}
	if in.TotalImages <= 0 {
		return errors.New("totalImages must be positive")
	}
	if in.CurrentIndex < 0 || in.CurrentIndex >= in.TotalImages {
		return fmt.Errorf("currentIndex %d out of range [0,%d)", in.CurrentIndex, in.TotalImages)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
