// Package httpapi implements the HTTP ingress (§4.9): a small REST
// surface the in-page extension posts telemetry to directly, bypassing
// the control socket. It shares the same Pool the IPC/RPC layer does,
// writing straight into the addressed session's storage.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
	"github.com/tomasbasham/chrome-daemon/internal/pool"
	"github.com/tomasbasham/chrome-daemon/internal/recording"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// maxBodyBytes is the 10 MiB request body cap (§4.9).
const maxBodyBytes = 10 << 20

// Server holds the HTTP ingress's dependencies: the pool, since every
// handler resolves session_id through it and writes directly into the
// session's storage, plus an optional off-box artefact uploader.
type Server struct {
	pool     *pool.Pool
	uploader storage.Uploader
	mux      *http.ServeMux
}

// New builds an httpapi.Server wired to p. uploader may be nil, in
// which case completed recordings are never mirrored off-box.
func New(p *pool.Pool, uploader storage.Uploader) *Server {
	s := &Server{pool: p, uploader: uploader, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/session", s.handleListSessions)
	s.mux.HandleFunc("POST /api/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/screenshots", s.handleScreenshot)
	s.mux.HandleFunc("POST /api/recording/start", s.handleRecordingStart)
	s.mux.HandleFunc("POST /api/recording/stop", s.handleRecordingStop)
	s.mux.HandleFunc("POST /api/recording/frame", s.handleRecordingFrame)
	s.mux.HandleFunc("POST /api/trace/start", s.handleTraceStart)
	s.mux.HandleFunc("POST /api/trace/stop", s.handleTraceStop)
	s.mux.HandleFunc("POST /api/trace/status", s.handleTraceStatus)

	return s
}

// ListenAndServe starts serving addr in its own goroutine and returns at
// once: the caller (daemon supervisor) reads the serve error from the
// returned channel and calls Shutdown via the returned *http.Server for
// a graceful stop.
func (s *Server) ListenAndServe(addr string) (*http.Server, <-chan error) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      withCORS(s.mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	return srv, errCh
}

// withCORS permits any origin/method/header, per §4.9 ("CORS permissive
// (any origin/method/header)") — the ingress is loopback-only but the
// extension's content-script origin is opaque to it.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, extra map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}

func statusFor(err error) int {
	kind, ok := chromeerr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case chromeerr.KindSessionNotFound:
		return http.StatusNotFound
	case chromeerr.KindInvalidParams, chromeerr.KindInvalidPort, chromeerr.KindConfig:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, nil)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		ID      string `json:"id"`
		CDPPort int    `json:"cdp_port"`
	}
	infos := s.pool.List()
	out := make([]entry, 0, len(infos))
	for _, info := range infos {
		out = append(out, entry{ID: info.ID, CDPPort: info.Port})
	}
	writeOK(w, map[string]any{"sessions": out})
}

type eventRequest struct {
	SessionID string          `json:"session_id"`
	Event     json.RawMessage `json:"event"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.pool.Get(req.SessionID)
	if !ok {
		writeErr(w, http.StatusNotFound, chromeerr.New(chromeerr.KindSessionNotFound, req.SessionID))
		return
	}
	set, err := sess.Collectors()
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if err := set.Extension.HandleEvent(req.Event); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, nil)
}

type screenshotRequest struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename,omitempty"`
	Data      string `json:"data"`
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	var req screenshotRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.pool.Get(req.SessionID)
	if !ok {
		writeErr(w, http.StatusNotFound, chromeerr.New(chromeerr.KindSessionNotFound, req.SessionID))
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeErr(w, http.StatusBadRequest, chromeerr.Wrap(chromeerr.KindInvalidParams, "decoding base64 data", err))
		return
	}
	dir, err := sess.Store().ScreenshotsDir()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	filename := req.Filename
	if filename == "" {
		filename = fmt.Sprintf("%d.png", time.Now().UnixMilli())
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		writeErr(w, http.StatusInternalServerError, chromeerr.Wrap(chromeerr.KindScreenshot, "writing screenshot", err))
		return
	}
	writeOK(w, map[string]any{"path": path})
}

type recordingStartRequest struct {
	SessionID string `json:"session_id"`
	FPS       int    `json:"fps"`
	Quality   int    `json:"quality"`
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	var req recordingStartRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.pool.Get(req.SessionID)
	if !ok {
		writeErr(w, http.StatusNotFound, chromeerr.New(chromeerr.KindSessionNotFound, req.SessionID))
		return
	}
	recDir, err := sess.Store().RecordingsDir()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	fps, quality := req.FPS, req.Quality
	if fps <= 0 {
		fps = 10
	}
	if quality <= 0 {
		quality = 80
	}
	_, rec, err := recording.Start(recDir, req.SessionID, fps, quality)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, map[string]any{"recording_id": rec.ID})
}

type recordingStopRequest struct {
	SessionID   string `json:"session_id"`
	RecordingID string `json:"recording_id"`
	FrameCount  int    `json:"frame_count"`
	DurationMs  uint64 `json:"duration_ms"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	var req recordingStopRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.pool.Get(req.SessionID)
	if !ok {
		writeErr(w, http.StatusNotFound, chromeerr.New(chromeerr.KindSessionNotFound, req.SessionID))
		return
	}
	recDir, err := sess.Store().RecordingsDir()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	store, err := recording.Open(recDir, req.RecordingID)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	rec, err := store.Finalize(req.FrameCount, req.DurationMs, req.Width, req.Height)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	if s.uploader != nil {
		recordingDir := store.Dir()
		go func() {
			prefix := filepath.ToSlash(filepath.Join(req.SessionID, "recordings", store.ID()))
			if err := storage.SyncDir(context.Background(), s.uploader, recordingDir, prefix); err != nil {
				slog.Warn("httpapi: recording sync failed", "recording_id", store.ID(), "error", err)
			}
		}()
	}

	writeOK(w, map[string]any{"recording": rec})
}

type recordingFrameRequest struct {
	SessionID   string `json:"session_id"`
	RecordingID string `json:"recording_id"`
	Index       int    `json:"index"`
	OffsetMs    int64  `json:"offset_ms"`
	Data        string `json:"data"`
}

func (s *Server) handleRecordingFrame(w http.ResponseWriter, r *http.Request) {
	var req recordingFrameRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.pool.Get(req.SessionID)
	if !ok {
		writeErr(w, http.StatusNotFound, chromeerr.New(chromeerr.KindSessionNotFound, req.SessionID))
		return
	}
	recDir, err := sess.Store().RecordingsDir()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	store, err := recording.Open(recDir, req.RecordingID)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeErr(w, http.StatusBadRequest, chromeerr.Wrap(chromeerr.KindInvalidParams, "decoding base64 data", err))
		return
	}
	path, err := store.SaveFrame(req.Index, req.OffsetMs, raw)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, map[string]any{"path": path})
}

type traceRequest struct {
	SessionID  string   `json:"session_id"`
	Categories []string `json:"categories,omitempty"`
}

func (s *Server) handleTraceStart(w http.ResponseWriter, r *http.Request) {
	var req traceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.pool.Get(req.SessionID)
	if !ok {
		writeErr(w, http.StatusNotFound, chromeerr.New(chromeerr.KindSessionNotFound, req.SessionID))
		return
	}
	set, err := sess.Collectors()
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	page, err := sess.GetOrCreatePage()
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	traceID, err := set.Trace.Start(page, req.Categories)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeOK(w, map[string]any{"trace_id": traceID})
}

func (s *Server) handleTraceStop(w http.ResponseWriter, r *http.Request) {
	var req traceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.pool.Get(req.SessionID)
	if !ok {
		writeErr(w, http.StatusNotFound, chromeerr.New(chromeerr.KindSessionNotFound, req.SessionID))
		return
	}
	set, err := sess.Collectors()
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	page, err := sess.GetOrCreatePage()
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	url, _ := page.URL()
	data, err := set.Trace.Stop(page, url)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeOK(w, map[string]any{"trace": data})
}

func (s *Server) handleTraceStatus(w http.ResponseWriter, r *http.Request) {
	var req traceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := s.pool.Get(req.SessionID)
	if !ok {
		writeErr(w, http.StatusNotFound, chromeerr.New(chromeerr.KindSessionNotFound, req.SessionID))
		return
	}
	set, err := sess.Collectors()
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeOK(w, map[string]any{"status": set.Trace.Status()})
}
