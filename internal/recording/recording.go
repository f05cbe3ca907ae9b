// Package recording implements the Recording sub-entity of session
// storage: a frame-sequence capture with JSON metadata and a frames/
// directory, started and finalized through the HTTP ingress.
package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

// Status is the lifecycle state of a Recording.
type Status string

const (
	StatusRecording Status = "recording"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Recording is the metadata persisted to metadata.json for one capture.
type Recording struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	DurationMs  uint64     `json:"duration_ms"`
	FPS         int        `json:"fps"`
	Quality     int        `json:"quality"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	FrameCount  int        `json:"frame_count"`
	Status      Status     `json:"status"`
}

// FrameInfo describes one stored frame.
type FrameInfo struct {
	Index      int   `json:"index"`
	OffsetMs   int64 `json:"offset_ms"`
	SizeBytes  int64 `json:"size_bytes"`
}

// Store is the on-disk handle for one recording's directory, rooted at
// <session>/recordings/<id>/.
type Store struct {
	baseDir string
	id      string
}

// Start creates a new recording directory under recordingsDir and
// returns its Store along with the freshly-created metadata.
func Start(recordingsDir, sessionID string, fps, quality int) (*Store, *Recording, error) {
	id := uuid.NewString()
	baseDir := filepath.Join(recordingsDir, id)
	if err := os.MkdirAll(filepath.Join(baseDir, "frames"), 0o755); err != nil {
		return nil, nil, chromeerr.Wrap(chromeerr.KindStorage, "creating recording directory", err)
	}

	rec := &Recording{
		ID:        id,
		SessionID: sessionID,
		StartedAt: time.Now().UTC(),
		FPS:       fps,
		Quality:   quality,
		Status:    StatusRecording,
	}

	st := &Store{baseDir: baseDir, id: id}
	if err := st.saveMetadata(rec); err != nil {
		return nil, nil, err
	}
	return st, rec, nil
}

// Open returns a Store for an existing recording directory. id comes
// straight off the wire (HTTP request body), so it is reduced to its
// base name before joining — a caller-supplied "../../etc" must not
// escape recordingsDir.
func Open(recordingsDir, id string) (*Store, error) {
	id = filepath.Base(id)
	baseDir := filepath.Join(recordingsDir, id)
	if _, err := os.Stat(baseDir); err != nil {
		return nil, chromeerr.Wrap(chromeerr.KindGeneral, "recording not found: "+id, err)
	}
	return &Store{baseDir: baseDir, id: id}, nil
}

// ID returns the recording's UUID.
func (s *Store) ID() string { return s.id }

// Dir returns the recording's on-disk directory, sanitized via Open/Start.
func (s *Store) Dir() string { return s.baseDir }

func (s *Store) framesDir() string { return filepath.Join(s.baseDir, "frames") }

func (s *Store) metadataPath() string { return filepath.Join(s.baseDir, "metadata.json") }

func (s *Store) saveMetadata(rec *Recording) error {
	f, err := os.Create(s.metadataPath())
	if err != nil {
		return chromeerr.Wrap(chromeerr.KindStorage, "creating metadata.json", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return chromeerr.Wrap(chromeerr.KindStorage, "writing metadata.json", err)
	}
	return nil
}

// Load reads this recording's metadata.json.
func (s *Store) Load() (*Recording, error) {
	data, err := os.ReadFile(s.metadataPath())
	if err != nil {
		return nil, chromeerr.Wrap(chromeerr.KindStorage, "reading metadata.json", err)
	}
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, chromeerr.Wrap(chromeerr.KindStorage, "parsing metadata.json", err)
	}
	return &rec, nil
}

// SaveFrame writes one JPEG frame at the given index. offsetMs is
// recorded alongside it as a sidecar file so ListFrames can report it
// without decoding JPEG metadata.
func (s *Store) SaveFrame(index int, offsetMs int64, data []byte) (string, error) {
	path := filepath.Join(s.framesDir(), fmt.Sprintf("%06d.jpg", index))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", chromeerr.Wrap(chromeerr.KindStorage, "writing frame", err)
	}
	offsetPath := filepath.Join(s.framesDir(), fmt.Sprintf("%06d.offset", index))
	_ = os.WriteFile(offsetPath, []byte(strconv.FormatInt(offsetMs, 10)), 0o644)
	return path, nil
}

// Finalize marks the recording complete and persists the final frame
// count, duration, and dimensions.
func (s *Store) Finalize(frameCount int, durationMs uint64, width, height int) (*Recording, error) {
	rec, err := s.Load()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec.EndedAt = &now
	rec.FrameCount = frameCount
	rec.DurationMs = durationMs
	rec.Width = width
	rec.Height = height
	rec.Status = StatusCompleted

	if err := s.saveMetadata(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListFrames lists the frames already stored for this recording, sorted
// by index.
func (s *Store) ListFrames() ([]FrameInfo, error) {
	entries, err := os.ReadDir(s.framesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, chromeerr.Wrap(chromeerr.KindStorage, "listing frames", err)
	}

	var frames []FrameInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".jpg")
		idx, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		var offsetMs int64
		if raw, err := os.ReadFile(filepath.Join(s.framesDir(), fmt.Sprintf("%06d.offset", idx))); err == nil {
			offsetMs, _ = strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		}
		frames = append(frames, FrameInfo{Index: idx, OffsetMs: offsetMs, SizeBytes: info.Size()})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Index < frames[j].Index })
	return frames, nil
}

// List returns every recording under recordingsDir, most recent first.
func List(recordingsDir string) ([]*Recording, error) {
	entries, err := os.ReadDir(recordingsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, chromeerr.Wrap(chromeerr.KindStorage, "listing recordings", err)
	}

	var recs []*Recording
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		st := &Store{baseDir: filepath.Join(recordingsDir, e.Name()), id: e.Name()}
		rec, err := st.Load()
		if err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].StartedAt.After(recs[j].StartedAt) })
	return recs, nil
}
