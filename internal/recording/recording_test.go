package recording

import (
	"path/filepath"
	"testing"
)

func TestStartAndFinalize(t *testing.T) {
	dir := t.TempDir()

	st, rec, err := Start(dir, "sess-1", 10, 80)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if rec.Status != StatusRecording {
		t.Fatalf("Status = %q, want recording", rec.Status)
	}

	if _, err := st.SaveFrame(0, 0, []byte{0xFF, 0xD8}); err != nil {
		t.Fatalf("SaveFrame: %v", err)
	}
	if _, err := st.SaveFrame(1, 100, []byte{0xFF, 0xD8}); err != nil {
		t.Fatalf("SaveFrame: %v", err)
	}

	final, err := st.Finalize(2, 200, 1280, 720)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if final.Status != StatusCompleted || final.FrameCount != 2 {
		t.Fatalf("unexpected finalized recording: %+v", final)
	}

	frames, err := st.ListFrames()
	if err != nil {
		t.Fatalf("ListFrames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2", len(frames))
	}
}

func TestOpenAndList(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Start(dir, "sess-1", 5, 70)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	recs, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d, want 1", len(recs))
	}

	st, err := Open(dir, recs[0].ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if filepath.Base(st.baseDir) != recs[0].ID {
		t.Fatalf("Open resolved wrong directory")
	}
}

func TestOpenMissingRecording(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir, "does-not-exist"); err == nil {
		t.Fatal("expected an error opening a missing recording")
	}
}
