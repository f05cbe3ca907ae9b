package storage

import (
	"os"
	"sync"
	"testing"
	"time"
)

func TestAppendAndReadAll(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, "sess-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.Append("network", "request", map[string]int{"i": i}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, err := s.ReadAll("network")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	for i, r := range records {
		if r.Type != "request" {
			t.Errorf("records[%d].Type = %q, want %q", i, r.Type, "request")
		}
	}
}

func TestReadAllEmptyCollection(t *testing.T) {
	root := t.TempDir()
	s, _ := New(root, "sess-1")

	records, err := s.ReadAll("console")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("len(records) = %d, want 0", len(records))
	}
}

func TestCount(t *testing.T) {
	root := t.TempDir()
	s, _ := New(root, "sess-1")

	s.Append("console", "log", "a")
	s.Append("console", "error", "b")
	s.Append("console", "error", "c")

	n, err := s.Count("console")
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v, want 3, nil", n, err)
	}

	byType, err := s.CountByType("console", "error")
	if err != nil || byType != 2 {
		t.Fatalf("CountByType = %d, %v, want 2, nil", byType, err)
	}
}

func TestClear(t *testing.T) {
	root := t.TempDir()
	s, _ := New(root, "sess-1")

	s.Append("dialog", "opened", "x")
	if err := s.Clear("dialog"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	records, _ := s.ReadAll("dialog")
	if len(records) != 0 {
		t.Fatalf("len(records) after Clear = %d, want 0", len(records))
	}
	// Clearing again (file already absent) must not error.
	if err := s.Clear("dialog"); err != nil {
		t.Fatalf("Clear on absent file: %v", err)
	}
}

func TestQueryRangeOrdersAndFilters(t *testing.T) {
	root := t.TempDir()
	s, _ := New(root, "sess-1")

	s.Append("trace", "a", 1)
	time.Sleep(2 * time.Millisecond)
	s.Append("trace", "b", 2)
	time.Sleep(2 * time.Millisecond)
	s.Append("trace", "a", 3)

	all, _ := s.ReadAll("trace")
	lo, hi := all[0].TimestampMs, all[len(all)-1].TimestampMs

	results, err := s.QueryRange("trace", lo, hi, "a")
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Type != "a" {
			t.Errorf("unexpected type %q in filtered results", r.Type)
		}
	}
}

func TestConcurrentAppends(t *testing.T) {
	root := t.TempDir()
	s, _ := New(root, "sess-1")

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := s.Append("network", "request", map[string]int{"w": w, "i": i}); err != nil {
					t.Errorf("Append: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	n, err := s.Count("network")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != writers*perWriter {
		t.Fatalf("Count = %d, want %d", n, writers*perWriter)
	}
}

func TestCleanupStale(t *testing.T) {
	root := t.TempDir()
	s, _ := New(root, "old-session")
	s.Append("network", "x", 1)

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(s.SessionDir(), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	removed, err := CleanupStale(root, time.Hour)
	if err != nil {
		t.Fatalf("CleanupStale: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	ids, err := ListSessions(root)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ListSessions after cleanup = %v, want empty", ids)
	}
}
