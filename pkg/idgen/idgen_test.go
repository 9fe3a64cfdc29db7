package idgen

import (
	"regexp"
	"sync"
	"testing"
)

// TestNewID tests the NewID function
func TestNewID(t *testing.T) {
	t.Run("returns 20 character ID", func(t *testing.T) {
		id := NewID()
		if len(id) != 20 {
			t.Errorf("NewID() returned ID with length %d, want 20", len(id))
		}
	})

	t.Run("generates URL-safe IDs", func(t *testing.T) {
		urlSafe := regexp.MustCompile(`^[a-z0-9]+$`)
		for i := 0; i < 100; i++ {
			if id := NewID(); !urlSafe.MatchString(id) {
				t.Errorf("NewID() returned non-URL-safe ID: %s", id)
			}
		}
	})

	t.Run("IDs are sortable by creation time", func(t *testing.T) {
		var prevID string
		for i := 0; i < 100; i++ {
			id := NewID()
			if prevID != "" && id <= prevID {
				t.Errorf("NewID() generated non-sortable IDs: %s <= %s", id, prevID)
			}
			prevID = id
		}
	})
}

// TestNewDocumentID_Concurrent tests uniqueness under concurrent generation
func TestNewDocumentID_Concurrent(t *testing.T) {
	const workers, perWorker = 10, 200

	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := NewDocumentID()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate document ID: %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("generated %d unique IDs, want %d", len(seen), workers*perWorker)
	}
}

// TestIsValid tests ID validation
func TestIsValid(t *testing.T) {
	if !IsValid(NewRequestID()) {
		t.Error("IsValid() should accept generated IDs")
	}
	for _, s := range []string{"", "not-an-id", "../../etc/passwd", "0000"} {
		if IsValid(s) {
			t.Errorf("IsValid(%q) = true, want false", s)
		}
	}
}
