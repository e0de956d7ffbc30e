package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

// counterIDs generates "doc-0001", "doc-0002", ... for stable test ids.
type counterIDs struct {
	mu sync.Mutex
	n  int
}

func (g *counterIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("doc-%04d", g.n)
}

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(&counterIDs{}))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type testExercise struct {
	Name     string `json:"name"`
	HitCount int    `json:"hitCount"`
	Category string `json:"category,omitempty"`
}
