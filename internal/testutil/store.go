package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fitsaga/internal/store"
)

// OpenStore opens a SQLite store in t.TempDir() with sequential ids
// ("doc-0001", ...). The store is closed when the test ends.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"),
		store.WithIDGenerator(NewSequentialIDs("doc")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
