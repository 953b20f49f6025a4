package watcher

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards concurrent writes from the watcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestIsArtifactPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/data/B00X/coverage.json", true},
		{"/data/B00X/chunks/chunk_pid_0_100/full-content.txt", true},
		{"/data/B00X/chunks/chunk_pid_0_100/audio/cartesia.mp3", true},
		{"/data/B00X/chunks/chunk_pid_0_100/audio/cartesia-alignment.json", true},
		{"/data/B00X/chunks/chunk_pid_0_100/audio/cartesia-benchmarks.json", true},
		{"/data/B00X/chunks/chunk_pid_0_100/pages/page_0001.png", true},
		{"/data/B00X/coverage.json.tmp", false},
		{"/data/.DS_Store", false},
		{"/data/B00X/notes.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isArtifactPath(tt.path))
		})
	}
}

func TestWatcher_LogsOutOfBandDeletion(t *testing.T) {
	root := t.TempDir()
	bookDir := filepath.Join(root, "B00X")
	require.NoError(t, os.MkdirAll(bookDir, 0o755))
	covPath := filepath.Join(bookDir, "coverage.json")
	require.NoError(t, os.WriteFile(covPath, []byte("{}"), 0o644))

	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))

	w, err := New(root, logger)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Close()

	require.NoError(t, os.Remove(covPath))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "artifact removed out of band")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()

	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))

	w, err := New(root, logger)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Close()

	// A book directory created after Start must still be observed.
	bookDir := filepath.Join(root, "B00Y")
	require.NoError(t, os.MkdirAll(bookDir, 0o755))
	time.Sleep(100 * time.Millisecond) // allow the watch to attach

	covPath := filepath.Join(bookDir, "coverage.json")
	require.NoError(t, os.WriteFile(covPath, []byte("{}"), 0o644))
	require.NoError(t, os.Remove(covPath))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "artifact removed out of band")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
