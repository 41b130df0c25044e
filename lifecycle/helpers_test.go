package lifecycle

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailFile(t *testing.T) {
	dir := t.TempDir()

	lines, err := TailFile(filepath.Join(dir, "missing.log"), 5)
	require.NoError(t, err)
	assert.Empty(t, lines)

	path := filepath.Join(dir, "short.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0644))
	lines, err = TailFile(path, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)

	lines, err = TailFile(path, 0)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestTailFile_LargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.log")

	var b strings.Builder
	for b.Len() < 2*tailWindow {
		b.WriteString("filler line that repeats until the window is exceeded\n")
	}
	b.WriteString("second to last\nlast\n")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))

	lines, err := TailFile(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"second to last", "last"}, lines)
}

func TestListArtifacts(t *testing.T) {
	dir := t.TempDir()

	artifacts, err := ListArtifacts(filepath.Join(dir, "missing"), "*.txt", 5)
	require.NoError(t, err)
	assert.Empty(t, artifacts)

	now := time.Now()
	for i, name := range []string{"a.txt", "b.txt", "c.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(name), 0644))
		mod := now.Add(-time.Duration(i) * time.Hour)
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.txt"), 0755))

	artifacts, err = ListArtifacts(dir, "*.txt", 0)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)
	assert.Equal(t, "a.txt", artifacts[0].Name)
	assert.Equal(t, "c.txt", artifacts[2].Name)

	_, err = ListArtifacts(dir, "[", 5)
	assert.Error(t, err)
}

// syncBuffer is a bytes.Buffer safe for the follower goroutine
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

func TestFollow_StreamsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.log")
	require.NoError(t, os.WriteFile(path, []byte("old line\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- Follow(ctx, path, &out) }()

	// Give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("new line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "new line")
	}, 2*time.Second, 20*time.Millisecond)
	assert.NotContains(t, out.String(), "old line")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}
