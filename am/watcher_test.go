package am

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcher_ReloadsOnChange(t *testing.T) {
	t.Setenv("DAWN_CONFIG", "")
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[job]\ntrigger_time = \"07:00\"\n"), 0644))

	SetConfigFile(path)
	t.Cleanup(func() { SetConfigFile("") })

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	cw.debouncePeriod = 50 * time.Millisecond

	reloaded := make(chan string, 4)
	cw.OnReload(func(cfg *Config) error {
		reloaded <- cfg.Job.TriggerTime
		return nil
	})
	cw.Start()
	defer cw.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[job]\ntrigger_time = \"06:15\"\n"), 0644))

	select {
	case got := <-reloaded:
		assert.Equal(t, "06:15", got)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload after config change")
	}
}

func TestConfigWatcher_IgnoresOwnWrite(t *testing.T) {
	t.Setenv("DAWN_CONFIG", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[job]\n"), 0644))

	SetConfigFile(path)
	t.Cleanup(func() { SetConfigFile("") })

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	cw.debouncePeriod = 50 * time.Millisecond

	reloaded := make(chan struct{}, 4)
	cw.OnReload(func(*Config) error {
		reloaded <- struct{}{}
		return nil
	})
	cw.Start()
	defer cw.Stop()

	// Unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))

	cw.MarkOwnWrite()
	require.NoError(t, os.WriteFile(path, []byte("[job]\nlabel = \"com.example.x\"\n"), 0644))

	select {
	case <-reloaded:
		t.Fatal("own write should not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestConfigWatcher_StopWithoutStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	assert.NoError(t, cw.Stop())
}
