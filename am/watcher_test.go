package am

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBackupFile(t *testing.T) {
	assert.True(t, isBackupFile("/x/am.toml.back1"))
	assert.True(t, isBackupFile("am_overrides.toml.back3"))
	assert.False(t, isBackupFile("/x/am.toml"))
	assert.False(t, isBackupFile("/x/notes.backup"))
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	home := isolate(t)
	userPath := filepath.Join(home, ".vacancy", "am.toml")
	writeFile(t, userPath, "[payment]\nprovider = \"fake\"\n[listing]\nabandon_after_hours = 10\n")

	w, err := NewConfigWatcher(userPath)
	require.NoError(t, err)
	defer w.Stop()

	reloaded := make(chan *Config, 4)
	w.OnReload(func(c *Config) error {
		reloaded <- c
		return nil
	})
	w.Start()

	writeFile(t, userPath, "[payment]\nprovider = \"fake\"\n[listing]\nabandon_after_hours = 20\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 20, cfg.Listing.AbandonAfterHours)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not reloaded")
	}
}

func TestConfigWatcher_NoDirectories(t *testing.T) {
	_, err := NewConfigWatcher(filepath.Join(t.TempDir(), "missing", "am.toml"))
	assert.Error(t, err)
}
