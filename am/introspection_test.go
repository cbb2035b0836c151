package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at empty temp dirs so no real config leaks in
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	Reset()
	t.Cleanup(Reset)
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), DefaultDirPermissions))
	require.NoError(t, os.WriteFile(path, []byte(content), DefaultFilePermissions))
}

func settingsByKey(ci *ConfigIntrospection) map[string]SettingInfo {
	m := make(map[string]SettingInfo, len(ci.Settings))
	for _, s := range ci.Settings {
		m[s.Key] = s
	}
	return m
}

func TestMarkSettingsFromSource(t *testing.T) {
	settings := map[string]interface{}{
		"database": map[string]interface{}{"path": "jobs.db"},
		"admission": map[string]interface{}{
			"redis": map[string]interface{}{"addr": "cache:6379"},
		},
		"flat": 1,
	}

	sources := make(map[string]SourceInfo)
	markSettingsFromSource(settings, "", SourceUser, "/home/u/.vacancy/am.toml", sources)

	assert.Len(t, sources, 3)
	assert.Equal(t, SourceUser, sources["database.path"].Source)
	assert.Equal(t, "/home/u/.vacancy/am.toml", sources["admission.redis.addr"].Path)
	assert.Contains(t, sources, "flat")
}

func TestFlattenSettingsWithSources(t *testing.T) {
	t.Setenv("VACANCY_PULSE_BATCH_SIZE", "7")

	settings := map[string]interface{}{
		"pulse": map[string]interface{}{
			"batch_size":    7,
			"lease_seconds": 60,
		},
		"payment": map[string]interface{}{
			"secret_key": "sk_live_abc",
			"currency":   "usd",
		},
	}
	sources := map[string]SourceInfo{
		"pulse.lease_seconds": {Source: SourceProject, Path: "/p/am.toml"},
	}

	ci := &ConfigIntrospection{}
	flattenSettingsWithSources(settings, "", ci, sources)
	byKey := settingsByKey(ci)

	assert.Equal(t, SourceEnvironment, byKey["pulse.batch_size"].Source)
	assert.Equal(t, "VACANCY_PULSE_BATCH_SIZE", byKey["pulse.batch_size"].SourcePath)
	assert.Equal(t, SourceProject, byKey["pulse.lease_seconds"].Source)
	assert.Equal(t, SourceDefault, byKey["payment.currency"].Source)
	assert.Equal(t, "********", byKey["payment.secret_key"].Value)

	keys := make([]string, len(ci.Settings))
	for i, s := range ci.Settings {
		keys[i] = s.Key
	}
	assert.IsIncreasing(t, keys)
}

func TestGetConfigIntrospection_Precedence(t *testing.T) {
	home := isolate(t)
	userPath := filepath.Join(home, ".vacancy", "am.toml")
	writeFile(t, userPath, `
[database]
path = "user.db"

[listing]
abandon_after_hours = 24
sweep_interval_minutes = 15
`)
	writeFile(t, "am.toml", `
[listing]
abandon_after_hours = 48
`)
	t.Setenv("VACANCY_PULSE_BATCH_SIZE", "25")

	ci, err := GetConfigIntrospection()
	require.NoError(t, err)
	byKey := settingsByKey(ci)

	assert.Equal(t, SourceUser, byKey["database.path"].Source)
	assert.Equal(t, userPath, byKey["database.path"].SourcePath)
	assert.Equal(t, SourceProject, byKey["listing.abandon_after_hours"].Source)
	// A project file naming one listing key keeps the user's other listing keys
	assert.Equal(t, SourceUser, byKey["listing.sweep_interval_minutes"].Source)
	assert.Equal(t, SourceEnvironment, byKey["pulse.batch_size"].Source)
	assert.Equal(t, SourceDefault, byKey["payment.currency"].Source)
	assert.Len(t, ci.ConfigFiles, 2)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 48, cfg.Listing.AbandonAfterHours)
	assert.Equal(t, 15, cfg.Listing.SweepIntervalMinutes)
	assert.Equal(t, "user.db", cfg.Database.Path)

	summary := ci.Summary()
	assert.Equal(t, 1, summary[SourceEnvironment])
	assert.Positive(t, summary[SourceDefault])
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "VACANCY_ADMISSION_REDIS_ADDR", EnvKey("admission.redis.addr"))
}
