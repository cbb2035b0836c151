package am

import (
	"os"
	"path/filepath"
	"strings"

	burnt "github.com/BurntSushi/toml"
	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/logger"
)

// GetOverridesPath returns ~/.vacancy/am_overrides.toml, the file `am set` manages
func GetOverridesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vacancy", "am_overrides.toml")
}

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		logger.Warnw("Failed to delete old config backup", "path", back3, "error", err)
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}

// loadOverrides reads path, or returns an empty document if it does not exist
func loadOverrides(path string) (map[string]interface{}, error) {
	config := make(map[string]interface{})
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read overrides")
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return config, nil
}

func saveOverrides(config map[string]interface{}, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal overrides")
	}

	if w := GetGlobalWatcher(); w != nil {
		w.MarkOwnWrite()
	}
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write overrides")
	}
	return nil
}

// ParseValue interprets raw as a TOML value: numbers, booleans, arrays and
// quoted strings keep their type, anything else is taken as a bare string.
func ParseValue(raw string) interface{} {
	var doc struct {
		V interface{} `toml:"v"`
	}
	if _, err := burnt.Decode("v = "+raw, &doc); err == nil {
		return doc.V
	}
	return raw
}

// SetOverride writes key (dotted, e.g. "listing.abandon_after_hours") into the
// overrides file at path. Unknown keys are rejected so typos do not silently persist.
func SetOverride(path, key string, value interface{}) error {
	if !isKnownKey(key) {
		return errors.NewValidationError("unknown configuration key %q", key)
	}

	config, err := loadOverrides(path)
	if err != nil {
		return err
	}

	parts := strings.Split(key, ".")
	section := config
	for _, part := range parts[:len(parts)-1] {
		next, ok := section[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			section[part] = next
		}
		section = next
	}
	section[parts[len(parts)-1]] = value

	if err := saveOverrides(config, path); err != nil {
		return err
	}
	Reset()
	return nil
}

// UnsetOverride removes key from the overrides file. Removing an absent key is a no-op.
func UnsetOverride(path, key string) error {
	config, err := loadOverrides(path)
	if err != nil {
		return err
	}

	parts := strings.Split(key, ".")
	section := config
	for _, part := range parts[:len(parts)-1] {
		next, ok := section[part].(map[string]interface{})
		if !ok {
			return nil
		}
		section = next
	}
	if _, ok := section[parts[len(parts)-1]]; !ok {
		return nil
	}
	delete(section, parts[len(parts)-1])

	if err := saveOverrides(config, path); err != nil {
		return err
	}
	Reset()
	return nil
}

// isKnownKey reports whether key names a leaf the defaults or secrets define
func isKnownKey(key string) bool {
	if sensitiveKeys[key] {
		return true
	}
	switch key {
	case "server.port":
		return true
	}
	v := viperWithDefaults()
	if !v.IsSet(key) {
		return false
	}
	_, isSection := v.Get(key).(map[string]interface{})
	return !isSection
}
