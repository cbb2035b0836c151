package am

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var globalConfig *Config
var viperInstance *viper.Viper

// ConfigSources records which file set each dotted key during the last load.
// Keys absent from the map come from defaults or the environment.
var ConfigSources = map[string]SourceInfo{}

// Load reads the service configuration using Viper.
// The result is cached; call Reset to force a reload.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	config, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Defaults only; environment is not consulted for an explicit file
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return LoadWithViper(v)
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
	ConfigSources = map[string]SourceInfo{}
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("VACANCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)

	// Precedence (lowest to highest): system < user < overrides < project < env vars
	ConfigSources = map[string]SourceInfo{}
	for _, cf := range configFiles() {
		mergeConfigFile(v, cf, ConfigSources)
	}

	viperInstance = v
	return v
}

type configFile struct {
	path   string
	source ConfigSource
}

func configFiles() []configFile {
	files := []configFile{{path: "/etc/vacancy/am.toml", source: SourceSystem}}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, configFile{path: filepath.Join(home, ".vacancy", "am.toml"), source: SourceUser})
	}
	if overrides := GetOverridesPath(); overrides != "" {
		files = append(files, configFile{path: overrides, source: SourceOverride})
	}
	if project := findProjectConfig(); project != "" {
		files = append(files, configFile{path: project, source: SourceProject})
	}
	return files
}

// ConfigPaths lists candidate config files in merge order.
func ConfigPaths() []string {
	files := configFiles()
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths
}

func mergeConfigFile(v *viper.Viper, cf configFile, sources map[string]SourceInfo) {
	if _, err := os.Stat(cf.path); err != nil {
		return
	}
	tempViper := viper.New()
	tempViper.SetConfigFile(cf.path)
	tempViper.SetConfigType("toml")
	if err := tempViper.ReadInConfig(); err != nil {
		return
	}
	settings := tempViper.AllSettings()
	markSettingsFromSource(settings, "", cf.source, cf.path, sources)
	for key, value := range settings {
		mergeSetting(v, key, value)
	}
}

// mergeSetting sets leaves individually so a file that names one key of a
// section does not wipe the keys set for that section by earlier files.
func mergeSetting(v *viper.Viper, key string, value interface{}) {
	if nested, ok := value.(map[string]interface{}); ok {
		for k, val := range nested {
			mergeSetting(v, key+"."+k, val)
		}
		return
	}
	v.Set(key, value)
}

// markSettingsFromSource records source for every leaf of settings under prefix
func markSettingsFromSource(settings map[string]interface{}, prefix string, source ConfigSource, path string, sources map[string]SourceInfo) {
	for key, value := range settings {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			markSettingsFromSource(nested, fullKey, source, path, sources)
			continue
		}
		sources[fullKey] = SourceInfo{Source: source, Path: path}
	}
}

// findProjectConfig searches for am.toml by walking up from the working directory
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		amPath := filepath.Join(dir, "am.toml")
		if _, err := os.Stat(amPath); err == nil {
			return amPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
