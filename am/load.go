package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/dawn/errors"
)

var globalConfig *Config
var viperInstance *viper.Viper

// explicitConfigFile replaces the file cascade when set (--config flag or DAWN_CONFIG)
var explicitConfigFile string

// SetConfigFile pins configuration to a single file, bypassing the cascade.
// Must be called before the first Load.
func SetConfigFile(path string) {
	explicitConfigFile = path
	Reset()
}

// ConfigFile returns the pinned configuration file, if any
func ConfigFile() string {
	if explicitConfigFile != "" {
		return explicitConfigFile
	}
	return os.Getenv("DAWN_CONFIG")
}

// Load reads the dawn configuration using Viper
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v, err := initViper()
	if err != nil {
		return nil, err
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads one file over the defaults, ignoring the cascade and
// the environment. Used to check a file before it is put in place.
func LoadFromFile(configPath string) (*Config, error) {
	configPath = ExpandHome(configPath)
	v := newDefaultsViper()

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	return LoadWithViper(v)
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// initViper initializes Viper with configuration sources and defaults
func initViper() (*viper.Viper, error) {
	if viperInstance != nil {
		return viperInstance, nil
	}

	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix("DAWN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindEnvVars(v)

	// Set defaults first
	SetDefaults(v)

	if file := ConfigFile(); file != "" {
		// A pinned file must exist: silently falling back to defaults would
		// install a job with the wrong payload.
		tempViper := viper.New()
		tempViper.SetConfigFile(ExpandHome(file))
		tempViper.SetConfigType("toml")
		if err := tempViper.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", file)
		}
		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			return nil, errors.Wrapf(err, "failed to merge config file %s", file)
		}
	} else {
		// Manually merge configs in precedence order: system -> user -> project -> env vars
		mergeConfigFiles(v)
	}

	viperInstance = v
	return v, nil
}

// Configuration scopes, lowest precedence first. ScopeExplicit replaces the others.
const (
	ScopeExplicit = "explicit"
	ScopeSystem   = "system"
	ScopeUser     = "user"
	ScopeProject  = "project"
)

// ConfigSource describes one file in the configuration cascade
type ConfigSource struct {
	Path   string `json:"path" yaml:"path"`
	Exists bool   `json:"exists" yaml:"exists"`
	Scope  string `json:"scope" yaml:"scope"`
}

// Sources lists the configuration files consulted, lowest precedence first
func Sources() []ConfigSource {
	if file := ConfigFile(); file != "" {
		return []ConfigSource{sourceFor(ExpandHome(file), ScopeExplicit)}
	}

	sources := []ConfigSource{
		sourceFor("/etc/dawn/am.toml", ScopeSystem),
		sourceFor(UserConfigPath(), ScopeUser),
	}
	if project := findProjectConfig(); project != "" {
		sources = append(sources, sourceFor(project, ScopeProject))
	}
	return sources
}

// ProjectSource returns the project am.toml in sources, if one was found
func ProjectSource(sources []ConfigSource) (ConfigSource, bool) {
	for _, source := range sources {
		if source.Scope == ScopeProject && source.Exists {
			return source, true
		}
	}
	return ConfigSource{}, false
}

func sourceFor(path, scope string) ConfigSource {
	_, err := os.Stat(path)
	return ConfigSource{Path: path, Exists: err == nil, Scope: scope}
}

// UserConfigPath returns ~/.dawn/am.toml
func UserConfigPath() string {
	return ExpandHome(filepath.Join("~", ".dawn", "am.toml"))
}

// findProjectConfig searches for am.toml by walking up the directory tree
// Returns the path to the first config file found, or empty string if none found
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		amPath := filepath.Join(dir, "am.toml")
		if _, err := os.Stat(amPath); err == nil && amPath != UserConfigPath() {
			return amPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root, stop searching
			break
		}
		dir = parent
	}

	return ""
}

// mergeConfigFiles manually merges configuration files in the correct precedence order
// Precedence (lowest to highest): system < user < project < env vars
func mergeConfigFiles(v *viper.Viper) {
	for _, source := range Sources() {
		if !source.Exists {
			continue
		}

		tempViper := viper.New()
		tempViper.SetConfigFile(source.Path)
		tempViper.SetConfigType("toml")

		if err := tempViper.ReadInConfig(); err == nil {
			// MergeConfigMap keeps nested keys from lower-precedence files
			v.MergeConfigMap(tempViper.AllSettings())
		}
	}
}

// Get returns a configuration value using dot notation
func Get(key string) (interface{}, bool) {
	v, err := initViper()
	if err != nil || !v.IsSet(key) {
		return nil, false
	}
	return v.Get(key), true
}
