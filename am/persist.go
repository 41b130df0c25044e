package am

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/logger"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	// Check if file exists before backing up
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	// Delete oldest backup if exists
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		logger.Warnw("Failed to delete old config backup", logger.FieldPath, back3, logger.FieldError, err)
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

// loadOrInitialize reads a TOML file into a generic map, or returns an empty map if absent
func loadOrInitialize(configPath string) (map[string]interface{}, error) {
	if err := os.MkdirAll(filepath.Dir(configPath), DefaultDirPermissions); err != nil {
		return nil, errors.Setupf(err, "create config directory %s", filepath.Dir(configPath))
	}

	config := make(map[string]interface{})
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", configPath)
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", configPath)
	}
	return config, nil
}

// save writes the config map with backup rotation
func save(config map[string]interface{}, configPath string) error {
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Mark this as our own write so a running scheduler does not warn about it
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", configPath)
	}

	Reset()
	return nil
}

// SetValue writes a single dotted key (e.g. "job.trigger_time") into configPath.
// The raw string is coerced to bool or int when it parses as one; payload_args
// is split on commas.
func SetValue(configPath, key, raw string) error {
	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "key %q must be section.field", key)
	}

	// Reject unknown keys before touching the file
	v := newDefaultsViper()
	if !v.IsSet(key) {
		return errors.WithHint(
			errors.Wrapf(errors.ErrInvalidConfig, "unknown key %q", key),
			"run 'dawn am show' to list keys",
		)
	}

	config, err := loadOrInitialize(configPath)
	if err != nil {
		return err
	}

	sectionMap, _ := config[section].(map[string]interface{})
	if sectionMap == nil {
		sectionMap = make(map[string]interface{})
	}
	sectionMap[field] = coerce(key, raw)
	config[section] = sectionMap

	// Validate the merged result before writing it
	candidate := newDefaultsViper()
	if err := candidate.MergeConfigMap(config); err != nil {
		return errors.Wrap(err, "failed to merge candidate config")
	}
	cfg, err := LoadWithViper(candidate)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return save(config, configPath)
}

// WriteDefaults writes the full default configuration to configPath.
// Refuses to overwrite an existing file unless force is set.
func WriteDefaults(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.WithHint(
			errors.Newf("%s already exists", configPath),
			"use --force to overwrite (a .back1 backup is kept)",
		)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), DefaultDirPermissions); err != nil {
		return errors.Setupf(err, "create config directory %s", filepath.Dir(configPath))
	}
	return save(newDefaultsViper().AllSettings(), configPath)
}

func coerce(key, raw string) interface{} {
	if key == "job.payload_args" {
		if raw == "" {
			return []string{}
		}
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}
