package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yaml"
	ConfigDirName  = "cumulus"

	// legacyConfigFileName is the JSON file earlier releases wrote.
	legacyConfigFileName = "config.json"
)

// knownKeys lists every key the config store accepts, in display order.
var knownKeys = []string{
	"app_id",
	"default_provider",
	"gcs.project",
	"gcs.bucket",
	"s3.region",
	"s3.bucket",
	"s3.endpoint",
	"s3.access_key_id",
	"s3.secret_access_key",
	"local.path",
	"local.bucket",
}

// KnownKeys returns the accepted configuration keys.
func KnownKeys() []string {
	return slices.Clone(knownKeys)
}

// ConfigManager owns the on-disk configuration file. Reads go through
// viper; writes are rendered with yaml.v3 and validated before they land
// on disk.
type ConfigManager struct {
	path string
	v    *viper.Viper
}

// Creates a manager bound to the default config location,
// ~/.config/cumulus/config.yaml, migrating a legacy config.json if one is
// found there.
func NewConfigManager() (*ConfigManager, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	return NewConfigManagerAt(path)
}

// Creates a manager bound to an explicit file path. A missing file behaves
// like an empty configuration.
func NewConfigManagerAt(path string) (*ConfigManager, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !os.IsNotExist(err) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return &ConfigManager{path: path, v: v}, nil
}

// Decodes the stored settings into a validated Config.
func (m *ConfigManager) LoadConfig() (*Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Returns the string value for a dot-notation key and whether it is set.
func (m *ConfigManager) GetValue(key string) (string, bool) {
	key = strings.ToLower(key)
	if !m.v.IsSet(key) {
		return "", false
	}
	return m.v.GetString(key), true
}

// Returns the full nested settings map.
func (m *ConfigManager) GetAllSettings() map[string]any {
	return m.v.AllSettings()
}

// Sets a dot-notation key to a value and persists the file. Unknown keys
// are rejected so typos never land on disk.
func (m *ConfigManager) SetValue(key, value string) error {
	key = strings.ToLower(key)
	if !slices.Contains(knownKeys, key) {
		return fmt.Errorf("unknown config key: %s. Known keys: %s", key, strings.Join(knownKeys, ", "))
	}

	settings := m.v.AllSettings()
	setNested(settings, strings.Split(key, "."), value)
	return m.persist(settings)
}

// Removes a dot-notation key and persists the file. Reports whether the
// key was present.
func (m *ConfigManager) DeleteValue(key string) (bool, error) {
	key = strings.ToLower(key)
	if !m.v.IsSet(key) {
		return false, nil
	}

	settings := m.v.AllSettings()
	if !deleteNested(settings, strings.Split(key, ".")) {
		return false, nil
	}

	if err := m.persist(settings); err != nil {
		return false, err
	}
	return true, nil
}

// persist validates the mutated settings, writes them as YAML, and swaps
// the in-memory view on success.
func (m *ConfigManager) persist(settings map[string]any) error {
	v := viper.New()
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("error applying configuration: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("error parsing configuration: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	m.v = v
	return nil
}

func resolveConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", ConfigDirName)
	configPath := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	}

	legacyPath := filepath.Join(configDir, legacyConfigFileName)
	if _, err := os.Stat(legacyPath); err == nil {
		if err := migrateLegacyConfig(legacyPath, configPath); err == nil {
			return configPath, nil
		}
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}

	return configPath, nil
}

// migrateLegacyConfig converts an old JSON config file into the YAML file.
func migrateLegacyConfig(sourcePath, destPath string) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("error reading legacy config file: %w", err)
	}

	settings := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("error parsing legacy config file: %w", err)
		}
	}

	converted, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(destPath, converted, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// setNested walks the nested settings map along the key path, creating
// intermediate maps as needed, and sets the leaf value.
func setNested(settings map[string]any, path []string, value string) {
	for _, part := range path[:len(path)-1] {
		next, ok := settings[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			settings[part] = next
		}
		settings = next
	}
	settings[path[len(path)-1]] = value
}

// deleteNested removes the leaf at the key path and prunes any maps left
// empty by the removal. Reports whether the leaf existed.
func deleteNested(settings map[string]any, path []string) bool {
	if len(path) == 1 {
		if _, ok := settings[path[0]]; !ok {
			return false
		}
		delete(settings, path[0])
		return true
	}

	next, ok := settings[path[0]].(map[string]any)
	if !ok {
		return false
	}
	if !deleteNested(next, path[1:]) {
		return false
	}
	if len(next) == 0 {
		delete(settings, path[0])
	}
	return true
}
