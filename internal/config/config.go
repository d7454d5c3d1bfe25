package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jgoulah/dailyusage/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Sources []models.Source `yaml:"sources,omitempty"` // Empty means DefaultSources()
	MQTT    MQTTConfig      `yaml:"mqtt,omitempty"`
}

// MQTTConfig holds settings for publishing daily usage rows to an MQTT broker
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`                 // e.g., "homeassistant.local:1883"
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // default "daily_usage"
	ClientID    string `yaml:"client_id,omitempty"`    // default "dailyusage"
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if len(cfg.Sources) > 0 {
		if err := ValidateSources(cfg.Sources); err != nil {
			return nil, fmt.Errorf("validating sources: %w", err)
		}
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetSources returns the configured sources, falling back to the built-in list
func (c *Config) GetSources() []models.Source {
	if len(c.Sources) == 0 {
		return DefaultSources()
	}
	out := make([]models.Source, len(c.Sources))
	copy(out, c.Sources)
	return out
}

// GetTopicPrefix returns the MQTT topic prefix with a default of "daily_usage"
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix == "" {
		return "daily_usage"
	}
	return m.TopicPrefix
}

// GetClientID returns the MQTT client id with a default of "dailyusage"
func (m MQTTConfig) GetClientID() string {
	if m.ClientID == "" {
		return "dailyusage"
	}
	return m.ClientID
}
