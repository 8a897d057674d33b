package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"timecapsule/pkg/client"
)

const envPrefix = "CAPSULECTL_"

// Config is the capsulectl profile.
type Config struct {
	BaseURL    string `yaml:"base_url" json:"base_url"`
	APIKey     string `yaml:"api_key" json:"api_key"`
	BackendKey string `yaml:"backend_key,omitempty" json:"backend_key,omitempty"`
	UserID     string `yaml:"user_id,omitempty" json:"user_id,omitempty"`
	Signature  string `yaml:"signature,omitempty" json:"signature,omitempty"`
}

// DefaultConfigPath is ~/.capsulectl.yaml, or a relative file when no home
// directory is known.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".capsulectl.yaml"
	}
	return filepath.Join(home, ".capsulectl.yaml")
}

// LoadFromFile reads a profile. A missing file yields an empty profile.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

func SaveToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from CAPSULECTL_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	set("BASE_URL", &c.BaseURL)
	set("API_KEY", &c.APIKey)
	set("BACKEND_KEY", &c.BackendKey)
	set("USER_ID", &c.UserID)
	set("SIGNATURE", &c.Signature)
}

// Session is the signed user session.
func (c *Config) Session() client.Session {
	return client.Session{BaseURL: c.BaseURL, APIKey: c.APIKey, UserID: c.UserID, Signature: c.Signature}
}

// BackendSession calls with the backend key, falling back to the api key.
func (c *Config) BackendSession() client.Session {
	key := c.BackendKey
	if key == "" {
		key = c.APIKey
	}
	return client.Session{BaseURL: c.BaseURL, APIKey: key}
}
