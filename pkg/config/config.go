package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort          = 8080
	defaultDBPath        = "./.database"
	defaultMaxUpload     = 50 * 1024 * 1024 // 50 MiB
	defaultReadTimeout   = 30 * time.Second
	defaultWriteTimeout  = 30 * time.Second
	defaultRateRPS       = 50
	defaultRateBurst     = 100
	defaultStorageDriver = "local"
	defaultMediaBaseURL  = "/media"
	// Unlock sweeper defaults
	defaultUnlockLockTTL = 300 * time.Second
	defaultUnlockCron    = "* * * * *" // every minute
	defaultSlowThreshold = 500 * time.Millisecond
)

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the global runtime config.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// NewRuntime builds the key sets from the security section. Backend keys
// double as signing keys.
func NewRuntime(c *Config) *RuntimeConfig {
	set := func(list []string) map[string]struct{} {
		out := make(map[string]struct{}, len(list))
		for _, k := range list {
			if k != "" {
				out[k] = struct{}{}
			}
		}
		return out
	}
	rc := &RuntimeConfig{
		BackendKeys:  set(c.Security.APIKeys.Backend),
		FrontendKeys: set(c.Security.APIKeys.Frontend),
		AdminKeys:    set(c.Security.APIKeys.Admin),
	}
	rc.SigningKeys = set(c.Security.APIKeys.Backend)
	return rc
}

func copyKeys(pick func(*RuntimeConfig) map[string]struct{}) map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := make(map[string]struct{})
	if runtimeCfg == nil {
		return out
	}
	for k := range pick(runtimeCfg) {
		out[k] = struct{}{}
	}
	return out
}

// GetBackendKeys returns a copy of backend API keys.
func GetBackendKeys() map[string]struct{} {
	return copyKeys(func(rc *RuntimeConfig) map[string]struct{} { return rc.BackendKeys })
}

// GetSigningKeys returns a copy of signing keys.
func GetSigningKeys() map[string]struct{} {
	return copyKeys(func(rc *RuntimeConfig) map[string]struct{} { return rc.SigningKeys })
}

// Addr returns the HTTP server address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	port := c.Server.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// MediaDir is where the local storage driver keeps files.
func (c *Config) MediaDir() string {
	if c.Storage.Local.Dir != "" {
		return c.Storage.Local.Dir
	}
	return filepath.Join(c.Server.DBPath, "media")
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset value.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = defaultDBPath
	}
	if c.Server.MaxUploadSize.Int64() == 0 {
		c.Server.MaxUploadSize = SizeBytes(defaultMaxUpload)
	}
	if c.Server.ReadTimeout.Duration() == 0 {
		c.Server.ReadTimeout = Duration(defaultReadTimeout)
	}
	if c.Server.WriteTimeout.Duration() == 0 {
		c.Server.WriteTimeout = Duration(defaultWriteTimeout)
	}

	// Security defaults: rate limiting
	if c.Security.RateLimit.RPS <= 0 {
		c.Security.RateLimit.RPS = defaultRateRPS
	}
	if c.Security.RateLimit.Burst <= 0 {
		c.Security.RateLimit.Burst = defaultRateBurst
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = defaultStorageDriver
	}
	if c.Storage.Local.BaseURL == "" {
		c.Storage.Local.BaseURL = defaultMediaBaseURL
	}

	if c.Unlock.LockTTL.Duration() == 0 {
		c.Unlock.LockTTL = Duration(defaultUnlockLockTTL)
	}
	if c.Unlock.Cron == "" {
		c.Unlock.Cron = defaultUnlockCron
	}
	if c.Telemetry.SlowThreshold.Duration() == 0 {
		c.Telemetry.SlowThreshold = Duration(defaultSlowThreshold)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("TIMECAPSULE_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
