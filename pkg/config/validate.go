package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/adhocore/gronx"
)

// set defaults, fail fast on critical errors
func ValidateConfig(eff EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("effective config is nil")
	}
	// DB path must be present
	if p := eff.DBPath; p == "" {
		return fmt.Errorf("database path is empty: set --db flag, TIMECAPSULE_DB_PATH env, or server.db_path in config")
	}

	// TLS cert/key presence check if one is set
	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	switch strings.ToLower(cfg.Storage.Driver) {
	case "local":
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.driver is s3 but storage.s3.bucket is empty")
		}
	default:
		return fmt.Errorf("invalid storage.driver %q: expected local or s3", cfg.Storage.Driver)
	}

	for _, t := range cfg.Media.AllowedTypes {
		if !strings.Contains(t, "/") {
			return fmt.Errorf("invalid media.allowed_types entry %q: expected type/subtype or type/*", t)
		}
	}

	// Unlock validation: if the sweeper is enabled, validate cron syntax.
	if cfg.Unlock.Enabled {
		gron := gronx.New()
		if !gron.IsValid(cfg.Unlock.Cron) {
			return fmt.Errorf("invalid unlock.cron: not a valid cron expression")
		}
	}
	return nil
}
