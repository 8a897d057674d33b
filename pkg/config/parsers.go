package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "TIMECAPSULE_"

// holds parsed command-line flag values and which were set
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// holds the results of applying environment overrides
type EnvResult struct {
	Used []string
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // e.g. "defaults", "config+env", "config+env+flags"
}

// ParseConfigFlags parses the process flags.
func ParseConfigFlags() Flags {
	f, _ := ParseFlagSet(flag.CommandLine, os.Args[1:])
	return f
}

// ParseFlagSet registers -addr, -db and -config on fs and parses args.
func ParseFlagSet(fset *flag.FlagSet, args []string) (Flags, error) {
	addrPtr := fset.String("addr", ":8080", "HTTP listen address")
	dbPtr := fset.String("db", defaultDBPath, "Pebble DB path")
	cfgPtr := fset.String("config", "./config.yaml", "Path to config file")
	if err := fset.Parse(args); err != nil {
		return Flags{}, err
	}
	// record which flags were set explicitly
	setFlags := make(map[string]bool)
	fset.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}, nil
}

// loads config from file, returns config, found bool, and error
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if flags.Set["config"] {
				return nil, false, fmt.Errorf("config file %s not found", cfgPath)
			}
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

func parseList(v string) []string {
	if v == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// ApplyEnv overlays TIMECAPSULE_* variables onto cfg. Invalid numeric values
// are reported rather than ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) (EnvResult, error) {
	var res EnvResult
	var errs []error
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return "", false
		}
		res.Used = append(res.Used, EnvPrefix+name)
		return v, true
	}
	setInt := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setStr := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			*dst = parseBool(v)
		}
	}
	setList := func(name string, dst *[]string) {
		if v, ok := get(name); ok {
			*dst = parseList(v)
		}
	}
	setDur := func(name string, dst *Duration) {
		if v, ok := get(name); ok {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	if v, ok := get("ADDR"); ok {
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	setInt("SERVER_PORT", &cfg.Server.Port)
	setStr("DB_PATH", &cfg.Server.DBPath)
	setStr("TLS_CERT", &cfg.Server.TLS.CertFile)
	setStr("TLS_KEY", &cfg.Server.TLS.KeyFile)
	setBool("DISABLE_PEBBLE_WAL", &cfg.Server.DisablePebbleWAL)
	if v, ok := get("MAX_UPLOAD_SIZE"); ok {
		s, err := parseSize(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_UPLOAD_SIZE: %w", EnvPrefix, err))
		} else {
			cfg.Server.MaxUploadSize = s
		}
	}

	setList("CORS_ORIGINS", &cfg.Security.CORS.AllowedOrigins)
	if v, ok := get("RATE_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRATE_RPS: %w", EnvPrefix, err))
		} else {
			cfg.Security.RateLimit.RPS = f
		}
	}
	setInt("RATE_BURST", &cfg.Security.RateLimit.Burst)
	setList("API_BACKEND_KEYS", &cfg.Security.APIKeys.Backend)
	setList("API_FRONTEND_KEYS", &cfg.Security.APIKeys.Frontend)
	setList("API_ADMIN_KEYS", &cfg.Security.APIKeys.Admin)

	setStr("STORAGE_DRIVER", &cfg.Storage.Driver)
	setStr("STORAGE_LOCAL_DIR", &cfg.Storage.Local.Dir)
	setStr("S3_BUCKET", &cfg.Storage.S3.Bucket)
	setStr("S3_REGION", &cfg.Storage.S3.Region)
	setStr("S3_ENDPOINT", &cfg.Storage.S3.Endpoint)
	setBool("S3_USE_PATH_STYLE", &cfg.Storage.S3.UsePathStyle)
	setStr("S3_PUBLIC_BASE_URL", &cfg.Storage.S3.PublicBaseURL)

	setList("MEDIA_ALLOWED_TYPES", &cfg.Media.AllowedTypes)

	setBool("UNLOCK_ENABLED", &cfg.Unlock.Enabled)
	setStr("UNLOCK_CRON", &cfg.Unlock.Cron)
	setBool("UNLOCK_DRY_RUN", &cfg.Unlock.DryRun)
	setDur("UNLOCK_LOCK_TTL", &cfg.Unlock.LockTTL)

	setBool("TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	setDur("TELEMETRY_SLOW_THRESHOLD", &cfg.Telemetry.SlowThreshold)

	setStr("LOG_LEVEL", &cfg.Logging.Level)

	return res, errors.Join(errs...)
}

// LoadEffectiveConfig layers the sources: defaults < config file < env <
// explicitly set flags.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, lookup func(string) (string, bool)) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult
	cfg := &Config{}
	var sources []string
	if fileExists && fileCfg != nil {
		*cfg = *fileCfg
		sources = append(sources, "config")
	}
	envRes, err := ApplyEnv(cfg, lookup)
	if err != nil {
		return res, err
	}
	if len(envRes.Used) > 0 {
		sources = append(sources, "env")
	}
	if flags.Set["addr"] {
		host, port, err := net.SplitHostPort(flags.Addr)
		if err != nil {
			return res, fmt.Errorf("invalid -addr %q: %w", flags.Addr, err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = parsePortFromAddr(flags.Addr)
		if port != "" && cfg.Server.Port == 0 {
			return res, fmt.Errorf("invalid -addr port %q", port)
		}
	}
	if flags.Set["db"] {
		cfg.Server.DBPath = flags.DB
	}
	if flags.Set["addr"] || flags.Set["db"] {
		sources = append(sources, "flags")
	}
	if len(sources) == 0 {
		sources = append(sources, "defaults")
	}
	cfg.ApplyDefaults()

	res.Config = cfg
	res.Addr = cfg.Addr()
	res.DBPath = cfg.Server.DBPath
	res.Source = strings.Join(sources, "+")
	return res, nil
}

// extracts port integer from host:port string
func parsePortFromAddr(a string) int {
	if a == "" {
		return 0
	}
	if _, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return pi
		}
	}
	return 0
}
