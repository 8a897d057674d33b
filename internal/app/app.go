package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"timecapsule/internal/unlock"
	"timecapsule/pkg/api"
	"timecapsule/pkg/api/auth"
	"timecapsule/pkg/config"
	"timecapsule/pkg/logger"
	"timecapsule/pkg/media"
	"timecapsule/pkg/state"
	"timecapsule/pkg/storage"
	"timecapsule/pkg/store"
	"timecapsule/pkg/telemetry"
)

// App groups server state and components.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	st          *store.Store
	deps        *api.Deps
	gw          *auth.Gateway
	sweeper     *unlock.Runner
	traces      *telemetry.Recorder
	stopSweeper func()

	srv   *fasthttp.Server
	state string
}

// New sets up resources that don't need a running context: runtime keys,
// the audit sink, the store and media storage. Call Run to start serving.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := config.ValidateConfig(eff); err != nil {
		return nil, err
	}
	cfg := eff.Config

	config.SetRuntime(config.NewRuntime(cfg))

	if state.PathsVar.Store == "" {
		return nil, fmt.Errorf("state paths not initialized")
	}
	if err := logger.AttachAuditFileSink(state.PathsVar.Audit); err != nil {
		logger.Warn("audit_sink_unavailable", "error", err)
	}

	if cfg.Server.DisablePebbleWAL {
		logger.LogConfigSummary("config_durability_summary", []string{
			"pebble_wal: disabled",
			"risk: writes acknowledged before they reach disk",
		})
	}
	st, err := store.Open(state.PathsVar.Store, store.Options{DisableWAL: cfg.Server.DisablePebbleWAL})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", state.PathsVar.Store, err)
	}

	blobs, err := openStorage(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	sweeper := unlock.New(st, unlock.Options{
		Cron:     cfg.Unlock.Cron,
		DryRun:   cfg.Unlock.DryRun,
		LockTTL:  cfg.Unlock.LockTTL.Duration(),
		StateDir: state.PathsVar.Unlock,
	})

	var traces *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		traces, err = telemetry.New(state.PathsVar.Telemetry, telemetry.Options{
			SlowThreshold: cfg.Telemetry.SlowThreshold.Duration(),
		})
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		logger.Info("telemetry_enabled", "dir", state.PathsVar.Telemetry, "slow_threshold", cfg.Telemetry.SlowThreshold.Duration().String())
	}

	maxUpload := cfg.Server.MaxUploadSize.Int64()
	logger.Info("upload_policy",
		"max_size", humanize.IBytes(uint64(maxUpload)),
		"allowed_types", strings.Join(cfg.Media.AllowedTypes, ","))

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		st:        st,
		sweeper:   sweeper,
		traces:    traces,
		deps: &api.Deps{
			Store:   st,
			Media:   blobs,
			Upload:  media.NewUploadPolicy(cfg.Media.AllowedTypes, maxUpload),
			Sweeper: sweeper,
			Traces:  traces,
			Version: version,
		},
	}
	return a, nil
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "s3":
		s3cfg := cfg.Storage.S3
		blobs, err := storage.NewS3(context.Background(), storage.S3Config{
			Bucket:        s3cfg.Bucket,
			Region:        s3cfg.Region,
			Endpoint:      s3cfg.Endpoint,
			UsePathStyle:  s3cfg.UsePathStyle,
			PublicBaseURL: s3cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		logger.Info("media_storage", "driver", "s3", "bucket", s3cfg.Bucket)
		return blobs, nil
	default:
		dir := cfg.Storage.Local.Dir
		if dir == "" {
			dir = state.PathsVar.Media
		}
		blobs, err := storage.NewLocal(dir, cfg.Storage.Local.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		logger.Info("media_storage", "driver", "local", "dir", dir)
		return blobs, nil
	}
}

// Run starts the unlock sweeper (if enabled) and the HTTP server, and blocks
// until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()
	a.state = "running"

	if a.eff.Config.Unlock.Enabled {
		a.stopSweeper = a.sweeper.Start(ctx)
	}

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
