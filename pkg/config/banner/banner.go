package banner

import (
	"fmt"
	"io"
	"os"

	"timecapsule/pkg/config"
)

const banner = `
 _____ _                  ____                       _
|_   _(_)_ __ ___   ___  / ___|__ _ _ __  ___ _   _| | ___
  | | | | '_ ` + "`" + ` _ \ / _ \| |   / _` + "`" + ` | '_ \/ __| | | | |/ _ \
  | | | | | | | | |  __/| |__| (_| | |_) \__ \ |_| | |  __/
  |_| |_|_| |_| |_|\___| \____\__,_| .__/|___/\__,_|_|\___|
                                   |_|
`

// PrintWithEff prints the banner and a production checklist for the
// effective configuration.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	Fprint(os.Stdout, eff, version)
}

// Fprint writes the banner to w.
func Fprint(w io.Writer, eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintf(w, "Listen:   %s\n", addr)
	fmt.Fprintf(w, "DB Path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config:   %s\n", src)

	fmt.Fprintln(w, "\n== Production? =================================================")
	if eff.Config == nil {
		return
	}
	cfg := eff.Config
	keyLine := func(label string, n int, need string) {
		if n > 0 {
			fmt.Fprintf(w, "- %s API keys: OK (%d)\n", label, n)
		} else {
			fmt.Fprintf(w, "- %s API keys: MISSING (%s)\n", label, need)
		}
	}
	keyLine("Backend", len(cfg.Security.APIKeys.Backend), "required for signing users")
	keyLine("Frontend", len(cfg.Security.APIKeys.Frontend), "required for client access")
	keyLine("Admin", len(cfg.Security.APIKeys.Admin), "required for admin tooling")

	switch cfg.Storage.Driver {
	case "s3":
		fmt.Fprintf(w, "- Media storage: s3 (bucket=%s)\n", cfg.Storage.S3.Bucket)
	default:
		fmt.Fprintf(w, "- Media storage: local (%s)\n", cfg.MediaDir())
	}
	fmt.Fprintf(w, "- Max upload: %s\n", cfg.Server.MaxUploadSize)

	if cfg.Telemetry.Enabled {
		fmt.Fprintf(w, "- Slow request traces: enabled (>= %s)\n", cfg.Telemetry.SlowThreshold.Duration())
	}
	if cfg.Unlock.Enabled {
		mode := ""
		if cfg.Unlock.DryRun {
			mode = ", dry run"
		}
		fmt.Fprintf(w, "- Unlock sweeper: enabled (cron=%s%s)\n", cfg.Unlock.Cron, mode)
	} else {
		fmt.Fprintln(w, "- Unlock sweeper: disabled")
	}
}
