package app

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"

	"timecapsule/pkg/api"
	"timecapsule/pkg/api/auth"
	"timecapsule/pkg/config"
	"timecapsule/pkg/config/banner"
	"timecapsule/pkg/logger"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}

func (a *App) secConfig() auth.SecConfig {
	cfg := a.eff.Config
	rc := config.NewRuntime(cfg)
	return auth.SecConfig{
		AllowedOrigins: append([]string{}, cfg.Security.CORS.AllowedOrigins...),
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		BackendKeys:    rc.BackendKeys,
		FrontendKeys:   rc.FrontendKeys,
		AdminKeys:      rc.AdminKeys,
	}
}

// startHTTP builds and starts the fasthttp server, returning a channel that
// delivers errors.
func (a *App) startHTTP(_ context.Context) <-chan error {
	cfg := a.eff.Config
	a.gw = auth.NewGateway(a.secConfig())

	const (
		readBufferSize       = 64 * 1024
		idleTimeout          = 30 * time.Second
		maxKeepaliveDuration = 2 * time.Minute
		// multipart framing on top of the largest allowed file
		uploadOverhead = 1 << 20
	)
	a.srv = &fasthttp.Server{
		Name:                 "timecapsule",
		Handler:              api.Handler(a.deps, a.gw),
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   int(cfg.Server.MaxUploadSize.Int64()) + uploadOverhead,
		ReduceMemoryUsage:    true,
		ReadTimeout:          cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:         cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
	}

	errCh := make(chan error, 1)
	go func() {
		addr := cfg.Addr()
		tls := cfg.Server.TLS
		if tls.CertFile != "" {
			logger.Info("http_listen", "addr", addr, "tls", true)
			errCh <- a.srv.ListenAndServeTLS(addr, tls.CertFile, tls.KeyFile)
			return
		}
		logger.Info("http_listen", "addr", addr, "tls", false)
		errCh <- a.srv.ListenAndServe(addr)
	}()
	return errCh
}
