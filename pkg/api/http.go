// Package api wires the HTTP routes of the service.
package api

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"

	"timecapsule/pkg/logger"

	"timecapsule/pkg/api/auth"
	"timecapsule/pkg/api/metrics"
	"timecapsule/pkg/api/router"
	adminRoutes "timecapsule/pkg/api/routes/admin"
	backendRoutes "timecapsule/pkg/api/routes/backend"
	"timecapsule/pkg/api/routes/common"
	frontendRoutes "timecapsule/pkg/api/routes/frontend"
)

const readyProbeTimeout = 2 * time.Second

// Deps are the collaborators the routes need.
type Deps = common.Deps

// RegisterRoutes wires all API routes onto the provided router. Literal
// segments are registered before the parameterised routes they shadow.
func RegisterRoutes(r *router.Router, d *Deps) {
	fe := frontendRoutes.New(d)
	be := backendRoutes.New(d)
	ad := adminRoutes.New(d)

	r.GET("/healthz", health)
	r.GET("/readyz", ready(d))

	// client auth endpoints
	r.POST("/v1/_sign", be.Sign)
	r.POST("/v1/users", be.RegisterUser)

	r.POST("/v1/members/verify", fe.VerifyMembers)

	// capsules
	r.POST("/v1/capsules", fe.CreateCapsule)
	r.GET("/v1/capsules", fe.ListCapsules)
	r.GET("/v1/capsules/tree", fe.CapsuleTree)
	r.POST("/v1/capsules/upload", fe.Upload)
	r.GET("/v1/capsules/{id}", fe.GetCapsule)
	r.POST("/v1/capsules/{id}/entries", fe.CreateEntry)

	r.GET("/media/{key}", fe.ServeMedia)

	// admin
	r.GET("/admin/health", ad.Health)
	r.GET("/admin/stats", ad.Stats)
	r.GET("/admin/keys", ad.ListKeys)
	r.GET("/admin/debug/prometheus", metrics.Handler())
	r.POST("/admin/jobs/unlock-sweep", ad.RunUnlockSweep)
}

// Handler builds the router wrapped by the security gateway and request
// metrics.
func Handler(d *Deps, gw *auth.Gateway) fasthttp.RequestHandler {
	r := router.New()
	RegisterRoutes(r, d)
	return instrument(gw.Middleware(r.Handler))
}

func instrument(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		next(ctx)
		metrics.Observe(string(ctx.Method()), router.Route(ctx), ctx.Response.StatusCode())
	}
}

func health(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	_, _ = ctx.WriteString(`{"status":"ok"}`)
}

func ready(d *Deps) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if d.Store == nil || !d.Store.Ready() {
			router.WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, "not ready")
			return
		}
		if d.Media != nil {
			pctx, cancel := context.WithTimeout(context.Background(), readyProbeTimeout)
			err := d.Media.Ping(pctx)
			cancel()
			if err != nil {
				logger.Warn("media_storage_unready", "error", err)
				router.WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, "media storage not ready")
				return
			}
		}
		_ = router.WriteJSON(ctx, map[string]string{"status": "ready", "version": d.Version})
	}
}
