package auth

import (
	"net"
	"strings"

	"github.com/valyala/fasthttp"

	"timecapsule/pkg/api/router"
	"timecapsule/pkg/logger"
)

// SecConfig is the gateway's view of the security config section.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
}

// Gateway authenticates API keys, applies CORS and per-key rate limits, and
// restricts each role to its route prefixes.
type Gateway struct {
	cfg      SecConfig
	limiters *limiterPool
}

// NewGateway builds a Gateway. Close releases its limiter cleanup goroutine.
func NewGateway(cfg SecConfig) *Gateway {
	return &Gateway{cfg: cfg, limiters: newLimiterPool(cfg.RPS, cfg.Burst)}
}

// Close stops background work.
func (g *Gateway) Close() {
	g.limiters.Shutdown()
}

// Middleware wraps next with the gateway checks.
func (g *Gateway) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	cfg := g.cfg
	return func(ctx *fasthttp.RequestCtx) {
		logger.LogRequestFast(ctx)
		path := string(ctx.Path())

		origin := router.GetHeader(ctx, "Origin")
		if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
			ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
			ctx.Response.Header.Set("Vary", "Origin")
			ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			ctx.Response.Header.Set("Access-Control-Max-Age", "600")
			ctx.Response.Header.Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,X-User-ID,X-User-Signature")
			ctx.Response.Header.Set("Access-Control-Expose-Headers", "X-Role-Name")
		}
		if string(ctx.Method()) == fasthttp.MethodOptions {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}

		// role headers are server-assigned
		ctx.Request.Header.Del("X-Role-Name")

		if publicAllowedPath(ctx) {
			ctx.Request.Header.Set("X-Role-Name", RoleUnauth.String())
			next(ctx)
			return
		}

		role, key, hasAPIKey := validateAPIKey(ctx, cfg)
		if role == RoleUnauth || !hasAPIKey {
			router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
			logger.Warn("request_unauthorized", "path", path, "remote", ctx.RemoteAddr().String())
			return
		}
		ctx.Request.Header.Set("X-Role-Name", role.String())

		if role == RoleFrontend && !frontendAllowed(path) {
			router.WriteJSONError(ctx, fasthttp.StatusForbidden, "forbidden")
			logger.Warn("request_forbidden", "reason", "frontend_not_allowed", "path", path)
			return
		}
		if (role == RoleBackend || role == RoleFrontend) && strings.HasPrefix(path, "/admin") {
			router.WriteJSONError(ctx, fasthttp.StatusForbidden, "only admin api keys can access admin routes")
			logger.Warn("backend_admin_access_attempt", "path", path, "remote", ctx.RemoteAddr().String())
			return
		}
		if role == RoleAdmin && !strings.HasPrefix(path, "/admin") {
			router.WriteJSONError(ctx, fasthttp.StatusForbidden, "admin api keys may only access /admin routes")
			logger.Warn("admin_route_violation", "path", path, "remote", ctx.RemoteAddr().String())
			return
		}

		if !g.limiters.Allow(key) {
			router.WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
			logger.Warn("rate_limited", "role", role.String(), "path", path)
			return
		}

		if HasUserSignature(ctx) {
			RequireSignedAuthorMiddleware(next)(ctx)
			return
		}
		next(ctx)
	}
}

func clientIPFast(ctx *fasthttp.RequestCtx) string {
	host := ctx.RemoteAddr().String()
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	return h
}

// extractAPIKey reads a bearer token or the X-API-Key header.
func extractAPIKey(ctx *fasthttp.RequestCtx) string {
	if v := router.GetHeader(ctx, "Authorization"); v != "" {
		if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
			return strings.TrimSpace(v[7:])
		}
	}
	return router.GetHeader(ctx, "X-API-Key")
}

func validateAPIKey(ctx *fasthttp.RequestCtx, cfg SecConfig) (Role, string, bool) {
	key := extractAPIKey(ctx)
	if key == "" {
		return RoleUnauth, clientIPFast(ctx), false
	}
	if _, ok := cfg.AdminKeys[key]; ok {
		return RoleAdmin, key, true
	}
	if _, ok := cfg.BackendKeys[key]; ok {
		return RoleBackend, key, true
	}
	if _, ok := cfg.FrontendKeys[key]; ok {
		return RoleFrontend, key, true
	}
	return RoleUnauth, key, true
}

func frontendAllowed(path string) bool {
	for _, p := range []string{"/v1/capsules", "/v1/members", "/media/"} {
		if path == strings.TrimSuffix(p, "/") || strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func publicAllowedPath(ctx *fasthttp.RequestCtx) bool {
	path := string(ctx.Path())
	if string(ctx.Method()) != fasthttp.MethodGet {
		return false
	}
	return path == "/healthz" || path == "/readyz" || strings.HasPrefix(path, "/media/")
}
