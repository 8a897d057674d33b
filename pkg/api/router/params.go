package router

import (
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"
)

// PathParam returns a path parameter captured by the router.
func PathParam(ctx *fasthttp.RequestCtx, param string) string {
	if v := ctx.UserValue(param); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return fmt.Sprint(v)
	}
	return ""
}

// ValidatePathParam writes a 400 when the parameter is missing.
func ValidatePathParam(ctx *fasthttp.RequestCtx, paramName string) (string, bool) {
	value := PathParam(ctx, paramName)
	if value == "" {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, paramName+" missing")
		return "", false
	}
	return value, true
}

// GetHeader returns header value with trimming
func GetHeader(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.Request.Header.Peek(key)))
}

// GetQuery returns query parameter value with trimming
func GetQuery(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.QueryArgs().Peek(key)))
}

// GetQueryLower returns query parameter value with trimming and lowercase
func GetQueryLower(ctx *fasthttp.RequestCtx, key string) string {
	return strings.ToLower(GetQuery(ctx, key))
}

// Route returns the matched route pattern, or "unmatched".
func Route(ctx *fasthttp.RequestCtx) string {
	if v, ok := ctx.UserValue(RouteKey).(string); ok {
		return v
	}
	return "unmatched"
}
