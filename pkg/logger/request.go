package logger

import (
	"strings"
	"unicode/utf8"

	"github.com/valyala/fasthttp"
)

func maskedValue(v string) string {
	if v == "" {
		return ""
	}
	if utf8.RuneCountInString(v) <= 2 {
		return "<redacted>"
	}
	first, _ := utf8.DecodeRuneInString(v)
	last, _ := utf8.DecodeLastRuneInString(v)
	return string(first) + "*****" + string(last)
}

var sensitiveHeaders = map[string]bool{
	"authorization":    true,
	"x-api-key":        true,
	"x-user-signature": true,
}

// SafeHeadersFast renders request headers with credentials masked.
func SafeHeadersFast(ctx *fasthttp.RequestCtx) string {
	parts := make([]string, 0)
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		val := string(v)
		if sensitiveHeaders[strings.ToLower(key)] {
			val = maskedValue(val)
		}
		parts = append(parts, key+"="+val)
	})
	return strings.Join(parts, "; ")
}

// LogRequestFast logs one debug line per request.
func LogRequestFast(ctx *fasthttp.RequestCtx) {
	if Log == nil {
		return
	}
	Debug("incoming_request",
		"method", string(ctx.Method()),
		"path", string(ctx.Path()),
		"remote", ctx.RemoteAddr().String(),
		"headers", SafeHeadersFast(ctx),
	)
}
