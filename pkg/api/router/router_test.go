package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func serve(r *Router, method, uri string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	r.Handler(&ctx)
	return &ctx
}

func TestRouterMatchesInOrder(t *testing.T) {
	r := New()
	var hit string
	r.GET("/v1/capsules/tree", func(ctx *fasthttp.RequestCtx) { hit = "tree" })
	r.GET("/v1/capsules/{id}", func(ctx *fasthttp.RequestCtx) { hit = "item:" + PathParam(ctx, "id") })
	r.POST("/v1/capsules/{id}/entries", func(ctx *fasthttp.RequestCtx) { hit = "entries:" + Route(ctx) })

	serve(r, "GET", "/v1/capsules/tree?type=personal")
	assert.Equal(t, "tree", hit)
	serve(r, "GET", "/v1/capsules/abc")
	assert.Equal(t, "item:abc", hit)
	serve(r, "POST", "/v1/capsules/abc/entries")
	assert.Equal(t, "entries:/v1/capsules/{id}/entries", hit)
}

func TestRouterFallbacks(t *testing.T) {
	r := New()
	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {})

	ctx := serve(r, "POST", "/healthz")
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())

	ctx = serve(r, "GET", "/nope")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	var body ErrorBody
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, "not found", body.Error)

	ctx = serve(r, "GET", "/v1/capsules//entries")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestWriteJSON(t *testing.T) {
	var ctx fasthttp.RequestCtx
	require.NoError(t, WriteJSONStatus(&ctx, fasthttp.StatusCreated, map[string]int{"n": 1}))
	assert.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"n":1}`, string(ctx.Response.Body()))
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))

	var bad fasthttp.RequestCtx
	assert.Error(t, WriteJSON(&bad, map[string]any{"f": func() {}}))
	assert.Equal(t, fasthttp.StatusInternalServerError, bad.Response.StatusCode())

	var rej fasthttp.RequestCtx
	WriteJSONReason(&rej, fasthttp.StatusBadRequest, "no_file", "No file")
	assert.JSONEq(t, `{"error":"no_file","message":"No file"}`, string(rej.Response.Body()))
}
