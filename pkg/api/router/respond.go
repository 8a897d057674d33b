package router

import (
	"encoding/json"

	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

// WriteJSON writes a 200 JSON response.
func WriteJSON(ctx *fasthttp.RequestCtx, data interface{}) error {
	return WriteJSONStatus(ctx, fasthttp.StatusOK, data)
}

// WriteJSONStatus encodes data into a pooled buffer before touching the
// response, so an encoding failure leaves the response untouched.
func WriteJSONStatus(ctx *fasthttp.RequestCtx, status int, data interface{}) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		WriteJSONError(ctx, fasthttp.StatusInternalServerError, "failed to encode response")
		return err
	}
	ctx.SetStatusCode(status)
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetBody(buf.B)
	return nil
}

// ErrorBody is the shape of every error response. Message carries a human
// readable explanation when Error is a machine-readable reason.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSONError writes a JSON error response.
func WriteJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	WriteJSONReason(ctx, status, message, "")
}

// WriteJSONReason writes an error with a machine-readable reason.
func WriteJSONReason(ctx *fasthttp.RequestCtx, status int, reason, message string) {
	ctx.SetStatusCode(status)
	ctx.Response.Header.SetContentType("application/json")
	b, _ := json.Marshal(ErrorBody{Error: reason, Message: message})
	ctx.SetBody(append(b, '\n'))
}
