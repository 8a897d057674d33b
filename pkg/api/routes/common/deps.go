// Package common holds what every route group shares: the service
// dependencies, author resolution, body decoding and error mapping.
package common

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"

	"timecapsule/internal/unlock"
	"timecapsule/pkg/api/auth"
	"timecapsule/pkg/api/router"
	"timecapsule/pkg/apperr"
	"timecapsule/pkg/logger"
	"timecapsule/pkg/media"
	"timecapsule/pkg/storage"
	"timecapsule/pkg/store"
	"timecapsule/pkg/telemetry"
)

// Deps are the collaborators handed to every handler.
type Deps struct {
	Store   *store.Store
	Media   storage.Storage
	Upload  media.UploadPolicy
	Sweeper *unlock.Runner
	// nil disables traces
	Traces  *telemetry.Recorder
	Version string
}

// Author resolves the caller or writes the resolution error.
func Author(ctx *fasthttp.RequestCtx) (string, bool) {
	author, err := auth.ResolveAuthor(ctx)
	if err != nil {
		router.WriteJSONError(ctx, err.Code, err.Message)
		return "", false
	}
	return author, true
}

// DecodeJSON decodes the request body into out, rejecting unknown fields.
func DecodeJSON(ctx *fasthttp.RequestCtx, out any) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "empty request payload")
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid JSON payload: "+err.Error())
		return false
	}
	return true
}

// WriteError maps a domain error to a status code.
func WriteError(ctx *fasthttp.RequestCtx, op string, err error) {
	var rej *apperr.UploadRejected
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &rej):
		status := fasthttp.StatusBadRequest
		if rej.Reason == apperr.ReasonFileTooLarge {
			status = fasthttp.StatusRequestEntityTooLarge
		}
		router.WriteJSONReason(ctx, status, rej.Reason, rej.UserMessage())
	case errors.As(err, &verr):
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, verr.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
	case errors.Is(err, store.ErrNotMember):
		router.WriteJSONError(ctx, fasthttp.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotCollaborative):
		router.WriteJSONError(ctx, fasthttp.StatusConflict, err.Error())
	default:
		logger.Error(op+"_failed", "error", err, "path", string(ctx.Path()))
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, "internal error")
	}
}
