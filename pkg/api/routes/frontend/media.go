package frontend

import (
	"errors"

	"github.com/valyala/fasthttp"

	"timecapsule/pkg/api/metrics"
	"timecapsule/pkg/api/router"
	"timecapsule/pkg/api/routes/common"
	"timecapsule/pkg/apperr"
	"timecapsule/pkg/logger"
	"timecapsule/pkg/media"
	"timecapsule/pkg/models"
	"timecapsule/pkg/storage"
)

// UploadField is the multipart field carrying the file.
const UploadField = "media_file"

// Upload handles POST /v1/capsules/upload. Rejections carry a
// machine-readable reason in the error field.
func (h *Handlers) Upload(ctx *fasthttp.RequestCtx) {
	author, ok := common.Author(ctx)
	if !ok {
		return
	}
	tr := h.d.Traces.Track("upload")
	defer tr.Finish()
	fh, err := ctx.FormFile(UploadField)
	if err != nil {
		metrics.Uploads.WithLabelValues(apperr.ReasonNoFile).Inc()
		logger.Warn("upload_no_file", "author", author, "error", err)
		common.WriteError(ctx, "upload", &apperr.UploadRejected{Reason: apperr.ReasonNoFile})
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if guess := media.TypeForFilename(fh.Filename); guess != "" {
			contentType = guess
		}
	}
	if err := h.d.Upload.Check(contentType, fh.Size); err != nil {
		var rej *apperr.UploadRejected
		if errors.As(err, &rej) {
			metrics.Uploads.WithLabelValues(rej.Reason).Inc()
		}
		logger.Warn("upload_rejected", "author", author, "content_type", contentType, "size", fh.Size, "error", err)
		common.WriteError(ctx, "upload", err)
		return
	}

	tr.Mark("check")
	f, err := fh.Open()
	if err != nil {
		common.WriteError(ctx, "upload", err)
		return
	}
	defer f.Close()
	key := storage.ObjectKey(fh.Filename)
	url, err := h.d.Media.Put(ctx, key, contentType, f, fh.Size)
	if err != nil {
		metrics.Uploads.WithLabelValues("error").Inc()
		common.WriteError(ctx, "upload", err)
		return
	}
	tr.Mark("storage_put")
	metrics.Uploads.WithLabelValues("ok").Inc()
	logger.Info("media_uploaded", "author", author, "key", key, "content_type", contentType, "size", fh.Size)
	_ = router.WriteJSONStatus(ctx, fasthttp.StatusCreated, models.UploadResponse{URL: url, Type: contentType})
}

// ServeMedia handles GET /media/{key} for locally stored objects.
func (h *Handlers) ServeMedia(ctx *fasthttp.RequestCtx) {
	key := router.PathParam(ctx, "key")
	if !storage.ValidKey(key) {
		common.WriteError(ctx, "serve_media", storage.ErrNotFound)
		return
	}
	rc, contentType, err := h.d.Media.Open(ctx, key)
	if err != nil {
		common.WriteError(ctx, "serve_media", err)
		return
	}
	if contentType != "" {
		ctx.SetContentType(contentType)
	}
	ctx.Response.Header.Set("Cache-Control", "private, max-age=3600")
	// fasthttp closes rc once the body is written
	ctx.SetBodyStream(rc, -1)
}
