package frontend

import (
	"github.com/valyala/fasthttp"

	"timecapsule/pkg/api/metrics"
	"timecapsule/pkg/api/router"
	"timecapsule/pkg/api/routes/common"
	"timecapsule/pkg/apperr"
	"timecapsule/pkg/media"
	"timecapsule/pkg/models"
	"timecapsule/pkg/timeutil"
	"timecapsule/pkg/view"
)

// CreateEntry handles POST /v1/capsules/{id}/entries.
func (h *Handlers) CreateEntry(ctx *fasthttp.RequestCtx) {
	author, ok := common.Author(ctx)
	if !ok {
		return
	}
	id, ok := router.ValidatePathParam(ctx, "id")
	if !ok {
		return
	}
	var req models.CreateEntryRequest
	if !common.DecodeJSON(ctx, &req) {
		return
	}
	lockDate, err := timeutil.ParseLockDate(req.LockDate)
	if err != nil {
		common.WriteError(ctx, "create_entry", apperr.Validation("lock_date", err.Error()))
		return
	}
	items := media.ClassifyIncoming(req.Media)
	if req.Content == "" && len(items) == 0 {
		common.WriteError(ctx, "create_entry", apperr.ErrContentRequired)
		return
	}
	e := &models.Entry{
		Content:   req.Content,
		Media:     items,
		LockDate:  lockDate,
		CreatedBy: author,
	}
	if err := h.d.Store.AppendEntry(ctx, id, e); err != nil {
		common.WriteError(ctx, "create_entry", err)
		return
	}
	metrics.EntriesCreated.Inc()
	_ = router.WriteJSONStatus(ctx, fasthttp.StatusCreated, view.CreateEntryResponse{Entry: view.BuildEntry(*e, timeutil.Now())})
}
