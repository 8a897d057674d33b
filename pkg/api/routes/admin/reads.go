package admin

import (
	"strconv"

	"github.com/valyala/fasthttp"

	"timecapsule/pkg/api/router"
	"timecapsule/pkg/api/routes/common"
)

const defaultKeyLimit = 1000

// Health handles GET /admin/health.
func (h *Handlers) Health(ctx *fasthttp.RequestCtx) {
	_ = router.WriteJSON(ctx, map[string]string{"status": "ok", "service": "timecapsule", "version": h.d.Version})
}

// ListKeys handles GET /admin/keys?prefix=&limit=.
func (h *Handlers) ListKeys(ctx *fasthttp.RequestCtx) {
	limit := defaultKeyLimit
	if raw := router.GetQuery(ctx, "limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := h.d.Store.ListKeys(ctx, router.GetQuery(ctx, "prefix"))
	if err != nil {
		common.WriteError(ctx, "admin_list_keys", err)
		return
	}
	if list == nil {
		list = []string{}
	}
	truncated := len(list) > limit
	if truncated {
		list = list[:limit]
	}
	_ = router.WriteJSON(ctx, struct {
		Keys      []string `json:"keys"`
		Truncated bool     `json:"truncated"`
	}{Keys: list, Truncated: truncated})
}
