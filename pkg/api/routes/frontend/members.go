package frontend

import (
	"github.com/valyala/fasthttp"

	"timecapsule/pkg/api/router"
	"timecapsule/pkg/api/routes/common"
	"timecapsule/pkg/apperr"
	"timecapsule/pkg/models"
)

// VerifyMembers handles POST /v1/members/verify.
func (h *Handlers) VerifyMembers(ctx *fasthttp.RequestCtx) {
	if _, ok := common.Author(ctx); !ok {
		return
	}
	var proposed []models.Member
	if !common.DecodeJSON(ctx, &proposed) {
		return
	}
	if len(proposed) == 0 {
		common.WriteError(ctx, "verify_members", apperr.ErrNoMembers)
		return
	}
	p, err := h.d.Store.VerifyMembers(ctx, proposed)
	if err != nil {
		common.WriteError(ctx, "verify_members", err)
		return
	}
	_ = router.WriteJSON(ctx, p)
}
