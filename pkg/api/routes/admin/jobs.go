// Package admin serves the /admin routes.
package admin

import (
	"errors"

	"github.com/valyala/fasthttp"

	"timecapsule/internal/unlock"
	"timecapsule/pkg/api/metrics"
	"timecapsule/pkg/api/router"
	"timecapsule/pkg/api/routes/common"
	"timecapsule/pkg/logger"
	"timecapsule/pkg/models"
)

// Handlers serves the admin routes.
type Handlers struct {
	d *common.Deps
}

// New binds the handlers to their dependencies.
func New(d *common.Deps) *Handlers {
	return &Handlers{d: d}
}

// RunUnlockSweep handles POST /admin/jobs/unlock-sweep.
func (h *Handlers) RunUnlockSweep(ctx *fasthttp.RequestCtx) {
	if h.d.Sweeper == nil {
		router.WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, "unlock sweeper not configured")
		return
	}
	rep, err := h.d.Sweeper.RunOnce(ctx)
	if errors.Is(err, unlock.ErrRunning) {
		router.WriteJSONError(ctx, fasthttp.StatusConflict, err.Error())
		return
	}
	if err != nil {
		logger.Error("admin_unlock_sweep_failed", "error", err)
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	if !rep.DryRun {
		for _, it := range rep.Unlocked {
			metrics.UnlockSweeps.WithLabelValues(it.Kind).Inc()
		}
	}
	logger.Info("admin_unlock_sweep", "run_id", rep.RunID, "unlocked", len(rep.Unlocked), "skipped", rep.Skipped)
	_ = router.WriteJSON(ctx, rep)
}

// Stats handles GET /admin/stats.
func (h *Handlers) Stats(ctx *fasthttp.RequestCtx) {
	var out struct {
		Capsules      int    `json:"capsules"`
		Personal      int    `json:"personal"`
		Collaborative int    `json:"collaborative"`
		Entries       int    `json:"entries"`
		PendingWrites uint64 `json:"pending_writes"`
	}
	err := h.d.Store.AllCapsules(ctx, func(c *models.Capsule) error {
		out.Capsules++
		if c.Kind == models.KindCollaborative {
			out.Collaborative++
		} else {
			out.Personal++
		}
		out.Entries += len(c.Entries)
		return nil
	})
	if err != nil {
		common.WriteError(ctx, "admin_stats", err)
		return
	}
	out.PendingWrites = h.d.Store.PendingWrites()
	_ = router.WriteJSON(ctx, out)
}
