// Package frontend serves the capsule routes used by signed-in clients.
package frontend

import (
	"github.com/valyala/fasthttp"

	"timecapsule/pkg/aggregate"
	"timecapsule/pkg/api/metrics"
	"timecapsule/pkg/api/router"
	"timecapsule/pkg/api/routes/common"
	"timecapsule/pkg/apperr"
	"timecapsule/pkg/logger"
	"timecapsule/pkg/media"
	"timecapsule/pkg/members"
	"timecapsule/pkg/models"
	"timecapsule/pkg/store"
	"timecapsule/pkg/timeutil"
	"timecapsule/pkg/view"
)

// Handlers serves the frontend routes.
type Handlers struct {
	d *common.Deps
}

// New binds the handlers to their dependencies.
func New(d *common.Deps) *Handlers {
	return &Handlers{d: d}
}

// CreateCapsule handles POST /v1/capsules. Collaborative capsules keep only
// registered members; the rest come back under member_status.not_found.
func (h *Handlers) CreateCapsule(ctx *fasthttp.RequestCtx) {
	author, ok := common.Author(ctx)
	if !ok {
		return
	}
	tr := h.d.Traces.Track("create_capsule")
	defer tr.Finish()
	var req models.CreateCapsuleRequest
	if !common.DecodeJSON(ctx, &req) {
		return
	}
	tr.Mark("decode")
	lockDate, err := timeutil.ParseLockDate(req.LockDate)
	if err != nil {
		common.WriteError(ctx, "create_capsule", apperr.Validation("lock_date", err.Error()))
		return
	}

	c := &models.Capsule{
		Kind:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Media:       media.ClassifyIncoming(req.Media),
		LockDate:    lockDate,
		CreatedBy:   author,
	}

	var status *models.Partition
	if req.Type == models.KindCollaborative {
		if len(req.MemberEmails) == 0 {
			common.WriteError(ctx, "create_capsule", apperr.ErrNoMembers)
			return
		}
		p, err := h.d.Store.VerifyMembers(ctx, req.MemberEmails)
		if err != nil {
			common.WriteError(ctx, "create_capsule", err)
			return
		}
		creator, err := h.d.Store.GetUser(ctx, author)
		if err != nil {
			if !store.IsNotFound(err) {
				common.WriteError(ctx, "create_capsule", err)
				return
			}
			creator = models.User{Email: author, Name: members.UnknownName}
		}
		tr.Mark("verify_members")
		c.Members = members.Fold(creator, p.Found)
		status = &p
		if warn := members.Check(status); warn != nil {
			metrics.MembersNotFound.Add(float64(len(warn.NotFound)))
			logger.Info("capsule_members_skipped", "author", author, "not_found", len(warn.NotFound))
		}
	}

	if err := h.d.Store.CreateCapsule(ctx, c); err != nil {
		common.WriteError(ctx, "create_capsule", err)
		return
	}
	tr.Mark("store")
	metrics.CapsulesCreated.WithLabelValues(string(c.Kind)).Inc()
	resp := view.CreateCapsuleResponse{
		Capsule:      view.BuildCapsule(*c, timeutil.Now()),
		MemberStatus: status,
	}
	_ = router.WriteJSONStatus(ctx, fasthttp.StatusCreated, resp)
}

// ListCapsules handles GET /v1/capsules. partition=type splits the result
// into personal and collaborative lists.
func (h *Handlers) ListCapsules(ctx *fasthttp.RequestCtx) {
	author, ok := common.Author(ctx)
	if !ok {
		return
	}
	list, err := h.d.Store.ListCapsulesFor(ctx, author)
	if err != nil {
		common.WriteError(ctx, "list_capsules", err)
		return
	}
	views := view.BuildCapsules(list, timeutil.Now())
	switch router.GetQueryLower(ctx, "partition") {
	case "":
		_ = router.WriteJSON(ctx, views)
	case "type":
		_ = router.WriteJSON(ctx, aggregate.Partition(views))
	default:
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "partition must be type")
	}
}

// CapsuleTree handles GET /v1/capsules/tree?type=personal|collaborative.
// Grouping and counts share one evaluation instant.
func (h *Handlers) CapsuleTree(ctx *fasthttp.RequestCtx) {
	author, ok := common.Author(ctx)
	if !ok {
		return
	}
	kind := models.Kind(router.GetQueryLower(ctx, "type"))
	if !kind.Valid() {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "type must be personal or collaborative")
		return
	}
	list, err := h.d.Store.ListCapsulesFor(ctx, author)
	if err != nil {
		common.WriteError(ctx, "capsule_tree", err)
		return
	}
	now := timeutil.Now()
	var tree view.TreeResponse = aggregate.BuildTree(view.BuildCapsules(list, now), kind, now)
	_ = router.WriteJSON(ctx, tree)
}

// GetCapsule handles GET /v1/capsules/{id}. Capsules the caller does not
// belong to are reported as missing.
func (h *Handlers) GetCapsule(ctx *fasthttp.RequestCtx) {
	author, ok := common.Author(ctx)
	if !ok {
		return
	}
	id, ok := router.ValidatePathParam(ctx, "id")
	if !ok {
		return
	}
	c, err := h.d.Store.GetCapsule(ctx, id)
	if err != nil {
		common.WriteError(ctx, "get_capsule", err)
		return
	}
	if !c.HasMember(author) {
		common.WriteError(ctx, "get_capsule", store.ErrNotFound)
		return
	}
	_ = router.WriteJSON(ctx, view.BuildCapsule(*c, timeutil.Now()))
}
