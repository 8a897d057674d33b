// Package backend serves the routes reserved for backend API keys.
package backend

import (
	"fmt"

	"github.com/valyala/fasthttp"

	"timecapsule/pkg/api/auth"
	"timecapsule/pkg/api/router"
	"timecapsule/pkg/api/routes/common"
	"timecapsule/pkg/apperr"
	"timecapsule/pkg/config"
	"timecapsule/pkg/logger"
	"timecapsule/pkg/models"
	"timecapsule/pkg/store/keys"
)

// Handlers serves the backend routes.
type Handlers struct {
	d *common.Deps
}

// New binds the handlers to their dependencies.
func New(d *common.Deps) *Handlers {
	return &Handlers{d: d}
}

// Sign handles POST /v1/_sign and returns the HMAC a frontend sends as
// X-User-Signature.
func (h *Handlers) Sign(ctx *fasthttp.RequestCtx) {
	if !isBackendRequest(ctx) {
		logger.Warn("sign_forbidden", "remote", ctx.RemoteAddr().String())
		router.WriteJSONError(ctx, fasthttp.StatusForbidden, "forbidden")
		return
	}
	var payload models.SignRequest
	if !common.DecodeJSON(ctx, &payload) {
		return
	}
	userID := models.NormalizeEmail(payload.UserID)
	if err := ValidateUserID(userID); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("invalid user ID: %s", err.Error()))
		return
	}
	signingKey, err := getSigningKey()
	if err != nil {
		logger.Error("signing_key_unavailable", "error", err)
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	sig := auth.CreateHMACSignature(userID, signingKey)
	if err := router.WriteJSON(ctx, models.SignResponse{UserID: userID, Signature: sig}); err != nil {
		logger.Error("sign_encode_failed", "error", err)
	}
}

// RegisterUser handles POST /v1/users. Registering an existing email
// returns the stored account with 200.
func (h *Handlers) RegisterUser(ctx *fasthttp.RequestCtx) {
	if !isBackendRequest(ctx) {
		router.WriteJSONError(ctx, fasthttp.StatusForbidden, "forbidden")
		return
	}
	var req models.RegisterUserRequest
	if !common.DecodeJSON(ctx, &req) {
		return
	}
	u, created, err := h.d.Store.RegisterUser(ctx, models.User{Email: req.Email, Name: req.Name})
	if err != nil {
		common.WriteError(ctx, "register_user", err)
		return
	}
	status := fasthttp.StatusOK
	if created {
		status = fasthttp.StatusCreated
	}
	_ = router.WriteJSONStatus(ctx, status, u)
}

// ValidateUserID accepts the normalized emails used as identities.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if len(userID) > 254 {
		return fmt.Errorf("user ID too long")
	}
	if err := keys.ValidateEmail(userID); err != nil {
		return apperr.Validation("userId", err.Error())
	}
	return nil
}

func isBackendRequest(ctx *fasthttp.RequestCtx) bool {
	return string(ctx.Request.Header.Peek("X-Role-Name")) == auth.RoleBackend.String()
}

// getSigningKey returns any configured signing key. Verification accepts
// all of them, so rotation only needs the old key kept around.
func getSigningKey() (string, error) {
	for k := range config.GetSigningKeys() {
		return k, nil
	}
	return "", fmt.Errorf("signing keys not configured")
}
