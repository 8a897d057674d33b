package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/valyala/fasthttp"

	"timecapsule/pkg/api/router"
	"timecapsule/pkg/config"
	"timecapsule/pkg/logger"
	"timecapsule/pkg/models"
	"timecapsule/pkg/store/keys"
)

// caller role
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleFrontend:
		return "frontend"
	case RoleBackend:
		return "backend"
	case RoleAdmin:
		return "admin"
	default:
		return "unauth"
	}
}

// authorKey is the user value set once a signature has been verified.
const authorKey = "author"

// AuthorResolutionError represents different types of author resolution failures
type AuthorResolutionError struct {
	Type    string
	Message string
	Code    int
}

func (e *AuthorResolutionError) Error() string {
	return e.Message
}

var (
	ErrAuthorRequired     = &AuthorResolutionError{"author_required", "author required", fasthttp.StatusBadRequest}
	ErrAuthorInvalid      = &AuthorResolutionError{"author_invalid", "author must be a valid email", fasthttp.StatusBadRequest}
	ErrInvalidSignature   = &AuthorResolutionError{"invalid_signature", "missing or invalid author signature", fasthttp.StatusUnauthorized}
	ErrAuthorMismatch     = &AuthorResolutionError{"author_mismatch", "author mismatch between signature and header", fasthttp.StatusForbidden}
	ErrBackendMissingAuth = &AuthorResolutionError{"backend_missing_auth", "author required for backend requests", fasthttp.StatusBadRequest}
)

// CreateHMACSignature signs a user id with key.
func CreateHMACSignature(userID, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSignature checks a signature against every configured signing key.
func VerifyHMACSignature(userID, signature string) bool {
	for k := range config.GetSigningKeys() {
		expected := CreateHMACSignature(userID, k)
		if hmac.Equal([]byte(expected), []byte(signature)) {
			return true
		}
	}
	return false
}

// RequireSignedAuthorMiddleware verifies X-User-ID against X-User-Signature
// and records the author on success.
func RequireSignedAuthorMiddleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		userID := router.GetHeader(ctx, "X-User-ID")
		sig := router.GetHeader(ctx, "X-User-Signature")
		if sig == "" || userID == "" {
			logger.Warn("missing_signature_headers", "path", string(ctx.Path()), "remote", ctx.RemoteAddr().String())
			router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "missing signature headers")
			return
		}
		if !VerifyHMACSignature(userID, sig) {
			logger.Warn("invalid_signature", "user", userID, "remote", ctx.RemoteAddr().String(), "path", string(ctx.Path()))
			router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "invalid signature")
			return
		}
		logger.Debug("signature_verified", "user", userID, "path", string(ctx.Path()))
		ctx.SetUserValue(authorKey, userID)
		next(ctx)
	}
}

func validateAuthor(a string) (string, *AuthorResolutionError) {
	if a == "" {
		return "", ErrAuthorRequired
	}
	email := models.NormalizeEmail(a)
	if err := keys.ValidateEmail(email); err != nil {
		return "", ErrAuthorInvalid
	}
	return email, nil
}

// ResolveAuthor returns the caller's normalized email. A verified signature
// wins; backend keys may name the user in X-User-ID without signing.
func ResolveAuthor(ctx *fasthttp.RequestCtx) (string, *AuthorResolutionError) {
	if id, ok := ctx.UserValue(authorKey).(string); ok && id != "" {
		if h := router.GetHeader(ctx, "X-User-ID"); h != "" && h != id {
			logger.Warn("author_mismatch_signature_header", "signature", id, "header", h, "path", string(ctx.Path()))
			return "", ErrAuthorMismatch
		}
		return validateAuthor(id)
	}

	role := router.GetHeader(ctx, "X-Role-Name")
	if role == RoleBackend.String() {
		if h := router.GetHeader(ctx, "X-User-ID"); h != "" {
			email, err := validateAuthor(h)
			if err != nil {
				logger.Warn("invalid_backend_author", "user", h, "path", string(ctx.Path()))
			}
			return email, err
		}
		logger.Warn("backend_missing_author", "remote", ctx.RemoteAddr().String(), "path", string(ctx.Path()))
		return "", ErrBackendMissingAuth
	}

	logger.Warn("missing_author_signature", "role", role, "remote", ctx.RemoteAddr().String(), "path", string(ctx.Path()))
	return "", ErrInvalidSignature
}

// HasUserSignature reports whether the request carries a signature header.
func HasUserSignature(ctx *fasthttp.RequestCtx) bool {
	return strings.TrimSpace(string(ctx.Request.Header.Peek("X-User-Signature"))) != ""
}
