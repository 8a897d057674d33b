package media

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"timecapsule/pkg/apperr"
)

// DefaultAllowedTypes mirrors the upload picker of the web client.
var DefaultAllowedTypes = []string{
	"image/*",
	"video/*",
	"audio/*",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
}

// UploadPolicy decides which declared content types may be uploaded.
type UploadPolicy struct {
	Allowed  []string
	MaxBytes int64
}

// NewUploadPolicy falls back to DefaultAllowedTypes when allowed is empty.
func NewUploadPolicy(allowed []string, maxBytes int64) UploadPolicy {
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	return UploadPolicy{Allowed: allowed, MaxBytes: maxBytes}
}

// Check returns an UploadRejected for a missing, oversized or disallowed file.
func (p UploadPolicy) Check(contentType string, size int64) error {
	if size <= 0 {
		return &apperr.UploadRejected{Reason: apperr.ReasonNoFile}
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return &apperr.UploadRejected{
			Reason:  apperr.ReasonFileTooLarge,
			Message: fmt.Sprintf("file exceeds the %d byte upload limit", p.MaxBytes),
		}
	}
	ct := normalizeType(contentType)
	for _, pattern := range p.Allowed {
		if matchType(strings.ToLower(strings.TrimSpace(pattern)), ct) {
			return nil
		}
	}
	return &apperr.UploadRejected{
		Reason:  apperr.ReasonFileTypeNotAllowed,
		Message: fmt.Sprintf("file type %q is not allowed", contentType),
	}
}

func normalizeType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func matchType(pattern, ct string) bool {
	if strings.HasSuffix(pattern, "/*") {
		return strings.HasPrefix(ct, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == ct
}

// TypeForFilename guesses a content type from a file name, used when a
// client does not declare one.
func TypeForFilename(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}
