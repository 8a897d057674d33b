// Package storage holds uploaded media objects.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Open for a missing object.
var ErrNotFound = errors.New("media object not found")

// Storage stores media bodies under opaque keys and returns a URL that
// clients can fetch them from.
type Storage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	// Ping reports whether the backend can currently accept uploads.
	Ping(ctx context.Context) error
}

// ObjectKey derives a fresh object key from an upload's file name. Only the
// lowercased extension of the original name survives.
func ObjectKey(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 10 || strings.ContainsAny(ext, " :?#%") {
		ext = ""
	}
	return uuid.NewString() + ext
}

// ValidKey reports whether key has the shape produced by ObjectKey.
func ValidKey(key string) bool {
	if key == "" || len(key) > 64 {
		return false
	}
	if strings.ContainsAny(key, "/\\:") || strings.Contains(key, "..") {
		return false
	}
	id := strings.TrimSuffix(key, path.Ext(key))
	_, err := uuid.Parse(id)
	return err == nil
}
