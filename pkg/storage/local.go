package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"timecapsule/pkg/logger"
)

// Local keeps media on disk and serves it back through the API.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates dir if needed. URLs are built as baseURL + "/" + key;
// baseURL is typically "/media".
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create media dir %s: %w", dir, err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp media file: %w", err)
	}
	defer os.Remove(tmp.Name())
	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write media %s: %w", key, err)
	}
	if size > 0 && n != size {
		return "", fmt.Errorf("write media %s: short body (%d of %d bytes)", key, n, size)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, key)); err != nil {
		return "", fmt.Errorf("store media %s: %w", key, err)
	}
	logger.Debug("media_stored", "driver", "local", "key", key, "bytes", n, "content_type", contentType)
	return l.baseURL + "/" + key, nil
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	if !ValidKey(key) {
		return nil, "", ErrNotFound
	}
	f, err := os.Open(filepath.Join(l.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return f, ct, nil
}

func (l *Local) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fi, err := os.Stat(l.dir)
	if err != nil {
		return fmt.Errorf("media dir %s: %w", l.dir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("media dir %s is not a directory", l.dir)
	}
	return nil
}
