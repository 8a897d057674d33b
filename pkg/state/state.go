// Package state owns the filesystem layout under the database root.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// EnsureStateDirs creates the runtime folders under dbPath. Each must be a
// real, writable directory; symlinks are refused.
func EnsureStateDirs(p Paths) error {
	for _, dir := range []string{p.Store, p.Media, p.Audit, p.Unlock, p.Tmp, p.Telemetry} {
		if err := ensureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

func ensureDir(p string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("cannot create parent for %s: %w", p, err)
	}
	if fi, err := os.Lstat(p); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("path is a symlink: %s", p)
		}
		if !fi.IsDir() {
			return fmt.Errorf("path exists and is not a directory: %s", p)
		}
	}
	if err := os.MkdirAll(p, 0o700); err != nil {
		return fmt.Errorf("cannot create path %s: %w", p, err)
	}
	tmp, err := os.CreateTemp(p, ".validate-*")
	if err != nil {
		return fmt.Errorf("path not writable: %s: %w", p, err)
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())
	return nil
}

var (
	PathsVar Paths
	initOnce sync.Once
	initErr  error
)

// Init resolves the layout for dbPath and creates it. Only the first call
// has an effect.
func Init(dbPath string) error {
	initOnce.Do(func() {
		path := strings.TrimSpace(dbPath)
		if path == "" {
			path = "./.database"
		}
		PathsVar = PathsFor(filepath.Clean(path))
		initErr = EnsureStateDirs(PathsVar)
	})
	return initErr
}
