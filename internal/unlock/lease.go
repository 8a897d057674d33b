package unlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"timecapsule/pkg/logger"
	"timecapsule/pkg/timeutil"
)

var errNotOwner = errors.New("lease not owned")

// fileLease guards a sweep so that only one process runs it at a time. The
// lease is a small JSON file created via hard link, which fails when the file
// already exists.
type fileLease struct {
	path string
}

type leaseFile struct {
	Owner   string    `json:"owner"`
	Expires time.Time `json:"expires"`
}

func newFileLease(dir string) *fileLease {
	return &fileLease{path: filepath.Join(dir, "unlock.lock")}
}

func (l *fileLease) write(path string, lf leaseFile) error {
	b, err := json.Marshal(lf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func (l *fileLease) read() (leaseFile, error) {
	var lf leaseFile
	data, err := os.ReadFile(l.path)
	if err != nil {
		return lf, err
	}
	err = json.Unmarshal(data, &lf)
	return lf, err
}

// Acquire takes the lease for owner, replacing an expired holder.
func (l *fileLease) Acquire(owner string, ttl time.Duration) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return false, fmt.Errorf("create lease dir: %w", err)
	}
	now := timeutil.Now()
	tmp := l.path + "." + owner + ".tmp"
	if err := l.write(tmp, leaseFile{Owner: owner, Expires: now.Add(ttl)}); err != nil {
		logger.Error("unlock_lease_tmp_write_failed", "path", tmp, "error", err)
		return false, err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, l.path); err == nil {
		return true, nil
	}
	existing, err := l.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		// a torn lease file is treated as expired
		logger.Warn("unlock_lease_unreadable", "path", l.path, "error", err)
	} else if err == nil && existing.Expires.After(now) {
		logger.Debug("unlock_lease_held", "owner", existing.Owner, "expires", existing.Expires)
		return false, nil
	}
	if err := os.Rename(tmp, l.path); err != nil {
		logger.Error("unlock_lease_replace_failed", "error", err)
		return false, err
	}
	return true, nil
}

// Renew pushes the expiry forward. It fails when another owner took over.
func (l *fileLease) Renew(owner string, ttl time.Duration) error {
	existing, err := l.read()
	if err != nil {
		return err
	}
	if existing.Owner != owner {
		return errNotOwner
	}
	existing.Expires = timeutil.Now().Add(ttl)
	tmp := l.path + "." + owner + ".tmp"
	if err := l.write(tmp, existing); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

// Release removes the lease file if owner still holds it.
func (l *fileLease) Release(owner string) error {
	existing, err := l.read()
	if err != nil {
		return err
	}
	if existing.Owner != owner {
		return errNotOwner
	}
	return os.Remove(l.path)
}
