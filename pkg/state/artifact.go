package state

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	artifactOnce sync.Once
	artifactRoot string
)

// ArtifactRoot is an optional directory that overrides the default database
// location, set through TIMECAPSULE_ARTIFACT_ROOT.
func ArtifactRoot() string {
	artifactOnce.Do(func() {
		c := strings.TrimSpace(os.Getenv("TIMECAPSULE_ARTIFACT_ROOT"))
		if c == "" {
			return
		}
		if abs, err := filepath.Abs(c); err == nil {
			artifactRoot = abs
		} else {
			artifactRoot = c
		}
	})
	return artifactRoot
}

func ArtifactPath(elem ...string) string {
	root := ArtifactRoot()
	if root == "" {
		return ""
	}
	parts := append([]string{root}, elem...)
	return filepath.Join(parts...)
}
