package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureStateDirs(t *testing.T) {
	p := PathsFor(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, EnsureStateDirs(p))
	for _, dir := range []string{p.Store, p.Media, p.Audit, p.Unlock, p.Tmp} {
		fi, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}
	assert.Equal(t, filepath.Join(p.DB, "state", "unlock"), UnlockPath(p.DB))
}

func TestEnsureStateDirsRefusesFile(t *testing.T) {
	root := t.TempDir()
	p := PathsFor(root)
	require.NoError(t, os.WriteFile(p.Store, []byte("x"), 0o600))
	assert.Error(t, EnsureStateDirs(p))
}

func TestEnsureStateDirsRefusesSymlink(t *testing.T) {
	root := t.TempDir()
	p := PathsFor(filepath.Join(root, "db"))
	require.NoError(t, os.MkdirAll(p.DB, 0o700))
	require.NoError(t, os.Symlink(t.TempDir(), p.Media))
	assert.Error(t, EnsureStateDirs(p))
}
