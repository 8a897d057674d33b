package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timecapsule/pkg/api/apitest"
	"timecapsule/pkg/apperr"
	"timecapsule/pkg/view"
)

type harness struct {
	t       *testing.T
	srv     *apitest.Server
	cfgPath string
	input   string
}

func newHarness(t *testing.T, user string) *harness {
	t.Helper()
	h := &harness{t: t, srv: apitest.Start(t), cfgPath: filepath.Join(t.TempDir(), "capsulectl.yaml")}
	cfg := &Config{
		BaseURL:    apitest.BaseURL,
		APIKey:     apitest.FrontendKey,
		BackendKey: apitest.BackendKey,
	}
	if user != "" {
		cfg.UserID = user
		cfg.Signature = apitest.Sign(user)
	}
	require.NoError(t, SaveToFile(cfg, h.cfgPath))
	return h
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	root := NewRootCmd("test", "none",
		WithDial(h.srv.Dial),
		WithLookup(func(string) (string, bool) { return "", false }),
		WithInput(strings.NewReader(h.input)),
	)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func TestSignSavesProfile(t *testing.T) {
	h := newHarness(t, "")
	out := h.mustRun("sign", "Alice@Example.com", "--save")
	assert.Contains(t, out, "saved to "+h.cfgPath)

	cfg, err := LoadFromFile(h.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", cfg.UserID)
	assert.Equal(t, apitest.Sign("alice@example.com"), cfg.Signature)
	assert.Equal(t, apitest.BaseURL, cfg.BaseURL)
}

func TestCreateListAndShow(t *testing.T) {
	h := newHarness(t, "alice@example.com")
	out := h.mustRun("register", "--name", "Bob", "--email", "bob@example.com")
	assert.Contains(t, out, "registered Bob <bob@example.com>")

	out = h.mustRun("create", "personal", "--title", "For 2099", "--content", "hello future", "--lock-date", "2099-01-01")
	assert.Contains(t, out, "For 2099  [personal]")
	assert.Contains(t, out, "locked, opens in")
	assert.NotContains(t, out, "hello future")

	h.input = "\n"
	out = h.mustRun("create", "collaborative", "--title", "Trip", "--content", "photos",
		"--members", "Bob <bob@example.com>, carol@example.com")
	assert.Contains(t, out, "not found and were not added: carol@example.com")
	assert.Contains(t, out, "Press enter to continue")
	assert.Contains(t, out, "Trip  [collaborative]")
	assert.Contains(t, out, "Bob <bob@example.com>")
	assert.NotContains(t, out, "<carol@example.com>")

	out = h.mustRun("list")
	assert.Contains(t, out, "1 locked, 1 unlocked")

	out = h.mustRun("list", "--type", "collaborative", "-o", "json")
	var tree view.TreeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	require.Len(t, tree.Groups, 1)
	require.Len(t, tree.Groups[0].Capsules, 1)
	assert.Equal(t, 0, tree.Counts.Locked)
	assert.Equal(t, 1, tree.Counts.Unlocked)

	id := tree.Groups[0].Capsules[0].ID
	out = h.mustRun("show", id)
	assert.Contains(t, out, "photos")
}

func TestCreateCollaborativeNeedsMembers(t *testing.T) {
	h := newHarness(t, "alice@example.com")
	_, err := h.run("create", "collaborative", "--title", "Empty", "--members", " , ,")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.ErrorIs(t, err, apperr.ErrNoMembers)
}

func TestListRejectsUnknownType(t *testing.T) {
	h := newHarness(t, "alice@example.com")
	_, err := h.run("list", "--type", "shared")
	assert.True(t, apperr.IsValidation(err))
}

func TestEntryAddWithFile(t *testing.T) {
	h := newHarness(t, "alice@example.com")
	h.input = "\n"
	out := h.mustRun("create", "collaborative", "--title", "Class of 2030", "--members", "alice@example.com", "-y")
	_ = out

	listOut := h.mustRun("list", "-o", "json")
	var tree view.TreeResponse
	require.NoError(t, json.Unmarshal([]byte(listOut), &tree))
	require.Len(t, tree.Groups, 1)
	id := tree.Groups[0].Capsules[0].ID

	note := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(note, []byte("see you then"), 0o600))
	out = h.mustRun("entry", "add", id, "--content", "first entry", "--file", note)
	assert.Contains(t, out, "entry added to "+id)
	assert.Contains(t, out, "first entry")
	assert.Contains(t, out, "/media/")

	out = h.mustRun("show", id)
	assert.Contains(t, out, "entries (1):")
}

func TestUploadRejectsType(t *testing.T) {
	h := newHarness(t, "alice@example.com")
	bin := filepath.Join(t.TempDir(), "tool.exe")
	require.NoError(t, os.WriteFile(bin, []byte{0x4d, 0x5a}, 0o600))
	_, err := h.run("upload", bin, "--type", "application/x-msdownload")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrFileTypeNotAllowed)

	img := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	out := h.mustRun("upload", img)
	assert.Contains(t, out, "uploaded pic.png (8 B, image/png)")
}

func TestCreatePersonalWithFile(t *testing.T) {
	h := newHarness(t, "alice@example.com")
	bin := filepath.Join(t.TempDir(), "tool.exe")
	require.NoError(t, os.WriteFile(bin, []byte{0x4d, 0x5a}, 0o600))
	_, err := h.run("create", "personal", "--title", "bad", "--lock-date", "2000-01-01",
		"--file", bin, "--type", "application/x-msdownload")
	assert.ErrorIs(t, err, apperr.ErrFileTypeNotAllowed)

	var tree view.TreeResponse
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("list", "-o", "json")), &tree))
	assert.Zero(t, tree.Counts.Locked+tree.Counts.Unlocked)

	img := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	out := h.mustRun("create", "personal", "--title", "good", "--lock-date", "2000-01-01", "--file", img)
	assert.Contains(t, out, "good")
	assert.Contains(t, out, "/media/")
	assert.Contains(t, out, "image")
}

func TestWatchRevealsContent(t *testing.T) {
	h := newHarness(t, "alice@example.com")
	lock := time.Now().UTC().Add(2 * time.Second).Truncate(time.Second).Format(time.RFC3339)
	h.mustRun("create", "personal", "--title", "Soon", "--content", "surprise", "--lock-date", lock)

	listOut := h.mustRun("list", "-o", "json")
	var tree view.TreeResponse
	require.NoError(t, json.Unmarshal([]byte(listOut), &tree))
	id := tree.Groups[0].Capsules[0].ID

	out := h.mustRun("watch", id, "--interval", "100ms")
	assert.Contains(t, out, "watching 1 locked item(s)")
	assert.Contains(t, out, "== Soon unlocked ==")
	assert.Contains(t, out, "surprise")
}

func TestWatchNothingLocked(t *testing.T) {
	h := newHarness(t, "alice@example.com")
	h.mustRun("create", "personal", "--title", "Open", "--content", "now")
	var tree view.TreeResponse
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("list", "-o", "json")), &tree))
	out := h.mustRun("watch", tree.Groups[0].Capsules[0].ID)
	assert.Contains(t, out, "nothing is locked")
}

func TestConfigLayering(t *testing.T) {
	cfg := &Config{BaseURL: "http://file", APIKey: "file-key"}
	cfg.ApplyEnv(func(k string) (string, bool) {
		switch k {
		case "CAPSULECTL_API_KEY":
			return "env-key", true
		case "CAPSULECTL_USER_ID":
			return "", true
		}
		return "", false
	})
	assert.Equal(t, "http://file", cfg.BaseURL)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "", cfg.UserID)

	s := cfg.BackendSession()
	assert.Equal(t, "env-key", s.APIKey)
	cfg.BackendKey = "bk"
	assert.Equal(t, "bk", cfg.BackendSession().APIKey)

	missing, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Config{}, *missing)
}
