package api_test

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timecapsule/internal/unlock"
	"timecapsule/pkg/aggregate"
	"timecapsule/pkg/api/apitest"
	"timecapsule/pkg/api/router"
	"timecapsule/pkg/media"
	"timecapsule/pkg/models"
	"timecapsule/pkg/view"
)

const (
	alice = "alice@example.com"
	bob   = "bob@example.com"
	carol = "carol@example.com"
)

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func register(t *testing.T, s *apitest.Server, name, email string) {
	t.Helper()
	code, body := s.Do(t, apitest.Call{Method: "POST", Path: "/v1/users", Key: apitest.BackendKey,
		Body: models.RegisterUserRequest{Name: name, Email: email}})
	require.Contains(t, []int{http.StatusCreated, http.StatusOK}, code, string(body))
}

func createCapsule(t *testing.T, s *apitest.Server, user string, req models.CreateCapsuleRequest) (int, []byte) {
	t.Helper()
	return s.Do(t, apitest.Call{Method: "POST", Path: "/v1/capsules", Key: apitest.FrontendKey, User: user, Body: req})
}

func TestGatewayRoles(t *testing.T) {
	s := apitest.Start(t)
	cases := []struct {
		name string
		call apitest.Call
		want int
	}{
		{"health is public", apitest.Call{Method: "GET", Path: "/healthz"}, 200},
		{"ready is public", apitest.Call{Method: "GET", Path: "/readyz"}, 200},
		{"no key", apitest.Call{Method: "GET", Path: "/v1/capsules"}, 401},
		{"unknown key", apitest.Call{Method: "GET", Path: "/v1/capsules", Key: "nope"}, 401},
		{"admin outside admin", apitest.Call{Method: "GET", Path: "/v1/capsules", Key: apitest.AdminKey}, 403},
		{"frontend on admin", apitest.Call{Method: "GET", Path: "/admin/health", Key: apitest.FrontendKey}, 403},
		{"frontend on users", apitest.Call{Method: "POST", Path: "/v1/users", Key: apitest.FrontendKey, Body: map[string]string{}}, 403},
		{"frontend unsigned", apitest.Call{Method: "GET", Path: "/v1/capsules", Key: apitest.FrontendKey}, 401},
		{"bad signature", apitest.Call{Method: "GET", Path: "/v1/capsules", Key: apitest.FrontendKey,
			Headers: map[string]string{"X-User-ID": alice, "X-User-Signature": "deadbeef"}}, 401},
		{"backend without author", apitest.Call{Method: "GET", Path: "/v1/capsules", Key: apitest.BackendKey}, 400},
		{"backend acting as user", apitest.Call{Method: "GET", Path: "/v1/capsules", Key: apitest.BackendKey,
			Headers: map[string]string{"X-User-ID": alice}}, 200},
		{"signed frontend", apitest.Call{Method: "GET", Path: "/v1/capsules", Key: apitest.FrontendKey, User: alice}, 200},
		{"admin health", apitest.Call{Method: "GET", Path: "/admin/health", Key: apitest.AdminKey}, 200},
		{"admin metrics", apitest.Call{Method: "GET", Path: "/admin/debug/prometheus", Key: apitest.AdminKey}, 200},
		{"method not allowed", apitest.Call{Method: "DELETE", Path: "/v1/capsules", Key: apitest.FrontendKey, User: alice}, 405},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := s.Do(t, tc.call)
			assert.Equal(t, tc.want, code, string(body))
		})
	}
}

func TestReadyChecksMediaStorage(t *testing.T) {
	s := apitest.Start(t)
	code, _ := s.Do(t, apitest.Call{Method: "GET", Path: "/readyz"})
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, os.RemoveAll(s.MediaDir))
	code, body := s.Do(t, apitest.Call{Method: "GET", Path: "/readyz"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(body), "media storage")
}

func TestCORSPreflight(t *testing.T) {
	s := apitest.Start(t)
	code, _ := s.Do(t, apitest.Call{Method: "OPTIONS", Path: "/v1/capsules",
		Headers: map[string]string{"Origin": "http://app.test"}})
	assert.Equal(t, http.StatusNoContent, code)
}

func TestSignAndRegister(t *testing.T) {
	s := apitest.Start(t)
	code, body := s.Do(t, apitest.Call{Method: "POST", Path: "/v1/_sign", Key: apitest.BackendKey,
		Body: models.SignRequest{UserID: "Alice@Example.com"}})
	require.Equal(t, http.StatusOK, code, string(body))
	sig := decode[models.SignResponse](t, body)
	assert.Equal(t, alice, sig.UserID)
	assert.Equal(t, apitest.Sign(alice), sig.Signature)

	code, _ = s.Do(t, apitest.Call{Method: "POST", Path: "/v1/_sign", Key: apitest.BackendKey,
		Body: models.SignRequest{UserID: "a:b"}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.Do(t, apitest.Call{Method: "POST", Path: "/v1/users", Key: apitest.BackendKey,
		Body: models.RegisterUserRequest{Name: "Alice", Email: alice}})
	require.Equal(t, http.StatusCreated, code, string(body))
	code, _ = s.Do(t, apitest.Call{Method: "POST", Path: "/v1/users", Key: apitest.BackendKey,
		Body: models.RegisterUserRequest{Name: "Alice", Email: alice}})
	assert.Equal(t, http.StatusOK, code)
}

func TestPersonalCapsuleFlow(t *testing.T) {
	s := apitest.Start(t)
	code, body := createCapsule(t, s, alice, models.CreateCapsuleRequest{
		Title:    "to me in 2099",
		Content:  "hello",
		Media:    []media.Ref{{URL: "/media/clip.mp4"}},
		LockDate: "2099-01-01",
		Type:     models.KindPersonal,
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	created := decode[view.CreateCapsuleResponse](t, body)
	assert.Nil(t, created.MemberStatus)
	assert.True(t, created.Capsule.Lock.Locked)
	assert.Empty(t, created.Capsule.Content)
	assert.Empty(t, created.Capsule.Media)

	code, body = createCapsule(t, s, alice, models.CreateCapsuleRequest{
		Title: "open", Content: "now", LockDate: "2000-01-01", Type: models.KindPersonal,
		Media: []media.Ref{{URL: "/media/a.mp3"}},
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	open := decode[view.CreateCapsuleResponse](t, body).Capsule
	assert.False(t, open.Lock.Locked)
	assert.Equal(t, "now", open.Content)
	require.Len(t, open.Media, 1)
	assert.Equal(t, media.KindAudio, open.Media[0].Kind)

	code, body = s.Do(t, apitest.Call{Method: "GET", Path: "/v1/capsules", Key: apitest.FrontendKey, User: alice})
	require.Equal(t, http.StatusOK, code)
	list := decode[[]view.Capsule](t, body)
	assert.Len(t, list, 2)

	code, body = s.Do(t, apitest.Call{Method: "GET", Path: "/v1/capsules/tree?type=personal", Key: apitest.FrontendKey, User: alice})
	require.Equal(t, http.StatusOK, code, string(body))
	tree := decode[view.TreeResponse](t, body)
	assert.Equal(t, aggregate.Tally{Locked: 1, Unlocked: 1}, tree.Counts)
	require.Len(t, tree.Groups, 1)

	code, _ = s.Do(t, apitest.Call{Method: "GET", Path: "/v1/capsules/tree?type=other", Key: apitest.FrontendKey, User: alice})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.Do(t, apitest.Call{Method: "GET", Path: "/v1/capsules/" + open.ID, Key: apitest.FrontendKey, User: alice})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, open.ID, decode[view.Capsule](t, body).ID)

	code, _ = s.Do(t, apitest.Call{Method: "GET", Path: "/v1/capsules/" + open.ID, Key: apitest.FrontendKey, User: bob})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.Do(t, apitest.Call{Method: "POST", Path: "/v1/capsules/" + open.ID + "/entries", Key: apitest.FrontendKey, User: alice,
		Body: models.CreateEntryRequest{Content: "more"}})
	assert.Equal(t, http.StatusConflict, code)
}

func TestCreateCapsuleClassifiesMediaByType(t *testing.T) {
	s := apitest.Start(t)
	code, body := createCapsule(t, s, alice, models.CreateCapsuleRequest{
		Title: "kinds", LockDate: "2000-01-01", Type: models.KindPersonal,
		Media: []media.Ref{
			{URL: "/media/a.png", Type: "image/png", Kind: media.KindVideo},
			{URL: "/media/clip.mp4", Kind: media.KindAudio},
		},
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	got := decode[view.CreateCapsuleResponse](t, body).Capsule
	require.Len(t, got.Media, 2)
	assert.Equal(t, media.KindImage, got.Media[0].Kind)
	assert.Equal(t, media.KindVideo, got.Media[1].Kind)
}

func TestCreateCapsuleValidation(t *testing.T) {
	s := apitest.Start(t)
	cases := []struct {
		name string
		req  models.CreateCapsuleRequest
	}{
		{"no title", models.CreateCapsuleRequest{Type: models.KindPersonal}},
		{"bad type", models.CreateCapsuleRequest{Title: "x", Type: "group"}},
		{"bad lock date", models.CreateCapsuleRequest{Title: "x", Type: models.KindPersonal, LockDate: "tomorrow"}},
		{"no members", models.CreateCapsuleRequest{Title: "x", Type: models.KindCollaborative}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := createCapsule(t, s, alice, tc.req)
			assert.Equal(t, http.StatusBadRequest, code, string(body))
		})
	}
	code, _ := s.Do(t, apitest.Call{Method: "POST", Path: "/v1/capsules", Key: apitest.FrontendKey, User: alice,
		Raw: []byte(`{"title":"x","type":"personal","extra":1}`), ContentType: "application/json"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCollaborativePartialSuccess(t *testing.T) {
	s := apitest.Start(t)
	register(t, s, "Alice", alice)
	register(t, s, "Bob", bob)

	code, body := createCapsule(t, s, alice, models.CreateCapsuleRequest{
		Title: "reunion",
		Type:  models.KindCollaborative,
		MemberEmails: []models.Member{
			{Name: "Unknown", Email: "BOB@example.com"},
			{Name: "Carol", Email: carol},
		},
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	resp := decode[view.CreateCapsuleResponse](t, body)
	require.NotNil(t, resp.MemberStatus)
	require.Len(t, resp.MemberStatus.Found, 1)
	assert.Equal(t, "Bob", resp.MemberStatus.Found[0].Name)
	require.Len(t, resp.MemberStatus.NotFound, 1)
	assert.Equal(t, carol, resp.MemberStatus.NotFound[0].Email)

	c := resp.Capsule
	var emails []string
	for _, m := range c.Members {
		emails = append(emails, m.Email)
	}
	assert.Equal(t, []string{alice, bob}, emails)

	entryPath := "/v1/capsules/" + c.ID + "/entries"
	code, body = s.Do(t, apitest.Call{Method: "POST", Path: entryPath, Key: apitest.FrontendKey, User: bob,
		Body: models.CreateEntryRequest{Content: "see you", LockDate: "2099-06-01T10:00:00Z"}})
	require.Equal(t, http.StatusCreated, code, string(body))
	entry := decode[view.CreateEntryResponse](t, body).Entry
	assert.True(t, entry.Lock.Locked)
	assert.Empty(t, entry.Content)

	code, _ = s.Do(t, apitest.Call{Method: "POST", Path: entryPath, Key: apitest.FrontendKey, User: carol,
		Body: models.CreateEntryRequest{Content: "let me in"}})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.Do(t, apitest.Call{Method: "POST", Path: entryPath, Key: apitest.FrontendKey, User: bob,
		Body: models.CreateEntryRequest{}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.Do(t, apitest.Call{Method: "POST", Path: "/v1/capsules/missing/entries", Key: apitest.FrontendKey, User: bob,
		Body: models.CreateEntryRequest{Content: "x"}})
	assert.Equal(t, http.StatusNotFound, code)

	// bob sees the capsule; the partitioned listing puts it under collaborative
	code, body = s.Do(t, apitest.Call{Method: "GET", Path: "/v1/capsules?partition=type", Key: apitest.FrontendKey, User: bob})
	require.Equal(t, http.StatusOK, code)
	parts := decode[aggregate.Partitioned[view.Capsule]](t, body)
	assert.Empty(t, parts.Personal)
	require.Len(t, parts.Collaborative, 1)
	require.Len(t, parts.Collaborative[0].Entries, 1)

	var coll aggregate.Collection[view.Capsule]
	require.NoError(t, json.Unmarshal(body, &coll))
	assert.Len(t, coll.Items, 1)
}

func TestVerifyMembers(t *testing.T) {
	s := apitest.Start(t)
	register(t, s, "Bob", bob)
	code, body := s.Do(t, apitest.Call{Method: "POST", Path: "/v1/members/verify", Key: apitest.FrontendKey, User: alice,
		Body: []models.Member{{Name: "B", Email: bob}, {Name: "C", Email: carol}}})
	require.Equal(t, http.StatusOK, code, string(body))
	p := decode[models.Partition](t, body)
	assert.Len(t, p.Found, 1)
	assert.Len(t, p.NotFound, 1)

	code, _ = s.Do(t, apitest.Call{Method: "POST", Path: "/v1/members/verify", Key: apitest.FrontendKey, User: alice,
		Body: []models.Member{}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUpload(t *testing.T) {
	s := apitest.Start(t)
	upload := func(field, name, ct string, data []byte) (int, []byte) {
		raw, formType := apitest.Multipart(t, field, name, ct, data)
		return s.Do(t, apitest.Call{Method: "POST", Path: "/v1/capsules/upload", Key: apitest.FrontendKey, User: alice,
			Raw: raw, ContentType: formType})
	}

	code, body := upload("", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	rej := decode[router.ErrorBody](t, body)
	assert.Equal(t, "no_file", rej.Error)

	code, body = upload("media_file", "x.zip", "application/zip", []byte("PK"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "file_type_not_allowed", decode[router.ErrorBody](t, body).Error)

	code, body = upload("media_file", "big.png", "image/png", make([]byte, 2<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "file_too_large", decode[router.ErrorBody](t, body).Error)

	code, body = upload("media_file", "Photo.PNG", "image/png", []byte("png-bytes"))
	require.Equal(t, http.StatusCreated, code, string(body))
	up := decode[models.UploadResponse](t, body)
	assert.True(t, strings.HasPrefix(up.URL, "/media/"))
	assert.True(t, strings.HasSuffix(up.URL, ".png"))
	assert.Equal(t, "image/png", up.Type)

	code, body = s.Do(t, apitest.Call{Method: "GET", Path: up.URL})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "png-bytes", string(body))

	code, _ = s.Do(t, apitest.Call{Method: "GET", Path: "/media/not-a-key.png"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminRoutes(t *testing.T) {
	s := apitest.Start(t)
	code, body := createCapsule(t, s, alice, models.CreateCapsuleRequest{Title: "old", Type: models.KindPersonal, LockDate: "2001-01-01"})
	require.Equal(t, http.StatusCreated, code, string(body))

	code, body = s.Do(t, apitest.Call{Method: "POST", Path: "/admin/jobs/unlock-sweep", Key: apitest.AdminKey})
	require.Equal(t, http.StatusOK, code, string(body))
	rep := decode[unlock.Report](t, body)
	assert.Len(t, rep.Unlocked, 1)

	code, body = s.Do(t, apitest.Call{Method: "GET", Path: "/admin/stats", Key: apitest.AdminKey})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"capsules":1,"personal":1,"collaborative":0,"entries":0,"pending_writes":2}`, string(body))

	code, body = s.Do(t, apitest.Call{Method: "GET", Path: "/admin/keys?prefix=unl:", Key: apitest.AdminKey})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "unl:capsule:")

	code, _ = s.Do(t, apitest.Call{Method: "GET", Path: "/admin/keys?limit=-1", Key: apitest.AdminKey})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateCapsuleIsTraced(t *testing.T) {
	s := apitest.Start(t)
	code, body := createCapsule(t, s, alice, models.CreateCapsuleRequest{Title: "traced", Type: models.KindPersonal})
	require.Equal(t, http.StatusCreated, code, string(body))
	s.Traces.Close()

	raw, err := os.ReadFile(filepath.Join(s.TraceDir, "create_capsule.jsonl"))
	require.NoError(t, err)
	var tr struct {
		Name  string `json:"name"`
		Steps []struct {
			Name string `json:"name"`
		} `json:"steps"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.SplitN(string(raw), "\n", 2)[0]), &tr))
	assert.Equal(t, "create_capsule", tr.Name)
	var steps []string
	for _, st := range tr.Steps {
		steps = append(steps, st.Name)
	}
	assert.Subset(t, steps, []string{"decode", "store"})
}
