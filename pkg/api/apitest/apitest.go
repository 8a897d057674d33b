// Package apitest runs the full API over an in-memory listener for tests.
package apitest

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/textproto"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"timecapsule/internal/unlock"
	"timecapsule/pkg/api"
	"timecapsule/pkg/api/auth"
	"timecapsule/pkg/config"
	"timecapsule/pkg/media"
	"timecapsule/pkg/storage"
	"timecapsule/pkg/store"
	"timecapsule/pkg/telemetry"
)

const (
	BackendKey  = "backend-secret"
	FrontendKey = "frontend-key"
	AdminKey    = "admin-key"
	BaseURL     = "http://capsule.test"
)

// Server is a running in-memory API.
type Server struct {
	Store  *store.Store
	Runner *unlock.Runner
	// every request is traced
	Traces   *telemetry.Recorder
	TraceDir string
	MediaDir string
	Client   *fasthttp.Client
	ln       *fasthttputil.InmemoryListener
}

// Start boots the API with local media storage under t.TempDir. The server
// is shut down by t.Cleanup.
func Start(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Security.APIKeys.Backend = []string{BackendKey}
	cfg.Security.APIKeys.Frontend = []string{FrontendKey}
	cfg.Security.APIKeys.Admin = []string{AdminKey}
	rc := config.NewRuntime(cfg)
	config.SetRuntime(rc)

	st, err := store.Open(filepath.Join(dir, "db"), store.Options{})
	require.NoError(t, err)
	local, err := storage.NewLocal(filepath.Join(dir, "media"), "/media")
	require.NoError(t, err)
	runner := unlock.New(st, unlock.Options{StateDir: filepath.Join(dir, "state", "unlock")})
	traceDir := filepath.Join(dir, "state", "telemetry")
	traces, err := telemetry.New(traceDir, telemetry.Options{})
	require.NoError(t, err)

	deps := &api.Deps{
		Store:   st,
		Media:   local,
		Upload:  media.NewUploadPolicy(nil, 1<<20),
		Sweeper: runner,
		Traces:  traces,
		Version: "test",
	}
	gw := auth.NewGateway(auth.SecConfig{
		AllowedOrigins: []string{"http://app.test"},
		BackendKeys:    rc.BackendKeys,
		FrontendKeys:   rc.FrontendKeys,
		AdminKeys:      rc.AdminKeys,
	})
	srv := &fasthttp.Server{
		Handler:            api.Handler(deps, gw),
		MaxRequestBodySize: 4 << 20,
	}
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = srv.Serve(ln) }()

	s := &Server{
		Store:    st,
		Runner:   runner,
		Traces:   traces,
		TraceDir: traceDir,
		MediaDir: filepath.Join(dir, "media"),
		ln:       ln,
		Client: &fasthttp.Client{
			Dial: func(string) (net.Conn, error) { return ln.Dial() },
		},
	}
	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = ln.Close()
		gw.Close()
		traces.Close()
		_ = st.Close()
	})
	return s
}

// Dial connects to the in-memory listener.
func (s *Server) Dial(string) (net.Conn, error) { return s.ln.Dial() }

// Sign returns the signature the backend would issue for email.
func Sign(email string) string {
	return auth.CreateHMACSignature(email, BackendKey)
}

// Call is a request against the server.
type Call struct {
	Method  string
	Path    string
	Key     string
	User    string
	Body    any
	Headers map[string]string
	// raw body and content type, used instead of Body when set
	Raw         []byte
	ContentType string
}

// Do sends c and returns the status and body.
func (s *Server) Do(t *testing.T, c Call) (int, []byte) {
	t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(BaseURL + c.Path)
	req.Header.SetMethod(c.Method)
	if c.Key != "" {
		req.Header.Set("Authorization", "Bearer "+c.Key)
	}
	if c.User != "" {
		req.Header.Set("X-User-ID", c.User)
		req.Header.Set("X-User-Signature", Sign(c.User))
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	switch {
	case c.Raw != nil:
		req.Header.SetContentType(c.ContentType)
		req.SetBody(c.Raw)
	case c.Body != nil:
		b, err := json.Marshal(c.Body)
		require.NoError(t, err)
		req.Header.SetContentType("application/json")
		req.SetBody(b)
	}
	require.NoError(t, s.Client.Do(req, resp))
	return resp.StatusCode(), append([]byte(nil), resp.Body()...)
}

// Multipart builds a single-file multipart body. An empty field name
// produces a form without the file.
func Multipart(t *testing.T, field, filename, contentType string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no file"))
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}
