// Package client talks to the capsule service over HTTP. Every call takes
// the caller's Session explicitly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"timecapsule/pkg/aggregate"
	"timecapsule/pkg/apperr"
	"timecapsule/pkg/models"
	"timecapsule/pkg/view"
)

const defaultTimeout = 30 * time.Second

// Session identifies the caller. Frontend sessions carry a user id and the
// signature issued for it; backend sessions may omit the signature.
type Session struct {
	BaseURL   string
	APIKey    string
	UserID    string
	Signature string
}

// Validate checks the fields every call needs.
func (s Session) Validate() error {
	if s.BaseURL == "" {
		return apperr.Validation("base_url", "server URL is required")
	}
	if s.APIKey == "" {
		return apperr.Validation("api_key", "API key is required")
	}
	return nil
}

// Client is safe for concurrent use.
type Client struct {
	hc      *fasthttp.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithDial replaces the dialer, e.g. with an in-memory listener.
func WithDial(d fasthttp.DialFunc) Option {
	return func(c *Client) { c.hc.Dial = d }
}

// WithTimeout bounds calls whose context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New builds a Client.
func New(opts ...Option) *Client {
	c := &Client{
		hc:      &fasthttp.Client{Name: "capsulectl", MaxResponseBodySize: 64 << 20},
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type call struct {
	op          string
	method      string
	path        string
	body        []byte
	contentType string
	upload      bool
}

func jsonCall(op, method, path string, in any) (call, error) {
	c := call{op: op, method: method, path: path}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return c, fmt.Errorf("%s: encode request: %w", op, err)
		}
		c.body = b
		c.contentType = "application/json"
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, s Session, cl call, out any) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &apperr.TransportError{Op: cl.op, Err: err}
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimRight(s.BaseURL, "/") + cl.path)
	req.Header.SetMethod(cl.method)
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	if s.UserID != "" {
		req.Header.Set("X-User-ID", s.UserID)
	}
	if s.Signature != "" {
		req.Header.Set("X-User-Signature", s.Signature)
	}
	if cl.body != nil {
		req.Header.SetContentType(cl.contentType)
		req.SetBody(cl.body)
	}

	var err error
	if dl, ok := ctx.Deadline(); ok {
		err = c.hc.DoDeadline(req, resp, dl)
	} else {
		err = c.hc.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		return &apperr.TransportError{Op: cl.op, Err: err}
	}

	status := resp.StatusCode()
	if status >= 300 {
		return responseError(cl, status, resp.Body())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &apperr.TransportError{Op: cl.op, Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// responseError turns a non-2xx response into a TransportError, or an
// UploadRejected for upload rejections that carry a known reason.
func responseError(cl call, status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	if cl.upload {
		switch eb.Error {
		case apperr.ReasonFileTypeNotAllowed, apperr.ReasonNoFile, apperr.ReasonFileTooLarge:
			return &apperr.UploadRejected{Reason: eb.Error, Message: eb.Message}
		}
	}
	te := &apperr.TransportError{Op: cl.op, Status: status}
	if status < 500 {
		te.Message = eb.Error
	}
	return te
}

// Sign asks the service for the signature of email. Requires a backend key.
func (c *Client) Sign(ctx context.Context, s Session, email string) (models.SignResponse, error) {
	var out models.SignResponse
	cl, err := jsonCall("sign", "POST", "/v1/_sign", models.SignRequest{UserID: email})
	if err != nil {
		return out, err
	}
	return out, c.do(ctx, s, cl, &out)
}

// RegisterUser makes an email resolvable as a collaborator. Requires a
// backend key.
func (c *Client) RegisterUser(ctx context.Context, s Session, req models.RegisterUserRequest) (models.User, error) {
	var out models.User
	cl, err := jsonCall("register user", "POST", "/v1/users", req)
	if err != nil {
		return out, err
	}
	return out, c.do(ctx, s, cl, &out)
}

// CreateCapsule creates a personal or collaborative capsule.
func (c *Client) CreateCapsule(ctx context.Context, s Session, req models.CreateCapsuleRequest) (view.CreateCapsuleResponse, error) {
	var out view.CreateCapsuleResponse
	cl, err := jsonCall("create capsule", "POST", "/v1/capsules", req)
	if err != nil {
		return out, err
	}
	return out, c.do(ctx, s, cl, &out)
}

// AddEntry appends an entry to a collaborative capsule.
func (c *Client) AddEntry(ctx context.Context, s Session, capsuleID string, req models.CreateEntryRequest) (view.Entry, error) {
	var out view.CreateEntryResponse
	cl, err := jsonCall("add entry", "POST", "/v1/capsules/"+url.PathEscape(capsuleID)+"/entries", req)
	if err != nil {
		return out.Entry, err
	}
	err = c.do(ctx, s, cl, &out)
	return out.Entry, err
}

// GetCapsule fetches one capsule as the caller may currently see it.
func (c *Client) GetCapsule(ctx context.Context, s Session, id string) (view.Capsule, error) {
	var out view.Capsule
	return out, c.do(ctx, s, call{op: "get capsule", method: "GET", path: "/v1/capsules/" + url.PathEscape(id)}, &out)
}

// ListCapsules fetches the caller's capsules. Both the flat and the
// partitioned response shapes are accepted.
func (c *Client) ListCapsules(ctx context.Context, s Session, partitioned bool) ([]view.Capsule, error) {
	path := "/v1/capsules"
	if partitioned {
		path += "?partition=type"
	}
	var out aggregate.Collection[view.Capsule]
	if err := c.do(ctx, s, call{op: "list capsules", method: "GET", path: path}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Tree fetches the day-grouped view of one capsule kind.
func (c *Client) Tree(ctx context.Context, s Session, kind models.Kind) (view.TreeResponse, error) {
	var out view.TreeResponse
	path := "/v1/capsules/tree?type=" + url.QueryEscape(string(kind))
	return out, c.do(ctx, s, call{op: "capsule tree", method: "GET", path: path}, &out)
}

// VerifyMembers partitions proposed collaborators by registration.
func (c *Client) VerifyMembers(ctx context.Context, s Session, proposed []models.Member) (models.Partition, error) {
	var out models.Partition
	if len(proposed) == 0 {
		return out, apperr.ErrNoMembers
	}
	cl, err := jsonCall("verify members", "POST", "/v1/members/verify", proposed)
	if err != nil {
		return out, err
	}
	return out, c.do(ctx, s, cl, &out)
}

// UploadField is the multipart field the service reads the file from.
const UploadField = "media_file"

// Upload sends one file as multipart form data.
func (c *Client) Upload(ctx context.Context, s Session, filename, contentType string, body io.Reader) (models.UploadResponse, error) {
	var out models.UploadResponse
	if body == nil {
		return out, apperr.ErrMediaRequired
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, UploadField, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return out, err
	}
	if _, err := io.Copy(part, body); err != nil {
		return out, fmt.Errorf("read upload body: %w", err)
	}
	if err := w.Close(); err != nil {
		return out, err
	}
	cl := call{
		op:          "upload media",
		method:      "POST",
		path:        "/v1/capsules/upload",
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
		upload:      true,
	}
	return out, c.do(ctx, s, cl, &out)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var te *apperr.TransportError
	return errors.As(err, &te) && te.Status == fasthttp.StatusNotFound
}
