package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	k := ObjectKey("Holiday.JPG")
	assert.True(t, strings.HasSuffix(k, ".jpg"))
	assert.True(t, ValidKey(k))

	assert.True(t, ValidKey(ObjectKey("noext")))
	assert.True(t, ValidKey(ObjectKey(`C:\Users\me\clip.mp4`)))
	assert.False(t, ValidKey("../etc/passwd"))
	assert.False(t, ValidKey("plain.jpg"))
	assert.False(t, ValidKey(""))
}

func TestLocalPutOpen(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "/media/")
	require.NoError(t, err)
	ctx := context.Background()

	key := ObjectKey("a.png")
	u, err := l.Put(ctx, key, "image/png", strings.NewReader("pngdata"), 7)
	require.NoError(t, err)
	assert.Equal(t, "/media/"+key, u)

	rc, ct, err := l.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pngdata", string(body))
	assert.Equal(t, "image/png", ct)

	_, _, err = l.Open(ctx, ObjectKey("missing.png"))
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = l.Put(ctx, key, "image/png", strings.NewReader("abc"), 10)
	assert.Error(t, err)
	_, err = l.Put(ctx, "../x", "image/png", strings.NewReader("abc"), 3)
	assert.Error(t, err)
}

func TestLocalPing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	l, err := NewLocal(dir, "/media")
	require.NoError(t, err)
	require.NoError(t, l.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	assert.Error(t, l.Ping(context.Background()))
}

func TestS3ObjectURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{"public base", S3Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}, "https://cdn.example.com/k.png"},
		{"localstack path style", S3Config{Bucket: "b", Endpoint: "http://localhost:4566", UsePathStyle: true}, "http://localhost:4566/b/k.png"},
		{"virtual host endpoint", S3Config{Bucket: "b", Endpoint: "https://s3.example.com"}, "https://b.s3.example.com/k.png"},
		{"aws default", S3Config{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com/k.png"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &S3{cfg: tc.cfg}
			assert.Equal(t, tc.want, s.objectURL("k.png"))
		})
	}
}
