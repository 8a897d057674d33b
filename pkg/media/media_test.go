package media

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timecapsule/pkg/apperr"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		ref  Ref
		want Kind
	}{
		{"legacy mp4", Ref{URL: "https://cdn.example.com/a.mp4"}, KindVideo},
		{"legacy upper case", Ref{URL: "https://cdn.example.com/CLIP.MOV"}, KindVideo},
		{"legacy mkv with query", Ref{URL: "/media/b.mkv?sig=abc"}, KindVideo},
		{"legacy mp3", Ref{URL: "song.mp3"}, KindAudio},
		{"legacy aac", Ref{URL: "voice.aac#t=3"}, KindAudio},
		{"legacy unknown", Ref{URL: "a.unknownext"}, KindImage},
		{"legacy no extension", Ref{URL: "https://cdn.example.com/blob"}, KindImage},
		{"typed audio", Ref{URL: "a", Type: "audio/mpeg"}, KindAudio},
		{"typed video beats extension", Ref{URL: "a.mp3", Type: "video/mp4"}, KindVideo},
		{"typed image", Ref{URL: "a.mp4", Type: "image/png"}, KindImage},
		{"typed document", Ref{URL: "report.pdf", Type: "application/pdf"}, KindImage},
		{"typed other uses extension", Ref{URL: "take.webm", Type: "application/octet-stream"}, KindVideo},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.ref).Kind)
		})
	}
}

func TestClassifyIdempotent(t *testing.T) {
	refs := []Ref{
		{URL: "a.mp4"},
		{URL: "a", Type: "audio/mpeg"},
		{URL: "a.unknownext"},
		{URL: "doc.pdf", Type: "application/pdf"},
	}
	for _, r := range refs {
		once := Classify(r)
		twice := Classify(once.Ref())
		assert.Equal(t, once, twice, r.URL)
	}
}

func TestClassifyIncomingIgnoresClientKind(t *testing.T) {
	var refs []Ref
	require.NoError(t, json.Unmarshal([]byte(`[
		{"url":"a.png","type":"image/png","kind":"video"},
		{"url":"clip.mp4","kind":"audio"},
		"song.mp3"
	]`), &refs))
	items := ClassifyIncoming(refs)
	require.Len(t, items, 3)
	assert.Equal(t, KindImage, items[0].Kind)
	assert.Equal(t, KindVideo, items[1].Kind)
	assert.Equal(t, KindAudio, items[2].Kind)

	// stored items keep their kind
	assert.Equal(t, KindVideo, Classify(Ref{URL: "a.png", Kind: KindVideo}).Kind)
}

func TestRefUnmarshalBothShapes(t *testing.T) {
	var refs []Ref
	err := json.Unmarshal([]byte(`["https://x/a.mp4", {"url": "https://x/b", "type": "audio/ogg"}, null]`), &refs)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, Ref{URL: "https://x/a.mp4"}, refs[0])
	assert.Equal(t, Ref{URL: "https://x/b", Type: "audio/ogg"}, refs[1])
	assert.Equal(t, Ref{}, refs[2])

	var bad Ref
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}

func TestItemUnmarshalClassifies(t *testing.T) {
	var items []Item
	err := json.Unmarshal([]byte(`["old.wav", {"url": "new", "type": "video/webm"}]`), &items)
	require.NoError(t, err)
	assert.Equal(t, KindAudio, items[0].Kind)
	assert.Equal(t, KindVideo, items[1].Kind)
	assert.Equal(t, "video/webm", items[1].Type)

	out, err := json.Marshal(items[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"old.wav","kind":"audio"}`, string(out))
}

func TestUploadPolicy(t *testing.T) {
	p := NewUploadPolicy(nil, 1024)

	assert.NoError(t, p.Check("image/jpeg", 10))
	assert.NoError(t, p.Check("video/mp4", 10))
	assert.NoError(t, p.Check("text/plain; charset=utf-8", 10))
	assert.NoError(t, p.Check("application/vnd.openxmlformats-officedocument.wordprocessingml.document", 10))

	err := p.Check("application/zip", 10)
	assert.True(t, errors.Is(err, apperr.ErrFileTypeNotAllowed))

	err = p.Check("image/png", 0)
	assert.True(t, errors.Is(err, apperr.ErrNoFile))

	err = p.Check("image/png", 2048)
	var rej *apperr.UploadRejected
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, apperr.ReasonFileTooLarge, rej.Reason)
}

func TestUploadPolicyCustomList(t *testing.T) {
	p := NewUploadPolicy([]string{"image/png"}, 0)
	assert.NoError(t, p.Check("IMAGE/PNG", 1))
	assert.Error(t, p.Check("image/jpeg", 1))
}

func TestTypeForFilename(t *testing.T) {
	assert.Equal(t, "application/pdf", TypeForFilename("Report.PDF"))
	assert.Equal(t, "application/octet-stream", TypeForFilename("noext"))
}
