package doctemplate

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewImage(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"png", pngHeader, "png"},
		{"gif", []byte("GIF89a\x01\x00\x01\x00"), "gif"},
		{"unknown", []byte("plain text"), "octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := NewImage(tt.data)
			assert.Equal(t, tt.expected, img.Format)
			assert.Equal(t, tt.data, img.Data)
		})
	}
}

func TestDataURIEmbedder(t *testing.T) {
	img := NewImage(pngHeader)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	tests := []struct {
		name     string
		embedder DataURIEmbedder
		image    *Image
		hint     string
		expected string
	}{
		{"uri", DataURIEmbedder{}, img, "120x80", uri},
		{"html without size", DataURIEmbedder{HTML: true}, img, "", `<img src="` + uri + `"/>`},
		{"html with hint", DataURIEmbedder{HTML: true}, img, "120X80", `<img src="` + uri + `" width="120" height="80"/>`},
		{"html with image size", DataURIEmbedder{HTML: true},
			&Image{Data: pngHeader, Format: "png", Width: 10, Height: 20}, "bogus",
			`<img src="` + uri + `" width="10" height="20"/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.embedder.EmbedImage(tt.image, tt.hint, ImageRef{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

type recordingEmbedder struct {
	refs  []ImageRef
	hints []string
}

func (r *recordingEmbedder) EmbedImage(img *Image, sizeHint string, ref ImageRef) (string, error) {
	r.refs = append(r.refs, ref)
	r.hints = append(r.hints, sizeHint)
	return "[img]", nil
}

func TestEngine_MergeImages(t *testing.T) {
	rec := &recordingEmbedder{}
	engine := MustNew(WithImageEmbedder(rec))

	logo := NewImage(pngHeader)
	src := NewBindingSource().
		Value("LOGO", logo).
		Value("COPY", NewImage(pngHeader)).
		Value("OTHER", NewImage([]byte("GIF89a")))

	out, err := engine.Merge(context.Background(),
		mk("FIELD_LOGO_FMT120x80")+mk("FIELD_COPY")+mk("FIELD_OTHER"), src)
	require.NoError(t, err)
	assert.Equal(t, "[img][img][img]", out)

	require.Len(t, rec.refs, 3)
	assert.False(t, rec.refs[0].Duplicate)
	assert.True(t, rec.refs[1].Duplicate, "equal content is reported as a duplicate")
	assert.False(t, rec.refs[2].Duplicate)
	assert.Equal(t, "120x80", rec.hints[0])
}
