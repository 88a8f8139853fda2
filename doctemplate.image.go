package doctemplate

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/itsatony/go-doctemplate/internal"
)

// Image is an image-typed field value.
type Image = internal.Image

// ImageRef identifies an image within one merge.
type ImageRef = internal.ImageRef

// ImageEmbedder renders image field values.
// The size hint is the field's _FMT suffix, e.g. "120x80".
type ImageEmbedder = internal.ImageEmbedder

// NewImage wraps raw image bytes. The format is sniffed from the content.
func NewImage(data []byte) *Image {
	format := "octet-stream"
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		format = strings.TrimPrefix(ct, "image/")
	}
	return &Image{Data: data, Format: format}
}

// DataURIEmbedder renders images inline as data: URIs.
type DataURIEmbedder struct {
	// HTML wraps the URI in an <img> tag sized by the hint or the image.
	HTML bool
}

// EmbedImage implements ImageEmbedder.
func (d DataURIEmbedder) EmbedImage(img *Image, sizeHint string, _ ImageRef) (string, error) {
	uri := "data:image/" + img.Format + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	if !d.HTML {
		return uri, nil
	}

	width, height := img.Width, img.Height
	if w, h, ok := parseSizeHint(sizeHint); ok {
		width, height = w, h
	}
	if width <= 0 || height <= 0 {
		return fmt.Sprintf(`<img src="%s"/>`, uri), nil
	}
	return fmt.Sprintf(`<img src="%s" width="%d" height="%d"/>`, uri, width, height), nil
}

// parseSizeHint reads "WxH".
func parseSizeHint(hint string) (int, int, bool) {
	ws, hs, ok := strings.Cut(strings.ToLower(hint), "x")
	if !ok {
		return 0, 0, false
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, false
	}
	return w, h, true
}
