package internal

import "bytes"

// Image is an image-typed field value. Fields resolving to an Image are handed
// to the image embedder instead of the formatter.
type Image struct {
	Data   []byte
	Format string // MIME subtype, e.g. "png"
	Width  int
	Height int
}

// Equal reports whether two images carry the same content.
func (i *Image) Equal(o *Image) bool {
	if i == nil || o == nil {
		return i == o
	}
	return i.Format == o.Format && bytes.Equal(i.Data, o.Data)
}

// ImageRef identifies an image within one merge.
// Duplicate is set when an equal image was embedded earlier in the same merge.
type ImageRef struct {
	Index     int
	Duplicate bool
}

// ImageEmbedder renders an image into the output and returns the token to emit.
type ImageEmbedder interface {
	EmbedImage(img *Image, sizeHint string, ref ImageRef) (string, error)
}
