package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"
)

// dataURIPrefix is the only accepted transport encoding for signatures
// submitted by the browser canvas.
const dataURIPrefix = "data:image/png;base64,"

// SignatureImage is a single captured signature raster. It is created fresh
// on every capture event and superseded when the user redraws; nothing is
// shared across submissions.
type SignatureImage struct {
	img     image.Image
	encoded []byte
	blank   bool
}

// Width returns the pixel width of the captured raster.
func (s *SignatureImage) Width() int {
	return s.img.Bounds().Dx()
}

// Height returns the pixel height of the captured raster.
func (s *SignatureImage) Height() int {
	return s.img.Bounds().Dy()
}

// PNG returns the PNG-encoded bytes of the captured raster.
func (s *SignatureImage) PNG() []byte {
	return s.encoded
}

// Blank reports whether the capture contains no mark. For surface snapshots
// this is a comparison against the baseline snapshot; for decoded uploads it
// falls back to the background rule (every sample is white or fully
// transparent).
func (s *SignatureImage) Blank() bool {
	return s.blank
}

// DecodeDataURI decodes a browser-supplied signature of the form
// "data:image/png;base64,<payload>". A missing prefix, an invalid base64
// payload, or bytes that do not decode as PNG are unrecoverable input errors
// for the submission.
func DecodeDataURI(uri string) (*SignatureImage, error) {
	if !strings.HasPrefix(uri, dataURIPrefix) {
		return nil, fmt.Errorf("signature payload is not a PNG data URI")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, dataURIPrefix))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 signature payload: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("signature payload is not a valid PNG: %w", err)
	}

	return &SignatureImage{
		img:     img,
		encoded: raw,
		blank:   allBackground(img),
	}, nil
}

// allBackground reports whether every sample reads as the white canvas
// background. Fully transparent samples count as background: canvas exports
// with an alpha channel leave undrawn pixels transparent rather than white,
// and premultiplied RGBA reports those as (0,0,0,0).
func allBackground(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			if r != 0xffff || g != 0xffff || bl != 0xffff {
				return false
			}
		}
	}
	return true
}
