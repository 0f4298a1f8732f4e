package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
)

// Canonical drawing surface dimensions and stroke width, matching the
// browser canvas the form renders.
const (
	SurfaceWidth  = 400
	SurfaceHeight = 200
	strokeWidth   = 2.0
)

// Point is a single pointer/touch sample in surface coordinates, origin
// top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Surface rasterizes pointer/touch strokes onto a fixed-size white canvas.
// It is a per-submission value: construct one per capture session and
// discard it after submission. Blank detection uses the first snapshot as
// the baseline; a snapshot whose pixels are unchanged from the baseline is
// blank. This is deliberately more permissive than comparing against the
// background color, which misfires when stroke anti-aliasing touches the
// canvas edge.
type Surface struct {
	canvas   *image.RGBA
	baseline []uint8
	held     *SignatureImage
}

// NewSurface returns an untouched white drawing surface.
func NewSurface() *Surface {
	s := &Surface{}
	s.reset()
	return s
}

func (s *Surface) reset() {
	s.canvas = image.NewRGBA(image.Rect(0, 0, SurfaceWidth, SurfaceHeight))
	draw.Draw(s.canvas, s.canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	s.baseline = nil
	s.held = nil
}

// AddStroke draws one continuous stroke through the given points with the
// canonical 2pt black brush. A single point paints a dot.
func (s *Surface) AddStroke(points []Point) {
	if len(points) == 0 {
		return
	}
	if len(points) == 1 {
		s.stamp(points[0])
		return
	}
	for i := 1; i < len(points); i++ {
		s.segment(points[i-1], points[i])
	}
}

func (s *Surface) segment(a, b Point) {
	steps := int(math.Hypot(b.X-a.X, b.Y-a.Y)) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		s.stamp(Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t})
	}
}

func (s *Surface) stamp(p Point) {
	r := strokeWidth / 2
	for y := int(p.Y - r); y <= int(p.Y+r); y++ {
		for x := int(p.X - r); x <= int(p.X+r); x++ {
			if !(image.Point{X: x, Y: y}.In(s.canvas.Bounds())) {
				continue
			}
			dx := float64(x) - p.X
			dy := float64(y) - p.Y
			if dx*dx+dy*dy <= r*r {
				s.canvas.Set(x, y, color.Black)
			}
		}
	}
}

// Snapshot captures the current rendered state. The first snapshot becomes
// the baseline; later snapshots are blank iff their pixels equal the
// baseline. Non-blank snapshots are held until superseded, cleared, or
// submitted. The returned image owns its pixels: strokes drawn afterwards
// do not mutate it.
func (s *Surface) Snapshot() (*SignatureImage, error) {
	if s.baseline == nil {
		s.baseline = append([]uint8(nil), s.canvas.Pix...)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, s.canvas); err != nil {
		return nil, fmt.Errorf("encode surface snapshot: %w", err)
	}

	frozen := image.NewRGBA(s.canvas.Rect)
	copy(frozen.Pix, s.canvas.Pix)

	img := &SignatureImage{
		img:     frozen,
		encoded: buf.Bytes(),
		blank:   bytes.Equal(s.baseline, s.canvas.Pix),
	}
	if img.blank {
		s.held = nil
	} else {
		s.held = img
	}
	return img, nil
}

// Image returns the most recent non-blank snapshot, or nil if the surface
// has not been touched since construction or the last Clear.
func (s *Surface) Image() *SignatureImage {
	return s.held
}

// Clear resets the surface pixels, invalidates the baseline, and discards
// any held signature.
func (s *Surface) Clear() {
	s.reset()
}
