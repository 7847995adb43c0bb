package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/pkg/errors"
)

// DrawRects outlines every rectangle in rects on dst, in place. Each edge runs
// through the first and last pixel rows/columns of its rectangle; the stroke
// is thickness pixels wide, centred on that edge and clipped to dst.
//
// Arguments:
//   - dst: The image to draw on.
//   - rects: Rectangles in dst's coordinate space.
//   - c: Stroke color.
//   - thickness: Stroke width in pixels; values below 1 draw 1 pixel.
//
// Returns:
//   - error: ErrEmptyImage when dst is nil or has no pixels.
func (Native) DrawRects(dst *image.RGBA, rects []image.Rectangle, c color.RGBA, thickness int) error {
	if dst == nil || dst.Rect.Empty() {
		return errors.Wrap(ErrEmptyImage, "draw rects")
	}

	src := image.NewUniform(c)
	for _, r := range rects {
		for _, stroke := range strokes(r, thickness) {
			draw.Draw(dst, stroke, src, image.Point{}, draw.Src)
		}
	}
	return nil
}

// strokes returns the four edge strips of the outline of r.
func strokes(r image.Rectangle, thickness int) [4]image.Rectangle {
	t := max(thickness, 1)
	lead := t / 2
	outer := image.Rect(r.Min.X-lead, r.Min.Y-lead, r.Max.X-1-lead+t, r.Max.Y-1-lead+t)
	return [4]image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+t),
		image.Rect(outer.Min.X, outer.Max.Y-t, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, outer.Min.Y, outer.Min.X+t, outer.Max.Y),
		image.Rect(outer.Max.X-t, outer.Min.Y, outer.Max.X, outer.Max.Y),
	}
}
