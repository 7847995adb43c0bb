package motion

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nvr-ai/go-motion/images"
	"github.com/pkg/errors"
)

// DefaultBoxColor is the outline color for detected regions.
var DefaultBoxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// DefaultBoxThickness is the outline width in pixels.
const DefaultBoxThickness = 2

// Annotator draws bounding boxes onto copies of frames.
type Annotator struct {
	Color     color.RGBA
	Thickness int

	// Drawer strokes the outlines. Nil selects images.Native.
	Drawer BoxDrawer
}

// NewAnnotator returns an annotator drawing green, 2 pixel wide outlines with
// drawer. A nil drawer selects images.Native.
func NewAnnotator(drawer BoxDrawer) *Annotator {
	return &Annotator{Color: DefaultBoxColor, Thickness: DefaultBoxThickness, Drawer: drawer}
}

// Annotate returns a copy of frame with every box outlined. The stroke is
// centred on the box edge and clipped to the frame. frame is never modified.
//
// Arguments:
//   - frame: The original color frame.
//   - boxes: Boxes to draw; overlapping boxes are all drawn.
//
// Returns:
//   - *image.RGBA: The annotated copy, with frame's bounds.
//   - error: ErrInvalidFrame when frame is nil or empty, ErrProcessing when
//     the drawer fails.
func (a *Annotator) Annotate(frame image.Image, boxes []BoundingBox) (*image.RGBA, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, errors.Wrap(ErrInvalidFrame, "cannot annotate an empty frame")
	}

	b := frame.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, frame, b.Min, draw.Src)
	if len(boxes) == 0 {
		return out, nil
	}

	rects := make([]image.Rectangle, len(boxes))
	for i, box := range boxes {
		rects[i] = box.Rect().Add(b.Min)
	}

	drawer := a.Drawer
	if drawer == nil {
		drawer = images.Native{}
	}
	if err := drawer.DrawRects(out, rects, a.Color, a.Thickness); err != nil {
		return nil, processingError("draw boxes", err)
	}
	return out, nil
}
