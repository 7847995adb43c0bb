package opencv

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nvr-ai/go-motion/images"
	"github.com/nvr-ai/go-motion/motion"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	_ motion.ImageOps  = Ops{}
	_ motion.BoxDrawer = Ops{}
)

// DrawRects outlines rects on dst with cv::rectangle, 8-connected and without
// antialiasing so stroke pixels keep the exact color. Each edge runs through
// the first and last pixel rows/columns of its rectangle.
//
// Arguments:
//   - dst: The image to draw on; it is updated in place.
//   - rects: Rectangles in dst's coordinate space.
//   - c: Stroke color.
//   - thickness: Stroke width in pixels; values below 1 draw 1 pixel.
//
// Returns:
//   - error: images.ErrEmptyImage for empty input, or the conversion error.
func (Ops) DrawRects(dst *image.RGBA, rects []image.Rectangle, c color.RGBA, thickness int) error {
	if dst == nil || dst.Rect.Empty() {
		return errors.Wrap(images.ErrEmptyImage, "draw rects")
	}
	if len(rects) == 0 {
		return nil
	}

	// The Mat constructor expects a tightly packed, origin-based buffer.
	canvas := dst
	origin := dst.Rect.Min
	if origin != (image.Point{}) || dst.Stride != 4*dst.Rect.Dx() {
		canvas = image.NewRGBA(image.Rect(0, 0, dst.Rect.Dx(), dst.Rect.Dy()))
		draw.Draw(canvas, canvas.Rect, dst, origin, draw.Src)
	}

	mat, err := gocv.ImageToMatRGB(canvas)
	if err != nil {
		return errors.Wrap(err, "draw rects: convert to mat")
	}
	defer mat.Close()

	for _, r := range rects {
		r = r.Sub(origin)
		gocv.RectangleWithParams(&mat, image.Rect(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1), c, max(thickness, 1), gocv.Line8, 0)
	}

	drawn, err := mat.ToImage()
	if err != nil {
		return errors.Wrap(err, "draw rects: mat to image")
	}
	draw.Draw(dst, dst.Rect, drawn, drawn.Bounds().Min, draw.Src)
	return nil
}
