package motion

import (
	"image"
	"image/color"

	"github.com/nvr-ai/go-motion/images"
)

// ImageOps is the set of image primitives the preprocessing and detection
// stages are built from.
//
// images.Native provides a pure Go implementation; opencv.Ops provides one
// backed by OpenCV. Implementations must not modify their inputs.
type ImageOps interface {
	// ConvertToGray reduces a color image to luminance.
	ConvertToGray(src image.Image) (*image.Gray, error)
	// GaussianBlur smooths src with an odd ksize x ksize kernel; sigma <= 0
	// derives the deviation from ksize.
	GaussianBlur(src *image.Gray, ksize int, sigma float64) (*image.Gray, error)
	// AbsDiff returns |a - b| per pixel.
	AbsDiff(a, b *image.Gray) (*image.Gray, error)
	// Threshold sets pixels above thresh to maxValue and all others to 0.
	Threshold(src *image.Gray, thresh, maxValue uint8) (*image.Gray, error)
	// Dilate grows non-zero regions with a ksize x ksize square element.
	Dilate(src *image.Gray, ksize, iterations int) (*image.Gray, error)
	// FindExternalContours returns outer boundaries only.
	FindExternalContours(src *image.Gray) ([]images.Contour, error)
	// ContourArea returns the area enclosed by a contour.
	ContourArea(c images.Contour) float64
	// BoundingRect returns the smallest rectangle containing a contour.
	BoundingRect(c images.Contour) image.Rectangle
}

// BoxDrawer outlines rectangles on a color image in place.
//
// images.Native and opencv.Ops both implement it, so the annotator draws with
// the same backend as the detector.
type BoxDrawer interface {
	DrawRects(dst *image.RGBA, rects []image.Rectangle, c color.RGBA, thickness int) error
}
