// Package images - Pure Go grayscale primitives used by the motion pipeline.
//
// Every function in this package operates on *image.Gray rasters and returns
// a freshly allocated raster whose bounds start at the origin, so pixel
// coordinates in results are always frame-relative. Nothing here depends on
// cgo, which keeps the motion core testable on machines without OpenCV.
package images

import (
	"image"

	"github.com/pkg/errors"
)

var (
	// ErrEmptyImage is returned when an operation receives a nil or zero-sized image.
	ErrEmptyImage = errors.New("image is empty")
	// ErrSizeMismatch is returned when two images that must share geometry do not.
	ErrSizeMismatch = errors.New("image sizes do not match")
	// ErrKernelSize is returned for kernel sizes an operation cannot honour.
	ErrKernelSize = errors.New("invalid kernel size")
)

// row returns the pixels of row y (relative to the image origin) as a slice of
// exactly Dx() bytes.
func row(g *image.Gray, y int) []uint8 {
	off := g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y)
	return g.Pix[off : off+g.Rect.Dx()]
}

// newGrayLike allocates an origin-based gray image with the size of src.
func newGrayLike(src *image.Gray) *image.Gray {
	return image.NewGray(image.Rect(0, 0, src.Rect.Dx(), src.Rect.Dy()))
}

// validGray reports an error when g cannot be processed.
func validGray(g *image.Gray, operation string) error {
	if g == nil || g.Rect.Empty() {
		return errors.Wrap(ErrEmptyImage, operation)
	}
	return nil
}

// Clone returns an origin-based copy of src.
func Clone(src *image.Gray) *image.Gray {
	if src == nil {
		return nil
	}
	dst := newGrayLike(src)
	for y := 0; y < src.Rect.Dy(); y++ {
		copy(row(dst, y), row(src, y))
	}
	return dst
}
