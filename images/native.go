package images

import (
	"image"

	"github.com/pkg/errors"
)

// Luminance weights in 14-bit fixed point (0.299, 0.587, 0.114).
const (
	lumaR     = 4899
	lumaG     = 9617
	lumaB     = 1868
	lumaShift = 14
	lumaRound = 1 << (lumaShift - 1)
)

// Native implements the motion image primitives in pure Go.
//
// It carries no state and is safe for concurrent use. Results are
// deterministic across platforms, which makes it the implementation of choice
// for tests and for builds without OpenCV.
type Native struct{}

// ConvertToGray reduces any image to a single luminance channel.
//
// Arguments:
//   - src: The color image to convert.
//
// Returns:
//   - *image.Gray: Origin-based grayscale copy of src.
//   - error: ErrEmptyImage when src is nil or has no pixels.
func (Native) ConvertToGray(src image.Image) (*image.Gray, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, errors.Wrap(ErrEmptyImage, "convert to gray")
	}

	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch s := src.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			copy(row(dst, y), row(s, y))
		}
	case *image.RGBA:
		rgbToGray(dst, s.Pix, s.Stride, s.PixOffset(b.Min.X, b.Min.Y))
	case *image.NRGBA:
		rgbToGray(dst, s.Pix, s.Stride, s.PixOffset(b.Min.X, b.Min.Y))
	default:
		for y := 0; y < b.Dy(); y++ {
			out := row(dst, y)
			for x := range out {
				r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
				out[x] = luma(r>>8, g>>8, bl>>8)
			}
		}
	}

	return dst, nil
}

// rgbToGray converts 4-byte-per-pixel rows starting at offset into dst.
func rgbToGray(dst *image.Gray, pix []uint8, stride, offset int) {
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	for y := 0; y < h; y++ {
		in := pix[offset+y*stride : offset+y*stride+4*w]
		out := row(dst, y)
		for x := range out {
			out[x] = luma(uint32(in[4*x]), uint32(in[4*x+1]), uint32(in[4*x+2]))
		}
	}
}

func luma(r, g, b uint32) uint8 {
	return uint8((lumaR*r + lumaG*g + lumaB*b + lumaRound) >> lumaShift)
}

// AbsDiff computes |a - b| per pixel.
//
// Arguments:
//   - a, b: Grayscale images of identical size.
//
// Returns:
//   - *image.Gray: The delta image.
//   - error: ErrEmptyImage or ErrSizeMismatch.
func (Native) AbsDiff(a, b *image.Gray) (*image.Gray, error) {
	if err := validGray(a, "absolute difference"); err != nil {
		return nil, err
	}
	if err := validGray(b, "absolute difference"); err != nil {
		return nil, err
	}
	if a.Rect.Size() != b.Rect.Size() {
		return nil, errors.Wrapf(ErrSizeMismatch, "absolute difference of %v and %v", a.Rect.Size(), b.Rect.Size())
	}

	dst := newGrayLike(a)
	for y := 0; y < a.Rect.Dy(); y++ {
		ra, rb, out := row(a, y), row(b, y), row(dst, y)
		for x := range out {
			if ra[x] > rb[x] {
				out[x] = ra[x] - rb[x]
			} else {
				out[x] = rb[x] - ra[x]
			}
		}
	}
	return dst, nil
}

// Threshold binarizes src: pixels strictly above thresh become maxValue,
// everything else becomes 0.
func (Native) Threshold(src *image.Gray, thresh, maxValue uint8) (*image.Gray, error) {
	if err := validGray(src, "threshold"); err != nil {
		return nil, err
	}

	dst := newGrayLike(src)
	for y := 0; y < src.Rect.Dy(); y++ {
		in, out := row(src, y), row(dst, y)
		for x, v := range in {
			if v > thresh {
				out[x] = maxValue
			}
		}
	}
	return dst, nil
}
