package images

import (
	"image"

	"github.com/pkg/errors"
)

// Dilate grows non-zero regions with a ksize x ksize square structuring
// element, repeated iterations times.
//
// The element is anchored at its center (ksize/2). Pixels outside the image
// never contribute, so dilation does not bleed in from the frame edges.
//
// Arguments:
//   - src: Binary or grayscale image.
//   - ksize: Structuring element size >= 1.
//   - iterations: Number of passes >= 0. Zero returns a copy.
//
// Returns:
//   - *image.Gray: The dilated image.
//   - error: ErrEmptyImage or ErrKernelSize.
func (Native) Dilate(src *image.Gray, ksize, iterations int) (*image.Gray, error) {
	if err := validGray(src, "dilate"); err != nil {
		return nil, err
	}
	if ksize < 1 {
		return nil, errors.Wrapf(ErrKernelSize, "dilate kernel %d must be positive", ksize)
	}
	if iterations < 0 {
		return nil, errors.Errorf("dilate iterations %d must not be negative", iterations)
	}

	dst := Clone(src)
	if ksize == 1 {
		return dst, nil
	}
	for i := 0; i < iterations; i++ {
		dst = maxFilter(dst, ksize)
	}
	return dst, nil
}

// maxFilter applies one separable square max filter pass.
func maxFilter(src *image.Gray, ksize int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	anchor := ksize / 2

	tmp := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		in, out := row(src, y), row(tmp, y)
		for x := 0; x < w; x++ {
			lo, hi := max(x-anchor, 0), min(x-anchor+ksize, w)
			var m uint8
			for _, v := range in[lo:hi] {
				if v > m {
					m = v
				}
			}
			out[x] = m
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		lo, hi := max(y-anchor, 0), min(y-anchor+ksize, h)
		out := row(dst, y)
		for yy := lo; yy < hi; yy++ {
			in := row(tmp, yy)
			for x, v := range in {
				if v > out[x] {
					out[x] = v
				}
			}
		}
	}
	return dst
}
