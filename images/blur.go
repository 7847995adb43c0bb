package images

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// GaussianSigma returns the standard deviation used for a kernel of size
// ksize when the caller passes sigma <= 0.
func GaussianSigma(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}

// GaussianKernel returns the normalized 1-D Gaussian weights for an odd
// kernel size.
func GaussianKernel(ksize int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = GaussianSigma(ksize)
	}
	weights := make([]float64, ksize)
	center := ksize / 2
	sum := 0.0
	for i := range weights {
		d := float64(i - center)
		weights[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// GaussianBlur smooths src with a ksize x ksize Gaussian kernel.
//
// The filter is applied separably (rows, then columns). Samples outside the
// image are reflected without repeating the edge pixel, so a uniform image
// stays uniform.
//
// Arguments:
//   - src: Grayscale image to smooth.
//   - ksize: Odd kernel size >= 1. A size of 1 returns a copy.
//   - sigma: Standard deviation; <= 0 derives it from ksize.
//
// Returns:
//   - *image.Gray: The smoothed image.
//   - error: ErrEmptyImage or ErrKernelSize.
func (Native) GaussianBlur(src *image.Gray, ksize int, sigma float64) (*image.Gray, error) {
	if err := validGray(src, "gaussian blur"); err != nil {
		return nil, err
	}
	if ksize < 1 || ksize%2 == 0 {
		return nil, errors.Wrapf(ErrKernelSize, "gaussian blur kernel %d must be odd and positive", ksize)
	}
	if ksize == 1 {
		return Clone(src), nil
	}

	weights := GaussianKernel(ksize, sigma)
	radius := ksize / 2
	w, h := src.Rect.Dx(), src.Rect.Dy()

	// Horizontal pass into a float buffer to avoid rounding twice.
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		in := row(src, y)
		for x := 0; x < w; x++ {
			acc := 0.0
			for k, wt := range weights {
				acc += wt * float64(in[reflect101(x+k-radius, w)])
			}
			tmp[y*w+x] = acc
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		out := row(dst, y)
		for x := 0; x < w; x++ {
			acc := 0.0
			for k, wt := range weights {
				acc += wt * tmp[reflect101(y+k-radius, h)*w+x]
			}
			out[x] = clampByte(acc)
		}
	}
	return dst, nil
}

// reflect101 maps an out-of-range index back into [0, n) as gfedcb|abcdefgh|gfedcba.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func clampByte(v float64) uint8 {
	v = math.Floor(v + 0.5)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
