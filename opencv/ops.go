// Package opencv - OpenCV (via gocv) implementations of the motion image
// primitives, the camera source and the preview window.
//
// This is the only package that links against OpenCV. Every Mat allocated
// here is released before the function that created it returns; callers only
// ever see Go images.
package opencv

import (
	"image"
	"sort"

	"github.com/nvr-ai/go-motion/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Ops implements motion.ImageOps and motion.BoxDrawer on top of OpenCV.
type Ops struct{}

// ConvertToGray converts a color image to luminance with cv::cvtColor.
//
// Arguments:
//   - src: The color image to convert.
//
// Returns:
//   - *image.Gray: Origin-based grayscale image.
//   - error: images.ErrEmptyImage for empty input, or the OpenCV error.
func (Ops) ConvertToGray(src image.Image) (*image.Gray, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, errors.Wrap(images.ErrEmptyImage, "convert to gray")
	}

	if g, ok := src.(*image.Gray); ok {
		return images.Clone(g), nil
	}

	bgr, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return nil, errors.Wrap(err, "convert image to mat")
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray); err != nil {
		return nil, errors.Wrap(err, "cvtColor")
	}

	return matToGray(gray)
}

// GaussianBlur smooths src with cv::GaussianBlur using the default
// (reflect 101) border.
func (Ops) GaussianBlur(src *image.Gray, ksize int, sigma float64) (*image.Gray, error) {
	if ksize < 1 || ksize%2 == 0 {
		return nil, errors.Wrapf(images.ErrKernelSize, "gaussian blur: %d", ksize)
	}
	if sigma < 0 {
		sigma = 0
	}

	in, err := grayToMat(src, "gaussian blur")
	if err != nil {
		return nil, err
	}
	defer in.Close()

	out := gocv.NewMat()
	defer out.Close()
	if err := gocv.GaussianBlur(in, &out, image.Pt(ksize, ksize), sigma, sigma, gocv.BorderDefault); err != nil {
		return nil, errors.Wrap(err, "gaussianBlur")
	}

	return matToGray(out)
}

// AbsDiff computes |a - b| with cv::absdiff.
func (Ops) AbsDiff(a, b *image.Gray) (*image.Gray, error) {
	if a == nil || b == nil {
		return nil, errors.Wrap(images.ErrEmptyImage, "absdiff")
	}
	if a.Rect.Size() != b.Rect.Size() {
		return nil, errors.Wrapf(images.ErrSizeMismatch, "absdiff: %v vs %v", a.Rect.Size(), b.Rect.Size())
	}

	am, err := grayToMat(a, "absdiff")
	if err != nil {
		return nil, err
	}
	defer am.Close()

	bm, err := grayToMat(b, "absdiff")
	if err != nil {
		return nil, err
	}
	defer bm.Close()

	out := gocv.NewMat()
	defer out.Close()
	if err := gocv.AbsDiff(am, bm, &out); err != nil {
		return nil, errors.Wrap(err, "absdiff")
	}

	return matToGray(out)
}

// Threshold applies cv::threshold with THRESH_BINARY: pixels strictly above
// thresh become maxValue, the rest 0.
func (Ops) Threshold(src *image.Gray, thresh, maxValue uint8) (*image.Gray, error) {
	in, err := grayToMat(src, "threshold")
	if err != nil {
		return nil, err
	}
	defer in.Close()

	out := gocv.NewMat()
	defer out.Close()
	gocv.Threshold(in, &out, float32(thresh), float32(maxValue), gocv.ThresholdBinary)

	return matToGray(out)
}

// Dilate applies cv::dilate with a square structuring element, iterations
// times.
func (Ops) Dilate(src *image.Gray, ksize, iterations int) (*image.Gray, error) {
	if ksize < 1 {
		return nil, errors.Wrapf(images.ErrKernelSize, "dilate: %d", ksize)
	}

	in, err := grayToMat(src, "dilate")
	if err != nil {
		return nil, err
	}
	defer in.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(ksize, ksize))
	defer kernel.Close()

	out := in.Clone()
	defer out.Close()
	for i := 0; i < iterations; i++ {
		if err := gocv.Dilate(out, &out, kernel); err != nil {
			return nil, errors.Wrap(err, "dilate")
		}
	}

	return matToGray(out)
}

// FindExternalContours runs cv::findContours with RETR_EXTERNAL and
// CHAIN_APPROX_SIMPLE. Contours are returned in raster order of their first
// point.
func (Ops) FindExternalContours(src *image.Gray) ([]images.Contour, error) {
	in, err := grayToMat(src, "find contours")
	if err != nil {
		return nil, err
	}
	defer in.Close()

	found := gocv.FindContours(in, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	contours := make([]images.Contour, 0, found.Size())
	for _, points := range found.ToPoints() {
		if len(points) > 0 {
			contours = append(contours, images.Contour(points))
		}
	}

	sort.SliceStable(contours, func(i, j int) bool {
		a, b := topLeft(contours[i]), topLeft(contours[j])
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	return contours, nil
}

// ContourArea returns cv::contourArea of c.
func (Ops) ContourArea(c images.Contour) float64 {
	if len(c) == 0 {
		return 0
	}
	pv := gocv.NewPointVectorFromPoints(c)
	defer pv.Close()
	return gocv.ContourArea(pv)
}

// BoundingRect returns cv::boundingRect of c.
func (Ops) BoundingRect(c images.Contour) image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	pv := gocv.NewPointVectorFromPoints(c)
	defer pv.Close()
	return gocv.BoundingRect(pv)
}

// topLeft returns the first point of c in raster order.
func topLeft(c images.Contour) image.Point {
	best := c[0]
	for _, p := range c[1:] {
		if p.Y < best.Y || (p.Y == best.Y && p.X < best.X) {
			best = p
		}
	}
	return best
}

// grayToMat copies a gray image into a single-channel Mat.
func grayToMat(g *image.Gray, operation string) (gocv.Mat, error) {
	if g == nil || g.Rect.Empty() {
		return gocv.NewMat(), errors.Wrap(images.ErrEmptyImage, operation)
	}
	// The Mat constructor expects a tightly packed, origin-based buffer.
	if g.Rect.Min != (image.Point{}) || g.Stride != g.Rect.Dx() {
		g = images.Clone(g)
	}
	mat, err := gocv.ImageGrayToMatGray(g)
	if err != nil {
		return gocv.NewMat(), errors.Wrapf(err, "%s: convert to mat", operation)
	}
	return mat, nil
}

// matToGray copies a single-channel Mat back into Go memory.
func matToGray(m gocv.Mat) (*image.Gray, error) {
	if m.Empty() {
		return nil, errors.Wrap(images.ErrEmptyImage, "mat to image")
	}
	if m.Channels() != 1 {
		return nil, errors.Errorf("mat to image: want 1 channel, got %d", m.Channels())
	}
	img, err := m.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "mat to image")
	}
	g, ok := img.(*image.Gray)
	if !ok {
		return nil, errors.Errorf("mat to image: unexpected %T", img)
	}
	return g, nil
}
