package motion

import (
	"image"
	"image/color"

	"github.com/nvr-ai/go-motion/images"
	"github.com/pkg/errors"
)

var errInjected = errors.New("injected failure")

// normalized returns a w x h NormalizedFrame of zeros with v painted into rects.
func normalized(w, h int, v uint8, rects ...image.Rectangle) NormalizedFrame {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for _, r := range rects {
		r = r.Intersect(g.Rect)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				g.SetGray(x, y, color.Gray{Y: v})
			}
		}
	}
	return NormalizedFrame{Gray: g}
}

// patterned returns a frame with deterministic, non-uniform content.
func patterned(w, h int) NormalizedFrame {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = uint8((i*37 + i/w*11) % 251)
	}
	return NormalizedFrame{Gray: g}
}

// rawFrame returns an RGBA frame filled with bg and fg painted into rects.
func rawFrame(id, w, h int, bg, fg color.RGBA, rects ...image.Rectangle) Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, bg)
		}
	}
	for _, r := range rects {
		r = r.Intersect(img.Rect)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetRGBA(x, y, fg)
			}
		}
	}
	return Frame{ID: id, Image: img}
}

// spyOps delegates to images.Native while recording calls and arguments,
// optionally failing a named primitive.
type spyOps struct {
	images.Native
	calls  []string
	failOn string

	blurKernel  int
	thresh      uint8
	maxValue    uint8
	dilateSize  int
	dilateIters int
}

func (s *spyOps) record(name string) error {
	s.calls = append(s.calls, name)
	if s.failOn == name {
		return errInjected
	}
	return nil
}

func (s *spyOps) ConvertToGray(src image.Image) (*image.Gray, error) {
	if err := s.record("ConvertToGray"); err != nil {
		return nil, err
	}
	return s.Native.ConvertToGray(src)
}

func (s *spyOps) GaussianBlur(src *image.Gray, ksize int, sigma float64) (*image.Gray, error) {
	s.blurKernel = ksize
	if err := s.record("GaussianBlur"); err != nil {
		return nil, err
	}
	return s.Native.GaussianBlur(src, ksize, sigma)
}

func (s *spyOps) AbsDiff(a, b *image.Gray) (*image.Gray, error) {
	if err := s.record("AbsDiff"); err != nil {
		return nil, err
	}
	return s.Native.AbsDiff(a, b)
}

func (s *spyOps) Threshold(src *image.Gray, thresh, maxValue uint8) (*image.Gray, error) {
	s.thresh, s.maxValue = thresh, maxValue
	if err := s.record("Threshold"); err != nil {
		return nil, err
	}
	return s.Native.Threshold(src, thresh, maxValue)
}

func (s *spyOps) Dilate(src *image.Gray, ksize, iterations int) (*image.Gray, error) {
	s.dilateSize, s.dilateIters = ksize, iterations
	if err := s.record("Dilate"); err != nil {
		return nil, err
	}
	return s.Native.Dilate(src, ksize, iterations)
}

func (s *spyOps) FindExternalContours(src *image.Gray) ([]images.Contour, error) {
	if err := s.record("FindExternalContours"); err != nil {
		return nil, err
	}
	return s.Native.FindExternalContours(src)
}

// fixedContourOps reports one synthetic contour per entry of areas, ignoring
// pixel content. Contour i has area areas[i] and bounds (10i,0)-(10i+5,5).
type fixedContourOps struct {
	images.Native
	areas []float64
}

func (f fixedContourOps) FindExternalContours(*image.Gray) ([]images.Contour, error) {
	contours := make([]images.Contour, len(f.areas))
	for i := range f.areas {
		contours[i] = images.Contour{{X: i}}
	}
	return contours, nil
}

func (f fixedContourOps) ContourArea(c images.Contour) float64 {
	return f.areas[c[0].X]
}

func (f fixedContourOps) BoundingRect(c images.Contour) image.Rectangle {
	i := c[0].X
	return image.Rect(10*i, 0, 10*i+5, 5)
}
