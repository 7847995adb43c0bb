package motion

import (
	"fmt"
	"image"
	"time"
)

// Frame is a single raw color frame of video.
type Frame struct {
	ID        int
	Image     image.Image
	Timestamp time.Time
}

// NormalizedFrame is a single-channel, smoothed frame used only for
// differencing. It must not be modified once produced.
type NormalizedFrame struct {
	*image.Gray
}

// Empty reports whether the frame has no pixels.
func (n NormalizedFrame) Empty() bool {
	return n.Gray == nil || n.Gray.Rect.Empty()
}

// Size returns the frame's width and height.
func (n NormalizedFrame) Size() image.Point {
	if n.Gray == nil {
		return image.Point{}
	}
	return n.Gray.Rect.Size()
}

// BoundingBox is an axis-aligned rectangle around one region of motion, in
// pixel coordinates of the frame it was detected in.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BoxFromRect converts a half-open image.Rectangle to a BoundingBox.
func BoxFromRect(r image.Rectangle) BoundingBox {
	r = r.Canon()
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the box as an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Area returns Width * Height.
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// Contains reports whether r lies entirely inside the box.
func (b BoundingBox) Contains(r image.Rectangle) bool {
	return r.In(b.Rect())
}

// IoU returns the intersection over union of two boxes, from 0 (disjoint) to
// 1 (identical).
func (b BoundingBox) IoU(o BoundingBox) float64 {
	inter := b.Rect().Intersect(o.Rect())
	if inter.Empty() {
		return 0
	}
	i := inter.Dx() * inter.Dy()
	return float64(i) / float64(b.Area()+o.Area()-i)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", b.X, b.Y, b.Width, b.Height)
}
