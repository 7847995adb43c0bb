package opencv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nvr-ai/go-motion/capture"
	"github.com/nvr-ai/go-motion/motion"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrDeviceUnavailable is returned when a camera or video file cannot be
// opened.
var ErrDeviceUnavailable = errors.New("camera could not be opened")

// Camera is a capture.Source backed by cv::VideoCapture.
type Camera struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
	device  string
	next    int
	closed  bool
}

// OpenCamera opens a capture device by index.
//
// Arguments:
//   - deviceID: The camera index, usually 0.
//
// Returns:
//   - *Camera: An open source.
//   - error: ErrDeviceUnavailable if the device cannot be opened.
//
// @example
// camera, err := opencv.OpenCamera(0)
// if errors.Is(err, opencv.ErrDeviceUnavailable) { ... }
// defer camera.Close()
func OpenCamera(deviceID int) (*Camera, error) {
	return open(deviceID, fmt.Sprintf("device %d", deviceID))
}

// OpenVideo opens a video file as a frame source.
func OpenVideo(path string) (*Camera, error) {
	return open(path, path)
}

func open(device interface{}, name string) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "%s: %v", name, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, errors.Wrap(ErrDeviceUnavailable, name)
	}
	return &Camera{capture: vc, frame: gocv.NewMat(), device: name}, nil
}

// Device describes what the camera was opened on.
func (c *Camera) Device() string {
	return c.device
}

// Read grabs the next frame. A failed grab or an empty frame ends the stream.
func (c *Camera) Read(ctx context.Context) (motion.Frame, error) {
	if err := ctx.Err(); err != nil {
		return motion.Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return motion.Frame{}, capture.ErrEndOfStream
	}
	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return motion.Frame{}, capture.ErrEndOfStream
	}

	img, err := c.frame.ToImage()
	if err != nil {
		return motion.Frame{}, errors.Wrapf(err, "%s: frame %d", c.device, c.next)
	}

	frame := motion.Frame{ID: c.next, Image: img, Timestamp: time.Now()}
	c.next++
	return frame, nil
}

// Close releases the capture device. It is safe to call more than once.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	frameErr := c.frame.Close()
	if err := c.capture.Close(); err != nil {
		return errors.Wrapf(err, "close %s", c.device)
	}
	return frameErr
}

var _ capture.Source = (*Camera)(nil)
