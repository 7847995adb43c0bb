package opencv

import (
	"image"
	"sync"

	"github.com/nvr-ai/go-motion/motion"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultWindowTitle is the title of the preview window.
const DefaultWindowTitle = "Camera Feed"

// QuitKey stops the run when pressed in the preview window.
const QuitKey = 'q'

// Window is a pipeline.Sink that shows annotated frames in a HighGUI window.
//
// HighGUI must be driven from the goroutine that created the window, so Show
// and QuitRequested belong on the run loop.
type Window struct {
	mu     sync.Mutex
	window *gocv.Window
	quit   bool
	closed bool
}

// NewWindow opens a preview window. An empty title selects
// DefaultWindowTitle.
func NewWindow(title string) *Window {
	if title == "" {
		title = DefaultWindowTitle
	}
	return &Window{window: gocv.NewWindow(title)}
}

// Show displays frame. The boxes are already drawn on it.
func (w *Window) Show(frame image.Image, _ []motion.BoundingBox) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("window closed")
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return errors.Wrap(err, "convert frame to mat")
	}
	defer mat.Close()

	w.window.IMShow(mat)
	return nil
}

// QuitRequested polls the keyboard for one millisecond and reports whether
// QuitKey has been pressed.
func (w *Window) QuitRequested() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return true
	}
	if w.window.WaitKey(1) == QuitKey {
		w.quit = true
	}
	return w.quit
}

// Close destroys the window.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.window.Close()
}
