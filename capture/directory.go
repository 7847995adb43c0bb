package capture

import (
	"bytes"
	"context"
	"image"
	"sync"
	"time"

	// Decoders registered for image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/nvr-ai/go-motion/motion"
	"github.com/nvr-ai/go-motion/util"
	"github.com/pkg/errors"
)

// Directory replays extracted frames (frame-<N>.<ext>) from a directory in
// frame order.
type Directory struct {
	mu     sync.Mutex
	files  []util.ImageFile
	next   int
	closed bool
	now    func() time.Time
}

// OpenDirectory lists the frames in dir.
//
// Arguments:
// - dir: Directory holding frame-<N>.jpg/.jpeg/.png/.bmp/.webp files.
//
// Returns:
// - *Directory: A source that yields the frames in order.
// - error: If the directory cannot be read or holds no frames.
func OpenDirectory(dir string) (*Directory, error) {
	files, err := util.ListDirectoryImageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no frames found in %s", dir)
	}
	return &Directory{files: files, now: time.Now}, nil
}

// Len returns the number of frames in the directory.
func (d *Directory) Len() int {
	return len(d.files)
}

// Read decodes the next frame.
func (d *Directory) Read(ctx context.Context) (motion.Frame, error) {
	if err := ctx.Err(); err != nil {
		return motion.Frame{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.next >= len(d.files) {
		return motion.Frame{}, ErrEndOfStream
	}

	file := d.files[d.next]
	data, err := file.Read()
	if err != nil {
		return motion.Frame{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return motion.Frame{}, errors.Wrapf(err, "decode %s", file.Path)
	}

	frame := motion.Frame{ID: d.next, Image: img, Timestamp: d.now()}
	d.next++
	return frame, nil
}

// Close ends the stream. Subsequent reads return ErrEndOfStream.
func (d *Directory) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}
