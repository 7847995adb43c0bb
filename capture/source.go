// Package capture provides frame sources for the motion pipeline.
//
// A Source yields raw color frames one at a time. Sources number their frames
// from zero and stamp them with the time they were acquired.
package capture

import (
	"context"

	"github.com/nvr-ai/go-motion/motion"
	"github.com/pkg/errors"
)

// ErrEndOfStream is returned by Read once a source has no more frames.
var ErrEndOfStream = errors.New("end of stream")

// Source is a sequential frame producer.
type Source interface {
	// Read blocks until the next frame is available.
	Read(ctx context.Context) (motion.Frame, error)
	// Close releases the underlying device or files.
	Close() error
}
