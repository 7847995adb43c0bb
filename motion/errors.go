package motion

import "github.com/pkg/errors"

var (
	// ErrInvalidFrame is returned when a frame is empty or its geometry does
	// not match the reference frame. It indicates a broken upstream contract.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrProcessing is returned when an image primitive fails on a
	// well-formed frame.
	ErrProcessing = errors.New("frame processing failed")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid motion detection config")
)

// processingError wraps an ImageOps failure as ErrProcessing, keeping the
// underlying cause in the message.
func processingError(stage string, err error) error {
	return errors.Wrapf(ErrProcessing, "%s: %v", stage, err)
}
