package motion

import (
	"github.com/pkg/errors"
)

// Preprocessor turns raw color frames into normalized frames: grayscale
// first, then Gaussian smoothing to suppress per-pixel sensor noise.
//
// It holds no per-frame state, so Normalize is a pure function of its input.
type Preprocessor struct {
	ops        ImageOps
	kernelSize int
	sigma      float64
}

// NewPreprocessor creates a preprocessor using the blur settings of config.
//
// Arguments:
//   - config: Detection configuration; only the blur fields are used.
//   - ops: Image primitives to build on.
//
// Returns:
//   - *Preprocessor: The configured preprocessor.
//   - error: ErrInvalidConfig when config is out of range or ops is nil.
func NewPreprocessor(config Config, ops ImageOps) (*Preprocessor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if ops == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "image ops are required")
	}
	return &Preprocessor{
		ops:        ops,
		kernelSize: config.BlurKernelSize,
		sigma:      config.BlurSigma,
	}, nil
}

// Normalize converts raw to a single-channel smoothed frame of the same size.
//
// Arguments:
//   - raw: The color frame to normalize.
//
// Returns:
//   - NormalizedFrame: The grayscale, blurred frame.
//   - error: ErrInvalidFrame for a nil or zero-sized image, ErrProcessing
//     when a primitive fails.
//
// @example
// pre, _ := NewPreprocessor(DefaultConfig(), images.Native{})
// normalized, err := pre.Normalize(frame)
func (p *Preprocessor) Normalize(raw Frame) (NormalizedFrame, error) {
	if raw.Image == nil {
		return NormalizedFrame{}, errors.Wrapf(ErrInvalidFrame, "frame %d has no image", raw.ID)
	}
	if size := raw.Image.Bounds().Size(); size.X <= 0 || size.Y <= 0 {
		return NormalizedFrame{}, errors.Wrapf(ErrInvalidFrame, "frame %d is %dx%d", raw.ID, size.X, size.Y)
	}

	gray, err := p.ops.ConvertToGray(raw.Image)
	if err != nil {
		return NormalizedFrame{}, processingError("grayscale conversion", err)
	}

	blurred, err := p.ops.GaussianBlur(gray, p.kernelSize, p.sigma)
	if err != nil {
		return NormalizedFrame{}, processingError("gaussian blur", err)
	}

	return NormalizedFrame{Gray: blurred}, nil
}
