package motion

import "github.com/pkg/errors"

// Config contains the tuning parameters of the preprocessing and detection
// stages. A Detector copies its Config at construction and never changes it.
type Config struct {
	// BlurKernelSize is the Gaussian kernel size; must be odd and >= 1.
	BlurKernelSize int `json:"blur_kernel_size" yaml:"blur_kernel_size"`
	// BlurSigma is the Gaussian standard deviation; 0 derives it from the kernel size.
	BlurSigma float64 `json:"blur_sigma" yaml:"blur_sigma"`
	// DiffThreshold is the delta intensity (0-255) a pixel must exceed to count as changed.
	DiffThreshold int `json:"diff_threshold" yaml:"diff_threshold"`
	// BinaryValue is the intensity (1-255) assigned to changed pixels.
	BinaryValue int `json:"binary_value" yaml:"binary_value"`
	// DilateKernelSize is the side of the square dilation element.
	DilateKernelSize int `json:"dilate_kernel_size" yaml:"dilate_kernel_size"`
	// DilateIterations is how many times dilation is applied.
	DilateIterations int `json:"dilate_iterations" yaml:"dilate_iterations"`
	// MinArea is the contour area a region must exceed to be reported.
	MinArea float64 `json:"min_area" yaml:"min_area"`
}

// DefaultConfig returns the default configuration for motion detection.
//
// Returns:
//   - Config: 21x21 blur, threshold 25, 3x3 dilation once, minimum area 500.
func DefaultConfig() Config {
	return Config{
		BlurKernelSize:   21,
		BlurSigma:        0,
		DiffThreshold:    25,
		BinaryValue:      255,
		DilateKernelSize: 3,
		DilateIterations: 1,
		MinArea:          500,
	}
}

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	switch {
	case c.BlurKernelSize < 1 || c.BlurKernelSize%2 == 0:
		return errors.Wrapf(ErrInvalidConfig, "blur kernel size %d must be odd and >= 1", c.BlurKernelSize)
	case c.BlurSigma < 0:
		return errors.Wrapf(ErrInvalidConfig, "blur sigma %g must not be negative", c.BlurSigma)
	case c.DiffThreshold < 0 || c.DiffThreshold > 255:
		return errors.Wrapf(ErrInvalidConfig, "difference threshold %d must be within 0-255", c.DiffThreshold)
	case c.BinaryValue < 1 || c.BinaryValue > 255:
		return errors.Wrapf(ErrInvalidConfig, "binary value %d must be within 1-255", c.BinaryValue)
	case c.DilateKernelSize < 1:
		return errors.Wrapf(ErrInvalidConfig, "dilation kernel size %d must be >= 1", c.DilateKernelSize)
	case c.DilateIterations < 1:
		return errors.Wrapf(ErrInvalidConfig, "dilation iterations %d must be >= 1", c.DilateIterations)
	case c.MinArea < 0:
		return errors.Wrapf(ErrInvalidConfig, "minimum area %g must not be negative", c.MinArea)
	}
	return nil
}
