package motion

import (
	"image"
	"image/color"
	"testing"

	"github.com/nvr-ai/go-motion/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	black = color.RGBA{0, 0, 0, 255}
	white = color.RGBA{255, 255, 255, 255}
)

func newTestPreprocessor(t *testing.T, ops ImageOps) *Preprocessor {
	t.Helper()
	pre, err := NewPreprocessor(DefaultConfig(), ops)
	require.NoError(t, err)
	return pre
}

func TestNormalizeKeepsGeometry(t *testing.T) {
	pre := newTestPreprocessor(t, images.Native{})
	for _, size := range []image.Point{{64, 48}, {1, 1}, {33, 7}} {
		out, err := pre.Normalize(rawFrame(1, size.X, size.Y, black, white, image.Rect(0, 0, size.X/2, size.Y/2)))
		require.NoError(t, err)
		assert.Equal(t, size, out.Size())
		assert.Equal(t, image.Rect(0, 0, size.X, size.Y), out.Rect)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	pre := newTestPreprocessor(t, images.Native{})
	frame := rawFrame(7, 160, 120, color.RGBA{30, 60, 90, 255}, color.RGBA{250, 20, 120, 255}, image.Rect(40, 30, 90, 80))

	first, err := pre.Normalize(frame)
	require.NoError(t, err)
	second, err := pre.Normalize(frame)
	require.NoError(t, err)

	assert.Equal(t, first.Gray.Pix, second.Gray.Pix)
	assert.NotSame(t, first.Gray, second.Gray)
}

func TestNormalizeSmoothsEdges(t *testing.T) {
	pre := newTestPreprocessor(t, images.Native{})
	out, err := pre.Normalize(rawFrame(1, 100, 100, black, white, image.Rect(50, 0, 100, 100)))
	require.NoError(t, err)

	// Far from the edge the image is flat; at the edge it is a ramp.
	assert.Equal(t, uint8(0), out.GrayAt(10, 50).Y)
	assert.Equal(t, uint8(255), out.GrayAt(90, 50).Y)
	edge := out.GrayAt(50, 50).Y
	assert.Greater(t, edge, uint8(0))
	assert.Less(t, edge, uint8(255))
}

func TestNormalizeOrder(t *testing.T) {
	ops := &spyOps{}
	pre := newTestPreprocessor(t, ops)

	_, err := pre.Normalize(rawFrame(1, 30, 30, black, white))
	require.NoError(t, err)
	assert.Equal(t, []string{"ConvertToGray", "GaussianBlur"}, ops.calls)
	assert.Equal(t, 21, ops.blurKernel)
}

func TestNormalizeErrors(t *testing.T) {
	pre := newTestPreprocessor(t, images.Native{})

	_, err := pre.Normalize(Frame{ID: 1})
	require.ErrorIs(t, err, ErrInvalidFrame)

	_, err = pre.Normalize(Frame{ID: 2, Image: image.NewRGBA(image.Rect(0, 0, 0, 480))})
	require.ErrorIs(t, err, ErrInvalidFrame)

	_, err = pre.Normalize(Frame{ID: 3, Image: image.NewRGBA(image.Rect(0, 0, 640, 0))})
	require.ErrorIs(t, err, ErrInvalidFrame)

	for _, stage := range []string{"ConvertToGray", "GaussianBlur"} {
		pre := newTestPreprocessor(t, &spyOps{failOn: stage})
		_, err := pre.Normalize(rawFrame(1, 10, 10, black, white))
		require.ErrorIs(t, err, ErrProcessing, stage)
	}
}

func TestNewPreprocessorValidation(t *testing.T) {
	config := DefaultConfig()
	config.BlurKernelSize = 0
	_, err := NewPreprocessor(config, images.Native{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewPreprocessor(DefaultConfig(), nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEndToEndBlankBlankMovingBlock(t *testing.T) {
	pre := newTestPreprocessor(t, images.Native{})
	detector := newTestDetector(t, DefaultConfig(), images.Native{})

	block := image.Rect(140, 100, 180, 140)
	frames := []Frame{
		rawFrame(0, 320, 240, black, white),
		rawFrame(1, 320, 240, black, white),
		rawFrame(2, 320, 240, black, white, block),
	}
	expectedBoxes := []int{0, 0, 1}

	for i, frame := range frames {
		norm, err := pre.Normalize(frame)
		require.NoError(t, err)

		boxes, err := detector.Detect(norm)
		require.NoError(t, err)
		require.Len(t, boxes, expectedBoxes[i], "frame %d", i)

		if len(boxes) == 1 {
			assert.True(t, boxes[0].Contains(block), "box %v should contain %v", boxes[0], block)
			assert.Less(t, boxes[0].Area(), 4*block.Dx()*block.Dy())
		}
	}
}
