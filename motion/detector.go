// Package motion - Frame differencing motion detection.
//
// The pipeline compares every normalized frame with the one before it:
//
// ┌──────────────────────┐
// │ Raw Frame            │
// └──────┬───────────────┘
// ┌──────────────────────┐
// │ Preprocessor         │  grayscale, Gaussian blur
// └──────┬───────────────┘
// ┌──────────────────────┐
// │ Detector             │  |reference - current|, threshold, dilate,
// │                      │  external contours, area filter, bounding boxes
// └──────┬───────────────┘
// ┌──────────────────────┐
// │ Annotator            │  boxes drawn on a copy of the raw frame
// └──────────────────────┘
//
// The reference is always the immediately preceding frame, so the detector
// sees frame-to-frame change. An object that stops moving disappears from the
// output one frame later.
//
// Usage:
//
//	pre, _ := motion.NewPreprocessor(motion.DefaultConfig(), images.Native{})
//	det, _ := motion.NewDetector(motion.DefaultConfig(), images.Native{})
//
//	for frame := range frames {
//	    normalized, err := pre.Normalize(frame)
//	    boxes, err := det.Detect(normalized)
//	    annotated, err := motion.NewAnnotator(nil).Annotate(frame.Image, boxes)
//	}
package motion

import (
	"sync"

	"github.com/pkg/errors"
)

// State is the lifecycle stage of a Detector.
type State int

const (
	// StateUninitialized means no reference frame is held yet.
	StateUninitialized State = iota
	// StateTracking means a reference frame is held and detection is active.
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// Detector finds regions of change between consecutive normalized frames.
//
// The only mutable state is the reference frame, replaced on every accepted
// call. An instance belongs to a single processing lane; the mutex only guards
// against accidental sharing.
type Detector struct {
	config     Config
	ops        ImageOps
	reference  NormalizedFrame
	frameCount int64
	mu         sync.Mutex
}

// NewDetector creates a motion detector in the uninitialized state.
//
// Arguments:
//   - config: Detection parameters; validated and copied.
//   - ops: Image primitives to build on.
//
// Returns:
//   - *Detector: The detector.
//   - error: ErrInvalidConfig when config is out of range or ops is nil.
//
// @example
// detector, err := NewDetector(DefaultConfig(), images.Native{})
func NewDetector(config Config, ops ImageOps) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if ops == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "image ops are required")
	}
	return &Detector{config: config, ops: ops}, nil
}

// Detect compares current with the reference frame and returns a bounding
// box for every changed region larger than MinArea.
//
// The first call after construction or Reset only stores current as the
// reference and returns no boxes. Every later successful call replaces the
// reference with current, whether or not motion was found.
//
// Arguments:
//   - current: The normalized frame to analyze.
//
// Returns:
//   - []BoundingBox: Regions of motion, in contour extraction order.
//   - error: ErrInvalidFrame when current is empty or differs in size from
//     the reference, ErrProcessing when a primitive fails. The reference is
//     left untouched on error.
//
// @example
// boxes, err := detector.Detect(normalized)
// fmt.Printf("%d moving regions\n", len(boxes))
func (d *Detector) Detect(current NormalizedFrame) ([]BoundingBox, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if current.Empty() {
		return nil, errors.Wrap(ErrInvalidFrame, "normalized frame is empty")
	}

	if d.reference.Empty() {
		d.reference = current
		d.frameCount++
		return nil, nil
	}

	if ref, cur := d.reference.Size(), current.Size(); ref != cur {
		return nil, errors.Wrapf(ErrInvalidFrame, "frame is %dx%d but reference is %dx%d", cur.X, cur.Y, ref.X, ref.Y)
	}

	boxes, err := d.regions(current)
	if err != nil {
		return nil, err
	}

	d.reference = current
	d.frameCount++
	return boxes, nil
}

// regions runs difference, threshold, dilation and contour extraction
// against the reference.
func (d *Detector) regions(current NormalizedFrame) ([]BoundingBox, error) {
	delta, err := d.ops.AbsDiff(d.reference.Gray, current.Gray)
	if err != nil {
		return nil, processingError("absolute difference", err)
	}

	binary, err := d.ops.Threshold(delta, uint8(d.config.DiffThreshold), uint8(d.config.BinaryValue))
	if err != nil {
		return nil, processingError("threshold", err)
	}

	dilated, err := d.ops.Dilate(binary, d.config.DilateKernelSize, d.config.DilateIterations)
	if err != nil {
		return nil, processingError("dilate", err)
	}

	contours, err := d.ops.FindExternalContours(dilated)
	if err != nil {
		return nil, processingError("find contours", err)
	}

	var boxes []BoundingBox
	for _, contour := range contours {
		if d.ops.ContourArea(contour) <= d.config.MinArea {
			continue
		}
		boxes = append(boxes, BoxFromRect(d.ops.BoundingRect(contour)))
	}
	return boxes, nil
}

// State reports whether the detector holds a reference frame.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reference.Empty() {
		return StateUninitialized
	}
	return StateTracking
}

// FrameCount returns the number of frames accepted since construction or
// the last Reset.
func (d *Detector) FrameCount() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frameCount
}

// Reset drops the reference frame and returns the detector to the
// uninitialized state.
//
// Use this when switching between video streams or after long pauses; the
// next Detect call will bootstrap a new reference and report nothing.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reference = NormalizedFrame{}
	d.frameCount = 0
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config {
	return d.config
}
