// Package pipeline drives frames from a source through the motion detector to
// a sink, one frame at a time.
//
// Each iteration runs acquire -> normalize -> detect -> annotate -> show ->
// publish -> poll quit. Frame N+1 is never read before frame N has been shown.
package pipeline

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-motion/capture"
	"github.com/nvr-ai/go-motion/logging"
	"github.com/nvr-ai/go-motion/motion"
	"github.com/nvr-ai/go-motion/profiler"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Stage names recorded in the profiler.
const (
	StageRead      = "read"
	StageNormalize = "normalize"
	StageDetect    = "detect"
	StageAnnotate  = "annotate"
	StageShow      = "show"
	StagePublish   = "publish"
)

// ErrAlreadyRun is returned when Run is called twice on the same Runner.
var ErrAlreadyRun = errors.New("pipeline already run")

// Sink displays annotated frames.
type Sink interface {
	// Show presents one annotated frame and the boxes drawn on it.
	Show(frame image.Image, boxes []motion.BoundingBox) error
	// QuitRequested reports whether the user asked to stop.
	QuitRequested() bool
	// Close releases the sink.
	Close() error
}

// Publisher forwards motion events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Event describes the motion found in one frame.
type Event struct {
	RunID     string               `json:"run_id"`
	FrameID   int                  `json:"frame_id"`
	Timestamp time.Time            `json:"timestamp"`
	Boxes     []motion.BoundingBox `json:"boxes"`
}

// Outcome is the reason a run ended without error.
type Outcome int

const (
	// OutcomeQuit means the sink requested quit.
	OutcomeQuit Outcome = iota
	// OutcomeEndOfStream means the source ran out of frames.
	OutcomeEndOfStream
	// OutcomeCancelled means the run context was cancelled.
	OutcomeCancelled
	// OutcomeFailed accompanies a non-nil error.
	OutcomeFailed
)

// String returns the outcome as a human-readable message.
func (o Outcome) String() string {
	switch o {
	case OutcomeQuit:
		return "quit requested"
	case OutcomeEndOfStream:
		return "end of stream"
	case OutcomeCancelled:
		return "interrupted"
	case OutcomeFailed:
		return "frame pipeline failed"
	default:
		return "unknown"
	}
}

// Options wires the parts of a Runner. Source, Sink, Preprocessor and
// Detector are required.
type Options struct {
	Source       capture.Source
	Sink         Sink
	Publisher    Publisher // optional
	Preprocessor *motion.Preprocessor
	Detector     *motion.Detector
	Annotator    *motion.Annotator  // defaults to motion.NewAnnotator(nil)
	Stages       *profiler.Stages   // defaults to a fresh profiler
	Logger       zerolog.Logger
	// ReportEvery logs stage timings every N frames; 0 reports only at the end.
	ReportEvery int
	// RunID identifies the run in published events; empty generates a UUID.
	RunID string
}

// Runner owns one run of the frame pipeline.
type Runner struct {
	opts   Options
	logger zerolog.Logger

	mu  sync.Mutex
	ran bool
}

// New validates the options and creates a Runner.
//
// Arguments:
// - opts: The pipeline parts.
//
// Returns:
// - *Runner: A runner ready for a single call to Run.
// - error: If a required part is missing.
func New(opts Options) (*Runner, error) {
	switch {
	case opts.Source == nil:
		return nil, errors.New("pipeline: source is required")
	case opts.Sink == nil:
		return nil, errors.New("pipeline: sink is required")
	case opts.Preprocessor == nil:
		return nil, errors.New("pipeline: preprocessor is required")
	case opts.Detector == nil:
		return nil, errors.New("pipeline: detector is required")
	case opts.ReportEvery < 0:
		return nil, errors.Errorf("pipeline: report interval must be non-negative, got %d", opts.ReportEvery)
	}

	if opts.Annotator == nil {
		opts.Annotator = motion.NewAnnotator(nil)
	}
	if opts.Stages == nil {
		opts.Stages = profiler.NewStages(0)
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	return &Runner{
		opts:   opts,
		logger: logging.Component(opts.Logger, "pipeline").With().Str("run_id", opts.RunID).Logger(),
	}, nil
}

// RunID returns the identifier attached to published events.
func (r *Runner) RunID() string {
	return r.opts.RunID
}

// Stages returns the profiler that records stage timings.
func (r *Runner) Stages() *profiler.Stages {
	return r.opts.Stages
}

// Run processes frames until the sink requests quit, the source ends, the
// context is cancelled or a stage fails. The source and sink are closed
// before Run returns.
//
// Arguments:
// - ctx: Cancelling the context stops the run after the current frame.
//
// Returns:
// - Outcome: Why the run stopped. OutcomeFailed when err is non-nil.
// - error: The first failure, annotated with the frame ID.
func (r *Runner) Run(ctx context.Context) (outcome Outcome, err error) {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return OutcomeFailed, ErrAlreadyRun
	}
	r.ran = true
	r.mu.Unlock()

	defer func() {
		if closeErr := r.close(); closeErr != nil && err == nil {
			outcome, err = OutcomeFailed, closeErr
		}
	}()

	r.logger.Info().Msg("pipeline started")
	frames := 0
	defer func() {
		r.opts.Stages.Report(r.logger, "pipeline stopped")
		r.logger.Info().Int("frames", frames).Stringer("outcome", outcome).Msg("pipeline finished")
	}()

	for {
		if ctx.Err() != nil {
			return OutcomeCancelled, nil
		}

		done := r.opts.Stages.Start(StageRead)
		frame, err := r.opts.Source.Read(ctx)
		done()
		switch {
		case errors.Is(err, capture.ErrEndOfStream):
			return OutcomeEndOfStream, nil
		case err != nil && ctx.Err() != nil:
			return OutcomeCancelled, nil
		case err != nil:
			return OutcomeFailed, errors.Wrapf(err, "frame %d: read", frames)
		}

		if err := r.process(ctx, frame); err != nil {
			return OutcomeFailed, errors.Wrapf(err, "frame %d", frame.ID)
		}
		frames++

		if r.opts.ReportEvery > 0 && frames%r.opts.ReportEvery == 0 {
			r.opts.Stages.Report(r.logger, "stage timings")
		}

		if r.opts.Sink.QuitRequested() {
			return OutcomeQuit, nil
		}
	}
}

func (r *Runner) process(ctx context.Context, frame motion.Frame) error {
	stages := r.opts.Stages

	done := stages.Start(StageNormalize)
	normalized, err := r.opts.Preprocessor.Normalize(frame)
	done()
	if err != nil {
		return err
	}

	done = stages.Start(StageDetect)
	boxes, err := r.opts.Detector.Detect(normalized)
	done()
	if err != nil {
		return err
	}

	done = stages.Start(StageAnnotate)
	annotated, err := r.opts.Annotator.Annotate(frame.Image, boxes)
	done()
	if err != nil {
		return err
	}

	done = stages.Start(StageShow)
	err = r.opts.Sink.Show(annotated, boxes)
	done()
	if err != nil {
		return errors.Wrap(err, "show")
	}

	if len(boxes) == 0 {
		return nil
	}
	r.logger.Debug().Int("frame", frame.ID).Int("regions", len(boxes)).Msg("motion detected")

	if r.opts.Publisher == nil {
		return nil
	}
	done = stages.Start(StagePublish)
	err = r.opts.Publisher.Publish(ctx, Event{
		RunID:     r.opts.RunID,
		FrameID:   frame.ID,
		Timestamp: frame.Timestamp,
		Boxes:     boxes,
	})
	done()
	if err != nil {
		// Delivery is best effort; a failed publish never stops the run.
		r.logger.Warn().Err(err).Int("frame", frame.ID).Msg("publish failed")
	}
	return nil
}

func (r *Runner) close() error {
	sourceErr := r.opts.Source.Close()
	sinkErr := r.opts.Sink.Close()
	if sourceErr != nil {
		return errors.Wrap(sourceErr, "close source")
	}
	if sinkErr != nil {
		return errors.Wrap(sinkErr, "close sink")
	}
	return nil
}

// Discard is a headless Sink. It never requests quit.
type Discard struct{}

// Show drops the frame.
func (Discard) Show(image.Image, []motion.BoundingBox) error { return nil }

// QuitRequested always returns false.
func (Discard) QuitRequested() bool { return false }

// Close does nothing.
func (Discard) Close() error { return nil }
