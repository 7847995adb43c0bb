// Command motion watches a camera, a video file or a directory of frames and
// outlines the regions that changed since the previous frame.
//
// Usage:
//
//	motion -device 0
//	motion -video clip.mp4 -width 500 -listen :8090
//	motion -frames ./frames -headless -backend native
//
// On exit it prints one line explaining why it stopped: "quit requested",
// "end of stream", "interrupted", "camera could not be opened" or
// "frame pipeline failed".
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/go-motion/capture"
	"github.com/nvr-ai/go-motion/config"
	"github.com/nvr-ai/go-motion/images"
	"github.com/nvr-ai/go-motion/logging"
	"github.com/nvr-ai/go-motion/motion"
	"github.com/nvr-ai/go-motion/notify"
	"github.com/nvr-ai/go-motion/opencv"
	"github.com/nvr-ai/go-motion/pipeline"
	"github.com/nvr-ai/go-motion/profiler"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// backend provides every image primitive the run needs.
type backend interface {
	motion.ImageOps
	motion.BoxDrawer
}

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one session and returns the process exit code. The final
// status line goes to stdout, logs go to logw.
func run(ctx context.Context, args []string, stdout, logw io.Writer) int {
	env, err := config.Environment(".env")
	if err != nil {
		fmt.Fprintln(logw, err)
		return exitUsage
	}

	cfg, err := config.Load("motion", args, env)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(logw, err)
		return exitUsage
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: logw})
	if err != nil {
		fmt.Fprintln(logw, err)
		return exitUsage
	}

	source, device, err := openSource(cfg.Source)
	if err != nil {
		logger.Error().Err(err).Str("source", cfg.Source.Kind()).Msg("open source")
		if errors.Is(err, opencv.ErrDeviceUnavailable) {
			fmt.Fprintln(stdout, "camera could not be opened")
		} else {
			fmt.Fprintln(stdout, pipeline.OutcomeFailed)
		}
		return exitFailed
	}
	logger.Info().Str("source", cfg.Source.Kind()).Str("device", device).Msg("source opened")

	var ops backend = opencv.Ops{}
	if cfg.Backend == config.BackendNative {
		ops = images.Native{}
	}

	pre, err := motion.NewPreprocessor(cfg.Detector, ops)
	if err != nil {
		_ = source.Close()
		logger.Error().Err(err).Msg("create preprocessor")
		fmt.Fprintln(stdout, pipeline.OutcomeFailed)
		return exitFailed
	}
	detector, err := motion.NewDetector(cfg.Detector, ops)
	if err != nil {
		_ = source.Close()
		logger.Error().Err(err).Msg("create detector")
		fmt.Fprintln(stdout, pipeline.OutcomeFailed)
		return exitFailed
	}

	var sink pipeline.Sink = pipeline.Discard{}
	if !cfg.Display.Headless {
		sink = opencv.NewWindow(cfg.Display.Title)
	}

	var publisher pipeline.Publisher
	if cfg.Publisher.Listen != "" {
		hub, shutdown, err := serveEvents(cfg.Publisher, logger)
		if err != nil {
			_ = source.Close()
			_ = sink.Close()
			logger.Error().Err(err).Str("listen", cfg.Publisher.Listen).Msg("start event server")
			fmt.Fprintln(stdout, pipeline.OutcomeFailed)
			return exitFailed
		}
		defer shutdown()
		publisher = hub
	}

	runner, err := pipeline.New(pipeline.Options{
		Source:       source,
		Sink:         sink,
		Publisher:    publisher,
		Preprocessor: pre,
		Detector:     detector,
		Annotator:    motion.NewAnnotator(ops),
		Stages:       profiler.NewStages(0),
		Logger:       logger,
		ReportEvery:  cfg.ReportEvery,
	})
	if err != nil {
		_ = source.Close()
		_ = sink.Close()
		logger.Error().Err(err).Msg("create pipeline")
		fmt.Fprintln(stdout, pipeline.OutcomeFailed)
		return exitFailed
	}

	logger.Info().
		Str("source", cfg.Source.Kind()).
		Str("backend", cfg.Backend).
		Bool("headless", cfg.Display.Headless).
		Interface("detector", cfg.Detector).
		Msg("motion detection started")

	outcome, err := runner.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline failed")
		fmt.Fprintln(stdout, outcome)
		return exitFailed
	}
	fmt.Fprintln(stdout, outcome)
	return exitOK
}

// openSource opens the configured frame source, resized when a width is set.
// It also returns a description of what was opened.
func openSource(cfg config.SourceConfig) (capture.Source, string, error) {
	var (
		source capture.Source
		device string
	)
	switch cfg.Kind() {
	case config.SourceFrames:
		dir, err := capture.OpenDirectory(cfg.Frames)
		if err != nil {
			return nil, "", err
		}
		source, device = dir, cfg.Frames
	default:
		var (
			camera *opencv.Camera
			err    error
		)
		if cfg.Kind() == config.SourceVideo {
			camera, err = opencv.OpenVideo(cfg.Video)
		} else {
			camera, err = opencv.OpenCamera(cfg.Device)
		}
		if err != nil {
			return nil, "", err
		}
		source, device = camera, camera.Device()
	}

	if cfg.Width > 0 {
		resized, err := capture.NewResized(source, cfg.Width)
		if err != nil {
			_ = source.Close()
			return nil, "", err
		}
		return resized, device, nil
	}
	return source, device, nil
}

// serveEvents starts the WebSocket event server. The returned function stops
// it and disconnects every client.
func serveEvents(cfg config.PublisherConfig, logger zerolog.Logger) (*notify.Hub, func(), error) {
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, nil, errors.Wrap(err, "listen")
	}

	hub := notify.NewHub(notify.Options{
		QueueSize:    cfg.QueueSize,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       logger,
	})
	server := &http.Server{
		Handler:           hub.Handler(cfg.Path),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("event server stopped")
		}
	}()
	logger.Info().Str("url", "ws://"+listener.Addr().String()+cfg.Path).Msg("serving motion events")

	shutdown := func() {
		_ = hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("event server shutdown")
		}
	}
	return hub, shutdown, nil
}
