// Package config assembles the runtime configuration of the motion command.
//
// Settings are layered, lowest precedence first:
//
//	defaults -> YAML file (-config) -> environment (MOTION_*, .env) -> flags
package config

import (
	"flag"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-motion/logging"
	"github.com/nvr-ai/go-motion/motion"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "MOTION_"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Image backends selectable with Backend.
const (
	BackendOpenCV = "opencv"
	BackendNative = "native"
)

// Source kinds returned by SourceConfig.Kind.
const (
	SourceDevice = "device"
	SourceVideo  = "video"
	SourceFrames = "frames"
)

// Config is the complete configuration of a run.
type Config struct {
	Detector  motion.Config   `yaml:"detector"`
	Source    SourceConfig    `yaml:"source"`
	Display   DisplayConfig   `yaml:"display"`
	Publisher PublisherConfig `yaml:"publisher"`
	Log       LogConfig       `yaml:"log"`
	// ReportEvery logs stage timings every N frames; 0 reports only at the end.
	ReportEvery int `yaml:"report_every"`
	// Backend selects the image primitives: BackendOpenCV or BackendNative.
	Backend string `yaml:"backend"`
}

// SourceConfig selects where frames come from.
type SourceConfig struct {
	Device int    `yaml:"device"` // camera index, used when Video and Frames are empty
	Video  string `yaml:"video"`  // video file path
	Frames string `yaml:"frames"` // directory of frame-<N>.<ext> images
	Width  int    `yaml:"width"`  // resize to this width; 0 keeps the native size
}

// Kind reports which source is configured.
func (s SourceConfig) Kind() string {
	switch {
	case s.Frames != "":
		return SourceFrames
	case s.Video != "":
		return SourceVideo
	default:
		return SourceDevice
	}
}

// DisplayConfig controls the preview window.
type DisplayConfig struct {
	Headless bool   `yaml:"headless"`
	Title    string `yaml:"title"`
}

// PublisherConfig controls the WebSocket event endpoint.
type PublisherConfig struct {
	// Listen is the HTTP address; empty disables publishing.
	Listen       string        `yaml:"listen"`
	Path         string        `yaml:"path"`
	QueueSize    int           `yaml:"queue_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Detector: motion.DefaultConfig(),
		Display:  DisplayConfig{Title: "Camera Feed"},
		Publisher: PublisherConfig{
			Path:         "/events",
			QueueSize:    16,
			WriteTimeout: 5 * time.Second,
		},
		Log:     LogConfig{Level: "info", Format: logging.FormatConsole},
		Backend: BackendOpenCV,
	}
}

// LoadFile overlays a YAML file onto cfg. Keys missing from the file keep
// their current values.
//
// Arguments:
// - path: Path to the YAML file.
// - cfg: The configuration to update.
//
// Returns:
// - error: If the file cannot be read or parsed.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Environment returns a lookup over the process environment, falling back to
// the variables of a dotenv file. A missing file is not an error.
//
// Arguments:
// - dotenv: Path of the dotenv file, usually ".env". Empty skips it.
//
// Returns:
// - LookupFunc: Process environment first, then the file.
// - error: If the file exists but cannot be parsed.
func Environment(dotenv string) (LookupFunc, error) {
	fileVars := map[string]string{}
	if dotenv != "" {
		vars, err := godotenv.Read(dotenv)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, errors.Wrapf(err, "read %s", dotenv)
		}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}, nil
}

// ApplyEnv overlays MOTION_* variables onto cfg.
func ApplyEnv(lookup LookupFunc, cfg *Config) error {
	e := envReader{lookup: lookup}

	e.int("DEVICE", &cfg.Source.Device)
	e.str("VIDEO", &cfg.Source.Video)
	e.str("FRAMES", &cfg.Source.Frames)
	e.int("WIDTH", &cfg.Source.Width)
	e.bool("HEADLESS", &cfg.Display.Headless)
	e.str("LISTEN", &cfg.Publisher.Listen)
	e.int("QUEUE_SIZE", &cfg.Publisher.QueueSize)
	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)
	e.int("REPORT_EVERY", &cfg.ReportEvery)
	e.str("BACKEND", &cfg.Backend)

	e.int("BLUR_KERNEL_SIZE", &cfg.Detector.BlurKernelSize)
	e.float("BLUR_SIGMA", &cfg.Detector.BlurSigma)
	e.int("DIFF_THRESHOLD", &cfg.Detector.DiffThreshold)
	e.int("BINARY_VALUE", &cfg.Detector.BinaryValue)
	e.int("DILATE_KERNEL_SIZE", &cfg.Detector.DilateKernelSize)
	e.int("DILATE_ITERATIONS", &cfg.Detector.DilateIterations)
	e.float("MIN_AREA", &cfg.Detector.MinArea)

	return e.err
}

type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(name string) (string, string, bool) {
	key := EnvPrefix + name
	v, ok := e.lookup(key)
	if !ok || e.err != nil {
		return key, "", false
	}
	return key, strings.TrimSpace(v), true
}

func (e *envReader) str(name string, dst *string) {
	if _, v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) int(name string, dst *int) {
	if key, v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.err = errors.Wrapf(err, "%s", key)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(name string, dst *float64) {
	if key, v, ok := e.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.err = errors.Wrapf(err, "%s", key)
			return
		}
		*dst = f
	}
}

func (e *envReader) bool(name string, dst *bool) {
	if key, v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.err = errors.Wrapf(err, "%s", key)
			return
		}
		*dst = b
	}
}

// Bind registers command-line flags that write into cfg. The current values
// of cfg become the flag defaults.
func Bind(fs *flag.FlagSet, cfg *Config, configPath *string) {
	fs.StringVar(configPath, "config", *configPath, "YAML configuration file")

	fs.IntVar(&cfg.Source.Device, "device", cfg.Source.Device, "camera device index")
	fs.StringVar(&cfg.Source.Video, "video", cfg.Source.Video, "read frames from a video file")
	fs.StringVar(&cfg.Source.Frames, "frames", cfg.Source.Frames, "read frame-<N> images from a directory")
	fs.IntVar(&cfg.Source.Width, "width", cfg.Source.Width, "resize frames to this width (0 keeps the native size)")
	fs.BoolVar(&cfg.Display.Headless, "headless", cfg.Display.Headless, "run without a preview window")
	fs.StringVar(&cfg.Publisher.Listen, "listen", cfg.Publisher.Listen, "serve motion events over WebSocket on this address")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "log format (console, json)")
	fs.IntVar(&cfg.ReportEvery, "report-every", cfg.ReportEvery, "log stage timings every N frames")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "image backend (opencv, native)")

	fs.IntVar(&cfg.Detector.BlurKernelSize, "blur-kernel", cfg.Detector.BlurKernelSize, "Gaussian blur kernel size (odd)")
	fs.Float64Var(&cfg.Detector.BlurSigma, "blur-sigma", cfg.Detector.BlurSigma, "Gaussian sigma (0 derives it from the kernel)")
	fs.IntVar(&cfg.Detector.DiffThreshold, "threshold", cfg.Detector.DiffThreshold, "per-pixel difference threshold (0-255)")
	fs.IntVar(&cfg.Detector.BinaryValue, "binary-value", cfg.Detector.BinaryValue, "mask value for changed pixels")
	fs.IntVar(&cfg.Detector.DilateKernelSize, "dilate-kernel", cfg.Detector.DilateKernelSize, "dilation kernel size")
	fs.IntVar(&cfg.Detector.DilateIterations, "dilate-iterations", cfg.Detector.DilateIterations, "dilation iterations")
	fs.Float64Var(&cfg.Detector.MinArea, "min-area", cfg.Detector.MinArea, "minimum contour area to report")
}

// Load builds the configuration for a command line.
//
// Arguments:
// - name: Program name used in flag usage output.
// - args: Command-line arguments without the program name.
// - lookup: Environment lookup, usually from Environment.
//
// Returns:
// - Config: The validated configuration.
// - error: flag.ErrHelp for -h, or any loading or validation error.
//
// @example
// env, _ := config.Environment(".env")
// cfg, err := config.Load("motion", os.Args[1:], env)
func Load(name string, args []string, lookup LookupFunc) (Config, error) {
	// The first pass only discovers -config.
	var path string
	scratch := Default()
	pre := flag.NewFlagSet(name, flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	Bind(pre, &scratch, &path)
	if err := pre.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			pre.SetOutput(os.Stderr)
			pre.Usage()
		}
		return Config{}, err
	}

	cfg := Default()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if lookup != nil {
		if err := ApplyEnv(lookup, &cfg); err != nil {
			return Config{}, err
		}
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	Bind(fs, &cfg, &path)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects inconsistent or out-of-range settings.
func (c Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if c.Source.Video != "" && c.Source.Frames != "" {
		return errors.Wrap(ErrInvalid, "video and frames sources are mutually exclusive")
	}
	if c.Source.Device < 0 {
		return errors.Wrapf(ErrInvalid, "device must be non-negative, got %d", c.Source.Device)
	}
	if c.Source.Width < 0 {
		return errors.Wrapf(ErrInvalid, "width must be non-negative, got %d", c.Source.Width)
	}
	if c.ReportEvery < 0 {
		return errors.Wrapf(ErrInvalid, "report_every must be non-negative, got %d", c.ReportEvery)
	}
	if c.Publisher.Listen != "" {
		if c.Publisher.QueueSize <= 0 {
			return errors.Wrapf(ErrInvalid, "publisher queue_size must be positive, got %d", c.Publisher.QueueSize)
		}
		if c.Publisher.WriteTimeout <= 0 {
			return errors.Wrapf(ErrInvalid, "publisher write_timeout must be positive, got %s", c.Publisher.WriteTimeout)
		}
		if !strings.HasPrefix(c.Publisher.Path, "/") {
			return errors.Wrapf(ErrInvalid, "publisher path %q must start with /", c.Publisher.Path)
		}
	}
	switch c.Backend {
	case BackendOpenCV, BackendNative:
	default:
		return errors.Wrapf(ErrInvalid, "backend %q: want %s or %s", c.Backend, BackendOpenCV, BackendNative)
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return errors.Wrapf(ErrInvalid, "log format %q", c.Log.Format)
	}
	return nil
}
