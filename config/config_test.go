package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("motion", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, SourceDevice, cfg.Source.Kind())
	assert.Equal(t, "Camera Feed", cfg.Display.Title)
	assert.Equal(t, 21, cfg.Detector.BlurKernelSize)
	assert.Equal(t, 500.0, cfg.Detector.MinArea)
}

func TestLoadLayering(t *testing.T) {
	path := writeFile(t, "motion.yaml", `
detector:
  diff_threshold: 30
  min_area: 800
source:
  frames: /var/frames
  width: 640
publisher:
  listen: ":8090"
  write_timeout: 2s
log:
  level: debug
`)
	env := envMap(map[string]string{
		"MOTION_MIN_AREA":  "900",
		"MOTION_WIDTH":     "320",
		"MOTION_HEADLESS":  "true",
		"MOTION_LOG_LEVEL": "warn",
	})

	cfg, err := Load("motion", []string{"-config", path, "-min-area", "1000", "-log-level", "error"}, env)
	require.NoError(t, err)

	// File only.
	assert.Equal(t, 30, cfg.Detector.DiffThreshold)
	assert.Equal(t, "/var/frames", cfg.Source.Frames)
	assert.Equal(t, ":8090", cfg.Publisher.Listen)
	assert.Equal(t, 2*time.Second, cfg.Publisher.WriteTimeout)
	// Environment over file.
	assert.Equal(t, 320, cfg.Source.Width)
	assert.True(t, cfg.Display.Headless)
	// Flags over environment.
	assert.Equal(t, 1000.0, cfg.Detector.MinArea)
	assert.Equal(t, "error", cfg.Log.Level)
	// Untouched defaults.
	assert.Equal(t, 21, cfg.Detector.BlurKernelSize)
	assert.Equal(t, "/events", cfg.Publisher.Path)
	assert.Equal(t, SourceFrames, cfg.Source.Kind())
	assert.Equal(t, BackendOpenCV, cfg.Backend)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "missing file", args: []string{"-config", "/does/not/exist.yaml"}},
		{name: "bad env number", env: map[string]string{"MOTION_DIFF_THRESHOLD": "high"}},
		{name: "bad env bool", env: map[string]string{"MOTION_HEADLESS": "maybe"}},
		{name: "unknown flag", args: []string{"-nope"}},
		{name: "even kernel", args: []string{"-blur-kernel", "20"}},
		{name: "threshold out of range", args: []string{"-threshold", "300"}},
		{name: "negative area", args: []string{"-min-area", "-1"}},
		{name: "conflicting sources", args: []string{"-video", "a.mp4", "-frames", "dir"}},
		{name: "negative width", args: []string{"-width", "-5"}},
		{name: "bad log format", args: []string{"-log-format", "xml"}},
		{name: "unknown backend", env: map[string]string{"MOTION_BACKEND": "cuda"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("motion", tt.args, envMap(tt.env))
			require.Error(t, err)
		})
	}
}

func TestLoadHelp(t *testing.T) {
	_, err := Load("motion", []string{"-h"}, nil)
	require.ErrorIs(t, err, flag.ErrHelp)
}

func TestValidateWrapsErrInvalid(t *testing.T) {
	cfg := Default()
	cfg.Detector.DilateIterations = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg = Default()
	cfg.Publisher.Listen = ":9000"
	cfg.Publisher.QueueSize = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg = Default()
	cfg.Publisher.Listen = ":9000"
	cfg.Publisher.Path = "events"
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg = Default()
	cfg.Publisher.Listen = ":9000"
	cfg.Publisher.WriteTimeout = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)

	// Without a listener the publisher settings are unused.
	cfg.Publisher.Listen = ""
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsZeroWriteTimeout(t *testing.T) {
	path := writeFile(t, "motion.yaml", "publisher:\n  listen: \":8090\"\n  write_timeout: 0s\n")
	_, err := Load("motion", []string{"-config", path}, nil)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestLoadFileBadYAML(t *testing.T) {
	cfg := Default()
	path := writeFile(t, "bad.yaml", "detector: [unclosed")
	require.Error(t, LoadFile(path, &cfg))
}

func TestEnvironmentDotenv(t *testing.T) {
	path := writeFile(t, ".env", "MOTION_TEST_ONLY_VIDEO=clip.mp4\nMOTION_TEST_ONLY_SHADOWED=file\n")
	t.Setenv("MOTION_TEST_ONLY_SHADOWED", "process")

	lookup, err := Environment(path)
	require.NoError(t, err)

	v, ok := lookup("MOTION_TEST_ONLY_VIDEO")
	assert.True(t, ok)
	assert.Equal(t, "clip.mp4", v)

	v, ok = lookup("MOTION_TEST_ONLY_SHADOWED")
	assert.True(t, ok)
	assert.Equal(t, "process", v)

	_, ok = lookup("MOTION_TEST_ONLY_UNSET")
	assert.False(t, ok)
}

func TestEnvironmentMissingDotenv(t *testing.T) {
	lookup, err := Environment(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	require.NotNil(t, lookup)
}

func TestApplyEnvDetectorSettings(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(envMap(map[string]string{
		"MOTION_BLUR_KERNEL_SIZE":   "11",
		"MOTION_BLUR_SIGMA":         "1.5",
		"MOTION_DIFF_THRESHOLD":     " 40 ",
		"MOTION_DILATE_ITERATIONS":  "2",
		"MOTION_DILATE_KERNEL_SIZE": "5",
		"MOTION_VIDEO":              "clip.mp4",
	}), &cfg)
	require.NoError(t, err)

	assert.Equal(t, 11, cfg.Detector.BlurKernelSize)
	assert.Equal(t, 1.5, cfg.Detector.BlurSigma)
	assert.Equal(t, 40, cfg.Detector.DiffThreshold)
	assert.Equal(t, 2, cfg.Detector.DilateIterations)
	assert.Equal(t, 5, cfg.Detector.DilateKernelSize)
	assert.Equal(t, SourceVideo, cfg.Source.Kind())
}
