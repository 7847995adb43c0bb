package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-motion/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeClip writes two empty frames followed by one with a bright block.
func writeClip(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 160, 120))
		for y := 0; y < 120; y++ {
			for x := 0; x < 160; x++ {
				c := color.RGBA{A: 255}
				if i == 2 && x >= 60 && x < 100 && y >= 40 && y < 80 {
					c = color.RGBA{255, 255, 255, 255}
				}
				img.SetRGBA(x, y, c)
			}
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame-%d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
	return dir
}

func TestRunFramesHeadless(t *testing.T) {
	dir := writeClip(t)
	var stdout, logs bytes.Buffer

	code := run(context.Background(), []string{
		"-frames", dir, "-headless", "-backend", "native",
		"-listen", "127.0.0.1:0", "-log-format", "json", "-log-level", "debug",
	}, &stdout, &logs)

	assert.Equal(t, exitOK, code, logs.String())
	assert.Equal(t, "end of stream\n", stdout.String())
	assert.Contains(t, logs.String(), "motion detected")
	assert.Contains(t, logs.String(), `"device":"`+dir+`"`)
}

func TestOpenSourceFramesWithWidth(t *testing.T) {
	dir := writeClip(t)
	source, device, err := openSource(config.SourceConfig{Frames: dir, Width: 80})
	require.NoError(t, err)
	t.Cleanup(func() { _ = source.Close() })
	assert.Equal(t, dir, device)

	frame, err := source.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Pt(80, 60), frame.Image.Bounds().Size())
}

func TestRunInterrupted(t *testing.T) {
	dir := writeClip(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, logs bytes.Buffer
	code := run(ctx, []string{"-frames", dir, "-headless", "-backend", "native"}, &stdout, &logs)
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "interrupted\n", stdout.String())
}

func TestRunCameraUnavailable(t *testing.T) {
	var stdout, logs bytes.Buffer
	code := run(context.Background(), []string{
		"-video", filepath.Join(t.TempDir(), "missing.mp4"), "-headless",
	}, &stdout, &logs)
	assert.Equal(t, exitFailed, code)
	assert.Equal(t, "camera could not be opened\n", stdout.String())
}

func TestRunFrameFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame-0.png"), []byte("garbage"), 0o600))

	var stdout, logs bytes.Buffer
	code := run(context.Background(), []string{"-frames", dir, "-headless", "-backend", "native"}, &stdout, &logs)
	assert.Equal(t, exitFailed, code)
	assert.Equal(t, "frame pipeline failed\n", stdout.String())
}

func TestRunUsageErrors(t *testing.T) {
	var stdout, logs bytes.Buffer
	assert.Equal(t, exitUsage, run(context.Background(), []string{"-threshold", "999"}, &stdout, &logs))
	assert.Equal(t, exitUsage, run(context.Background(), []string{"-bogus"}, &stdout, &logs))
	assert.Empty(t, stdout.String())
}
