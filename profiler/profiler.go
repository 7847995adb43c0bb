// Package profiler records per-stage timings of the frame pipeline.
package profiler

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// DefaultMaxSamples bounds the durations kept per stage.
const DefaultMaxSamples = 600

// Stages tracks how long each named pipeline stage takes.
//
// Count, Min and Max cover every recorded sample; Mean and StdDev are computed
// over the most recent MaxSamples durations. Stages is safe for concurrent
// use.
type Stages struct {
	mu         sync.RWMutex
	maxSamples int
	startTime  time.Time
	trackers   map[string]*timeTracker
	order      []string
}

// timeTracker tracks operation timing statistics.
type timeTracker struct {
	durations []time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// StageSummary is a snapshot of one stage's timings.
type StageSummary struct {
	Name   string
	Count  int64
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration
}

// MarshalZerologObject logs the summary as a nested object.
func (s StageSummary) MarshalZerologObject(e *zerolog.Event) {
	e.Str("stage", s.Name).
		Int64("count", s.Count).
		Dur("min", s.Min).
		Dur("max", s.Max).
		Dur("mean", s.Mean).
		Dur("stddev", s.StdDev)
}

// NewStages creates a stage profiler.
//
// Arguments:
// - maxSamples: Window of durations kept per stage. Zero selects DefaultMaxSamples.
//
// Returns:
// - *Stages: An empty profiler.
func NewStages(maxSamples int) *Stages {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Stages{
		maxSamples: maxSamples,
		startTime:  time.Now(),
		trackers:   make(map[string]*timeTracker),
	}
}

// Start begins timing a stage.
//
// Arguments:
// - name: The name of the stage to track
//
// Returns:
// - A function to call when the stage completes
//
// @example
// done := stages.Start("detect")
// boxes, err := detector.Detect(frame)
// done()
func (s *Stages) Start(name string) func() {
	start := time.Now()
	return func() {
		s.Record(name, time.Since(start))
	}
}

// Record adds one duration sample for a stage.
func (s *Stages) Record(name string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracker, exists := s.trackers[name]
	if !exists {
		tracker = &timeTracker{
			durations: make([]time.Duration, 0, s.maxSamples),
			minTime:   duration,
			maxTime:   duration,
		}
		s.trackers[name] = tracker
		s.order = append(s.order, name)
	}

	tracker.durations = append(tracker.durations, duration)
	if len(tracker.durations) > s.maxSamples {
		// Remove oldest sample
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Summary returns one entry per stage in the order stages were first seen.
func (s *Stages) Summary() []StageSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StageSummary, 0, len(s.order))
	for _, name := range s.order {
		tracker := s.trackers[name]
		samples := make([]float64, len(tracker.durations))
		for i, d := range tracker.durations {
			samples[i] = float64(d)
		}

		var mean, std float64
		if len(samples) > 1 {
			mean, std = stat.MeanStdDev(samples, nil)
		} else if len(samples) == 1 {
			mean = samples[0]
		}

		out = append(out, StageSummary{
			Name:   name,
			Count:  tracker.count,
			Min:    tracker.minTime,
			Max:    tracker.maxTime,
			Mean:   time.Duration(mean),
			StdDev: time.Duration(std),
		})
	}
	return out
}

// Slowest returns the stage with the highest mean, if any.
func (s *Stages) Slowest() (StageSummary, bool) {
	summary := s.Summary()
	if len(summary) == 0 {
		return StageSummary{}, false
	}
	sort.SliceStable(summary, func(i, j int) bool {
		return summary[i].Mean > summary[j].Mean
	})
	return summary[0], true
}

// Report logs the stage timings together with a memory snapshot and the
// name of the slowest stage.
func (s *Stages) Report(logger zerolog.Logger, msg string) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	arr := zerolog.Arr()
	for _, stage := range s.Summary() {
		arr.Object(stage)
	}

	event := logger.Info().
		Dur("uptime", time.Since(s.startTime).Truncate(time.Millisecond)).
		Str("heap_alloc", formatBytes(mem.HeapAlloc)).
		Uint32("gc_cycles", mem.NumGC).
		Int("goroutines", runtime.NumGoroutine()).
		Array("stages", arr)
	if slowest, ok := s.Slowest(); ok {
		event = event.Str("slowest", slowest.Name)
	}
	event.Msg(msg)
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
