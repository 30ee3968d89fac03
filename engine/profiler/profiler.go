// Package profiler records per-run GPU timings and frame-rate/memory statistics.
package profiler

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/dustin/go-humanize"
)

// RunStats holds the timings of one executed program.
type RunStats struct {
	// Key is the program key.
	Key string
	// ID identifies the execution.
	ID string
	// Compile covers shader reflection, validation and pipeline creation.
	Compile time.Duration
	// Upload covers binding every input: uniform writes and texture uploads, including image waits.
	Upload time.Duration
	// Draw covers the clear, the draw and the copy into the readback buffer.
	Draw time.Duration
	// Total is the wall time of the whole execution.
	Total time.Duration
	// Pixels is the number of output pixels shaded.
	Pixels int
}

// Summary aggregates every RunStats recorded since the profiler was created or reset.
type Summary struct {
	Runs    int
	Pixels  int64
	Compile time.Duration
	Upload  time.Duration
	Draw    time.Duration
	Total   time.Duration
}

// PixelsPerSecond returns the shaded pixel throughput over the total run time.
func (s Summary) PixelsPerSecond() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Pixels) / s.Total.Seconds()
}

// RunsPerSecond returns the number of executions per second of total run time.
func (s Summary) RunsPerSecond() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Runs) / s.Total.Seconds()
}

// String formats the summary as a single human-readable line.
func (s Summary) String() string {
	return fmt.Sprintf("runs: %s | pixels: %s | compile: %s | upload: %s | draw: %s | total: %s | %s px/s",
		humanize.Comma(int64(s.Runs)), humanize.Comma(s.Pixels),
		s.Compile.Round(time.Microsecond), s.Upload.Round(time.Microsecond),
		s.Draw.Round(time.Microsecond), s.Total.Round(time.Microsecond),
		humanize.SIWithDigits(s.PixelsPerSecond(), 2, ""))
}

// Profiler tracks per-run timings and, when ticked, frame rate and memory statistics.
// Outputs stats to the library logger at a configurable interval. It is safe for concurrent use.
type Profiler struct {
	mu sync.Mutex

	summary Summary
	last    RunStats

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// Record adds one execution to the running summary.
//
// Parameters:
//   - s: the timings of the execution
func (p *Profiler) Record(s RunStats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.last = s
	p.summary.Runs++
	p.summary.Pixels += int64(s.Pixels)
	p.summary.Compile += s.Compile
	p.summary.Upload += s.Upload
	p.summary.Draw += s.Draw
	p.summary.Total += s.Total

	common.Logger().Debug("run recorded", "program", s.Key, "id", s.ID,
		"upload", s.Upload, "draw", s.Draw, "total", s.Total, "pixels", s.Pixels)
}

// Last returns the most recently recorded run.
func (p *Profiler) Last() RunStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Summary returns the aggregate of every recorded run.
func (p *Profiler) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

// Reset clears the recorded runs.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summary = Summary{}
	p.last = RunStats{}
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRate := float64(allocDelta) / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	var lastPause, maxPause time.Duration
	if gcCount > 0 {
		lastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPause = max(maxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	common.Logger().Info("profiler",
		"fps", fmt.Sprintf("%.2f", fps),
		"heap", humanize.IBytes(p.memStats.Alloc),
		"alloc_rate", humanize.IBytes(uint64(allocRate))+"/s",
		"gc", gcCount, "gc_last", lastPause, "gc_max", maxPause,
		"sys", humanize.IBytes(p.memStats.Sys))

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
