package profiler

import (
	"log"
	"runtime"
	"time"
)

// Stats is one reporting interval's worth of measurements.
type Stats struct {
	FPS            float64
	AvgFrameTime   time.Duration
	MaxFrameTime   time.Duration
	HeapMB         float64
	AllocRateMB    float64
	NumGC          uint32
	LastPauseMicro uint64
	MaxPauseMicro  uint64
	SysMB          float64
}

// Profiler tracks frame rate, frame time and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	lastFrame      time.Time
	maxFrame       time.Duration
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	now := time.Now()
	return &Profiler{
		lastTime:       now,
		lastFrame:      now,
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
	}
}

// SetInterval changes how often stats are logged. Values <= 0 are ignored.
//
// Parameters:
//   - interval: the reporting interval
func (p *Profiler) SetInterval(interval time.Duration) {
	if interval > 0 {
		p.updateInterval = interval
	}
}

// Last returns the stats of the most recent reporting interval.
//
// Returns:
//   - Stats: the last logged stats, zero before the first interval elapsed
func (p *Profiler) Last() Stats {
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, average and worst frame time, heap usage, allocation rate,
// GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	return p.tick(time.Now())
}

func (p *Profiler) tick(currentTime time.Time) bool {
	p.frameCount++
	if frame := currentTime.Sub(p.lastFrame); frame > p.maxFrame {
		p.maxFrame = frame
	}
	p.lastFrame = currentTime

	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc: bytes of live heap objects. TotalAlloc: cumulative, tracks churn. Sys: process footprint.
	s := Stats{
		FPS:          float64(p.frameCount) / elapsed.Seconds(),
		AvgFrameTime: elapsed / time.Duration(p.frameCount),
		MaxFrameTime: p.maxFrame,
		HeapMB:       float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB:  float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		NumGC:        p.memStats.NumGC,
		SysMB:        float64(p.memStats.Sys) / 1024 / 1024,
	}

	gcCount := p.memStats.NumGC
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		s.LastPauseMicro = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > s.MaxPauseMicro {
				s.MaxPauseMicro = pause
			}
		}
	}

	log.Printf("[Profiler] FPS: %.2f | Frame: %.2f ms (max %.2f ms) | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		s.FPS, ms(s.AvgFrameTime), ms(s.MaxFrameTime), s.HeapMB, s.AllocRateMB, s.NumGC, s.LastPauseMicro, s.MaxPauseMicro, s.SysMB)

	p.last = s
	p.frameCount = 0
	p.maxFrame = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
