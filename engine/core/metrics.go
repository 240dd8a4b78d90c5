package core

import (
	"sync"
	"time"
)

const AVG_COUNT uint8 = 30

// FrameCounters is what a single rendered frame reports back to the metrics.
type FrameCounters struct {
	DrawCalls     int
	Instances     int
	Batches       int
	SkippedPasses int
	Fallbacks     int
	Dropped       int
	Culled        int
	Evicted       int
}

// Metrics keeps a rolling frame time average, the FPS and the counters of
// the most recent frame. It is owned by the engine and safe to read from
// other goroutines.
type Metrics struct {
	mu                 sync.RWMutex
	frameAVGCounter    uint8
	msTimes            [AVG_COUNT]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	totalFrames        uint64
	last               FrameCounters
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Update(frameElapsed time.Duration, counters FrameCounters) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Calculate frame ms average
	frameMS := float64(frameElapsed) / float64(time.Millisecond)
	m.msTimes[m.frameAVGCounter] = frameMS
	if m.frameAVGCounter == AVG_COUNT-1 {
		m.msAvg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.msAvg += m.msTimes[i]
		}
		m.msAvg /= float64(AVG_COUNT)
	}
	m.frameAVGCounter++
	m.frameAVGCounter %= AVG_COUNT

	// Calculate frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	m.frames++
	m.totalFrames++
	m.last = counters
}

func (m *Metrics) FPS() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.msAvg
}

func (m *Metrics) TotalFrames() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalFrames
}

func (m *Metrics) Last() FrameCounters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}
