package core

import (
	"time"

	"github.com/spaghettifunk/anima-passes/engine/containers"
)

const AVG_COUNT int = 30

// FrameStats counts what the scheduler did while rendering one camera.
type FrameStats struct {
	CameraName  string
	FrameNumber uint64

	PassesEnqueued int
	PassesExecuted int
	// Overriding passes without any valid colour attachment.
	PassesSkipped int
	// Nil entries returned by features.
	EntriesDropped int

	BindCalls           int
	SkippedBinds        int
	ColourClears        int
	DepthClears         int
	InvariantViolations int

	Elapsed time.Duration
}

// FrameMetrics keeps a rolling average of camera render times.
type FrameMetrics struct {
	times  *containers.RingQueue[time.Duration]
	total  time.Duration
	frames uint64
	last   FrameStats
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		times: containers.NewRingQueue[time.Duration](AVG_COUNT),
	}
}

func (fm *FrameMetrics) Update(stats FrameStats) {
	if evicted, ok := fm.times.Push(stats.Elapsed); ok {
		fm.total -= evicted
	}
	fm.total += stats.Elapsed
	fm.frames++
	fm.last = stats
}

// Average returns the mean render time over the last AVG_COUNT samples.
func (fm *FrameMetrics) Average() time.Duration {
	if fm.times.Len() == 0 {
		return 0
	}
	return fm.total / time.Duration(fm.times.Len())
}

func (fm *FrameMetrics) Frames() uint64 {
	return fm.frames
}

func (fm *FrameMetrics) Last() FrameStats {
	return fm.last
}
