package renderer

import (
	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

// BindCommand is one recorded call to Device.Bind.
type BindCommand struct {
	Colours     []metadata.RenderTargetHandle
	Depth       metadata.RenderTargetHandle
	Flags       metadata.RenderpassClearFlag
	ClearColour math.Vec4
}

// RecordingDevice keeps every bind and draw request in memory. It backs the
// headless renderer and the tests.
type RecordingDevice struct {
	Binds []BindCommand
	Draws []DrawRequest
	// Fail, when set, is returned from every Bind call.
	Fail error
}

func NewRecordingDevice() *RecordingDevice {
	return &RecordingDevice{}
}

func (rd *RecordingDevice) Bind(colours []metadata.RenderTargetHandle, depth metadata.RenderTargetHandle, flags metadata.RenderpassClearFlag, clearColour math.Vec4) error {
	if rd.Fail != nil {
		return rd.Fail
	}
	// The scheduler reuses the backing array, so take a copy.
	cmd := BindCommand{
		Colours:     append([]metadata.RenderTargetHandle(nil), colours...),
		Depth:       depth,
		Flags:       flags,
		ClearColour: clearColour,
	}
	rd.Binds = append(rd.Binds, cmd)
	return nil
}

func (rd *RecordingDevice) Draw(request DrawRequest) error {
	rd.Draws = append(rd.Draws, request)
	return nil
}

func (rd *RecordingDevice) Reset() {
	rd.Binds = nil
	rd.Draws = nil
}

// LoggingDevice logs every bind before forwarding it.
type LoggingDevice struct {
	next Device
}

func NewLoggingDevice(next Device) *LoggingDevice {
	return &LoggingDevice{next: next}
}

func (ld *LoggingDevice) Bind(colours []metadata.RenderTargetHandle, depth metadata.RenderTargetHandle, flags metadata.RenderpassClearFlag, clearColour math.Vec4) error {
	core.LogDebug("bind colours=%v depth=%s clear=%s colour=%v", colours, depth, flags, clearColour)
	return ld.next.Bind(colours, depth, flags, clearColour)
}

func (ld *LoggingDevice) Draw(request DrawRequest) error {
	if recorder, ok := ld.next.(DrawRecorder); ok {
		return recorder.Draw(request)
	}
	return nil
}
