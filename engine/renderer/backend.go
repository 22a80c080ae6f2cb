package renderer

import (
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

// Device is the single bind/clear primitive the scheduler drives. Colours holds
// the slots to bind starting at slot 0; it is only valid for the duration of the call.
type Device interface {
	Bind(colours []metadata.RenderTargetHandle, depth metadata.RenderTargetHandle, flags metadata.RenderpassClearFlag, clearColour math.Vec4) error
}

// DrawRequest is what a pass hands to the device context when it issues work.
// The scheduler treats it as opaque.
type DrawRequest struct {
	Pass  string
	Label string
	Count uint32
}

// DrawRecorder is implemented by devices that accept draw requests. It is
// optional: passes fall back to logging when the device does not support it.
type DrawRecorder interface {
	Draw(request DrawRequest) error
}
