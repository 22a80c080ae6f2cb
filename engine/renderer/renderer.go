package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

type RendererType uint8

const (
	Headless RendererType = iota
	Vulkan
)

func ParseRendererType(value string) (RendererType, error) {
	switch value {
	case "", "headless":
		return Headless, nil
	case "vulkan":
		return Vulkan, nil
	default:
		return Headless, fmt.Errorf("unknown renderer backend '%s'", value)
	}
}

// Renderer fronts the active device and forwards draw requests when the
// device can record them.
type Renderer struct {
	backend Device
	kind    RendererType
}

func New(kind RendererType, backend Device) *Renderer {
	return &Renderer{
		backend: backend,
		kind:    kind,
	}
}

func (r *Renderer) Type() RendererType {
	return r.kind
}

func (r *Renderer) Device() Device {
	return r.backend
}

func (r *Renderer) Bind(colours []metadata.RenderTargetHandle, depth metadata.RenderTargetHandle, flags metadata.RenderpassClearFlag, clearColour math.Vec4) error {
	return r.backend.Bind(colours, depth, flags, clearColour)
}

func (r *Renderer) Draw(request DrawRequest) error {
	if recorder, ok := r.backend.(DrawRecorder); ok {
		return recorder.Draw(request)
	}
	core.LogDebug("draw %s/%s x%d", request.Pass, request.Label, request.Count)
	return nil
}
