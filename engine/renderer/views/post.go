package views

import (
	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

const (
	BLOOM_PASS_NAME     = "Renderpass.Builtin.Bloom"
	COMPOSITE_PASS_NAME = "Renderpass.Builtin.Composite"
)

// BloomPass downsamples the bright parts of the frame into its own target.
type BloomPass struct {
	renderPass
	Target metadata.RenderTargetHandle
}

func NewBloomPass(target metadata.RenderTargetHandle) *BloomPass {
	p := &BloomPass{
		renderPass: newRenderPass(BLOOM_PASS_NAME, metadata.RENDER_PASS_EVENT_BEFORE_RENDERING_POSTPROCESSING, 1),
	}
	p.SetTarget(target)
	p.desc.ConfigureClear(metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG, math.NewVec4Zero())
	return p
}

// SetTarget points the pass at a new bloom target, e.g. a per-frame transient one.
func (p *BloomPass) SetTarget(target metadata.RenderTargetHandle) {
	p.Target = target
	if err := p.desc.ConfigureTarget(metadata.TargetHandleNone, target); err != nil {
		core.LogError("bloom pass: %s", err)
	}
}

// CompositePass blends the bloom target back into the camera colour.
type CompositePass struct {
	renderPass
}

func NewCompositePass() *CompositePass {
	return &CompositePass{renderPass: newRenderPass(COMPOSITE_PASS_NAME, metadata.RENDER_PASS_EVENT_AFTER_RENDERING_POSTPROCESSING, 1)}
}
