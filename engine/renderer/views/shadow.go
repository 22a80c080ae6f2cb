package views

import (
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-passes/engine/systems"
)

const SHADOW_CASTER_PASS_NAME = "Renderpass.Builtin.ShadowCaster"

/**
 * @brief Renders shadow casters into a depth-only shadow map. Runs before the
 * prepasses and binds its own target, so the scheduler leaves it alone.
 */
type ShadowCasterPass struct {
	renderPass
	ShadowMap metadata.RenderTargetHandle
}

func NewShadowCasterPass(shadowMap metadata.RenderTargetHandle, casters uint32) *ShadowCasterPass {
	return &ShadowCasterPass{
		renderPass: newRenderPass(SHADOW_CASTER_PASS_NAME, metadata.RENDER_PASS_EVENT_BEFORE_RENDERING_SHADOWS, casters),
		ShadowMap:  shadowMap,
	}
}

func (p *ShadowCasterPass) Execute(ctx *systems.PassContext) error {
	if err := ctx.SetRenderTarget(nil, p.ShadowMap, metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG, math.NewVec4Zero()); err != nil {
		return err
	}
	return ctx.Draw("shadow casters", p.drawCount)
}
