package views

import (
	"fmt"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

const (
	DEPTH_NORMALS_PASS_NAME = "Renderpass.Builtin.DepthNormals"
	GBUFFER_PASS_NAME       = "Renderpass.Builtin.GBuffer"
)

// DepthNormalsPass writes view space normals into its own target while
// populating the camera depth.
type DepthNormalsPass struct {
	renderPass
	Normals metadata.RenderTargetHandle
}

func NewDepthNormalsPass(normals metadata.RenderTargetHandle, drawCount uint32) *DepthNormalsPass {
	p := &DepthNormalsPass{
		renderPass: newRenderPass(DEPTH_NORMALS_PASS_NAME, metadata.RENDER_PASS_EVENT_BEFORE_RENDERING_PREPASSES, drawCount),
		Normals:    normals,
	}
	if err := p.desc.ConfigureTarget(metadata.TargetHandleCameraDepth, normals); err != nil {
		core.LogError("depth normals pass: %s", err)
	}
	p.desc.ConfigureClear(metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG, math.NewVec4(0.5, 0.5, 1.0, 0.0))
	return p
}

/**
 * @brief Fills the G-buffer: the camera colour receives lighting-ready albedo
 * while the remaining slots hold material data.
 */
type GBufferPass struct {
	renderPass
	// slot 0 is rewritten with the camera colour every frame
	colours [metadata.MAX_COLOUR_ATTACHMENTS]metadata.RenderTargetHandle
	count   int
}

func NewGBufferPass(targets []metadata.RenderTargetHandle, drawCount uint32) (*GBufferPass, error) {
	if len(targets)+1 > metadata.MAX_COLOUR_ATTACHMENTS {
		return nil, fmt.Errorf("gbuffer pass supports at most %d targets besides the camera colour, got %d", metadata.MAX_COLOUR_ATTACHMENTS-1, len(targets))
	}
	p := &GBufferPass{
		renderPass: newRenderPass(GBUFFER_PASS_NAME, metadata.RENDER_PASS_EVENT_BEFORE_RENDERING_GBUFFER, drawCount),
		count:      len(targets) + 1,
	}
	copy(p.colours[1:], targets)
	p.desc.ConfigureClear(metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG, math.NewVec4Zero())
	return p, nil
}

// Configure puts the camera colour in slot 0 followed by the G-buffer targets.
func (p *GBufferPass) Configure(frame *metadata.FrameDescriptor) {
	p.colours[0] = frame.CameraColour
	if err := p.desc.ConfigureTarget(metadata.TargetHandleCameraDepth, p.colours[:p.count]...); err != nil {
		core.LogError("gbuffer pass: %s", err)
	}
}
