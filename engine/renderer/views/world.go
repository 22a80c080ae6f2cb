package views

import "github.com/spaghettifunk/anima-passes/engine/renderer/metadata"

const (
	OPAQUE_PASS_NAME      = "Renderpass.Builtin.Opaque"
	SKYBOX_PASS_NAME      = "Renderpass.Builtin.Skybox"
	TRANSPARENT_PASS_NAME = "Renderpass.Builtin.Transparent"
)

// The world passes render straight into the camera targets.

type OpaquePass struct {
	renderPass
}

func NewOpaquePass(drawCount uint32) *OpaquePass {
	return &OpaquePass{renderPass: newRenderPass(OPAQUE_PASS_NAME, metadata.RENDER_PASS_EVENT_BEFORE_RENDERING_OPAQUES, drawCount)}
}

type SkyboxPass struct {
	renderPass
}

func NewSkyboxPass() *SkyboxPass {
	return &SkyboxPass{renderPass: newRenderPass(SKYBOX_PASS_NAME, metadata.RENDER_PASS_EVENT_BEFORE_RENDERING_SKYBOX, 1)}
}

type TransparentPass struct {
	renderPass
}

func NewTransparentPass(drawCount uint32) *TransparentPass {
	return &TransparentPass{renderPass: newRenderPass(TRANSPARENT_PASS_NAME, metadata.RENDER_PASS_EVENT_BEFORE_RENDERING_TRANSPARENTS, drawCount)}
}
