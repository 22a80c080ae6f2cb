package views

import "github.com/spaghettifunk/anima-passes/engine/renderer/metadata"

const UI_PASS_NAME = "Renderpass.Builtin.UI"

// UIPass draws screen space elements on top of everything else.
type UIPass struct {
	renderPass
}

func NewUIPass(drawCount uint32) *UIPass {
	return &UIPass{renderPass: newRenderPass(UI_PASS_NAME, metadata.RENDER_PASS_EVENT_AFTER_RENDERING, drawCount)}
}
