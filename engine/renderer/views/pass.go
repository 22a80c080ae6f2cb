package views

import (
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-passes/engine/systems"
)

// renderPass carries what every built-in pass shares: a name, a descriptor and
// the number of draws it issues per frame.
type renderPass struct {
	name      string
	desc      metadata.PassDescriptor
	drawCount uint32
}

func newRenderPass(name string, order metadata.RenderPassEvent, drawCount uint32) renderPass {
	return renderPass{
		name:      name,
		desc:      metadata.NewPassDescriptor(order),
		drawCount: drawCount,
	}
}

func (p *renderPass) Name() string {
	return p.name
}

func (p *renderPass) Configure(frame *metadata.FrameDescriptor) {}

func (p *renderPass) ResolveAttachments() metadata.PassDescriptor {
	return p.desc
}

func (p *renderPass) Execute(ctx *systems.PassContext) error {
	return ctx.Draw(p.name, p.drawCount)
}

func (p *renderPass) Cleanup() {}
