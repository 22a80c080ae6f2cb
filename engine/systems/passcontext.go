package systems

import (
	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

/**
 * @brief The capability a pass receives for the duration of its Execute call.
 * Once Execute returns the context is expired and every accessor fails with
 * core.ErrPassContextExpired.
 */
type PassContext struct {
	active   bool
	pass     string
	frame    *metadata.FrameDescriptor
	state    *FrameBindingState
	renderer *renderer.Renderer
}

func newPassContext(pass string, frame *metadata.FrameDescriptor, state *FrameBindingState, r *renderer.Renderer) *PassContext {
	return &PassContext{
		active:   true,
		pass:     pass,
		frame:    frame,
		state:    state,
		renderer: r,
	}
}

func (c *PassContext) IsActive() bool {
	return c != nil && c.active
}

func (c *PassContext) expire() {
	c.active = false
	c.frame = nil
	c.state = nil
	c.renderer = nil
}

// Frame returns a copy of the frame being rendered.
func (c *PassContext) Frame() (metadata.FrameDescriptor, error) {
	if !c.IsActive() {
		return metadata.FrameDescriptor{}, core.ErrPassContextExpired
	}
	return *c.frame, nil
}

func (c *PassContext) CameraTargets() (metadata.CameraTargets, error) {
	if !c.IsActive() {
		return metadata.CameraTargets{}, core.ErrPassContextExpired
	}
	return c.state.Camera(), nil
}

// ActiveAttachments returns what is currently bound on the device.
func (c *PassContext) ActiveAttachments() (metadata.AttachmentSet, metadata.RenderTargetHandle, error) {
	if !c.IsActive() {
		return metadata.AttachmentSet{}, metadata.TargetHandleNone, core.ErrPassContextExpired
	}
	return c.state.ActiveColours(), c.state.ActiveDepth(), nil
}

// Draw hands a draw request for the active targets to the device.
func (c *PassContext) Draw(label string, count uint32) error {
	if !c.IsActive() {
		return core.ErrPassContextExpired
	}
	return c.renderer.Draw(renderer.DrawRequest{
		Pass:  c.pass,
		Label: label,
		Count: count,
	})
}

// SetRenderTarget binds targets directly, for passes that manage their own
// targets before the opaque block. The binding state follows the bind, camera
// first-touch flags are left alone.
func (c *PassContext) SetRenderTarget(colours []metadata.RenderTargetHandle, depth metadata.RenderTargetHandle, flags metadata.RenderpassClearFlag, clearColour math.Vec4) error {
	if !c.IsActive() {
		return core.ErrPassContextExpired
	}
	if len(colours) > metadata.MAX_COLOUR_ATTACHMENTS {
		return core.ErrTooManyAttachments
	}
	return c.state.bind(c.renderer.Device(), colours, depth, flags, clearColour)
}
