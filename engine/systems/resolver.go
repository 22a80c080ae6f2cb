package systems

import (
	"fmt"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

/**
 * @brief Decides, per pass, which colour/depth targets to bind and what to clear.
 * Camera targets are cleared with the camera settings the first time they are
 * touched in a frame; binds identical to the active state without a clear are dropped.
 */
type AttachmentResolver struct {
	device     renderer.Device
	thresholds BlockThresholds
}

func NewAttachmentResolver(device renderer.Device, thresholds BlockThresholds) *AttachmentResolver {
	return &AttachmentResolver{
		device:     device,
		thresholds: thresholds,
	}
}

// Resolve binds the targets requested by desc, updating state.
func (r *AttachmentResolver) Resolve(state *FrameBindingState, name string, desc metadata.PassDescriptor) error {
	camera := state.Camera()

	if !desc.OverridesTarget {
		// passes before the opaque block manage their own targets
		if desc.Order < r.thresholds.OpaqueStart() {
			return nil
		}
		return r.resolveSingleTarget(state, camera.Colour, camera.Depth, desc)
	}

	if desc.ColourAttachments.ValidCount() == 0 {
		state.stats.PassesSkipped++
		core.LogDebug("pass '%s' overrides its target without any colour attachment, drawing with the active targets", name)
		return nil
	}

	depth := desc.DepthAttachment
	if depth == metadata.TargetHandleCameraDepth {
		depth = camera.Depth
	}

	if desc.IsMultiTarget() {
		return r.resolveMultiTarget(state, name, depth, desc)
	}
	return r.resolveSingleTarget(state, desc.ColourAttachments.FirstValid(), depth, desc)
}

func (r *AttachmentResolver) resolveSingleTarget(state *FrameBindingState, colour, depth metadata.RenderTargetHandle, desc metadata.PassDescriptor) error {
	camera := state.Camera()
	flags := metadata.RENDERPASS_CLEAR_NONE_FLAG
	clearColour := desc.ClearColour

	if colour.IsValid() && colour == camera.Colour && state.consumeColour() {
		flags |= camera.ClearFlags.Colour()
		clearColour = camera.ClearColour
		// colour and depth may share a surface, the first colour touch covers depth too
		if state.consumeDepth() {
			flags |= camera.ClearFlags.Depth()
		}
	} else {
		flags |= desc.ClearFlags.Colour()
	}

	if depth.IsValid() && depth == camera.Depth && state.consumeDepth() {
		flags |= camera.ClearFlags.Depth()
	} else {
		flags |= desc.ClearFlags.Depth()
	}

	// only slot 0 matters; extra MRT slots still bound may be written or ignored by the pass
	if colour == state.activeColours[0] && depth == state.activeDepth && flags == metadata.RENDERPASS_CLEAR_NONE_FLAG {
		state.stats.SkippedBinds++
		return nil
	}

	state.scratch[0] = colour
	if err := state.bind(r.device, state.scratch[:1], depth, flags, clearColour); err != nil {
		return fmt.Errorf("binding %s with depth %s: %w", colour, depth, err)
	}
	return nil
}

func (r *AttachmentResolver) resolveMultiTarget(state *FrameBindingState, name string, depth metadata.RenderTargetHandle, desc metadata.PassDescriptor) error {
	camera := state.Camera()
	attachments := desc.ColourAttachments

	needCustomColourClear := false
	if camera.Colour.IsValid() && attachments.IndexOf(camera.Colour) >= 0 && state.consumeColour() {
		needCustomColourClear = camera.ClearFlags.Colour() != desc.ClearFlags.Colour() ||
			camera.ClearColour != desc.ClearColour
	}

	needCustomDepthClear := false
	if depth.IsValid() && depth == camera.Depth && state.consumeDepth() {
		needCustomDepthClear = camera.ClearFlags.Depth() != desc.ClearFlags.Depth()
	}

	if needCustomColourClear {
		if camera.ClearFlags.Colour() != 0 {
			state.scratch[0] = camera.Colour
			if err := state.bind(r.device, state.scratch[:1], depth, metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG, camera.ClearColour); err != nil {
				return fmt.Errorf("clearing camera colour %s: %w", camera.Colour, err)
			}
		}
		if desc.ClearFlags.Colour() != 0 {
			if err := r.clearOtherSlots(state, name, depth, desc); err != nil {
				return err
			}
		}
	}

	flags := metadata.RENDERPASS_CLEAR_NONE_FLAG
	if needCustomDepthClear {
		flags |= camera.ClearFlags.Depth()
	} else {
		flags |= desc.ClearFlags.Depth()
	}
	if !needCustomColourClear {
		flags |= desc.ClearFlags.Colour()
	}

	if attachments == state.activeColours && depth == state.activeDepth && flags == metadata.RENDERPASS_CLEAR_NONE_FLAG {
		state.stats.SkippedBinds++
		return nil
	}

	last := attachments.LastValid()
	if err := state.bind(r.device, attachments[:last+1], depth, flags, desc.ClearColour); err != nil {
		return fmt.Errorf("binding %d colour attachments with depth %s: %w", last+1, depth, err)
	}
	return nil
}

// clearOtherSlots clears every valid slot except the camera colour with the pass' clear colour.
func (r *AttachmentResolver) clearOtherSlots(state *FrameBindingState, name string, depth metadata.RenderTargetHandle, desc metadata.PassDescriptor) error {
	camera := state.Camera()
	count := 0
	for _, handle := range desc.ColourAttachments {
		if handle.IsValid() && handle != camera.Colour {
			state.scratch[count] = handle
			count++
		}
	}
	if count == 0 {
		return nil
	}

	expected := desc.ColourAttachments.CountDistinctExcluding(camera.Colour)
	if count == expected {
		return r.clearSlots(state, state.scratch[:count], depth, desc.ClearColour)
	}

	state.stats.InvariantViolations++
	core.LogError("pass '%s' has %d non-camera colour slots but %d distinct targets, clearing slots one by one", name, count, expected)

	for i := 0; i < count; i++ {
		if err := r.clearSlots(state, state.scratch[i:i+1], depth, desc.ClearColour); err != nil {
			return err
		}
	}
	return nil
}

func (r *AttachmentResolver) clearSlots(state *FrameBindingState, slots []metadata.RenderTargetHandle, depth metadata.RenderTargetHandle, clearColour math.Vec4) error {
	if err := state.bind(r.device, slots, depth, metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG, clearColour); err != nil {
		return fmt.Errorf("clearing %d colour attachment(s): %w", len(slots), err)
	}
	return nil
}
