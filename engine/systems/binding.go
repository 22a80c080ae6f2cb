package systems

import (
	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

/**
 * @brief Everything the resolver knows about what is bound for one camera render.
 * Created fresh per camera and discarded once the camera is done.
 */
type FrameBindingState struct {
	activeColours metadata.AttachmentSet
	activeDepth   metadata.RenderTargetHandle

	camera metadata.CameraTargets

	firstColourBindDone bool
	firstDepthBindDone  bool

	// scratch is filled in place for sub-range binds.
	scratch [metadata.MAX_COLOUR_ATTACHMENTS]metadata.RenderTargetHandle

	stats *core.FrameStats
}

// NewFrameBindingState starts with nothing bound. Overlay cameras composite on
// top of a previous camera, so their colour target counts as already touched.
func NewFrameBindingState(camera metadata.CameraTargets, stats *core.FrameStats) *FrameBindingState {
	if stats == nil {
		stats = &core.FrameStats{}
	}
	return &FrameBindingState{
		camera:              camera,
		firstColourBindDone: camera.RenderType != metadata.CAMERA_RENDER_TYPE_BASE,
		stats:               stats,
	}
}

func (s *FrameBindingState) Camera() metadata.CameraTargets {
	return s.camera
}

func (s *FrameBindingState) ActiveColours() metadata.AttachmentSet {
	return s.activeColours
}

func (s *FrameBindingState) ActiveDepth() metadata.RenderTargetHandle {
	return s.activeDepth
}

func (s *FrameBindingState) FirstColourBindDone() bool {
	return s.firstColourBindDone
}

func (s *FrameBindingState) FirstDepthBindDone() bool {
	return s.firstDepthBindDone
}

func (s *FrameBindingState) Stats() *core.FrameStats {
	return s.stats
}

// consumeColour flips the colour first-touch flag and reports whether it was still untouched.
func (s *FrameBindingState) consumeColour() bool {
	if s.firstColourBindDone {
		return false
	}
	s.firstColourBindDone = true
	return true
}

func (s *FrameBindingState) consumeDepth() bool {
	if s.firstDepthBindDone {
		return false
	}
	s.firstDepthBindDone = true
	return true
}

// bind issues one device call and mirrors it into the active state.
func (s *FrameBindingState) bind(device renderer.Device, colours []metadata.RenderTargetHandle, depth metadata.RenderTargetHandle, flags metadata.RenderpassClearFlag, clearColour math.Vec4) error {
	if err := device.Bind(colours, depth, flags, clearColour); err != nil {
		return err
	}
	s.stats.BindCalls++
	if flags.Colour() != 0 {
		s.stats.ColourClears++
	}
	if flags.Depth() != 0 {
		s.stats.DepthClears++
	}
	s.setActive(colours, depth)
	return nil
}

func (s *FrameBindingState) setActive(colours []metadata.RenderTargetHandle, depth metadata.RenderTargetHandle) {
	n := copy(s.activeColours[:], colours)
	for i := n; i < metadata.MAX_COLOUR_ATTACHMENTS; i++ {
		s.activeColours[i] = metadata.TargetHandleNone
	}
	s.activeDepth = depth
}
