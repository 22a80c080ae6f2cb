package metadata

import (
	"fmt"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
)

/** @brief The maximum number of colour attachments a pass can bind at once. */
const MAX_COLOUR_ATTACHMENTS = 8

/**
 * @brief The types of clearing to be done on a renderpass.
 * Can be combined together for multiple clearing functions.
 */
type RenderpassClearFlag uint32

const (
	/** @brief No clearing should be done. */
	RENDERPASS_CLEAR_NONE_FLAG RenderpassClearFlag = 0x0
	/** @brief Clear the colour buffer. */
	RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG RenderpassClearFlag = 0x1
	/** @brief Clear the depth buffer. */
	RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG RenderpassClearFlag = 0x2
	/** @brief Clear both the colour and the depth buffer. */
	RENDERPASS_CLEAR_ALL_FLAG = RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG | RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG
)

func (f RenderpassClearFlag) Colour() RenderpassClearFlag {
	return f & RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG
}

func (f RenderpassClearFlag) Depth() RenderpassClearFlag {
	return f & RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG
}

func (f RenderpassClearFlag) String() string {
	switch f {
	case RENDERPASS_CLEAR_NONE_FLAG:
		return "none"
	case RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG:
		return "colour"
	case RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG:
		return "depth"
	case RENDERPASS_CLEAR_ALL_FLAG:
		return "both"
	default:
		return fmt.Sprintf("RenderpassClearFlag(%d)", uint32(f))
	}
}

// ParseClearFlag maps a config value (none, colour/color, depth, both) to a flag.
func ParseClearFlag(value string) (RenderpassClearFlag, error) {
	switch value {
	case "", "none":
		return RENDERPASS_CLEAR_NONE_FLAG, nil
	case "colour", "color":
		return RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG, nil
	case "depth":
		return RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG, nil
	case "both", "all":
		return RENDERPASS_CLEAR_ALL_FLAG, nil
	default:
		return RENDERPASS_CLEAR_NONE_FLAG, fmt.Errorf("unknown clear flag '%s'", value)
	}
}

/**
 * @brief The logical time at which a pass executes. Smaller values execute earlier,
 * passes sharing a value keep the order in which they were enqueued.
 */
type RenderPassEvent int32

const (
	RENDER_PASS_EVENT_BEFORE_RENDERING                RenderPassEvent = 0
	RENDER_PASS_EVENT_BEFORE_RENDERING_SHADOWS        RenderPassEvent = 50
	RENDER_PASS_EVENT_AFTER_RENDERING_SHADOWS         RenderPassEvent = 100
	RENDER_PASS_EVENT_BEFORE_RENDERING_PREPASSES      RenderPassEvent = 150
	RENDER_PASS_EVENT_AFTER_RENDERING_PREPASSES       RenderPassEvent = 200
	RENDER_PASS_EVENT_BEFORE_RENDERING_GBUFFER        RenderPassEvent = 210
	RENDER_PASS_EVENT_AFTER_RENDERING_GBUFFER         RenderPassEvent = 220
	RENDER_PASS_EVENT_BEFORE_RENDERING_OPAQUES        RenderPassEvent = 250
	RENDER_PASS_EVENT_AFTER_RENDERING_OPAQUES         RenderPassEvent = 300
	RENDER_PASS_EVENT_BEFORE_RENDERING_SKYBOX         RenderPassEvent = 350
	RENDER_PASS_EVENT_AFTER_RENDERING_SKYBOX          RenderPassEvent = 400
	RENDER_PASS_EVENT_BEFORE_RENDERING_TRANSPARENTS   RenderPassEvent = 450
	RENDER_PASS_EVENT_AFTER_RENDERING_TRANSPARENTS    RenderPassEvent = 500
	RENDER_PASS_EVENT_BEFORE_RENDERING_POSTPROCESSING RenderPassEvent = 550
	RENDER_PASS_EVENT_AFTER_RENDERING_POSTPROCESSING  RenderPassEvent = 600
	RENDER_PASS_EVENT_AFTER_RENDERING                 RenderPassEvent = 1000
)

var renderPassEventNames = map[RenderPassEvent]string{
	RENDER_PASS_EVENT_BEFORE_RENDERING:                "BeforeRendering",
	RENDER_PASS_EVENT_BEFORE_RENDERING_SHADOWS:        "BeforeRenderingShadows",
	RENDER_PASS_EVENT_AFTER_RENDERING_SHADOWS:         "AfterRenderingShadows",
	RENDER_PASS_EVENT_BEFORE_RENDERING_PREPASSES:      "BeforeRenderingPrePasses",
	RENDER_PASS_EVENT_AFTER_RENDERING_PREPASSES:       "AfterRenderingPrePasses",
	RENDER_PASS_EVENT_BEFORE_RENDERING_GBUFFER:        "BeforeRenderingGbuffer",
	RENDER_PASS_EVENT_AFTER_RENDERING_GBUFFER:         "AfterRenderingGbuffer",
	RENDER_PASS_EVENT_BEFORE_RENDERING_OPAQUES:        "BeforeRenderingOpaques",
	RENDER_PASS_EVENT_AFTER_RENDERING_OPAQUES:         "AfterRenderingOpaques",
	RENDER_PASS_EVENT_BEFORE_RENDERING_SKYBOX:         "BeforeRenderingSkybox",
	RENDER_PASS_EVENT_AFTER_RENDERING_SKYBOX:          "AfterRenderingSkybox",
	RENDER_PASS_EVENT_BEFORE_RENDERING_TRANSPARENTS:   "BeforeRenderingTransparents",
	RENDER_PASS_EVENT_AFTER_RENDERING_TRANSPARENTS:    "AfterRenderingTransparents",
	RENDER_PASS_EVENT_BEFORE_RENDERING_POSTPROCESSING: "BeforeRenderingPostProcessing",
	RENDER_PASS_EVENT_AFTER_RENDERING_POSTPROCESSING:  "AfterRenderingPostProcessing",
	RENDER_PASS_EVENT_AFTER_RENDERING:                 "AfterRendering",
}

// String returns the event name, or the closest preceding event plus an offset
// (e.g. "BeforeRenderingOpaques+10").
func (e RenderPassEvent) String() string {
	if name, ok := renderPassEventNames[e]; ok {
		return name
	}
	best := RenderPassEvent(-1)
	for k := range renderPassEventNames {
		if k < e && k > best {
			best = k
		}
	}
	if best < 0 {
		return fmt.Sprintf("RenderPassEvent(%d)", int32(e))
	}
	return fmt.Sprintf("%s+%d", renderPassEventNames[best], int32(e-best))
}

/**
 * @brief An opaque reference to a physical render target. The scheduler only
 * compares handles; what they point to is owned by the TargetSystem and the device.
 */
type RenderTargetHandle uint32

const (
	/** @brief Marks an unused colour slot. */
	TargetHandleNone RenderTargetHandle = 0
	/** @brief Used as a depth attachment: "whatever depth target the camera renders to". */
	TargetHandleCameraDepth RenderTargetHandle = 0xFFFFFFFF
)

func (h RenderTargetHandle) IsValid() bool {
	return h != TargetHandleNone
}

func (h RenderTargetHandle) String() string {
	switch h {
	case TargetHandleNone:
		return "none"
	case TargetHandleCameraDepth:
		return "camera-depth"
	default:
		return fmt.Sprintf("rt#%d", uint32(h))
	}
}

/**
 * @brief A fixed-capacity list of colour attachments. Unused slots hold TargetHandleNone.
 */
type AttachmentSet [MAX_COLOUR_ATTACHMENTS]RenderTargetHandle

// NewAttachmentSet packs handles into slots starting at 0.
func NewAttachmentSet(handles ...RenderTargetHandle) (AttachmentSet, error) {
	var set AttachmentSet
	if len(handles) > MAX_COLOUR_ATTACHMENTS {
		return set, fmt.Errorf("%w: %d requested, at most %d supported", core.ErrTooManyAttachments, len(handles), MAX_COLOUR_ATTACHMENTS)
	}
	copy(set[:], handles)
	return set, nil
}

// ValidCount returns the number of non-empty slots.
func (s *AttachmentSet) ValidCount() int {
	count := 0
	for _, h := range s {
		if h.IsValid() {
			count++
		}
	}
	return count
}

// LastValid returns the index of the last non-empty slot, or -1.
func (s *AttachmentSet) LastValid() int {
	for i := MAX_COLOUR_ATTACHMENTS - 1; i >= 0; i-- {
		if s[i].IsValid() {
			return i
		}
	}
	return -1
}

// FirstValid returns the first non-empty slot, or TargetHandleNone.
func (s *AttachmentSet) FirstValid() RenderTargetHandle {
	for _, h := range s {
		if h.IsValid() {
			return h
		}
	}
	return TargetHandleNone
}

// IndexOf returns the slot holding handle, or -1.
func (s *AttachmentSet) IndexOf(handle RenderTargetHandle) int {
	for i, h := range s {
		if h == handle {
			return i
		}
	}
	return -1
}

// CountDistinctExcluding counts the distinct non-empty handles other than handle.
func (s *AttachmentSet) CountDistinctExcluding(handle RenderTargetHandle) int {
	count := 0
	for i, h := range s {
		if !h.IsValid() || h == handle {
			continue
		}
		seen := false
		for j := 0; j < i; j++ {
			if s[j] == h {
				seen = true
				break
			}
		}
		if !seen {
			count++
		}
	}
	return count
}

/**
 * @brief What a pass wants bound and cleared before it draws.
 */
type PassDescriptor struct {
	/** @brief When the pass executes. */
	Order RenderPassEvent
	/** @brief The colour targets, packed from slot 0. */
	ColourAttachments AttachmentSet
	/** @brief The depth target, or TargetHandleCameraDepth. */
	DepthAttachment RenderTargetHandle
	/**
	 * @brief When false the pass renders to the camera targets and ignores
	 * ColourAttachments/DepthAttachment.
	 */
	OverridesTarget bool
	/** @brief What the pass wants cleared when its targets are bound. */
	ClearFlags RenderpassClearFlag
	/** @brief Used only when ClearFlags requests a colour clear. */
	ClearColour math.Vec4
}

// NewPassDescriptor returns a descriptor rendering to the camera targets at order.
func NewPassDescriptor(order RenderPassEvent) PassDescriptor {
	return PassDescriptor{
		Order:           order,
		DepthAttachment: TargetHandleCameraDepth,
	}
}

// ConfigureTarget makes the pass render to its own targets instead of the camera's.
func (d *PassDescriptor) ConfigureTarget(depth RenderTargetHandle, colours ...RenderTargetHandle) error {
	set, err := NewAttachmentSet(colours...)
	if err != nil {
		return err
	}
	d.ColourAttachments = set
	d.DepthAttachment = depth
	d.OverridesTarget = true
	return nil
}

func (d *PassDescriptor) ConfigureClear(flags RenderpassClearFlag, colour math.Vec4) {
	d.ClearFlags = flags
	d.ClearColour = colour
}

// IsMultiTarget reports whether more than one colour slot is in use.
func (d *PassDescriptor) IsMultiTarget() bool {
	return d.ColourAttachments.ValidCount() > 1
}
