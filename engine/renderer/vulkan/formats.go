package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

// VulkanFormat maps a render target format to its Vulkan equivalent.
func VulkanFormat(format metadata.RenderTargetFormat) vk.Format {
	switch format {
	case metadata.RENDER_TARGET_FORMAT_RGBA8:
		return vk.FormatR8g8b8a8Unorm
	case metadata.RENDER_TARGET_FORMAT_BGRA8:
		return vk.FormatB8g8r8a8Unorm
	case metadata.RENDER_TARGET_FORMAT_RGBA16F:
		return vk.FormatR16g16b16a16Sfloat
	case metadata.RENDER_TARGET_FORMAT_RGBA32F:
		return vk.FormatR32g32b32a32Sfloat
	case metadata.RENDER_TARGET_FORMAT_DEPTH32F:
		return vk.FormatD32Sfloat
	case metadata.RENDER_TARGET_FORMAT_DEPTH24_STENCIL8:
		return vk.FormatD24UnormS8Uint
	default:
		return vk.FormatUndefined
	}
}

// LoadOp clears when requested and otherwise keeps what the previous pass left.
func LoadOp(clear bool) vk.AttachmentLoadOp {
	if clear {
		return vk.AttachmentLoadOpClear
	}
	return vk.AttachmentLoadOpLoad
}

type attachmentKey struct {
	format vk.Format
	loadOp vk.AttachmentLoadOp
	unused bool
}

// renderpassKey identifies a compatible render pass: attachment formats plus load ops.
// A nil colour target is an unused slot.
type renderpassKey struct {
	colours     [metadata.MAX_COLOUR_ATTACHMENTS]attachmentKey
	colourCount int
	depth       attachmentKey
	hasDepth    bool
}

func newRenderpassKey(colours []*metadata.RenderTarget, depth *metadata.RenderTarget, flags metadata.RenderpassClearFlag) renderpassKey {
	key := renderpassKey{colourCount: len(colours)}
	for i, target := range colours {
		if target == nil {
			key.colours[i] = attachmentKey{unused: true}
			continue
		}
		key.colours[i] = attachmentKey{
			format: VulkanFormat(target.Format),
			loadOp: LoadOp(flags.Colour() != 0),
		}
	}
	if depth != nil {
		key.hasDepth = true
		key.depth = attachmentKey{
			format: VulkanFormat(depth.Format),
			loadOp: LoadOp(flags.Depth() != 0),
		}
	}
	return key
}

// framebufferKey identifies a framebuffer by render pass and image views.
type framebufferKey struct {
	renderpass vk.RenderPass
	views      [metadata.MAX_COLOUR_ATTACHMENTS + 1]vk.ImageView
	viewCount  int
	width      uint32
	height     uint32
}
