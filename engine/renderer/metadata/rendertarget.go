package metadata

import "fmt"

type RenderTargetFormat uint8

const (
	RENDER_TARGET_FORMAT_UNDEFINED RenderTargetFormat = iota
	RENDER_TARGET_FORMAT_RGBA8
	RENDER_TARGET_FORMAT_BGRA8
	RENDER_TARGET_FORMAT_RGBA16F
	RENDER_TARGET_FORMAT_RGBA32F
	RENDER_TARGET_FORMAT_DEPTH32F
	RENDER_TARGET_FORMAT_DEPTH24_STENCIL8
)

func (f RenderTargetFormat) IsDepth() bool {
	return f == RENDER_TARGET_FORMAT_DEPTH32F || f == RENDER_TARGET_FORMAT_DEPTH24_STENCIL8
}

func ParseRenderTargetFormat(value string) (RenderTargetFormat, error) {
	switch value {
	case "rgba8":
		return RENDER_TARGET_FORMAT_RGBA8, nil
	case "bgra8":
		return RENDER_TARGET_FORMAT_BGRA8, nil
	case "rgba16f":
		return RENDER_TARGET_FORMAT_RGBA16F, nil
	case "rgba32f":
		return RENDER_TARGET_FORMAT_RGBA32F, nil
	case "depth32f", "d32":
		return RENDER_TARGET_FORMAT_DEPTH32F, nil
	case "depth24_stencil8", "d24s8":
		return RENDER_TARGET_FORMAT_DEPTH24_STENCIL8, nil
	default:
		return RENDER_TARGET_FORMAT_UNDEFINED, fmt.Errorf("unknown render target format '%s'", value)
	}
}

/** @brief Describes a render target to be registered with the target system. */
type RenderTargetConfig struct {
	/** @brief Unique name. Left empty for transient targets, which get a generated name. */
	Name string
	/** @brief Width in pixels. Ignored when Scale is set. */
	Width uint32
	/** @brief Height in pixels. Ignored when Scale is set. */
	Height uint32
	/** @brief When > 0 the target follows the frame size multiplied by Scale. */
	Scale  float32
	Format RenderTargetFormat
}

/** @brief A render target known to the target system. */
type RenderTarget struct {
	Handle RenderTargetHandle
	Name   string
	Width  uint32
	Height uint32
	Scale  float32
	Format RenderTargetFormat
	/** @brief Transient targets are released at the end of the frame that created them. */
	Transient bool
	/** @brief The renderer API internal resource, if any. */
	InternalData interface{}
}
