package metadata

import "github.com/spaghettifunk/anima-passes/engine/math"

type CameraRenderType uint8

const (
	/** @brief Renders from scratch and owns the first clear of its targets. */
	CAMERA_RENDER_TYPE_BASE CameraRenderType = iota
	/** @brief Composites on top of the previous camera in the stack and never clears colour. */
	CAMERA_RENDER_TYPE_OVERLAY
)

func (t CameraRenderType) String() string {
	if t == CAMERA_RENDER_TYPE_OVERLAY {
		return "overlay"
	}
	return "base"
}

/**
 * @brief The camera-owned targets and clear settings for one camera render.
 * Supplied by the camera system before scheduling starts.
 */
type CameraTargets struct {
	Colour      RenderTargetHandle
	Depth       RenderTargetHandle
	ClearFlags  RenderpassClearFlag
	ClearColour math.Vec4
	RenderType  CameraRenderType
}

/**
 * @brief Read-only information about the frame being rendered, handed to
 * features and to every pass' Configure hook.
 */
type FrameDescriptor struct {
	CameraName  string
	CameraIndex int
	FrameNumber uint64
	Width       uint32
	Height      uint32
	SampleCount uint32
	RenderType  CameraRenderType

	/** @brief The camera targets, so passes can reference them while configuring. */
	CameraColour RenderTargetHandle
	CameraDepth  RenderTargetHandle
}
