package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
)

func TestAttachmentSet(t *testing.T) {
	set, err := NewAttachmentSet(3, TargetHandleNone, 5, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, set.ValidCount())
	assert.Equal(t, 3, set.LastValid())
	assert.Equal(t, RenderTargetHandle(3), set.FirstValid())
	assert.Equal(t, 2, set.IndexOf(5))
	assert.Equal(t, -1, set.IndexOf(9))
	assert.Equal(t, 1, set.CountDistinctExcluding(3))
	assert.Equal(t, 2, set.CountDistinctExcluding(TargetHandleNone))

	var empty AttachmentSet
	assert.Equal(t, 0, empty.ValidCount())
	assert.Equal(t, -1, empty.LastValid())
	assert.Equal(t, TargetHandleNone, empty.FirstValid())
}

func TestNewAttachmentSetTooMany(t *testing.T) {
	handles := make([]RenderTargetHandle, MAX_COLOUR_ATTACHMENTS+1)
	_, err := NewAttachmentSet(handles...)
	assert.ErrorIs(t, err, core.ErrTooManyAttachments)
}

func TestPassDescriptor(t *testing.T) {
	desc := NewPassDescriptor(RENDER_PASS_EVENT_BEFORE_RENDERING_OPAQUES)
	assert.False(t, desc.OverridesTarget)
	assert.Equal(t, TargetHandleCameraDepth, desc.DepthAttachment)
	assert.False(t, desc.IsMultiTarget())

	require.NoError(t, desc.ConfigureTarget(TargetHandleNone, 4, 5))
	desc.ConfigureClear(RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG, math.NewVec4(1, 0, 0, 1))

	assert.True(t, desc.OverridesTarget)
	assert.True(t, desc.IsMultiTarget())
	assert.Equal(t, TargetHandleNone, desc.DepthAttachment)
	assert.Equal(t, math.NewVec4(1, 0, 0, 1), desc.ClearColour)

	assert.Error(t, desc.ConfigureTarget(TargetHandleNone, make([]RenderTargetHandle, 9)...))
}

func TestParseClearFlag(t *testing.T) {
	tests := map[string]RenderpassClearFlag{
		"":       RENDERPASS_CLEAR_NONE_FLAG,
		"none":   RENDERPASS_CLEAR_NONE_FLAG,
		"color":  RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG,
		"colour": RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG,
		"depth":  RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG,
		"both":   RENDERPASS_CLEAR_ALL_FLAG,
		"all":    RENDERPASS_CLEAR_ALL_FLAG,
	}
	for value, want := range tests {
		got, err := ParseClearFlag(value)
		require.NoError(t, err, value)
		assert.Equal(t, want, got, value)
	}
	_, err := ParseClearFlag("stencil")
	assert.Error(t, err)
}

func TestClearFlagParts(t *testing.T) {
	assert.Equal(t, RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG, RENDERPASS_CLEAR_ALL_FLAG.Colour())
	assert.Equal(t, RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG, RENDERPASS_CLEAR_ALL_FLAG.Depth())
	assert.Equal(t, RENDERPASS_CLEAR_NONE_FLAG, RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG.Depth())
	assert.Equal(t, "both", RENDERPASS_CLEAR_ALL_FLAG.String())
	assert.Equal(t, "RenderpassClearFlag(4)", RenderpassClearFlag(4).String())
}

func TestRenderPassEventString(t *testing.T) {
	assert.Equal(t, "BeforeRenderingOpaques", RENDER_PASS_EVENT_BEFORE_RENDERING_OPAQUES.String())
	assert.Equal(t, "BeforeRenderingOpaques+10", RenderPassEvent(260).String())
	assert.Equal(t, "AfterRendering+5", RenderPassEvent(1005).String())
	assert.Equal(t, "RenderPassEvent(-5)", RenderPassEvent(-5).String())
}

func TestRenderTargetHandleString(t *testing.T) {
	assert.Equal(t, "none", TargetHandleNone.String())
	assert.Equal(t, "camera-depth", TargetHandleCameraDepth.String())
	assert.Equal(t, "rt#7", RenderTargetHandle(7).String())
	assert.False(t, TargetHandleNone.IsValid())
	assert.True(t, TargetHandleCameraDepth.IsValid())
}

func TestParseRenderTargetFormat(t *testing.T) {
	format, err := ParseRenderTargetFormat("d32")
	require.NoError(t, err)
	assert.True(t, format.IsDepth())

	format, err = ParseRenderTargetFormat("rgba16f")
	require.NoError(t, err)
	assert.False(t, format.IsDepth())

	_, err = ParseRenderTargetFormat("bc7")
	assert.Error(t, err)
}
