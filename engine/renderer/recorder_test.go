package renderer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

func TestRecordingDeviceCopiesColours(t *testing.T) {
	rd := NewRecordingDevice()
	scratch := []metadata.RenderTargetHandle{1, 2}

	require.NoError(t, rd.Bind(scratch, 3, metadata.RENDERPASS_CLEAR_ALL_FLAG, math.NewVec4(0, 0, 0, 1)))
	scratch[0] = 9

	require.Len(t, rd.Binds, 1)
	assert.Equal(t, []metadata.RenderTargetHandle{1, 2}, rd.Binds[0].Colours)
	assert.Equal(t, metadata.RenderTargetHandle(3), rd.Binds[0].Depth)

	rd.Reset()
	assert.Empty(t, rd.Binds)
}

func TestRecordingDeviceFail(t *testing.T) {
	rd := NewRecordingDevice()
	rd.Fail = errors.New("lost")

	assert.ErrorIs(t, rd.Bind(nil, 1, 0, math.Vec4{}), rd.Fail)
	assert.Empty(t, rd.Binds)
}

func TestRendererForwardsDraws(t *testing.T) {
	rd := NewRecordingDevice()
	r := New(Headless, NewLoggingDevice(rd))

	require.NoError(t, r.Bind([]metadata.RenderTargetHandle{1}, 2, 0, math.Vec4{}))
	require.NoError(t, r.Draw(DrawRequest{Pass: "opaque", Label: "meshes", Count: 3}))

	assert.Len(t, rd.Binds, 1)
	assert.Equal(t, []DrawRequest{{Pass: "opaque", Label: "meshes", Count: 3}}, rd.Draws)
	assert.Equal(t, Headless, r.Type())
}

type bindOnly struct {
	binds int
}

func (b *bindOnly) Bind(colours []metadata.RenderTargetHandle, depth metadata.RenderTargetHandle, flags metadata.RenderpassClearFlag, clearColour math.Vec4) error {
	b.binds++
	return nil
}

func TestRendererWithoutDrawRecorder(t *testing.T) {
	device := &bindOnly{}
	r := New(Headless, NewLoggingDevice(device))

	assert.NoError(t, r.Draw(DrawRequest{Pass: "ui"}))
	assert.NoError(t, New(Headless, device).Draw(DrawRequest{Pass: "ui"}))
	assert.NoError(t, r.Bind(nil, 1, 0, math.Vec4{}))
	assert.Equal(t, 1, device.binds)
}

func TestParseRendererType(t *testing.T) {
	kind, err := ParseRendererType("vulkan")
	require.NoError(t, err)
	assert.Equal(t, Vulkan, kind)

	kind, err = ParseRendererType("")
	require.NoError(t, err)
	assert.Equal(t, Headless, kind)

	_, err = ParseRendererType("metal")
	assert.Error(t, err)
}
