package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

func newTestCameras(t *testing.T) (*CameraSystem, *TargetSystem) {
	t.Helper()
	targets := newTestTargets(t, 0)
	cameras, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 2}, targets)
	require.NoError(t, err)
	return cameras, targets
}

func TestCameraSystemResolveDefault(t *testing.T) {
	cameras, _ := newTestCameras(t)

	targets, err := cameras.Resolve(DEFAULT_CAMERA_NAME)
	require.NoError(t, err)

	assert.Equal(t, baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG), targets)
}

func TestCameraSystemOverlayNeverClearsColour(t *testing.T) {
	cameras, targets := newTestCameras(t)
	_, err := targets.Create(metadata.RenderTargetConfig{Name: "hud.colour", Scale: 1, Format: metadata.RENDER_TARGET_FORMAT_RGBA8})
	require.NoError(t, err)
	require.NoError(t, cameras.Register(&Camera{
		Name:         "hud",
		RenderType:   metadata.CAMERA_RENDER_TYPE_OVERLAY,
		ColourTarget: "hud.colour",
		ClearFlags:   metadata.RENDERPASS_CLEAR_ALL_FLAG,
	}))

	resolved, err := cameras.Resolve("hud")
	require.NoError(t, err)

	assert.Equal(t, metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG, resolved.ClearFlags)
	assert.Equal(t, metadata.TargetHandleNone, resolved.Depth)
	assert.Equal(t, metadata.CAMERA_RENDER_TYPE_OVERLAY, resolved.RenderType)
}

func TestCameraSystemResolveErrors(t *testing.T) {
	cameras, _ := newTestCameras(t)

	_, err := cameras.Resolve("missing")
	assert.ErrorIs(t, err, core.ErrUnknownCamera)

	require.NoError(t, cameras.Register(&Camera{Name: "broken", ColourTarget: "nowhere"}))
	_, err = cameras.Resolve("broken")
	assert.ErrorIs(t, err, core.ErrUnknownTarget)
}

func TestCameraSystemRegister(t *testing.T) {
	cameras, _ := newTestCameras(t)

	assert.Error(t, cameras.Register(nil))
	assert.Error(t, cameras.Register(&Camera{}))
	require.NoError(t, cameras.Register(&Camera{Name: "a"}))
	require.NoError(t, cameras.Register(&Camera{Name: "b"}))
	assert.Error(t, cameras.Register(&Camera{Name: "c"}))

	// replacing an existing camera does not count against the limit
	require.NoError(t, cameras.Register(&Camera{Name: "a", ClearFlags: metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG}))
	a, err := cameras.Acquire("a")
	require.NoError(t, err)
	assert.Equal(t, metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG, a.ClearFlags)

	replacement := NewDefaultCamera()
	replacement.ClearFlags = metadata.RENDERPASS_CLEAR_NONE_FLAG
	require.NoError(t, cameras.Register(replacement))
	assert.Same(t, replacement, cameras.GetDefault())
}

func TestCameraSystemAcquireRelease(t *testing.T) {
	cameras, _ := newTestCameras(t)
	require.NoError(t, cameras.Register(&Camera{Name: "minimap"}))

	_, err := cameras.Acquire("minimap")
	require.NoError(t, err)
	_, err = cameras.Acquire("minimap")
	require.NoError(t, err)
	cameras.Release("minimap")
	cameras.Release("minimap")

	// the registration keeps it alive
	_, err = cameras.get("minimap")
	require.NoError(t, err)
	assert.Equal(t, []string{"minimap"}, cameras.Names())

	cameras.Unregister("minimap")
	_, err = cameras.get("minimap")
	assert.ErrorIs(t, err, core.ErrUnknownCamera)
	_, err = cameras.Acquire("minimap")
	assert.ErrorIs(t, err, core.ErrUnknownCamera)

	def, err := cameras.Acquire(DEFAULT_CAMERA_NAME)
	require.NoError(t, err)
	cameras.Release(DEFAULT_CAMERA_NAME)
	assert.Same(t, def, cameras.GetDefault())
}

func TestCameraSystemUnregisterWhileHeld(t *testing.T) {
	cameras, _ := newTestCameras(t)
	require.NoError(t, cameras.Register(&Camera{Name: "mirror"}))

	_, err := cameras.Acquire("mirror")
	require.NoError(t, err)
	cameras.Unregister("mirror")
	cameras.Unregister("mirror")

	_, err = cameras.get("mirror")
	require.NoError(t, err)
	assert.Empty(t, cameras.Names())

	cameras.Release("mirror")
	_, err = cameras.get("mirror")
	assert.ErrorIs(t, err, core.ErrUnknownCamera)

	// registering again while held restores the registration reference
	require.NoError(t, cameras.Register(&Camera{Name: "mirror"}))
	_, err = cameras.Acquire("mirror")
	require.NoError(t, err)
	cameras.Unregister("mirror")
	require.NoError(t, cameras.Register(&Camera{Name: "mirror"}))
	cameras.Release("mirror")
	assert.Equal(t, []string{"mirror"}, cameras.Names())
}

func TestCameraSystemStackOf(t *testing.T) {
	cameras, _ := newTestCameras(t)
	require.NoError(t, cameras.Register(&Camera{Name: "hud", RenderType: metadata.CAMERA_RENDER_TYPE_OVERLAY}))
	require.NoError(t, cameras.Register(&Camera{Name: "mirror", RenderType: metadata.CAMERA_RENDER_TYPE_BASE}))
	cameras.GetDefault().Stack = []string{"mirror", "hud"}

	stack, err := cameras.StackOf(DEFAULT_CAMERA_NAME)
	require.NoError(t, err)
	assert.Equal(t, []string{DEFAULT_CAMERA_NAME, "hud"}, stack)

	_, err = cameras.StackOf("hud")
	assert.Error(t, err)

	cameras.GetDefault().Stack = []string{"ghost"}
	_, err = cameras.StackOf(DEFAULT_CAMERA_NAME)
	assert.ErrorIs(t, err, core.ErrUnknownCamera)
}

func TestNewCameraSystemValidates(t *testing.T) {
	targets := newTestTargets(t, 0)
	_, err := NewCameraSystem(&CameraSystemConfig{}, targets)
	assert.Error(t, err)
	_, err = NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 1}, nil)
	assert.Error(t, err)
}
