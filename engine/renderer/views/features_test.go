package views

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-passes/engine/systems"
)

type pipeline struct {
	device    *renderer.RecordingDevice
	targets   *systems.TargetSystem
	cameras   *systems.CameraSystem
	scheduler *systems.FrameScheduler
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	device := renderer.NewRecordingDevice()
	manager, err := systems.NewSystemManager(systems.SystemManagerConfig{
		Targets:   systems.TargetSystemConfig{MaxTargetCount: 16, Width: 1280, Height: 720},
		Cameras:   systems.CameraSystemConfig{MaxCameraCount: 4},
		Scheduler: systems.FrameSchedulerConfig{Thresholds: systems.DefaultBlockThresholds},
	}, renderer.New(renderer.Headless, device))
	require.NoError(t, err)
	return &pipeline{
		device:    device,
		targets:   manager.TargetSystem,
		cameras:   manager.CameraSystem,
		scheduler: manager.FrameScheduler,
	}
}

func (p *pipeline) handle(t *testing.T, name string) metadata.RenderTargetHandle {
	t.Helper()
	h, err := p.targets.Handle(name)
	require.NoError(t, err)
	return h
}

func (p *pipeline) render(t *testing.T, camera string) frameSummary {
	t.Helper()
	names, err := p.cameras.StackOf(camera)
	require.NoError(t, err)
	frame := metadata.FrameDescriptor{FrameNumber: 1, Width: 1280, Height: 720, SampleCount: 1}
	stats, err := p.scheduler.RenderStack(context.Background(), frame, p.cameras, names)
	require.NoError(t, err)
	return frameSummary{passes: stats[0].PassesExecuted, binds: stats[0].BindCalls}
}

// frameSummary is the part of the frame stats these tests look at.
type frameSummary struct {
	passes int
	binds  int
}

func assertBinds(t *testing.T, want []renderer.BindCommand, device *renderer.RecordingDevice) {
	t.Helper()
	if diff := cmp.Diff(want, device.Binds, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("recorded binds mismatch (-want +got):\n%s", diff)
	}
}

func TestForwardAndBloomFeatures(t *testing.T) {
	p := newPipeline(t)
	forward, err := NewForwardFeature(DefaultFeatureConfig(), p.targets)
	require.NoError(t, err)
	p.scheduler.AddFeature(forward)
	p.scheduler.AddFeature(NewBloomFeature(p.targets))

	got := p.render(t, systems.DEFAULT_CAMERA_NAME)

	colour := p.handle(t, systems.DEFAULT_COLOUR_TARGET_NAME)
	depth := p.handle(t, systems.DEFAULT_DEPTH_TARGET_NAME)
	shadowMap := p.handle(t, SHADOW_MAP_TARGET_NAME)
	clear := p.cameras.GetDefault().ClearColour
	require.Len(t, p.device.Binds, 4)
	bloomTarget := p.device.Binds[2].Colours[0]

	assertBinds(t, []renderer.BindCommand{
		{Depth: shadowMap, Flags: metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG},
		{Colours: []metadata.RenderTargetHandle{colour}, Depth: depth, Flags: metadata.RENDERPASS_CLEAR_ALL_FLAG, ClearColour: clear},
		{Colours: []metadata.RenderTargetHandle{bloomTarget}, Depth: metadata.TargetHandleNone, Flags: metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG},
		{Colours: []metadata.RenderTargetHandle{colour}, Depth: depth},
	}, p.device)
	assert.Equal(t, frameSummary{passes: 7, binds: 4}, got)

	target, err := p.targets.Get(bloomTarget)
	require.NoError(t, err)
	assert.True(t, target.Transient)
	assert.Equal(t, uint32(640), target.Width)
	assert.Equal(t, 1, p.targets.ReleaseTransient())

	labels := make([]string, 0, len(p.device.Draws))
	for _, draw := range p.device.Draws {
		labels = append(labels, draw.Pass)
	}
	assert.Equal(t, []string{
		SHADOW_CASTER_PASS_NAME,
		OPAQUE_PASS_NAME,
		SKYBOX_PASS_NAME,
		TRANSPARENT_PASS_NAME,
		BLOOM_PASS_NAME,
		COMPOSITE_PASS_NAME,
		UI_PASS_NAME,
	}, labels)
}

func TestGBufferFeature(t *testing.T) {
	p := newPipeline(t)
	forward, err := NewForwardFeature(FeatureConfig{DepthNormals: true, GBuffer: true, OpaqueDraws: 1}, p.targets)
	require.NoError(t, err)
	p.scheduler.AddFeature(forward)

	got := p.render(t, systems.DEFAULT_CAMERA_NAME)

	colour := p.handle(t, systems.DEFAULT_COLOUR_TARGET_NAME)
	depth := p.handle(t, systems.DEFAULT_DEPTH_TARGET_NAME)
	normals := p.handle(t, DEPTH_NORMALS_TARGET_NAME)
	material := p.handle(t, GBUFFER_MATERIAL_TARGET)
	gbufferNormals := p.handle(t, GBUFFER_NORMALS_TARGET)
	clear := p.cameras.GetDefault().ClearColour

	assertBinds(t, []renderer.BindCommand{
		{Colours: []metadata.RenderTargetHandle{normals}, Depth: depth, Flags: metadata.RENDERPASS_CLEAR_ALL_FLAG, ClearColour: math.NewVec4(0.5, 0.5, 1.0, 0.0)},
		{Colours: []metadata.RenderTargetHandle{colour}, Depth: depth, Flags: metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG, ClearColour: clear},
		{Colours: []metadata.RenderTargetHandle{material, gbufferNormals}, Depth: depth, Flags: metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG},
		{Colours: []metadata.RenderTargetHandle{colour, material, gbufferNormals}, Depth: depth},
	}, p.device)
	// the opaque pass keeps the G-buffer bind, its slot 0 is already the camera colour
	assert.Equal(t, frameSummary{passes: 3, binds: 4}, got)
}

func TestFeaturesForOverlayCamera(t *testing.T) {
	p := newPipeline(t)
	forward, err := NewForwardFeature(DefaultFeatureConfig(), p.targets)
	require.NoError(t, err)
	bloom := NewBloomFeature(p.targets)
	frame := &metadata.FrameDescriptor{RenderType: metadata.CAMERA_RENDER_TYPE_OVERLAY}

	names := make([]string, 0)
	for _, pass := range forward.AddRenderPasses(frame) {
		names = append(names, pass.Name())
	}
	assert.Equal(t, []string{TRANSPARENT_PASS_NAME, UI_PASS_NAME}, names)
	assert.Empty(t, bloom.AddRenderPasses(frame))
	assert.Equal(t, 0, p.targets.ReleaseTransient())
}

func TestForwardFeatureReusesTargets(t *testing.T) {
	p := newPipeline(t)
	_, err := NewForwardFeature(DefaultFeatureConfig(), p.targets)
	require.NoError(t, err)
	first := p.handle(t, SHADOW_MAP_TARGET_NAME)

	_, err = NewForwardFeature(DefaultFeatureConfig(), p.targets)
	require.NoError(t, err)

	assert.Equal(t, first, p.handle(t, SHADOW_MAP_TARGET_NAME))
}

func TestGBufferPassFollowsCameraColour(t *testing.T) {
	pass, err := NewGBufferPass([]metadata.RenderTargetHandle{5, 6}, 1)
	require.NoError(t, err)

	frame := &metadata.FrameDescriptor{CameraColour: 2}
	pass.Configure(frame)
	want, err := metadata.NewAttachmentSet(2, 5, 6)
	require.NoError(t, err)
	assert.Equal(t, want, pass.ResolveAttachments().ColourAttachments)

	frame.CameraColour = 3
	pass.Configure(frame)
	want, err = metadata.NewAttachmentSet(3, 5, 6)
	require.NoError(t, err)
	desc := pass.ResolveAttachments()
	assert.Equal(t, want, desc.ColourAttachments)
	assert.Equal(t, metadata.TargetHandleCameraDepth, desc.DepthAttachment)

	allocs := testing.AllocsPerRun(10, func() { pass.Configure(frame) })
	assert.Zero(t, allocs)

	_, err = NewGBufferPass(make([]metadata.RenderTargetHandle, metadata.MAX_COLOUR_ATTACHMENTS), 1)
	assert.Error(t, err)
}
