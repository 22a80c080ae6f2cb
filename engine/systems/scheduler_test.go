package systems

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/renderer"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

type schedulerFixture struct {
	scheduler *FrameScheduler
	device    *renderer.RecordingDevice
	spans     *tracetest.SpanRecorder
	events    *core.EventSystem
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	device := renderer.NewRecordingDevice()
	events := core.NewEventSystem()
	scheduler, err := NewFrameScheduler(FrameSchedulerConfig{
		Thresholds: DefaultBlockThresholds,
		MaxPasses:  8,
		Tracer:     provider.Tracer("scheduler-test"),
		Events:     events,
	}, renderer.New(renderer.Headless, device))
	require.NoError(t, err)
	return &schedulerFixture{
		scheduler: scheduler,
		device:    device,
		spans:     spans,
		events:    events,
	}
}

func testFrame(number uint64) metadata.FrameDescriptor {
	return metadata.FrameDescriptor{
		CameraName:  DEFAULT_CAMERA_NAME,
		FrameNumber: number,
		Width:       1280,
		Height:      720,
		SampleCount: 1,
	}
}

type blockRecorder struct {
	calls []string
}

func (br *blockRecorder) BeginBlock(block RenderPassBlock, frame *metadata.FrameDescriptor) {
	br.calls = append(br.calls, "begin "+block.String())
}

func (br *blockRecorder) EndBlock(block RenderPassBlock, frame *metadata.FrameDescriptor) {
	br.calls = append(br.calls, "end "+block.String())
}

func TestFrameSchedulerShadowOpaquePost(t *testing.T) {
	f := newSchedulerFixture(t)
	var log []string
	shadow := newStubPass("shadow", cameraDesc(50, 0), &log)
	opaque := newStubPass("opaque", cameraDesc(250, 0), &log)
	post := newStubPass("post", targetDesc(t, 700, 0, metadata.TargetHandleCameraDepth, cameraColour), &log)
	// enqueued out of order on purpose
	for _, p := range []Pass{post, opaque, shadow} {
		require.NoError(t, f.scheduler.Enqueue(p))
	}

	stats, err := f.scheduler.RenderCamera(context.Background(), testFrame(1), baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))
	require.NoError(t, err)

	assert.Equal(t, []string{"shadow", "opaque", "post"}, log)
	assertBinds(t, []renderer.BindCommand{
		{Colours: handles(cameraColour), Depth: cameraDepth, Flags: metadata.RENDERPASS_CLEAR_ALL_FLAG, ClearColour: cameraClear},
	}, f.device)
	assert.Equal(t, 3, stats.PassesEnqueued)
	assert.Equal(t, 3, stats.PassesExecuted)
	assert.Equal(t, 1, stats.BindCalls)
	assert.Equal(t, 1, stats.SkippedBinds)
	assert.Equal(t, 1, stats.ColourClears)
	assert.Equal(t, 1, stats.DepthClears)

	for _, p := range []*stubPass{shadow, opaque, post} {
		assert.Equal(t, 1, p.configured, p.name)
		assert.Equal(t, 1, p.executed, p.name)
		assert.Equal(t, 1, p.cleaned, p.name)
	}
	assert.Equal(t, SCHEDULER_STATE_IDLE, f.scheduler.State())
	assert.Equal(t, 0, f.scheduler.queue.Len())
}

func TestFrameSchedulerNotifiesEveryBlock(t *testing.T) {
	f := newSchedulerFixture(t)
	observer := &blockRecorder{}
	f.scheduler.SetBlockObserver(observer)
	require.NoError(t, f.scheduler.Enqueue(newStubPass("opaque", cameraDesc(250, 0), nil)))

	_, err := f.scheduler.RenderCamera(context.Background(), testFrame(1), baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"begin BeforeRendering", "end BeforeRendering",
		"begin MainRenderingOpaque", "end MainRenderingOpaque",
		"begin MainRenderingTransparent", "end MainRenderingTransparent",
		"begin AfterRendering", "end AfterRendering",
	}, observer.calls)
}

func TestFrameSchedulerCollectsFeaturePasses(t *testing.T) {
	f := newSchedulerFixture(t)
	var log []string
	var typed *stubPass
	f.scheduler.AddFeature(&stubFeature{name: "forward", passes: []Pass{
		newStubPass("transparent", cameraDesc(450, 0), &log),
		nil,
		newStubPass("opaque", cameraDesc(250, 0), &log),
	}})
	f.scheduler.AddFeature(&stubFeature{name: "broken", passes: []Pass{typed}})
	f.scheduler.AddFeature(nil)
	require.Len(t, f.scheduler.Features(), 2)

	stats, err := f.scheduler.RenderCamera(context.Background(), testFrame(1), baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))
	require.NoError(t, err)

	assert.Equal(t, []string{"opaque", "transparent"}, log)
	assert.Equal(t, 2, stats.PassesEnqueued)
	assert.Equal(t, 2, stats.EntriesDropped)

	f.scheduler.RemoveFeature("broken")
	require.Len(t, f.scheduler.Features(), 1)
	assert.Equal(t, "forward", f.scheduler.Features()[0].Name())
}

func TestFrameSchedulerExecuteErrorStillCleansUp(t *testing.T) {
	f := newSchedulerFixture(t)
	observer := &blockRecorder{}
	f.scheduler.SetBlockObserver(observer)
	boom := errors.New("boom")
	var log []string
	opaque := newStubPass("opaque", cameraDesc(250, 0), &log)
	failing := newStubPass("failing", cameraDesc(450, 0), &log)
	failing.onExecute = func(ctx *PassContext) error { return boom }
	post := newStubPass("post", cameraDesc(700, 0), &log)
	for _, p := range []Pass{opaque, failing, post} {
		require.NoError(t, f.scheduler.Enqueue(p))
	}

	stats, err := f.scheduler.RenderCamera(context.Background(), testFrame(3), baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, []string{"opaque", "failing"}, log)
	assert.Equal(t, 1, stats.PassesExecuted)
	for _, p := range []*stubPass{opaque, failing, post} {
		assert.Equal(t, 1, p.cleaned, p.name)
	}
	assert.Equal(t, 0, post.executed)
	assert.NotContains(t, observer.calls, "end MainRenderingTransparent")
	assert.Equal(t, SCHEDULER_STATE_IDLE, f.scheduler.State())
	assert.Equal(t, 0, f.scheduler.queue.Len())
	assert.Equal(t, uint64(0), f.scheduler.Metrics().Frames())
}

func TestFrameSchedulerDeviceErrorAbortsCamera(t *testing.T) {
	f := newSchedulerFixture(t)
	lost := errors.New("device lost")
	f.device.Fail = lost
	opaque := newStubPass("opaque", cameraDesc(250, 0), nil)
	require.NoError(t, f.scheduler.Enqueue(opaque))

	_, err := f.scheduler.RenderCamera(context.Background(), testFrame(1), baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))

	require.ErrorIs(t, err, lost)
	assert.Equal(t, 0, opaque.executed)
	assert.Equal(t, 1, opaque.cleaned)
}

func TestPassContextExpiresAfterExecute(t *testing.T) {
	f := newSchedulerFixture(t)
	opaque := newStubPass("opaque", cameraDesc(250, 0), nil)
	var seen metadata.FrameDescriptor
	opaque.onExecute = func(ctx *PassContext) error {
		frame, err := ctx.Frame()
		if err != nil {
			return err
		}
		seen = frame
		colours, depth, err := ctx.ActiveAttachments()
		if err != nil {
			return err
		}
		if colours[0] != cameraColour || depth != cameraDepth {
			return fmt.Errorf("unexpected active attachments %v/%s", colours, depth)
		}
		return ctx.Draw("meshes", 12)
	}
	require.NoError(t, f.scheduler.Enqueue(opaque))

	_, err := f.scheduler.RenderCamera(context.Background(), testFrame(7), baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))
	require.NoError(t, err)

	assert.Equal(t, uint64(7), seen.FrameNumber)
	assert.Equal(t, cameraColour, seen.CameraColour)
	assert.Equal(t, cameraDepth, seen.CameraDepth)
	assert.Equal(t, []renderer.DrawRequest{{Pass: "opaque", Label: "meshes", Count: 12}}, f.device.Draws)

	ctx := opaque.lastCtx
	require.NotNil(t, ctx)
	assert.False(t, ctx.IsActive())
	_, err = ctx.Frame()
	assert.ErrorIs(t, err, core.ErrPassContextExpired)
	_, err = ctx.CameraTargets()
	assert.ErrorIs(t, err, core.ErrPassContextExpired)
	_, _, err = ctx.ActiveAttachments()
	assert.ErrorIs(t, err, core.ErrPassContextExpired)
	assert.ErrorIs(t, ctx.Draw("late", 1), core.ErrPassContextExpired)
	assert.ErrorIs(t, ctx.SetRenderTarget(nil, shadowMap, 0, black), core.ErrPassContextExpired)
}

func TestPassContextSetRenderTargetKeepsFirstTouch(t *testing.T) {
	f := newSchedulerFixture(t)
	shadow := newStubPass("shadow", cameraDesc(50, 0), nil)
	shadow.onExecute = func(ctx *PassContext) error {
		return ctx.SetRenderTarget(nil, shadowMap, metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG, black)
	}
	opaque := newStubPass("opaque", cameraDesc(250, 0), nil)
	require.NoError(t, f.scheduler.Enqueue(shadow))
	require.NoError(t, f.scheduler.Enqueue(opaque))

	_, err := f.scheduler.RenderCamera(context.Background(), testFrame(1), baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))
	require.NoError(t, err)

	assertBinds(t, []renderer.BindCommand{
		{Depth: shadowMap, Flags: metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG, ClearColour: black},
		{Colours: handles(cameraColour), Depth: cameraDepth, Flags: metadata.RENDERPASS_CLEAR_ALL_FLAG, ClearColour: cameraClear},
	}, f.device)
}

func TestFrameSchedulerRejectsReentry(t *testing.T) {
	f := newSchedulerFixture(t)
	var enqueueErr, renderErr error
	opaque := newStubPass("opaque", cameraDesc(250, 0), nil)
	opaque.onExecute = func(ctx *PassContext) error {
		enqueueErr = f.scheduler.Enqueue(newStubPass("late", cameraDesc(300, 0), nil))
		_, renderErr = f.scheduler.RenderCamera(context.Background(), testFrame(1), baseCamera(0))
		return nil
	}
	require.NoError(t, f.scheduler.Enqueue(opaque))

	_, err := f.scheduler.RenderCamera(context.Background(), testFrame(1), baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))
	require.NoError(t, err)

	assert.ErrorIs(t, enqueueErr, core.ErrPassQueueSealed)
	assert.ErrorIs(t, renderErr, core.ErrSchedulerBusy)
	assert.NoError(t, f.scheduler.SetThresholds(DefaultBlockThresholds))
}

func TestFrameSchedulerSetThresholds(t *testing.T) {
	f := newSchedulerFixture(t)

	assert.ErrorIs(t, f.scheduler.SetThresholds(BlockThresholds{300, 200, 100}), core.ErrInvalidThresholds)
	assert.Equal(t, DefaultBlockThresholds, f.scheduler.Thresholds())

	require.NoError(t, f.scheduler.SetThresholds(BlockThresholds{300, 400, 500}))
	require.NoError(t, f.scheduler.Enqueue(newStubPass("early-opaque", cameraDesc(250, 0), nil)))

	_, err := f.scheduler.RenderCamera(context.Background(), testFrame(1), baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))
	require.NoError(t, err)

	// 250 now falls before the opaque block and keeps whatever is bound
	assert.Empty(t, f.device.Binds)
}

func TestFrameSchedulerTracesPasses(t *testing.T) {
	f := newSchedulerFixture(t)
	require.NoError(t, f.scheduler.Enqueue(newStubPass("opaque", cameraDesc(250, 0), nil)))
	require.NoError(t, f.scheduler.Enqueue(newStubPass("post", cameraDesc(700, 0), nil)))

	_, err := f.scheduler.RenderCamera(context.Background(), testFrame(1), baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))
	require.NoError(t, err)

	ended := f.spans.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, "opaque", ended[0].Name())
	assert.Equal(t, "post", ended[1].Name())
	camera := ended[2]
	assert.Equal(t, "RenderCamera", camera.Name())
	for _, span := range ended[:2] {
		assert.Equal(t, camera.SpanContext().SpanID(), span.Parent().SpanID())
	}
	assert.Equal(t, codes.Unset, camera.Status().Code)
}

func TestFrameSchedulerTracesFailures(t *testing.T) {
	f := newSchedulerFixture(t)
	failing := newStubPass("failing", cameraDesc(250, 0), nil)
	failing.onExecute = func(ctx *PassContext) error { return errors.New("boom") }
	require.NoError(t, f.scheduler.Enqueue(failing))

	_, err := f.scheduler.RenderCamera(context.Background(), testFrame(1), baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))
	require.Error(t, err)

	ended := f.spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestFrameSchedulerFiresCameraRendered(t *testing.T) {
	f := newSchedulerFixture(t)
	var received []core.FrameStats
	f.events.Register(core.EVENT_CODE_CAMERA_RENDERED, t, func(ctx core.EventContext) bool {
		received = append(received, ctx.Data.(core.FrameStats))
		return true
	})
	require.NoError(t, f.scheduler.Enqueue(newStubPass("opaque", cameraDesc(250, 0), nil)))

	frame := testFrame(42)
	_, err := f.scheduler.RenderCamera(context.Background(), frame, baseCamera(metadata.RENDERPASS_CLEAR_ALL_FLAG))
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, uint64(42), received[0].FrameNumber)
	assert.Equal(t, DEFAULT_CAMERA_NAME, received[0].CameraName)
	assert.Equal(t, 1, received[0].BindCalls)
	assert.Equal(t, uint64(1), f.scheduler.Metrics().Frames())
	assert.Equal(t, 1, f.scheduler.Metrics().Last().PassesExecuted)
}

func TestFrameSchedulerRenderStack(t *testing.T) {
	f := newSchedulerFixture(t)
	targets, err := NewTargetSystem(TargetSystemConfig{MaxTargetCount: 8, Width: 1280, Height: 720})
	require.NoError(t, err)
	cameras, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 4}, targets)
	require.NoError(t, err)
	require.NoError(t, cameras.Register(&Camera{
		Name:         "hud",
		RenderType:   metadata.CAMERA_RENDER_TYPE_OVERLAY,
		ColourTarget: DEFAULT_COLOUR_TARGET_NAME,
		DepthTarget:  DEFAULT_DEPTH_TARGET_NAME,
		ClearFlags:   metadata.RENDERPASS_CLEAR_ALL_FLAG,
	}))
	cameras.GetDefault().Stack = []string{"hud"}

	var frames []metadata.FrameDescriptor
	opaque := newStubPass("opaque", cameraDesc(250, 0), nil)
	opaque.onExecute = func(ctx *PassContext) error {
		frame, err := ctx.Frame()
		frames = append(frames, frame)
		return err
	}
	f.scheduler.AddFeature(&stubFeature{name: "forward", passes: []Pass{opaque}})

	names, err := cameras.StackOf(DEFAULT_CAMERA_NAME)
	require.NoError(t, err)
	require.Equal(t, []string{DEFAULT_CAMERA_NAME, "hud"}, names)

	stats, err := f.scheduler.RenderStack(context.Background(), testFrame(5), cameras, names)
	require.NoError(t, err)

	require.Len(t, stats, 2)
	assert.Equal(t, "hud", stats[1].CameraName)
	require.Len(t, frames, 2)
	assert.Equal(t, 1, frames[1].CameraIndex)
	assert.Equal(t, metadata.CAMERA_RENDER_TYPE_OVERLAY, frames[1].RenderType)
	assertBinds(t, []renderer.BindCommand{
		{Colours: handles(cameraColour), Depth: cameraDepth, Flags: metadata.RENDERPASS_CLEAR_ALL_FLAG, ClearColour: cameraClear},
		{Colours: handles(cameraColour), Depth: cameraDepth, Flags: metadata.RENDERPASS_CLEAR_DEPTH_BUFFER_FLAG, ClearColour: black},
	}, f.device)
	assert.Equal(t, 2, opaque.cleaned)
}

func TestFrameSchedulerRenderStackUnknownCamera(t *testing.T) {
	f := newSchedulerFixture(t)
	targets, err := NewTargetSystem(TargetSystemConfig{Width: 64, Height: 64})
	require.NoError(t, err)
	cameras, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 1}, targets)
	require.NoError(t, err)

	stats, err := f.scheduler.RenderStack(context.Background(), testFrame(1), cameras, []string{DEFAULT_CAMERA_NAME, "missing"})

	assert.ErrorIs(t, err, core.ErrUnknownCamera)
	assert.Empty(t, stats)
	assert.Empty(t, f.device.Binds)
}

func TestFrameSchedulerRenderStackHoldsCameras(t *testing.T) {
	f := newSchedulerFixture(t)
	targets, err := NewTargetSystem(TargetSystemConfig{Width: 64, Height: 64})
	require.NoError(t, err)
	cameras, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 2}, targets)
	require.NoError(t, err)
	require.NoError(t, cameras.Register(&Camera{Name: "hud", RenderType: metadata.CAMERA_RENDER_TYPE_OVERLAY, ColourTarget: DEFAULT_COLOUR_TARGET_NAME}))

	opaque := newStubPass("opaque", cameraDesc(250, 0), nil)
	opaque.onExecute = func(ctx *PassContext) error {
		frame, err := ctx.Frame()
		if frame.CameraIndex == 0 {
			// a reload dropping the overlay mid-stack
			cameras.Unregister("hud")
		}
		return err
	}
	f.scheduler.AddFeature(&stubFeature{name: "forward", passes: []Pass{opaque}})

	stats, err := f.scheduler.RenderStack(context.Background(), testFrame(1), cameras, []string{DEFAULT_CAMERA_NAME, "hud"})
	require.NoError(t, err)

	require.Len(t, stats, 2)
	assert.Equal(t, "hud", stats[1].CameraName)
	_, err = cameras.Resolve("hud")
	assert.ErrorIs(t, err, core.ErrUnknownCamera)
}

// transientFeature asks for one half-resolution transient target per camera.
type transientFeature struct {
	targets *TargetSystem
	handles []metadata.RenderTargetHandle
}

func (f *transientFeature) Name() string {
	return "transient"
}

func (f *transientFeature) AddRenderPasses(frame *metadata.FrameDescriptor) []Pass {
	handle, err := f.targets.CreateTransient(metadata.RENDER_TARGET_FORMAT_RGBA16F, 0.5)
	if err == nil {
		f.handles = append(f.handles, handle)
	}
	return nil
}

func TestFrameSchedulerRecyclesTransientTargetsPerCamera(t *testing.T) {
	manager, err := NewSystemManager(SystemManagerConfig{
		Targets:   TargetSystemConfig{Width: 1280, Height: 720},
		Cameras:   CameraSystemConfig{MaxCameraCount: 2},
		Scheduler: FrameSchedulerConfig{Thresholds: DefaultBlockThresholds},
	}, renderer.New(renderer.Headless, renderer.NewRecordingDevice()))
	require.NoError(t, err)
	require.NoError(t, manager.CameraSystem.Register(&Camera{Name: "mirror", ColourTarget: DEFAULT_COLOUR_TARGET_NAME}))
	feature := &transientFeature{targets: manager.TargetSystem}
	manager.FrameScheduler.AddFeature(feature)

	for _, name := range []string{DEFAULT_CAMERA_NAME, "mirror"} {
		_, err := manager.FrameScheduler.RenderStack(context.Background(), testFrame(1), manager.CameraSystem, []string{name})
		require.NoError(t, err)
	}

	require.Len(t, feature.handles, 2)
	assert.Equal(t, feature.handles[0], feature.handles[1])
	assert.Equal(t, 1, manager.TargetSystem.ReleaseTransient())
}

func TestNewFrameSchedulerValidates(t *testing.T) {
	_, err := NewFrameScheduler(FrameSchedulerConfig{Thresholds: DefaultBlockThresholds}, nil)
	assert.Error(t, err)

	_, err = NewFrameScheduler(FrameSchedulerConfig{}, renderer.New(renderer.Headless, renderer.NewRecordingDevice()))
	assert.ErrorIs(t, err, core.ErrInvalidThresholds)
}
