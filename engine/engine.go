package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/spaghettifunk/anima-passes/engine/assets"
	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/renderer"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-passes/engine/renderer/views"
	"github.com/spaghettifunk/anima-passes/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-passes/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const targetFrameSeconds float64 = 1.0 / 60.0

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	isRunning     atomic.Bool
	isSuspended   bool
	config        *assets.PipelineConfig
	watcher       *assets.ConfigWatcher
	events        *core.EventSystem
	renderer      *renderer.Renderer
	backend       *vulkan.VulkanBackend
	recorder      *renderer.RecordingDevice
	systemManager *systems.SystemManager
	width         uint32
	height        uint32
	frames        int
	frameNumber   uint64
	clock         *core.Clock
	lastTime      time.Duration

	shutdownTracing func(context.Context) error
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("the game requires an application config")
	}
	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		events:       core.NewEventSystem(),
		clock:        core.NewClock(),
	}

	appConfig := g.ApplicationConfig
	switch {
	case appConfig.PipelinePath != "" && appConfig.WatchPipeline:
		w, err := assets.NewConfigWatcher(appConfig.PipelinePath, e.events)
		if err != nil {
			core.LogError(err.Error())
			return nil, err
		}
		e.watcher = w
		e.config = w.Current()
	case appConfig.PipelinePath != "":
		config, err := assets.LoadPipelineConfig(appConfig.PipelinePath)
		if err != nil {
			core.LogError(err.Error())
			return nil, err
		}
		e.config = config
	default:
		e.config = assets.DefaultPipelineConfig()
	}
	if appConfig.Name != "" {
		e.config.Application.Name = appConfig.Name
	}

	level, err := core.ParseLogLevel(e.config.Application.LogLevel)
	if err != nil {
		return nil, err
	}
	core.SetLogLevel(level)

	e.width = e.config.Application.Width
	e.height = e.config.Application.Height
	e.frames = e.config.Application.Frames
	if appConfig.Frames > 0 {
		e.frames = appConfig.Frames
	}
	if appConfig.Unbounded {
		e.frames = 0
	}

	r, err := e.createRenderer(level)
	if err != nil {
		return nil, err
	}
	e.renderer = r

	thresholds, err := e.config.Scheduler.BlockThresholds()
	if err != nil {
		return nil, err
	}
	sm, err := systems.NewSystemManager(systems.SystemManagerConfig{
		Targets: systems.TargetSystemConfig{
			MaxTargetCount: 64,
			Width:          e.width,
			Height:         e.height,
		},
		Cameras: systems.CameraSystemConfig{
			MaxCameraCount: 32,
		},
		Scheduler: systems.FrameSchedulerConfig{
			Thresholds: thresholds,
			MaxPasses:  e.config.Scheduler.MaxPasses,
			Events:     e.events,
		},
	}, r)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	e.systemManager = sm
	g.SystemManager = sm

	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) createRenderer(level core.LogLevel) (*renderer.Renderer, error) {
	if device := e.gameInstance.ApplicationConfig.Device; device != nil {
		return renderer.New(renderer.Headless, device), nil
	}
	kind, err := renderer.ParseRendererType(e.config.Application.Backend)
	if err != nil {
		return nil, err
	}
	switch kind {
	case renderer.Vulkan:
		e.backend = vulkan.New(e.config.Application.Name, level == core.DebugLevel)
		return renderer.New(kind, e.backend), nil
	default:
		e.recorder = renderer.NewRecordingDevice()
		return renderer.New(kind, renderer.NewLoggingDevice(e.recorder)), nil
	}
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	shutdown, err := core.SetupTracing(e.config.Tracing.Endpoint, e.config.Tracing.Service)
	if err != nil {
		core.LogWarn("tracing disabled: %s", err)
		shutdown = func(context.Context) error { return nil }
	}
	e.shutdownTracing = shutdown

	// register some events
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_PIPELINE_CONFIG_RELOADED, e, e.onEvent)

	if e.backend != nil {
		if err := e.backend.Initialize(); err != nil {
			return err
		}
		e.backend.SetTargets(e.systemManager.TargetSystem)
		if err := e.systemManager.TargetSystem.SetAllocator(e.backend); err != nil {
			return err
		}
	}

	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			return err
		}
	}
	if err := e.applyConfig(e.config); err != nil {
		return err
	}
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}

	if e.watcher != nil {
		if err := e.watcher.Start(); err != nil {
			return err
		}
	}

	e.isRunning.Store(true)
	e.currentStage = EngineStageInitialized
	return nil
}

// applyConfig registers the targets and cameras of config and rebuilds the features.
// It only runs between frames.
func (e *Engine) applyConfig(config *assets.PipelineConfig) error {
	sm := e.systemManager

	level, err := core.ParseLogLevel(config.Application.LogLevel)
	if err != nil {
		return err
	}
	core.SetLogLevel(level)

	thresholds, err := config.Scheduler.BlockThresholds()
	if err != nil {
		return err
	}
	if err := sm.FrameScheduler.SetThresholds(thresholds); err != nil {
		return err
	}

	for _, t := range config.Targets {
		targetConfig, err := t.RenderTargetConfig()
		if err != nil {
			return err
		}
		if _, err := sm.TargetSystem.Handle(targetConfig.Name); err == nil {
			continue
		}
		if _, err := sm.TargetSystem.Create(targetConfig); err != nil {
			return err
		}
	}

	configured := make(map[string]bool, len(config.Cameras))
	for _, c := range config.Cameras {
		camera, err := c.Camera()
		if err != nil {
			return err
		}
		if err := sm.CameraSystem.Register(camera); err != nil {
			return err
		}
		configured[camera.Name] = true
	}
	for _, name := range sm.CameraSystem.Names() {
		if !configured[name] {
			core.LogInfo("camera '%s' is no longer configured, unregistering it", name)
			sm.CameraSystem.Unregister(name)
		}
	}

	sm.FrameScheduler.RemoveFeature(views.FORWARD_FEATURE_NAME)
	sm.FrameScheduler.RemoveFeature(views.BLOOM_FEATURE_NAME)
	forward, err := views.NewForwardFeature(config.Features.FeatureConfig(), sm.TargetSystem)
	if err != nil {
		return err
	}
	sm.FrameScheduler.AddFeature(forward)
	if config.Features.Bloom {
		sm.FrameScheduler.AddFeature(views.NewBloomFeature(sm.TargetSystem))
	}

	if config.Application.Width != e.width || config.Application.Height != e.height {
		e.events.Fire(core.EVENT_CODE_RESIZED, &core.ResizeEvent{
			Width:  config.Application.Width,
			Height: config.Application.Height,
		})
	}
	e.config = config
	return nil
}

// Run renders frames until the configured frame count is reached, Stop is
// called or a frame fails.
func (e *Engine) Run(ctx context.Context) error {
	e.currentStage = EngineStageRunning
	e.clock.Start()

	for e.isRunning.Load() {
		if ctx.Err() != nil {
			break
		}
		e.pollConfig()

		if e.isSuspended {
			frameSeconds := targetFrameSeconds
			time.Sleep(time.Duration(frameSeconds * float64(time.Second)))
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := (currentTime - e.lastTime).Seconds()
		frameStartTime := time.Now()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(e.frameNumber, delta); err != nil {
				core.LogError("Game update failed, shutting down.")
				return err
			}
		}

		if err := e.renderFrame(ctx); err != nil {
			core.LogError("Frame %d failed: %s", e.frameNumber, err)
			return err
		}
		e.frameNumber++

		if e.frames > 0 && e.frameNumber >= uint64(e.frames) {
			break
		}

		// Give what is left of the frame budget back to the OS.
		remaining := targetFrameSeconds - time.Since(frameStartTime).Seconds()
		if remaining > 0 && e.frames == 0 {
			time.Sleep(time.Duration(remaining * float64(time.Second)))
		}
		e.lastTime = currentTime
	}
	return nil
}

func (e *Engine) pollConfig() {
	if e.watcher == nil {
		return
	}
	select {
	case config, ok := <-e.watcher.Updates():
		if !ok {
			return
		}
		if err := e.applyConfig(config); err != nil {
			core.LogError("failed to apply reloaded pipeline config: %s", err)
		}
	case err, ok := <-e.watcher.Errors():
		if ok {
			core.LogWarn("pipeline config watcher: %s", err)
		}
	default:
	}
}

// renderFrame renders the stack of every base camera.
func (e *Engine) renderFrame(ctx context.Context) error {
	sm := e.systemManager
	ctx, span := core.Tracer().Start(ctx, "Frame", trace.WithAttributes(
		attribute.Int64("frame", int64(e.frameNumber)),
	))
	defer span.End()

	if e.backend != nil {
		if err := e.backend.BeginFrame(); err != nil {
			return err
		}
	}

	frame := metadata.FrameDescriptor{
		FrameNumber: e.frameNumber,
		Width:       e.width,
		Height:      e.height,
		SampleCount: 1,
	}
	var renderErr error
	for _, name := range e.config.BaseCameras() {
		stack, err := sm.CameraSystem.StackOf(name)
		if err != nil {
			renderErr = err
			break
		}
		stats, err := sm.FrameScheduler.RenderStack(ctx, frame, sm.CameraSystem, stack)
		for _, s := range stats {
			core.LogDebug("camera '%s': %d passes, %d binds (%d skipped), %d colour and %d depth clears",
				s.CameraName, s.PassesExecuted, s.BindCalls, s.SkippedBinds, s.ColourClears, s.DepthClears)
		}
		if err != nil {
			renderErr = err
			break
		}
	}

	if e.backend != nil {
		if err := e.backend.EndFrame(); err != nil && renderErr == nil {
			renderErr = err
		}
	}
	if released := sm.TargetSystem.ReleaseTransient(); released > 0 {
		core.LogDebug("released %d transient targets", released)
	}
	if e.recorder != nil {
		core.LogDebug("frame %d recorded %d binds and %d draws", e.frameNumber, len(e.recorder.Binds), len(e.recorder.Draws))
		e.recorder.Reset()
	}
	if renderErr != nil {
		span.RecordError(renderErr)
	}
	return renderErr
}

// Stop asks Run to return after the frame in flight. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError(err.Error())
		}
	}
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			return err
		}
	}
	e.events.Shutdown()
	if err := e.systemManager.Shutdown(); err != nil {
		return err
	}
	if e.backend != nil {
		if err := e.backend.Shutdown(); err != nil {
			return err
		}
	}
	if e.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.shutdownTracing(ctx); err != nil {
			return err
		}
	}
	core.LogInfo("rendered %d frames, average camera time %s", e.frameNumber, e.systemManager.FrameScheduler.Metrics().Average())
	return nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Events() *core.EventSystem {
	return e.events
}

func (e *Engine) FrameNumber() uint64 {
	return e.frameNumber
}

// GetFramebufferSize returns the width and height (in this order) of the frame.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT recieved, shutting down.")
		e.Stop()
		return true
	case core.EVENT_CODE_PIPELINE_CONFIG_RELOADED:
		core.LogDebug("pipeline config reload queued for the next frame")
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	re, ok := context.Data.(*core.ResizeEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	width, height := re.Width, re.Height
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Frame resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Frame size is zero, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Frame size restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.systemManager.TargetSystem.Resize(width, height); err != nil {
		core.LogError(err.Error())
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return true
}
