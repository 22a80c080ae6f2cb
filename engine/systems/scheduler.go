package systems

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/renderer"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

type SchedulerState uint8

const (
	SCHEDULER_STATE_IDLE SchedulerState = iota
	SCHEDULER_STATE_SORTING
	SCHEDULER_STATE_BLOCK_PRE
	SCHEDULER_STATE_BLOCK_OPAQUE
	SCHEDULER_STATE_BLOCK_TRANSPARENT
	SCHEDULER_STATE_BLOCK_POST
	SCHEDULER_STATE_DONE
)

func (s SchedulerState) String() string {
	switch s {
	case SCHEDULER_STATE_IDLE:
		return "idle"
	case SCHEDULER_STATE_SORTING:
		return "sorting"
	case SCHEDULER_STATE_BLOCK_PRE:
		return "block-pre"
	case SCHEDULER_STATE_BLOCK_OPAQUE:
		return "block-opaque"
	case SCHEDULER_STATE_BLOCK_TRANSPARENT:
		return "block-transparent"
	case SCHEDULER_STATE_BLOCK_POST:
		return "block-post"
	case SCHEDULER_STATE_DONE:
		return "done"
	default:
		return fmt.Sprintf("SchedulerState(%d)", uint8(s))
	}
}

var blockStates = [RENDER_PASS_BLOCK_COUNT]SchedulerState{
	SCHEDULER_STATE_BLOCK_PRE,
	SCHEDULER_STATE_BLOCK_OPAQUE,
	SCHEDULER_STATE_BLOCK_TRANSPARENT,
	SCHEDULER_STATE_BLOCK_POST,
}

// CameraResolver supplies the targets and clear settings of a named camera.
// RenderStack holds every camera of the stack between Acquire and Release.
type CameraResolver interface {
	Acquire(name string) (*Camera, error)
	Release(name string)
	Resolve(name string) (metadata.CameraTargets, error)
}

type FrameSchedulerConfig struct {
	Thresholds BlockThresholds
	// Initial queue capacity.
	MaxPasses int
	// Defaults to core.Tracer().
	Tracer trace.Tracer
	// Optional. Receives EVENT_CODE_CAMERA_RENDERED with the camera's FrameStats.
	Events *core.EventSystem
	// Optional. Transient targets are recycled after every camera.
	Transients TransientPool
}

// TransientPool takes back the transient targets of a finished camera render.
type TransientPool interface {
	RecycleTransient() int
}

/**
 * @brief Renders one camera at a time: collects the passes of every feature,
 * sorts them, splits them into blocks and runs configure/resolve/execute per pass.
 */
type FrameScheduler struct {
	renderer   *renderer.Renderer
	resolver   *AttachmentResolver
	thresholds BlockThresholds
	queue      *PassQueue
	features   []Feature
	observer   BlockObserver
	tracer     trace.Tracer
	events     *core.EventSystem
	metrics    *core.FrameMetrics
	transients TransientPool
	state      SchedulerState
}

func NewFrameScheduler(config FrameSchedulerConfig, r *renderer.Renderer) (*FrameScheduler, error) {
	if r == nil {
		return nil, fmt.Errorf("frame scheduler requires a renderer")
	}
	if err := config.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if config.MaxPasses <= 0 {
		config.MaxPasses = 32
	}
	if config.Tracer == nil {
		config.Tracer = core.Tracer()
	}
	return &FrameScheduler{
		renderer:   r,
		resolver:   NewAttachmentResolver(r, config.Thresholds),
		thresholds: config.Thresholds,
		queue:      NewPassQueue(config.MaxPasses),
		tracer:     config.Tracer,
		events:     config.Events,
		metrics:    core.NewFrameMetrics(),
		transients: config.Transients,
		state:      SCHEDULER_STATE_IDLE,
	}, nil
}

func (s *FrameScheduler) State() SchedulerState {
	return s.state
}

func (s *FrameScheduler) Metrics() *core.FrameMetrics {
	return s.metrics
}

func (s *FrameScheduler) Thresholds() BlockThresholds {
	return s.thresholds
}

// SetThresholds swaps the block limits. Only allowed between camera renders.
func (s *FrameScheduler) SetThresholds(thresholds BlockThresholds) error {
	if s.state != SCHEDULER_STATE_IDLE {
		return core.ErrSchedulerBusy
	}
	if err := thresholds.Validate(); err != nil {
		return err
	}
	s.thresholds = thresholds
	s.resolver = NewAttachmentResolver(s.renderer, thresholds)
	return nil
}

// AddFeature registers a feature asked for passes at the start of every camera render.
func (s *FrameScheduler) AddFeature(feature Feature) {
	if feature == nil {
		return
	}
	s.features = append(s.features, feature)
}

// RemoveFeature drops every feature registered under name.
func (s *FrameScheduler) RemoveFeature(name string) {
	kept := s.features[:0]
	for _, f := range s.features {
		if f.Name() != name {
			kept = append(kept, f)
		}
	}
	for i := len(kept); i < len(s.features); i++ {
		s.features[i] = nil
	}
	s.features = kept
}

func (s *FrameScheduler) Features() []Feature {
	return s.features
}

func (s *FrameScheduler) SetBlockObserver(observer BlockObserver) {
	s.observer = observer
}

// Enqueue adds a pass to the next camera render only.
func (s *FrameScheduler) Enqueue(pass Pass) error {
	return s.queue.Enqueue(pass)
}

// RenderStack renders the named cameras in order, the first one being the base camera.
// It stops at the first failing camera. An unknown camera fails the stack before
// anything renders.
func (s *FrameScheduler) RenderStack(ctx context.Context, frame metadata.FrameDescriptor, cameras CameraResolver, names []string) ([]core.FrameStats, error) {
	stats := make([]core.FrameStats, 0, len(names))
	for _, name := range names {
		if _, err := cameras.Acquire(name); err != nil {
			return stats, err
		}
		defer cameras.Release(name)
	}
	for i, name := range names {
		camera, err := cameras.Resolve(name)
		if err != nil {
			return stats, err
		}
		if i == 0 && camera.RenderType != metadata.CAMERA_RENDER_TYPE_BASE {
			core.LogWarn("camera stack starts with overlay camera '%s'", name)
		}
		frame.CameraName = name
		frame.CameraIndex = i
		cameraStats, err := s.RenderCamera(ctx, frame, camera)
		stats = append(stats, cameraStats)
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// RenderCamera runs the whole pipeline for one camera with a fresh binding state.
// Every enqueued pass gets its Cleanup and the queue is cleared even when a pass fails.
func (s *FrameScheduler) RenderCamera(ctx context.Context, frame metadata.FrameDescriptor, camera metadata.CameraTargets) (stats core.FrameStats, err error) {
	if s.state != SCHEDULER_STATE_IDLE {
		return stats, core.ErrSchedulerBusy
	}
	start := time.Now()
	stats.CameraName = frame.CameraName
	stats.FrameNumber = frame.FrameNumber

	frame.CameraColour = camera.Colour
	frame.CameraDepth = camera.Depth
	frame.RenderType = camera.RenderType

	ctx, span := s.tracer.Start(ctx, "RenderCamera", trace.WithAttributes(
		attribute.String("camera", frame.CameraName),
		attribute.Int64("frame", int64(frame.FrameNumber)),
		attribute.String("render_type", camera.RenderType.String()),
	))
	defer span.End()

	defer func() {
		s.finish()
		stats.Elapsed = time.Since(start)
		span.SetAttributes(
			attribute.Int("passes", stats.PassesExecuted),
			attribute.Int("binds", stats.BindCalls),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		s.metrics.Update(stats)
		if s.events != nil {
			s.events.Fire(core.EVENT_CODE_CAMERA_RENDERED, stats)
		}
	}()

	for _, feature := range s.features {
		if err := s.queue.EnqueueAll(feature.Name(), feature.AddRenderPasses(&frame)); err != nil {
			return stats, fmt.Errorf("render camera '%s': %w", frame.CameraName, err)
		}
	}

	s.state = SCHEDULER_STATE_SORTING
	s.queue.Seal()
	s.queue.Sort()
	stats.PassesEnqueued = s.queue.Len()
	stats.EntriesDropped = s.queue.Dropped()

	ranges := PartitionBlocks(s.queue, s.thresholds)
	state := NewFrameBindingState(camera, &stats)

	for block := RENDER_PASS_BLOCK_BEFORE_RENDERING; block < RENDER_PASS_BLOCK_COUNT; block++ {
		s.state = blockStates[block]
		if err := s.executeBlock(ctx, block, ranges.Range(block), &frame, state); err != nil {
			return stats, fmt.Errorf("render camera '%s': %w", frame.CameraName, err)
		}
	}
	return stats, nil
}

func (s *FrameScheduler) executeBlock(ctx context.Context, block RenderPassBlock, r BlockRange, frame *metadata.FrameDescriptor, state *FrameBindingState) error {
	if s.observer != nil {
		s.observer.BeginBlock(block, frame)
	}
	for i := r.Start; i < r.End; i++ {
		if err := s.executePass(ctx, s.queue.At(i), frame, state); err != nil {
			return err
		}
	}
	if s.observer != nil {
		s.observer.EndBlock(block, frame)
	}
	return nil
}

func (s *FrameScheduler) executePass(ctx context.Context, pass Pass, frame *metadata.FrameDescriptor, state *FrameBindingState) error {
	name := pass.Name()
	_, span := s.tracer.Start(ctx, name)
	defer span.End()

	pass.Configure(frame)
	desc := pass.ResolveAttachments()
	span.SetAttributes(
		attribute.String("order", desc.Order.String()),
		attribute.Bool("overrides_target", desc.OverridesTarget),
	)

	if err := s.resolver.Resolve(state, name, desc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("resolve attachments of pass '%s': %w", name, err)
	}

	pc := newPassContext(name, frame, state, s.renderer)
	err := pass.Execute(pc)
	pc.expire()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("execute pass '%s': %w", name, err)
	}
	state.stats.PassesExecuted++
	return nil
}

// finish is the Done transition.
func (s *FrameScheduler) finish() {
	s.state = SCHEDULER_STATE_DONE
	for i := 0; i < s.queue.Len(); i++ {
		s.queue.At(i).Cleanup()
	}
	s.queue.Clear()
	if s.transients != nil {
		s.transients.RecycleTransient()
	}
	s.state = SCHEDULER_STATE_IDLE
}
