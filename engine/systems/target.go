package systems

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

const (
	DEFAULT_COLOUR_TARGET_NAME = "camera.colour"
	DEFAULT_DEPTH_TARGET_NAME  = "camera.depth"
)

// TargetAllocator creates the backend resources behind a render target.
// Implemented by the vulkan device; the headless path runs without one.
type TargetAllocator interface {
	CreateTarget(target *metadata.RenderTarget) error
	DestroyTarget(target *metadata.RenderTarget)
}

/** @brief The target system configuration. */
type TargetSystemConfig struct {
	/** @brief The maximum number of render targets, 0 for unlimited. */
	MaxTargetCount uint32
	/** @brief The frame size scaled targets follow. */
	Width  uint32
	Height uint32
}

/**
 * @brief Owns every render target and hands out the handles passes and cameras
 * refer to. Handle 0 is never issued.
 */
type TargetSystem struct {
	config    TargetSystemConfig
	ids       *core.IdentifierPool
	targets   map[metadata.RenderTargetHandle]*metadata.RenderTarget
	lookup    map[string]metadata.RenderTargetHandle
	allocator TargetAllocator

	// transient targets handed out to the camera in flight and those waiting for reuse
	busyTransient []metadata.RenderTargetHandle
	idleTransient []metadata.RenderTargetHandle
}

func NewTargetSystem(config TargetSystemConfig) (*TargetSystem, error) {
	if config.Width == 0 || config.Height == 0 {
		err := fmt.Errorf("func NewTargetSystem - frame size must be > 0, got %dx%d", config.Width, config.Height)
		core.LogError(err.Error())
		return nil, err
	}
	ts := &TargetSystem{
		config:  config,
		ids:     core.NewIdentifierPool(config.MaxTargetCount),
		targets: make(map[metadata.RenderTargetHandle]*metadata.RenderTarget),
		lookup:  make(map[string]metadata.RenderTargetHandle),
	}
	// Default camera targets always exist.
	if _, err := ts.Create(metadata.RenderTargetConfig{Name: DEFAULT_COLOUR_TARGET_NAME, Scale: 1, Format: metadata.RENDER_TARGET_FORMAT_BGRA8}); err != nil {
		return nil, err
	}
	if _, err := ts.Create(metadata.RenderTargetConfig{Name: DEFAULT_DEPTH_TARGET_NAME, Scale: 1, Format: metadata.RENDER_TARGET_FORMAT_DEPTH32F}); err != nil {
		return nil, err
	}
	return ts, nil
}

// SetAllocator attaches a backend and creates the resources of every known target.
func (ts *TargetSystem) SetAllocator(allocator TargetAllocator) error {
	ts.allocator = allocator
	if allocator == nil {
		return nil
	}
	for _, target := range ts.targets {
		if err := allocator.CreateTarget(target); err != nil {
			return fmt.Errorf("create render target '%s': %w", target.Name, err)
		}
	}
	return nil
}

func (ts *TargetSystem) Shutdown() error {
	for handle := range ts.targets {
		if err := ts.Destroy(handle); err != nil {
			return err
		}
	}
	return nil
}

func (ts *TargetSystem) FrameSize() (uint32, uint32) {
	return ts.config.Width, ts.config.Height
}

// Create registers a named target and returns its handle.
func (ts *TargetSystem) Create(config metadata.RenderTargetConfig) (metadata.RenderTargetHandle, error) {
	if config.Name == "" {
		return metadata.TargetHandleNone, fmt.Errorf("render target requires a name")
	}
	if _, ok := ts.lookup[config.Name]; ok {
		return metadata.TargetHandleNone, fmt.Errorf("render target '%s' already exists", config.Name)
	}
	return ts.create(config, false)
}

// CreateTransient hands out an unnamed target living until ReleaseTransient. A
// target recycled by an earlier camera with the same format and scale is reused.
func (ts *TargetSystem) CreateTransient(format metadata.RenderTargetFormat, scale float32) (metadata.RenderTargetHandle, error) {
	i := slices.IndexFunc(ts.idleTransient, func(h metadata.RenderTargetHandle) bool {
		target := ts.targets[h]
		return target.Format == format && target.Scale == scale
	})
	if i >= 0 {
		handle := ts.idleTransient[i]
		ts.idleTransient = slices.Delete(ts.idleTransient, i, i+1)
		ts.busyTransient = append(ts.busyTransient, handle)
		return handle, nil
	}
	handle, err := ts.create(metadata.RenderTargetConfig{
		Name:   "transient." + uuid.NewString(),
		Scale:  scale,
		Format: format,
	}, true)
	if err != nil {
		return handle, err
	}
	ts.busyTransient = append(ts.busyTransient, handle)
	return handle, nil
}

// RecycleTransient makes every transient target handed out so far available to
// later CreateTransient calls of the same frame. It returns how many were recycled.
func (ts *TargetSystem) RecycleTransient() int {
	recycled := len(ts.busyTransient)
	ts.idleTransient = append(ts.idleTransient, ts.busyTransient...)
	ts.busyTransient = ts.busyTransient[:0]
	return recycled
}

func (ts *TargetSystem) create(config metadata.RenderTargetConfig, transient bool) (metadata.RenderTargetHandle, error) {
	if config.Format == metadata.RENDER_TARGET_FORMAT_UNDEFINED {
		return metadata.TargetHandleNone, fmt.Errorf("render target '%s' has no format", config.Name)
	}
	target := &metadata.RenderTarget{
		Name:      config.Name,
		Width:     config.Width,
		Height:    config.Height,
		Scale:     config.Scale,
		Format:    config.Format,
		Transient: transient,
	}
	ts.applyFrameSize(target)
	if target.Width == 0 || target.Height == 0 {
		return metadata.TargetHandleNone, fmt.Errorf("render target '%s' has no size", config.Name)
	}

	id, err := ts.ids.Acquire(target)
	if err != nil {
		return metadata.TargetHandleNone, err
	}
	target.Handle = metadata.RenderTargetHandle(id)

	if ts.allocator != nil {
		if err := ts.allocator.CreateTarget(target); err != nil {
			_ = ts.ids.Release(id)
			return metadata.TargetHandleNone, fmt.Errorf("create render target '%s': %w", target.Name, err)
		}
	}
	ts.targets[target.Handle] = target
	ts.lookup[target.Name] = target.Handle
	core.LogDebug("render target '%s' created as %s (%dx%d)", target.Name, target.Handle, target.Width, target.Height)
	return target.Handle, nil
}

func (ts *TargetSystem) Get(handle metadata.RenderTargetHandle) (*metadata.RenderTarget, error) {
	target, ok := ts.targets[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownTarget, handle)
	}
	return target, nil
}

// Handle looks a target up by name. An empty name resolves to TargetHandleNone.
func (ts *TargetSystem) Handle(name string) (metadata.RenderTargetHandle, error) {
	if name == "" {
		return metadata.TargetHandleNone, nil
	}
	handle, ok := ts.lookup[name]
	if !ok {
		return metadata.TargetHandleNone, fmt.Errorf("%w: '%s'", core.ErrUnknownTarget, name)
	}
	return handle, nil
}

func (ts *TargetSystem) Destroy(handle metadata.RenderTargetHandle) error {
	target, ok := ts.targets[handle]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownTarget, handle)
	}
	if ts.allocator != nil {
		ts.allocator.DestroyTarget(target)
	}
	delete(ts.targets, handle)
	delete(ts.lookup, target.Name)
	if target.Transient {
		isHandle := func(h metadata.RenderTargetHandle) bool { return h == handle }
		ts.busyTransient = slices.DeleteFunc(ts.busyTransient, isHandle)
		ts.idleTransient = slices.DeleteFunc(ts.idleTransient, isHandle)
	}
	return ts.ids.Release(uint32(handle))
}

// ReleaseTransient destroys every transient target and returns how many there were.
// Called once the frame using them has been submitted.
func (ts *TargetSystem) ReleaseTransient() int {
	released := 0
	for handle, target := range ts.targets {
		if !target.Transient {
			continue
		}
		if err := ts.Destroy(handle); err != nil {
			core.LogWarn("failed to release transient target '%s': %s", target.Name, err)
			continue
		}
		released++
	}
	return released
}

// Resize follows a new frame size, recreating every scaled target.
func (ts *TargetSystem) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	ts.config.Width = width
	ts.config.Height = height
	for _, target := range ts.targets {
		if target.Scale <= 0 {
			continue
		}
		if ts.allocator != nil {
			ts.allocator.DestroyTarget(target)
		}
		ts.applyFrameSize(target)
		if ts.allocator != nil {
			if err := ts.allocator.CreateTarget(target); err != nil {
				return fmt.Errorf("resize render target '%s': %w", target.Name, err)
			}
		}
	}
	return nil
}

func (ts *TargetSystem) applyFrameSize(target *metadata.RenderTarget) {
	if target.Scale <= 0 {
		return
	}
	target.Width = math.ScaleDimension(ts.config.Width, target.Scale)
	target.Height = math.ScaleDimension(ts.config.Height, target.Scale)
}
