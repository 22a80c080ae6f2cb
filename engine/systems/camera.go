package systems

import (
	"fmt"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

const DEFAULT_CAMERA_NAME = "default"

/** @brief A camera as configured: which targets it renders to and how it clears them. */
type Camera struct {
	Name         string
	RenderType   metadata.CameraRenderType
	ColourTarget string
	DepthTarget  string
	ClearFlags   metadata.RenderpassClearFlag
	ClearColour  math.Vec4
	/** @brief Overlay cameras rendered on top of this one, in order. Base cameras only. */
	Stack []string
}

func NewDefaultCamera() *Camera {
	return &Camera{
		Name:         DEFAULT_CAMERA_NAME,
		RenderType:   metadata.CAMERA_RENDER_TYPE_BASE,
		ColourTarget: DEFAULT_COLOUR_TARGET_NAME,
		DepthTarget:  DEFAULT_DEPTH_TARGET_NAME,
		ClearFlags:   metadata.RENDERPASS_CLEAR_ALL_FLAG,
		ClearColour:  math.NewVec4(0.0, 0.0, 0.2, 1.0),
	}
}

// cameraLookup counts the registration itself plus every in-flight render
// holding the camera.
type cameraLookup struct {
	camera         *Camera
	referenceCount uint32
	registered     bool
}

type CameraSystem struct {
	Config  *CameraSystemConfig
	targets *TargetSystem
	cameras map[string]*cameraLookup
	// A default, non-registered camera that always exists as a fallback.
	DefaultCamera *Camera
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/**
	 * @brief NOTE: The maximum number of cameras that can be managed by
	 * the system.
	 */
	MaxCameraCount uint16
}

func NewCameraSystem(config *CameraSystemConfig, targets *TargetSystem) (*CameraSystem, error) {
	if config.MaxCameraCount == 0 {
		err := fmt.Errorf("func NewCameraSystem - config.MaxCameraCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	if targets == nil {
		return nil, fmt.Errorf("func NewCameraSystem - a target system is required")
	}
	return &CameraSystem{
		Config:        config,
		targets:       targets,
		cameras:       make(map[string]*cameraLookup, config.MaxCameraCount),
		DefaultCamera: NewDefaultCamera(),
	}, nil
}

func (cs *CameraSystem) Shutdown() error {
	cs.cameras = make(map[string]*cameraLookup)
	return nil
}

// Register adds or replaces a camera.
func (cs *CameraSystem) Register(camera *Camera) error {
	if camera == nil || camera.Name == "" {
		return fmt.Errorf("camera requires a name")
	}
	if camera.Name == DEFAULT_CAMERA_NAME {
		cs.DefaultCamera = camera
		return nil
	}
	if existing, ok := cs.cameras[camera.Name]; ok {
		existing.camera = camera
		if !existing.registered {
			existing.registered = true
			existing.referenceCount++
		}
		return nil
	}
	if len(cs.cameras) >= int(cs.Config.MaxCameraCount) {
		err := fmt.Errorf("camera system cannot hold more than %d cameras, adjust the config to allow more", cs.Config.MaxCameraCount)
		core.LogError(err.Error())
		return err
	}
	cs.cameras[camera.Name] = &cameraLookup{camera: camera, referenceCount: 1, registered: true}
	return nil
}

// Unregister drops the registration of a camera. A camera still held by a
// render stays resolvable until its last Release.
func (cs *CameraSystem) Unregister(name string) {
	lookup, ok := cs.cameras[name]
	if !ok || !lookup.registered {
		return
	}
	lookup.registered = false
	cs.release(name, lookup)
}

// Names lists the registered cameras, the default one excluded.
func (cs *CameraSystem) Names() []string {
	names := make([]string, 0, len(cs.cameras))
	for name, lookup := range cs.cameras {
		if lookup.registered {
			names = append(names, name)
		}
	}
	return names
}

/**
 * @brief Acquires a camera by name, incrementing its reference counter.
 *
 * @param name The name of the camera to acquire.
 * @return The camera, or ErrUnknownCamera.
 */
func (cs *CameraSystem) Acquire(name string) (*Camera, error) {
	if name == DEFAULT_CAMERA_NAME {
		return cs.DefaultCamera, nil
	}
	lookup, ok := cs.cameras[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", core.ErrUnknownCamera, name)
	}
	lookup.referenceCount++
	return lookup.camera, nil
}

/**
 * @brief Releases a camera with the given name. When the counter reaches 0
 * the camera is forgotten.
 */
func (cs *CameraSystem) Release(name string) {
	if name == DEFAULT_CAMERA_NAME {
		return
	}
	lookup, ok := cs.cameras[name]
	if !ok {
		core.LogWarn("CameraSystemRelease failed lookup for '%s'. Nothing was done.", name)
		return
	}
	cs.release(name, lookup)
}

func (cs *CameraSystem) release(name string, lookup *cameraLookup) {
	if lookup.referenceCount > 0 {
		lookup.referenceCount--
	}
	if lookup.referenceCount == 0 {
		delete(cs.cameras, name)
	}
}

func (cs *CameraSystem) GetDefault() *Camera {
	return cs.DefaultCamera
}

func (cs *CameraSystem) get(name string) (*Camera, error) {
	if name == DEFAULT_CAMERA_NAME {
		return cs.DefaultCamera, nil
	}
	lookup, ok := cs.cameras[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", core.ErrUnknownCamera, name)
	}
	return lookup.camera, nil
}

// Resolve returns the target handles and clear settings of a camera. Overlay
// cameras never clear colour.
func (cs *CameraSystem) Resolve(name string) (metadata.CameraTargets, error) {
	camera, err := cs.get(name)
	if err != nil {
		return metadata.CameraTargets{}, err
	}
	colour, err := cs.targets.Handle(camera.ColourTarget)
	if err != nil {
		return metadata.CameraTargets{}, fmt.Errorf("camera '%s' colour target: %w", name, err)
	}
	depth, err := cs.targets.Handle(camera.DepthTarget)
	if err != nil {
		return metadata.CameraTargets{}, fmt.Errorf("camera '%s' depth target: %w", name, err)
	}
	flags := camera.ClearFlags
	if camera.RenderType == metadata.CAMERA_RENDER_TYPE_OVERLAY {
		flags &^= metadata.RENDERPASS_CLEAR_COLOUR_BUFFER_FLAG
	}
	return metadata.CameraTargets{
		Colour:      colour,
		Depth:       depth,
		ClearFlags:  flags,
		ClearColour: camera.ClearColour,
		RenderType:  camera.RenderType,
	}, nil
}

// StackOf returns the base camera followed by its overlays.
func (cs *CameraSystem) StackOf(name string) ([]string, error) {
	camera, err := cs.get(name)
	if err != nil {
		return nil, err
	}
	if camera.RenderType != metadata.CAMERA_RENDER_TYPE_BASE {
		return nil, fmt.Errorf("camera '%s' is an overlay and cannot start a stack", name)
	}
	stack := make([]string, 0, len(camera.Stack)+1)
	stack = append(stack, name)
	for _, overlay := range camera.Stack {
		o, err := cs.get(overlay)
		if err != nil {
			return nil, fmt.Errorf("stack of camera '%s': %w", name, err)
		}
		if o.RenderType != metadata.CAMERA_RENDER_TYPE_OVERLAY {
			core.LogWarn("camera '%s' in the stack of '%s' is not an overlay, skipping it", overlay, name)
			continue
		}
		stack = append(stack, overlay)
	}
	return stack, nil
}
