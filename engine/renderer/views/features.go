package views

import (
	"fmt"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-passes/engine/systems"
)

const (
	FORWARD_FEATURE_NAME = "Feature.Builtin.Forward"
	BLOOM_FEATURE_NAME   = "Feature.Builtin.Bloom"

	SHADOW_MAP_TARGET_NAME    = "shadow.map"
	DEPTH_NORMALS_TARGET_NAME = "prepass.normals"
	GBUFFER_MATERIAL_TARGET   = "gbuffer.material"
	GBUFFER_NORMALS_TARGET    = "gbuffer.normals"

	SHADOW_MAP_SIZE = 2048
)

// The bloom target is half the frame size.
const BLOOM_TARGET_SCALE float32 = 0.5

/** @brief Which built-in passes the forward feature contributes. */
type FeatureConfig struct {
	Shadows      bool
	DepthNormals bool
	GBuffer      bool
	Skybox       bool
	Transparent  bool
	UI           bool

	ShadowCasters    uint32
	OpaqueDraws      uint32
	TransparentDraws uint32
	UIDraws          uint32
}

func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		Shadows:          true,
		Skybox:           true,
		Transparent:      true,
		UI:               true,
		ShadowCasters:    16,
		OpaqueDraws:      64,
		TransparentDraws: 8,
		UIDraws:          4,
	}
}

/**
 * @brief Contributes the world passes. Base cameras get the full set, overlay
 * cameras only what composites on top: transparents and UI.
 */
type ForwardFeature struct {
	config FeatureConfig

	shadow       *ShadowCasterPass
	depthNormals *DepthNormalsPass
	gbuffer      *GBufferPass
	opaque       *OpaquePass
	skybox       *SkyboxPass
	transparent  *TransparentPass
	ui           *UIPass
}

// NewForwardFeature registers the persistent targets the enabled passes need.
func NewForwardFeature(config FeatureConfig, targets *systems.TargetSystem) (*ForwardFeature, error) {
	f := &ForwardFeature{
		config: config,
		opaque: NewOpaquePass(config.OpaqueDraws),
	}
	if config.Shadows {
		shadowMap, err := targetOrCreate(targets, metadata.RenderTargetConfig{
			Name:   SHADOW_MAP_TARGET_NAME,
			Width:  SHADOW_MAP_SIZE,
			Height: SHADOW_MAP_SIZE,
			Format: metadata.RENDER_TARGET_FORMAT_DEPTH32F,
		})
		if err != nil {
			return nil, err
		}
		f.shadow = NewShadowCasterPass(shadowMap, config.ShadowCasters)
	}
	if config.DepthNormals {
		normals, err := targetOrCreate(targets, metadata.RenderTargetConfig{
			Name:   DEPTH_NORMALS_TARGET_NAME,
			Scale:  1,
			Format: metadata.RENDER_TARGET_FORMAT_RGBA16F,
		})
		if err != nil {
			return nil, err
		}
		f.depthNormals = NewDepthNormalsPass(normals, config.OpaqueDraws)
	}
	if config.GBuffer {
		material, err := targetOrCreate(targets, metadata.RenderTargetConfig{
			Name:   GBUFFER_MATERIAL_TARGET,
			Scale:  1,
			Format: metadata.RENDER_TARGET_FORMAT_RGBA8,
		})
		if err != nil {
			return nil, err
		}
		normals, err := targetOrCreate(targets, metadata.RenderTargetConfig{
			Name:   GBUFFER_NORMALS_TARGET,
			Scale:  1,
			Format: metadata.RENDER_TARGET_FORMAT_RGBA16F,
		})
		if err != nil {
			return nil, err
		}
		f.gbuffer, err = NewGBufferPass([]metadata.RenderTargetHandle{material, normals}, config.OpaqueDraws)
		if err != nil {
			return nil, err
		}
	}
	if config.Skybox {
		f.skybox = NewSkyboxPass()
	}
	if config.Transparent {
		f.transparent = NewTransparentPass(config.TransparentDraws)
	}
	if config.UI {
		f.ui = NewUIPass(config.UIDraws)
	}
	return f, nil
}

func (f *ForwardFeature) Name() string {
	return FORWARD_FEATURE_NAME
}

func (f *ForwardFeature) AddRenderPasses(frame *metadata.FrameDescriptor) []systems.Pass {
	passes := make([]systems.Pass, 0, 7)
	if frame.RenderType == metadata.CAMERA_RENDER_TYPE_BASE {
		if f.shadow != nil {
			passes = append(passes, f.shadow)
		}
		if f.depthNormals != nil {
			passes = append(passes, f.depthNormals)
		}
		if f.gbuffer != nil {
			passes = append(passes, f.gbuffer)
		}
		passes = append(passes, f.opaque)
		if f.skybox != nil {
			passes = append(passes, f.skybox)
		}
	}
	if f.transparent != nil {
		passes = append(passes, f.transparent)
	}
	if f.ui != nil {
		passes = append(passes, f.ui)
	}
	return passes
}

/**
 * @brief Post-processing: a bloom pass into a per-frame transient target and a
 * composite back into the camera colour. The engine releases the transient
 * targets at the end of every frame.
 */
type BloomFeature struct {
	targets   *systems.TargetSystem
	bloom     *BloomPass
	composite *CompositePass
}

func NewBloomFeature(targets *systems.TargetSystem) *BloomFeature {
	return &BloomFeature{
		targets:   targets,
		bloom:     NewBloomPass(metadata.TargetHandleNone),
		composite: NewCompositePass(),
	}
}

func (f *BloomFeature) Name() string {
	return BLOOM_FEATURE_NAME
}

func (f *BloomFeature) AddRenderPasses(frame *metadata.FrameDescriptor) []systems.Pass {
	if frame.RenderType != metadata.CAMERA_RENDER_TYPE_BASE {
		return nil
	}
	target, err := f.targets.CreateTransient(metadata.RENDER_TARGET_FORMAT_RGBA16F, BLOOM_TARGET_SCALE)
	if err != nil {
		core.LogWarn("bloom disabled for camera '%s': %s", frame.CameraName, err)
		return nil
	}
	f.bloom.SetTarget(target)
	return []systems.Pass{f.bloom, f.composite}
}

func targetOrCreate(targets *systems.TargetSystem, config metadata.RenderTargetConfig) (metadata.RenderTargetHandle, error) {
	if handle, err := targets.Handle(config.Name); err == nil {
		return handle, nil
	}
	handle, err := targets.Create(config)
	if err != nil {
		return metadata.TargetHandleNone, fmt.Errorf("feature target '%s': %w", config.Name, err)
	}
	return handle, nil
}
