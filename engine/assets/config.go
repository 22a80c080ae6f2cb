package assets

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/image/colornames"

	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-passes/engine/renderer/views"
	"github.com/spaghettifunk/anima-passes/engine/systems"
)

type ApplicationConfig struct {
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
	Backend  string `toml:"backend"`
	// Frames to render before exiting, 0 runs until interrupted.
	Frames int    `toml:"frames"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type SchedulerConfig struct {
	Thresholds []int32 `toml:"thresholds"`
	MaxPasses  int     `toml:"max_passes"`
}

type TargetConfig struct {
	Name   string  `toml:"name"`
	Width  uint32  `toml:"width"`
	Height uint32  `toml:"height"`
	Scale  float32 `toml:"scale"`
	Format string  `toml:"format"`
}

type CameraConfig struct {
	Name         string `toml:"name"`
	Type         string `toml:"type"`
	Clear        string `toml:"clear"`
	ColourTarget string `toml:"colour_target"`
	DepthTarget  string `toml:"depth_target"`
	// Either four floats in [0, 1] or a name from golang.org/x/image/colornames.
	ClearColour     []float32 `toml:"clear_colour"`
	ClearColourName string    `toml:"clear_colour_name"`
	Stack           []string  `toml:"stack"`
}

type FeaturesConfig struct {
	Shadows      bool `toml:"shadows"`
	DepthNormals bool `toml:"depth_normals"`
	GBuffer      bool `toml:"gbuffer"`
	Skybox       bool `toml:"skybox"`
	Transparent  bool `toml:"transparent"`
	Bloom        bool `toml:"bloom"`
	UI           bool `toml:"ui"`

	ShadowCasters    uint32 `toml:"shadow_casters"`
	OpaqueDraws      uint32 `toml:"opaque_draws"`
	TransparentDraws uint32 `toml:"transparent_draws"`
	UIDraws          uint32 `toml:"ui_draws"`
}

type TracingConfig struct {
	Endpoint string `toml:"endpoint"`
	Service  string `toml:"service"`
}

/** @brief Everything read from pipeline.toml. Treated as immutable once loaded. */
type PipelineConfig struct {
	Application ApplicationConfig `toml:"application"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Targets     []TargetConfig    `toml:"targets"`
	Cameras     []CameraConfig    `toml:"cameras"`
	Features    FeaturesConfig    `toml:"features"`
	Tracing     TracingConfig     `toml:"tracing"`
}

func DefaultPipelineConfig() *PipelineConfig {
	defaults := views.DefaultFeatureConfig()
	return &PipelineConfig{
		Application: ApplicationConfig{
			Name:     "anima-passes",
			LogLevel: "info",
			Backend:  "headless",
			Frames:   3,
			Width:    1280,
			Height:   720,
		},
		Scheduler: SchedulerConfig{
			Thresholds: []int32{
				int32(systems.DefaultBlockThresholds[0]),
				int32(systems.DefaultBlockThresholds[1]),
				int32(systems.DefaultBlockThresholds[2]),
			},
			MaxPasses: 32,
		},
		Cameras: []CameraConfig{
			{
				Name:         systems.DEFAULT_CAMERA_NAME,
				Type:         "base",
				Clear:        "both",
				ColourTarget: systems.DEFAULT_COLOUR_TARGET_NAME,
				DepthTarget:  systems.DEFAULT_DEPTH_TARGET_NAME,
				ClearColour:  []float32{0.0, 0.0, 0.2, 1.0},
			},
		},
		Features: FeaturesConfig{
			Shadows:          defaults.Shadows,
			Skybox:           defaults.Skybox,
			Transparent:      defaults.Transparent,
			UI:               defaults.UI,
			ShadowCasters:    defaults.ShadowCasters,
			OpaqueDraws:      defaults.OpaqueDraws,
			TransparentDraws: defaults.TransparentDraws,
			UIDraws:          defaults.UIDraws,
		},
		Tracing: TracingConfig{
			Service: "anima-passes",
		},
	}
}

// LoadPipelineConfig reads and validates a pipeline file.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config, err := ParsePipelineConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// ParsePipelineConfig decodes data on top of the defaults. Unknown keys are rejected.
func ParsePipelineConfig(data []byte) (*PipelineConfig, error) {
	config := DefaultPipelineConfig()
	// lists given in the file replace the defaults
	config.Cameras = nil
	config.Scheduler.Thresholds = nil

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(config); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, column := decodeErr.Position()
			return nil, fmt.Errorf("line %d, column %d: %w", row, column, err)
		}
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, fmt.Errorf("unknown keys:\n%s", strictErr.String())
		}
		return nil, err
	}
	defaults := DefaultPipelineConfig()
	if len(config.Cameras) == 0 {
		config.Cameras = defaults.Cameras
	}
	if len(config.Scheduler.Thresholds) == 0 {
		config.Scheduler.Thresholds = defaults.Scheduler.Thresholds
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *PipelineConfig) Validate() error {
	if _, err := core.ParseLogLevel(c.Application.LogLevel); err != nil {
		return fmt.Errorf("application.log_level: %w", err)
	}
	if c.Application.Frames < 0 {
		return fmt.Errorf("application.frames must be >= 0")
	}
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return fmt.Errorf("application width and height must be > 0")
	}
	if _, err := c.Scheduler.BlockThresholds(); err != nil {
		return fmt.Errorf("scheduler.thresholds: %w", err)
	}

	targets := make(map[string]bool, len(c.Targets)+2)
	targets[systems.DEFAULT_COLOUR_TARGET_NAME] = true
	targets[systems.DEFAULT_DEPTH_TARGET_NAME] = true
	for i, t := range c.Targets {
		if _, err := t.RenderTargetConfig(); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
		if targets[t.Name] {
			return fmt.Errorf("targets[%d]: duplicate target '%s'", i, t.Name)
		}
		targets[t.Name] = true
	}

	cameras := make(map[string]string, len(c.Cameras))
	for i, cam := range c.Cameras {
		camera, err := cam.Camera()
		if err != nil {
			return fmt.Errorf("cameras[%d]: %w", i, err)
		}
		if _, ok := cameras[camera.Name]; ok {
			return fmt.Errorf("cameras[%d]: duplicate camera '%s'", i, camera.Name)
		}
		for _, name := range []string{camera.ColourTarget, camera.DepthTarget} {
			if name != "" && !targets[name] {
				return fmt.Errorf("cameras[%d]: unknown target '%s'", i, name)
			}
		}
		cameras[camera.Name] = cam.Type
	}
	for _, cam := range c.Cameras {
		for _, overlay := range cam.Stack {
			kind, ok := cameras[overlay]
			if !ok {
				return fmt.Errorf("camera '%s' stacks unknown camera '%s'", cam.Name, overlay)
			}
			if kind != "overlay" {
				return fmt.Errorf("camera '%s' stacks '%s' which is not an overlay", cam.Name, overlay)
			}
		}
	}
	return nil
}

// BaseCameras returns the names of the cameras that start a stack.
func (c *PipelineConfig) BaseCameras() []string {
	names := make([]string, 0, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.Type == "" || cam.Type == "base" {
			names = append(names, cam.Name)
		}
	}
	return names
}

func (s SchedulerConfig) BlockThresholds() (systems.BlockThresholds, error) {
	var thresholds systems.BlockThresholds
	if len(s.Thresholds) != len(thresholds) {
		return thresholds, fmt.Errorf("%w: expected %d values, got %d", core.ErrInvalidThresholds, len(thresholds), len(s.Thresholds))
	}
	for i, value := range s.Thresholds {
		thresholds[i] = metadata.RenderPassEvent(value)
	}
	return thresholds, thresholds.Validate()
}

func (t TargetConfig) RenderTargetConfig() (metadata.RenderTargetConfig, error) {
	if t.Name == "" {
		return metadata.RenderTargetConfig{}, fmt.Errorf("target requires a name")
	}
	format, err := metadata.ParseRenderTargetFormat(strings.ToLower(t.Format))
	if err != nil {
		return metadata.RenderTargetConfig{}, err
	}
	if t.Scale <= 0 && (t.Width == 0 || t.Height == 0) {
		return metadata.RenderTargetConfig{}, fmt.Errorf("target '%s' needs either a scale or a width and height", t.Name)
	}
	return metadata.RenderTargetConfig{
		Name:   t.Name,
		Width:  t.Width,
		Height: t.Height,
		Scale:  t.Scale,
		Format: format,
	}, nil
}

func (c CameraConfig) Camera() (*systems.Camera, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("camera requires a name")
	}
	camera := &systems.Camera{
		Name:         c.Name,
		ColourTarget: c.ColourTarget,
		DepthTarget:  c.DepthTarget,
		Stack:        c.Stack,
	}
	switch c.Type {
	case "", "base":
		camera.RenderType = metadata.CAMERA_RENDER_TYPE_BASE
	case "overlay":
		camera.RenderType = metadata.CAMERA_RENDER_TYPE_OVERLAY
		if len(c.Stack) > 0 {
			return nil, fmt.Errorf("overlay camera '%s' cannot have a stack", c.Name)
		}
	default:
		return nil, fmt.Errorf("camera '%s' has unknown type '%s'", c.Name, c.Type)
	}

	flags, err := metadata.ParseClearFlag(strings.ToLower(c.Clear))
	if err != nil {
		return nil, fmt.Errorf("camera '%s': %w", c.Name, err)
	}
	camera.ClearFlags = flags

	colour, err := c.clearColour()
	if err != nil {
		return nil, fmt.Errorf("camera '%s': %w", c.Name, err)
	}
	camera.ClearColour = colour
	return camera, nil
}

func (c CameraConfig) clearColour() (math.Vec4, error) {
	if c.ClearColourName != "" {
		if len(c.ClearColour) > 0 {
			return math.Vec4{}, fmt.Errorf("clear_colour and clear_colour_name are mutually exclusive")
		}
		rgba, ok := colornames.Map[strings.ToLower(c.ClearColourName)]
		if !ok {
			return math.Vec4{}, fmt.Errorf("unknown colour name '%s'", c.ClearColourName)
		}
		return math.NewVec4FromRGBA8(rgba.R, rgba.G, rgba.B, rgba.A), nil
	}
	switch len(c.ClearColour) {
	case 0:
		return math.NewVec4(0, 0, 0, 1), nil
	case 3:
		return math.NewVec4(c.ClearColour[0], c.ClearColour[1], c.ClearColour[2], 1).Clamped(0, 1), nil
	case 4:
		return math.NewVec4(c.ClearColour[0], c.ClearColour[1], c.ClearColour[2], c.ClearColour[3]).Clamped(0, 1), nil
	default:
		return math.Vec4{}, fmt.Errorf("clear_colour needs 3 or 4 components, got %d", len(c.ClearColour))
	}
}

func (f FeaturesConfig) FeatureConfig() views.FeatureConfig {
	return views.FeatureConfig{
		Shadows:          f.Shadows,
		DepthNormals:     f.DepthNormals,
		GBuffer:          f.GBuffer,
		Skybox:           f.Skybox,
		Transparent:      f.Transparent,
		UI:               f.UI,
		ShadowCasters:    f.ShadowCasters,
		OpaqueDraws:      f.OpaqueDraws,
		TransparentDraws: f.TransparentDraws,
		UIDraws:          f.UIDraws,
	}
}
