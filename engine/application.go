package engine

import (
	"github.com/spaghettifunk/anima-passes/engine/renderer"
)

type ApplicationConfig struct {
	// The application name, overrides the one in the pipeline file when set.
	Name string
	// Path to the pipeline file. When empty the built-in defaults are used.
	PipelinePath string
	// Reload the pipeline file when it changes on disk.
	WatchPipeline bool
	// Frames to render before Run returns. Overrides the pipeline file when > 0.
	Frames int
	// Render until Stop is called, whatever the frame count.
	Unbounded bool
	// Device replaces the configured backend. Used by tests and tools that
	// want to inspect the bind stream.
	Device renderer.Device
}
