/*
Renders the configured camera stacks headless (or through Vulkan) for a number
of frames, reloading pipeline.toml when it changes.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/spaghettifunk/anima-passes/engine"
	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/testbed"
)

func main() {
	pipeline := flag.String("pipeline", "assets/pipeline.toml", "pipeline configuration file, empty for the defaults")
	watch := flag.Bool("watch", false, "reload the pipeline file when it changes")
	frames := flag.Int("frames", 0, "frames to render, overrides the pipeline file when > 0")
	forever := flag.Bool("forever", false, "render until interrupted")
	flag.Parse()

	core.SetLogStructured(!term.IsTerminal(int(os.Stderr.Fd())))

	tb := testbed.NewTestGame(&engine.ApplicationConfig{
		PipelinePath:  *pipeline,
		WatchPipeline: *watch,
		Frames:        *frames,
		Unbounded:     *forever,
	})

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("failed to create the engine: %s", err)
	}
	tb.Attach(e.Events())

	if err := e.Initialize(); err != nil {
		core.LogFatal("failed to initialize the engine: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		e.Stop()
		cancel()
	}()

	// run engine
	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown failed: %s", err)
	}
	if runErr != nil {
		core.LogFatal("engine stopped: %s", runErr)
	}
}
