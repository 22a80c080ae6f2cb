package testbed

import (
	"fmt"

	"github.com/spaghettifunk/anima-passes/engine"
	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-passes/engine/systems"
)

type TestGame struct {
	*engine.Game
	events *core.EventSystem
}

type gameState struct {
	width  uint32
	height uint32

	blocks  map[systems.RenderPassBlock]int
	cameras int
	binds   int
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State: &gameState{
				blocks: make(map[systems.RenderPassBlock]int),
			},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

// Attach hands the game the engine event bus. Must be called before Initialize.
func (g *TestGame) Attach(events *core.EventSystem) {
	g.events = events
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers")
	}

	g.SystemManager.FrameScheduler.SetBlockObserver(g)
	if g.events != nil {
		g.events.Register(core.EVENT_CODE_CAMERA_RENDERED, g, g.gameOnEvent)
	}
	return nil
}

func (g *TestGame) Update(frameNumber uint64, deltaTime float64) error {
	if frameNumber%60 == 0 {
		metrics := g.SystemManager.FrameScheduler.Metrics()
		core.LogInfo("frame %d: dt=%.4fs, average camera render %s", frameNumber, deltaTime, metrics.Average())
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	core.LogInfo("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	core.LogInfo("testbed rendered %d cameras with %d binds", state.cameras, state.binds)
	for block := systems.RENDER_PASS_BLOCK_BEFORE_RENDERING; block < systems.RENDER_PASS_BLOCK_COUNT; block++ {
		core.LogDebug("block %s entered %d times", block, state.blocks[block])
	}
	return nil
}

// BeginBlock is where per-block global state would be set up, e.g. lights before
// the opaque block.
func (g *TestGame) BeginBlock(block systems.RenderPassBlock, frame *metadata.FrameDescriptor) {
	state := g.State.(*gameState)
	state.blocks[block]++
	if block == systems.RENDER_PASS_BLOCK_MAIN_RENDERING_OPAQUE {
		core.LogDebug("setting up lights for camera '%s'", frame.CameraName)
	}
}

func (g *TestGame) EndBlock(block systems.RenderPassBlock, frame *metadata.FrameDescriptor) {}

func (g *TestGame) gameOnEvent(context core.EventContext) bool {
	state := g.State.(*gameState)
	if context.Type == core.EVENT_CODE_CAMERA_RENDERED {
		if stats, ok := context.Data.(core.FrameStats); ok {
			state.cameras++
			state.binds += stats.BindCalls
		}
	}
	return false
}
