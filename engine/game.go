package engine

import (
	"github.com/spaghettifunk/anima-passes/engine/systems"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	SystemManager     *systems.SystemManager
	State             interface{}
	FnBoot            Boot
	FnInitialize      Initialize
	FnUpdate          Update
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Boot func() error
type Initialize func() error
type Update func(frameNumber uint64, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
