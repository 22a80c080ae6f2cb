package systems

import (
	"github.com/spaghettifunk/anima-passes/engine/core"
	"github.com/spaghettifunk/anima-passes/engine/renderer"
)

type SystemManagerConfig struct {
	Targets   TargetSystemConfig
	Cameras   CameraSystemConfig
	Scheduler FrameSchedulerConfig
}

// SystemManager owns the systems needed to render cameras.
type SystemManager struct {
	TargetSystem   *TargetSystem
	CameraSystem   *CameraSystem
	FrameScheduler *FrameScheduler
}

func NewSystemManager(config SystemManagerConfig, r *renderer.Renderer) (*SystemManager, error) {
	ts, err := NewTargetSystem(config.Targets)
	if err != nil {
		return nil, err
	}
	cs, err := NewCameraSystem(&config.Cameras, ts)
	if err != nil {
		return nil, err
	}
	if config.Scheduler.Transients == nil {
		config.Scheduler.Transients = ts
	}
	fs, err := NewFrameScheduler(config.Scheduler, r)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		TargetSystem:   ts,
		CameraSystem:   cs,
		FrameScheduler: fs,
	}, nil
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.CameraSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.TargetSystem.Shutdown(); err != nil {
		return err
	}
	core.LogDebug("systems shut down after %d camera renders", sm.FrameScheduler.Metrics().Frames())
	return nil
}
