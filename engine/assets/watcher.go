package assets

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-passes/engine/core"
)

/**
 * @brief Watches a pipeline file and publishes every valid new version. The
 * engine picks snapshots up between frames; a broken file is reported and the
 * previous snapshot stays current.
 */
type ConfigWatcher struct {
	path   string
	events *core.EventSystem

	mutex      sync.RWMutex
	current    *PipelineConfig
	lastLoaded time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
	updates  chan *PipelineConfig
	errors   chan error
}

// NewConfigWatcher loads path once. Watching starts with Start.
func NewConfigWatcher(path string, events *core.EventSystem) (*ConfigWatcher, error) {
	config, err := LoadPipelineConfig(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ConfigWatcher{
		path:       filepath.Clean(path),
		events:     events,
		current:    config,
		lastLoaded: time.Now(),
		fsnotify:   fsWatch,
		updates:    make(chan *PipelineConfig, 1),
		errors:     make(chan error, 1),
		done:       make(chan struct{}),
	}, nil
}

// Start watches the directory holding the file, editors often replace files
// instead of writing them in place.
func (cw *ConfigWatcher) Start() error {
	if cw.isClosed {
		return errors.New("config watcher already closed")
	}
	if err := cw.fsnotify.Add(filepath.Dir(cw.path)); err != nil {
		return err
	}
	cw.wg.Add(1)
	go cw.start()
	return nil
}

func (cw *ConfigWatcher) Current() *PipelineConfig {
	cw.mutex.RLock()
	defer cw.mutex.RUnlock()
	return cw.current
}

func (cw *ConfigWatcher) LastLoaded() time.Time {
	cw.mutex.RLock()
	defer cw.mutex.RUnlock()
	return cw.lastLoaded
}

// Updates delivers the newest valid snapshot. Older unread snapshots are dropped.
func (cw *ConfigWatcher) Updates() <-chan *PipelineConfig {
	return cw.updates
}

func (cw *ConfigWatcher) Errors() <-chan error {
	return cw.errors
}

func (cw *ConfigWatcher) Close() error {
	if cw.isClosed {
		return nil
	}
	cw.isClosed = true
	close(cw.done)
	// nothing to wait for when Start never ran
	cw.wg.Wait()
	err := cw.fsnotify.Close()
	close(cw.updates)
	close(cw.errors)
	return err
}

func (cw *ConfigWatcher) start() {
	defer cw.wg.Done()
	for {
		select {
		case e, ok := <-cw.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != cw.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				cw.reload()
			}

		case e, ok := <-cw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(e.Error())
			cw.report(e)

		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) reload() {
	config, err := LoadPipelineConfig(cw.path)
	if err != nil {
		core.LogError("pipeline config not reloaded: %s", err)
		cw.report(err)
		return
	}

	cw.mutex.Lock()
	cw.current = config
	cw.lastLoaded = time.Now()
	cw.mutex.Unlock()

	// replace a snapshot nobody picked up yet
	select {
	case <-cw.updates:
	default:
	}
	cw.updates <- config

	core.LogInfo("pipeline config reloaded from %s", cw.path)
	if cw.events != nil {
		cw.events.Fire(core.EVENT_CODE_PIPELINE_CONFIG_RELOADED, config)
	}
}

func (cw *ConfigWatcher) report(err error) {
	select {
	case cw.errors <- err:
	default:
	}
}
