package core

import "sync"

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * data.(*ResizeEvent)
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// The pipeline configuration file changed on disk and was parsed again.
	/* Context usage:
	 * data is the new *assets.PipelineConfig snapshot.
	 */
	EVENT_CODE_PIPELINE_CONFIG_RELOADED SystemEventCode = 0x09

	// A camera finished rendering.
	/* Context usage:
	 * data.(FrameStats)
	 */
	EVENT_CODE_CAMERA_RENDERED SystemEventCode = 0x0A

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

type ResizeEvent struct {
	Width  uint32
	Height uint32
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventSystem dispatches events to registered listeners in registration order.
// It is safe to fire events from the config watcher goroutine.
type EventSystem struct {
	mutex      sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
}

func NewEventSystem() *EventSystem {
	return &EventSystem{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
}

func (es *EventSystem) Shutdown() {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	es.registered = make(map[SystemEventCode][]*registeredEvent)
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listeners will not be registered again and will cause this to return false.
 */
func (es *EventSystem) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if code < 0 || code >= MAX_MESSAGE_CODES || onEvent == nil {
		return false
	}
	es.mutex.Lock()
	defer es.mutex.Unlock()

	for _, e := range es.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	es.registered[code] = append(es.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// Unregister removes the listener registered for code. Returns false if none was found.
func (es *EventSystem) Unregister(code SystemEventCode, listener interface{}) bool {
	es.mutex.Lock()
	defer es.mutex.Unlock()

	events := es.registered[code]
	for i, e := range events {
		if e.listener == listener {
			es.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 */
func (es *EventSystem) Fire(code SystemEventCode, data interface{}) bool {
	es.mutex.RLock()
	events := make([]*registeredEvent, len(es.registered[code]))
	copy(events, es.registered[code])
	es.mutex.RUnlock()

	context := EventContext{Type: code, Data: data}
	for _, e := range events {
		if e.callback(context) {
			return true
		}
	}
	return false
}
