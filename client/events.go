package client

import "sync"

// EventHandler receives application events emitted by the Client, per
// spec.md §9's "callback-style emitter hierarchy" re-architecture note:
// an explicit subscribe/unsubscribe interface rather than an inherited
// event-bus base class.
type EventHandler func(name string, payload map[string]interface{})

type appEmitter struct {
	mu       sync.Mutex
	handlers map[string][]*appHandlerSlot
}

type appHandlerSlot struct{ fn EventHandler }

func newAppEmitter() appEmitter {
	return appEmitter{handlers: make(map[string][]*appHandlerSlot)}
}

// Subscribe registers handler for every event named name and returns a
// function that unregisters it.
func (e *appEmitter) Subscribe(name string, handler EventHandler) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot := &appHandlerSlot{fn: handler}
	e.handlers[name] = append(e.handlers[name], slot)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		slots := e.handlers[name]
		for i, s := range slots {
			if s == slot {
				e.handlers[name] = append(slots[:i], slots[i+1:]...)
				break
			}
		}
	}
}

func (e *appEmitter) emit(name string, payload map[string]interface{}) {
	e.mu.Lock()
	slots := append([]*appHandlerSlot(nil), e.handlers[name]...)
	e.mu.Unlock()

	for _, s := range slots {
		s.fn(name, payload)
	}
}

// Application event names, per spec.md §4.8.
const (
	EventClientBooted        = "CLIENT_BOOTED"
	EventBCAddress           = "BC_ADDRESS"
	EventSysTopicSubscribe   = "CLIENT_SYS_TOPIC_SUBSCRIBE"
	EventEngineRegistered    = "ENGINE_REGISTERED"
	EventEngineDeregistered  = "ENGINE_DEREGISTERED"
	EventEngineOnline        = "ENGINE_ONLINE"
	EventEngineOffline       = "ENGINE_OFFLINE"
)
