package state

import (
	"context"
	"sync"
)

// Event is a single notification posted by the state manager to anyone
// subscribed to its name. Payload's concrete type depends on the event
// name (documented alongside the Event* constants in types.go).
type Event struct {
	Name    string
	Payload interface{}
}

// Handler receives emitted events.
type Handler func(Event)

// Manager is the contract both backends satisfy. Implementations may be
// swapped at construction time without the rest of the client noticing;
// see state.NewInProcess and state.NewExternal.
type Manager interface {
	// Heartbeats / universe.
	NodeInfoUpdate(ctx context.Context, address string, hb HeartbeatSnapshot) error
	GetNodeInfo(ctx context.Context, address string) (HeartbeatSnapshot, bool)
	GetUniverse(ctx context.Context) map[string]int64
	MarkAsSeen(ctx context.Context, address string, tsMs int64)

	// Supervisor network snapshots.
	UpdateNetworkSnapshot(ctx context.Context, supervisor string, payload map[string]interface{}) error
	GetNetworkSnapshot(ctx context.Context, supervisor string) (SupervisorSnapshot, bool)
	GetNetworkSupervisors(ctx context.Context) []string

	// Cross-worker / cross-process broadcasts.
	BroadcastUpdateFleet(ctx context.Context, delta FleetDelta) error
	BroadcastUpdateAddresses(ctx context.Context, update AddressUpdate) error
	BroadcastRequestID(ctx context.Context, requestID string, watches []string, inboxID string) error
	BroadcastIgnoreRequestID(ctx context.Context, requestID string, watches []string, inboxID string) error
	BroadcastPayloadStickySession(ctx context.Context, stickyID, inboxID string) error

	// Subscribe registers handler for every Event named name, returning an
	// unsubscribe function.
	Subscribe(name string, handler Handler) (unsubscribe func())

	// Close releases backend resources (cache connections, tickers).
	Close() error
}

// emitter is embedded by both backends to provide the subscribe/emit
// primitive described in spec.md §9's re-architecture note for the
// callback-style emitter hierarchy.
type emitter struct {
	mu       sync.Mutex
	handlers map[string][]*handlerSlot
}

type handlerSlot struct {
	fn Handler
}

func newEmitter() emitter {
	return emitter{handlers: make(map[string][]*handlerSlot)}
}

func (e *emitter) subscribe(name string, h Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot := &handlerSlot{fn: h}
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

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	slots := append([]*handlerSlot(nil), e.handlers[ev.Name]...)
	e.mu.Unlock()

	for _, s := range slots {
		s.fn(ev)
	}
}
