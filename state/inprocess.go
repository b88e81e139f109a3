package state

import (
	"context"
	"sync"
	"time"
)

// InProcess is the single-process Manager backend: everything lives in
// local maps, broadcasts post events directly to in-process subscribers,
// and there is no cross-process fan-out. Grounded on the map +
// sync.RWMutex + time.Ticker shape used for session bookkeeping
// elsewhere in this codebase.
type InProcess struct {
	emitter

	mu          sync.RWMutex
	heartbeats  map[string]HeartbeatSnapshot
	universe    map[string]int64
	supervisors map[string]SupervisorSnapshot

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// NewInProcess creates an in-process state manager with a background
// sweep that evicts entries past their notional TTL, mirroring the
// external backend's expiry semantics closely enough that application
// code observes the same behavior regardless of backend.
func NewInProcess() *InProcess {
	m := &InProcess{
		emitter:       newEmitter(),
		heartbeats:    make(map[string]HeartbeatSnapshot),
		universe:      make(map[string]int64),
		supervisors:   make(map[string]SupervisorSnapshot),
		cleanupTicker: time.NewTicker(30 * time.Second),
		stopCleanup:   make(chan struct{}),
	}
	go m.runCleanup()
	return m
}

func (m *InProcess) runCleanup() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.sweep()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *InProcess) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	for addr, hb := range m.heartbeats {
		if now.Sub(time.UnixMilli(hb.LastUpdateMs)) > HeartbeatTTL {
			delete(m.heartbeats, addr)
		}
	}
	for addr, ts := range m.universe {
		if now.Sub(time.UnixMilli(ts)) > UniverseTTL {
			delete(m.universe, addr)
		}
	}
}

func (m *InProcess) NodeInfoUpdate(ctx context.Context, address string, hb HeartbeatSnapshot) error {
	m.mu.Lock()
	m.heartbeats[address] = hb
	m.universe[address] = hb.LastUpdateMs
	m.mu.Unlock()
	return nil
}

func (m *InProcess) GetNodeInfo(ctx context.Context, address string) (HeartbeatSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hb, ok := m.heartbeats[address]
	return hb, ok
}

func (m *InProcess) GetUniverse(ctx context.Context) map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.universe))
	for k, v := range m.universe {
		out[k] = v
	}
	return out
}

func (m *InProcess) MarkAsSeen(ctx context.Context, address string, tsMs int64) {
	m.mu.Lock()
	m.universe[address] = tsMs
	m.mu.Unlock()
}

func (m *InProcess) UpdateNetworkSnapshot(ctx context.Context, supervisor string, payload map[string]interface{}) error {
	snap := SupervisorSnapshot{
		Address:   supervisor,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
	if name, ok := payload["name"].(string); ok {
		snap.Name = name
	}
	if status, ok := payload["status"].(string); ok {
		snap.Status = status
	}

	m.mu.Lock()
	m.supervisors[supervisor] = snap
	m.mu.Unlock()

	m.emit(Event{Name: EventSupervisorPayload, Payload: snap})
	return nil
}

func (m *InProcess) GetNetworkSnapshot(ctx context.Context, supervisor string) (SupervisorSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.supervisors[supervisor]
	return snap, ok
}

func (m *InProcess) GetNetworkSupervisors(ctx context.Context) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.supervisors))
	for addr := range m.supervisors {
		out = append(out, addr)
	}
	return out
}

func (m *InProcess) BroadcastUpdateFleet(ctx context.Context, delta FleetDelta) error {
	m.emit(Event{Name: EventFleetUpdate, Payload: delta})
	return nil
}

func (m *InProcess) BroadcastUpdateAddresses(ctx context.Context, update AddressUpdate) error {
	m.emit(Event{Name: EventAddressUpdate, Payload: update})
	return nil
}

func (m *InProcess) BroadcastRequestID(ctx context.Context, requestID string, watches []string, inboxID string) error {
	m.emit(Event{Name: EventRequestResponse, Payload: RequestWatch{RequestID: requestID, Watches: watches, InboxID: inboxID}})
	return nil
}

func (m *InProcess) BroadcastIgnoreRequestID(ctx context.Context, requestID string, watches []string, inboxID string) error {
	// Single-process backend: nothing to tell peer processes; watchers
	// remove their own index entries once the registry resolves.
	return nil
}

func (m *InProcess) BroadcastPayloadStickySession(ctx context.Context, stickyID, inboxID string) error {
	// No-op per spec.md §4.3: sticky routing only matters across
	// processes, and this backend has exactly one.
	return nil
}

// Subscribe registers handler for every Event named name, satisfying
// Manager. Promoted explicitly rather than relying on the embedded
// emitter's unexported method to be visible outside the package.
func (m *InProcess) Subscribe(name string, handler Handler) func() {
	return m.emitter.subscribe(name, handler)
}

func (m *InProcess) Close() error {
	close(m.stopCleanup)
	m.cleanupTicker.Stop()
	return nil
}
