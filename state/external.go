package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edgenet-x/client-go/internal/logger"
)

// Well-known pub/sub channels for cross-process fan-out, per spec.md §6.
const (
	ChannelFleetUpdates   = "fleet-updates"
	ChannelAddressUpdates = "address-updates"
)

// ExternalConfig carries the `external.*` configuration options.
type ExternalConfig struct {
	Host          string
	Port          int
	Password      string
	PubSubChannel string
}

// External is the multi-process Manager backend: data lives in Redis
// with the TTLs from spec.md §3/§6, and shared-key read-modify-write
// sequences are serialized with a SETNX lock. Grounded on the Set/Get/
// Del/Publish/Subscribe shape of this codebase's other Redis adapter and
// its SETNX-with-TTL locking helper.
type External struct {
	emitter

	rdb       *redis.Client
	log       logger.Logger
	initiator string

	updatesChannel string
	cancelSub      context.CancelFunc
}

// NewExternal connects to Redis and starts the background subscriber
// that turns peer-process broadcasts into local Events.
func NewExternal(ctx context.Context, cfg ExternalConfig, initiator string, log logger.Logger) (*External, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("state: redis ping %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	channel := cfg.PubSubChannel
	if channel == "" {
		channel = "updates-" + initiator
	}

	subCtx, subCancel := context.WithCancel(context.Background())
	m := &External{
		emitter:        newEmitter(),
		rdb:            rdb,
		log:            log,
		initiator:      initiator,
		updatesChannel: channel,
		cancelSub:      subCancel,
	}

	go m.subscribeLoop(subCtx)
	return m, nil
}

func (m *External) subscribeLoop(ctx context.Context) {
	sub := m.rdb.Subscribe(ctx, ChannelFleetUpdates, ChannelAddressUpdates, m.updatesChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			m.dispatchPeerMessage(msg)
		}
	}
}

// peerEnvelope wraps a broadcast event so the pub/sub payload carries
// both the event name and its typed contents.
type peerEnvelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

func (m *External) dispatchPeerMessage(msg *redis.Message) {
	var env peerEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		m.log.Warn("state: malformed peer broadcast", logger.String("channel", msg.Channel), logger.Error(err))
		return
	}

	switch env.Name {
	case EventFleetUpdate:
		var delta FleetDelta
		if json.Unmarshal(env.Payload, &delta) == nil {
			m.emit(Event{Name: EventFleetUpdate, Payload: delta})
		}
	case EventAddressUpdate:
		var update AddressUpdate
		if json.Unmarshal(env.Payload, &update) == nil {
			m.emit(Event{Name: EventAddressUpdate, Payload: update})
		}
	case EventRequestResponse:
		var watch RequestWatch
		if json.Unmarshal(env.Payload, &watch) == nil {
			m.emit(Event{Name: EventRequestResponse, Payload: watch})
		}
	case EventStickyPayloadReceived:
		var sticky struct {
			StickyID string `json:"stickyId"`
			InboxID  string `json:"inboxId"`
		}
		if json.Unmarshal(env.Payload, &sticky) == nil {
			m.emit(Event{Name: EventStickyPayloadReceived, Payload: sticky})
		}
	}
}

func (m *External) publish(ctx context.Context, channel, name string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env, err := json.Marshal(peerEnvelope{Name: name, Payload: body})
	if err != nil {
		return err
	}
	return m.rdb.Publish(ctx, channel, env).Err()
}

// acquireLock implements the SETNX-with-TTL mutual exclusion described
// in spec.md §4.3: try up to LockMaxRetries times, sleeping
// LockRetryInterval between attempts, and always delete the lock key on
// exit even if the caller errors.
func (m *External) acquireLock(ctx context.Context, key string) (release func(), ok bool) {
	lockKey := key + ":lock"

	for attempt := 0; attempt < LockMaxRetries; attempt++ {
		acquired, err := m.rdb.SetNX(ctx, lockKey, 1, LockExpiration).Result()
		if err == nil && acquired {
			return func() { m.rdb.Del(context.Background(), lockKey) }, true
		}
		select {
		case <-ctx.Done():
			return func() {}, false
		case <-time.After(LockRetryInterval):
		}
	}
	return func() {}, false
}

func heartbeatKey(address string) string { return "state:" + address + ":heartbeat" }

const universeKey = "known:universe"
const supervisorsKey = "network:supervisors"

func snapshotKey(supervisor string) string { return "network:snapshot:" + supervisor }

func (m *External) NodeInfoUpdate(ctx context.Context, address string, hb HeartbeatSnapshot) error {
	body, err := json.Marshal(hb)
	if err != nil {
		return err
	}
	if err := m.rdb.Set(ctx, heartbeatKey(address), body, HeartbeatTTL).Err(); err != nil {
		return fmt.Errorf("state: set heartbeat %s: %w", address, err)
	}
	m.MarkAsSeen(ctx, address, hb.LastUpdateMs)
	return nil
}

func (m *External) GetNodeInfo(ctx context.Context, address string) (HeartbeatSnapshot, bool) {
	var hb HeartbeatSnapshot
	raw, err := m.rdb.Get(ctx, heartbeatKey(address)).Bytes()
	if err != nil {
		return hb, false
	}
	if json.Unmarshal(raw, &hb) != nil {
		return HeartbeatSnapshot{}, false
	}
	return hb, true
}

func (m *External) GetUniverse(ctx context.Context) map[string]int64 {
	raw, err := m.rdb.HGetAll(ctx, universeKey).Result()
	if err != nil {
		m.log.Error("state: get universe", logger.Error(err))
		return map[string]int64{}
	}
	out := make(map[string]int64, len(raw))
	for addr, tsStr := range raw {
		var ts int64
		if _, err := fmt.Sscanf(tsStr, "%d", &ts); err == nil {
			out[addr] = ts
		}
	}
	return out
}

func (m *External) MarkAsSeen(ctx context.Context, address string, tsMs int64) {
	release, ok := m.acquireLock(ctx, universeKey)
	if !ok {
		m.log.Error("state: mark as seen: lock acquisition failed", logger.String("address", address))
		return
	}
	defer release()

	pipe := m.rdb.TxPipeline()
	pipe.HSet(ctx, universeKey, address, tsMs)
	pipe.Expire(ctx, universeKey, UniverseTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		m.log.Error("state: mark as seen", logger.Error(err))
	}
}

func (m *External) UpdateNetworkSnapshot(ctx context.Context, supervisor string, payload map[string]interface{}) error {
	release, ok := m.acquireLock(ctx, snapshotKey(supervisor))
	if !ok {
		m.log.Error("state: update network snapshot: lock acquisition failed", logger.String("supervisor", supervisor))
		return fmt.Errorf("state: lock acquisition failed for %s", supervisor)
	}
	defer release()

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

	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := m.rdb.Set(ctx, snapshotKey(supervisor), body, SupervisorTTL).Err(); err != nil {
		return fmt.Errorf("state: set snapshot %s: %w", supervisor, err)
	}

	supRelease, ok := m.acquireLock(ctx, supervisorsKey)
	if ok {
		m.rdb.SAdd(ctx, supervisorsKey, supervisor)
		m.rdb.Expire(ctx, supervisorsKey, SupervisorTTL)
		supRelease()
	}

	m.emit(Event{Name: EventSupervisorPayload, Payload: snap})
	return nil
}

func (m *External) GetNetworkSnapshot(ctx context.Context, supervisor string) (SupervisorSnapshot, bool) {
	var snap SupervisorSnapshot
	raw, err := m.rdb.Get(ctx, snapshotKey(supervisor)).Bytes()
	if err != nil {
		return snap, false
	}
	if json.Unmarshal(raw, &snap) != nil {
		return SupervisorSnapshot{}, false
	}
	return snap, true
}

func (m *External) GetNetworkSupervisors(ctx context.Context) []string {
	members, err := m.rdb.SMembers(ctx, supervisorsKey).Result()
	if err != nil {
		return []string{}
	}
	return members
}

func (m *External) BroadcastUpdateFleet(ctx context.Context, delta FleetDelta) error {
	m.emit(Event{Name: EventFleetUpdate, Payload: delta})
	return m.publish(ctx, ChannelFleetUpdates, EventFleetUpdate, delta)
}

func (m *External) BroadcastUpdateAddresses(ctx context.Context, update AddressUpdate) error {
	m.emit(Event{Name: EventAddressUpdate, Payload: update})
	return m.publish(ctx, ChannelAddressUpdates, EventAddressUpdate, update)
}

func (m *External) BroadcastRequestID(ctx context.Context, requestID string, watches []string, inboxID string) error {
	watch := RequestWatch{RequestID: requestID, Watches: watches, InboxID: inboxID}
	m.emit(Event{Name: EventRequestResponse, Payload: watch})
	return m.publish(ctx, m.updatesChannel, EventRequestResponse, watch)
}

func (m *External) BroadcastIgnoreRequestID(ctx context.Context, requestID string, watches []string, inboxID string) error {
	return m.publish(ctx, m.updatesChannel, "IGNORE_REQUEST_ID", RequestWatch{RequestID: requestID, Watches: watches, InboxID: inboxID})
}

func (m *External) BroadcastPayloadStickySession(ctx context.Context, stickyID, inboxID string) error {
	payload := struct {
		StickyID string `json:"stickyId"`
		InboxID  string `json:"inboxId"`
	}{StickyID: stickyID, InboxID: inboxID}
	return m.publish(ctx, m.updatesChannel, EventStickyPayloadReceived, payload)
}

// Subscribe registers handler for every Event named name, satisfying
// Manager.
func (m *External) Subscribe(name string, handler Handler) func() {
	return m.emitter.subscribe(name, handler)
}

func (m *External) Close() error {
	m.cancelSub()
	return m.rdb.Close()
}
