// Package state implements the shared-state manager: two interchangeable
// backends (in-process and external-cache) behind one Manager contract,
// storing heartbeat snapshots, the observed-universe timestamps, and
// supervisor snapshots, and broadcasting fleet and other mutations
// to workers and — in the external backend — to peer processes.
package state

import "time"

// TTLs from spec.md §3/§6, enforced by the external-cache backend. The
// in-process backend applies HeartbeatTTL and UniverseTTL in a sweep that
// runs every 30 seconds; its supervisor snapshots do not expire.
const (
	HeartbeatTTL      = 180 * time.Second
	UniverseTTL       = 3600 * time.Second
	SupervisorTTL     = 7 * 24 * time.Hour
	LockExpiration    = 100 * time.Millisecond
	LockMaxRetries    = 10
	LockRetryInterval = 100 * time.Millisecond
)

// Event names emitted by the state manager, per spec.md §4.3.
const (
	EventStickyPayloadReceived  = "NETWORK_STICKY_PAYLOAD_RECEIVED"
	EventRequestResponse        = "NETWORK_REQUEST_RESPONSE_NOTIFICATION"
	EventFleetUpdate            = "FLEET_UPDATE_EVENT"
	EventAddressUpdate          = "ADDRESS_UPDATE_EVENT"
	EventSupervisorPayload      = "NETWORK_SUPERVISOR_PAYLOAD"
)

// HeartbeatSnapshot is the last known heartbeat for one address.
type HeartbeatSnapshot struct {
	LastUpdateMs int64                  `json:"lastUpdateMs"`
	NodeTime     NodeTime               `json:"nodeTime"`
	Data         map[string]interface{} `json:"data"`
}

// NodeTime carries the remote node's self-reported clock.
type NodeTime struct {
	Date string `json:"date"`
	UTC  string `json:"utc"`
}

// SupervisorSnapshot is the last network-view payload received from one
// supervisor address, enriched with bookkeeping fields.
type SupervisorSnapshot struct {
	Name      string                 `json:"name"`
	Address   string                 `json:"address"`
	Status    string                 `json:"status"`
	Timestamp int64                  `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// FleetAction is the delta direction for a fleet membership broadcast.
type FleetAction int

const (
	FleetAdd    FleetAction = 1
	FleetRemove FleetAction = -1
)

// FleetDelta is broadcast whenever an address is added to or removed
// from the tracked fleet.
type FleetDelta struct {
	Address string
	Action  FleetAction
}

// AddressUpdate carries a full directory refresh, keyed by human node
// name.
type AddressUpdate struct {
	Nodes     []string
	Addresses []string
}

// RequestWatch is broadcast so notification workers know which pending
// request to deliver a matching notification to.
type RequestWatch struct {
	RequestID string
	Watches   []string
	InboxID   string
}
