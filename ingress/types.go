// Package ingress implements the multi-stream worker pool: one pool per
// bus stream (heartbeats, notifications, payloads), each worker running
// the decode pipeline described in spec.md §4.5–4.6 over its own
// subscription, serially, with no shared mutable state between workers.
package ingress

// ThreadType identifies which of the three bus streams a worker pool
// services.
type ThreadType string

const (
	ThreadHeartbeats    ThreadType = "heartbeats"
	ThreadNotifications ThreadType = "notifications"
	ThreadPayloads      ThreadType = "payloads"
)

// Envelope field names, matching the wire format in spec.md §3/§6. The
// signature fields (EE_SENDER/EE_SIGN/EE_HASH) live in crypto as
// crypto.FieldSender/FieldSign/FieldHash; these are the remaining
// envelope fields ingress cares about.
const (
	FieldPayloadPath   = "EE_PAYLOAD_PATH"
	FieldEventType     = "EE_EVENT_TYPE"
	FieldFormatter     = "EE_FORMATTER"
	FieldIsEncrypted   = "EE_IS_ENCRYPTED"
	FieldEncryptedData = "EE_ENCRYPTED_DATA"
	FieldID            = "EE_ID"
)

// Event type values carried in EE_EVENT_TYPE.
const (
	EventTypeHeartbeat    = "HEARTBEAT"
	EventTypeNotification = "NOTIFICATION"
	EventTypePayload      = "PAYLOAD"
)

// Application event names emitted to the embedding application, per
// spec.md §4.8. Kept as string constants (not an enum) because wire
// compatibility with existing supervisors depends on the literal names.
const (
	EventObservedNode        = "OBSERVED_NODE"
	EventSupervisorStatus    = "SUPERVISOR_STATUS"
	EventAddressesRefresh    = "ADDRESSES_REFRESH"
	EventNetworkNodeDown     = "NETWORK_NODE_DOWN"
	EventNetworkSupervisor   = "NETWORK_SUPERVISOR_PAYLOAD"
	EventReceivedHeartbeat   = "RECEIVED_HEARTBEAT_FROM_ENGINE"
	EventReceivedHBByAddress = "RECEIVED_HEARTBEAT_FROM_ADDRESS"
	EventNotificationPlain   = "NOTIFICATION"
	EventRequestResponse     = "NETWORK_REQUEST_RESPONSE"
	EventStickyPayload       = "NETWORK_STICKY_PAYLOAD_RECEIVED"
)

// Meta-key prefixes for payload decoding, per spec.md §4.5 step 8.
const (
	pluginMetaPrefix   = "_P_"
	pipelineMetaPrefix = "_C_"
)

// Context is assembled in pipeline step 9 from local worker state and
// carried in the Payload of notification-match reports.
type Context struct {
	Pipeline interface{}            `json:"pipeline,omitempty"`
	Instance interface{}            `json:"instance,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Report is the only way a worker communicates outward: it never
// mutates client-owned state directly, per spec.md §3's ownership rule.
type Report struct {
	Kind ReportKind

	// ReportEvent
	Event   string
	Payload map[string]interface{}

	// ReportHeartbeat / ReportObservedSeen
	Address   string
	HeartbeatRaw map[string]interface{}
	TimestampMs  int64

	// ReportNotificationMatch
	Path         []string
	Notification NotificationReport

	// ReportStickySession
	StickyID string
	InboxID  string

	// ReportMemoryUsage
	Stats WorkerStats
}

// ReportKind discriminates the Report union.
type ReportKind int

const (
	ReportEvent ReportKind = iota
	ReportHeartbeat
	ReportObservedSeen
	ReportNotificationMatch
	ReportStickySession
	ReportMemoryUsage
	ReportSupervisorPayload
)

// NotificationReport is the shape handed to the client's registry
// dispatch; it mirrors registry.Notification without importing registry
// from this package (kept decoupled: ingress knows nothing about
// pending-request strategy selection).
type NotificationReport struct {
	Type string
	Code string
	Tag  string
	Raw  map[string]interface{}
}

// WorkerStats is posted in response to a MEMORY_USAGE control command,
// per spec.md §4.5/§5.
type WorkerStats struct {
	ThreadType      ThreadType
	WorkerID        string
	MessagesHandled uint64
	MessagesDropped uint64
	AllocBytes      uint64
}
