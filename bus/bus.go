// Package bus abstracts the pub/sub transport that carries signed envelopes
// between this client and the edge-AI network. The only concrete
// implementation shipped here talks to a broker over a websocket
// multiplexed-topic connection, but callers depend only on the Bus
// interface so a future MQTT or NATS backend can be swapped in without
// touching the ingress workers.
package bus

import (
	"context"
	"errors"
	"strings"
)

// Stream identifies one of the three inbound channels a client subscribes
// to. Each stream maps to its own worker pool.
type Stream string

const (
	StreamHeartbeats    Stream = "ctrl"
	StreamNotifications Stream = "notif"
	StreamPayloads      Stream = "payloads"
)

// Errors returned by Bus implementations.
var (
	ErrNotConnected  = errors.New("bus: not connected")
	ErrAlreadyClosed = errors.New("bus: already closed")
)

// Config carries the broker connection parameters from spec.md §6's
// `bus.*` options.
type Config struct {
	URL      string
	Username string
	Password string
	Clean    bool
	ClientID string
	Prefix   string
}

// Bus is the contract every transport backend must satisfy. Connect must
// be safe to call once; Subscribe may be called multiple times for
// distinct streams/suffixes before or after Connect.
type Bus interface {
	// Connect dials the broker and blocks until the session is usable.
	Connect(ctx context.Context) error

	// Subscribe opens a channel of raw frames for the given topic. The
	// returned channel is closed when the subscription ends (on Close or
	// on an unrecoverable transport error).
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)

	// Publish sends a single frame to topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Close tears down the connection and every subscription channel.
	Close() error
}

// InboundTopic renders the shared-subscription inbound topic
// `<share>/$initiator/<root>/{ctrl|notif|payloads}` for one stream, one
// initiator id, and a worker suffix that lets a shared subscription
// load-balance across the pool (per spec.md §4.2/§6). template is the
// configured prefix, e.g. "$share/$initiator"; $initiator is substituted
// with initiator, $root with root.
func InboundTopic(template, initiator, root string, stream Stream, workerSuffix string) string {
	topic := strings.NewReplacer(
		"$initiator", initiator,
		"$root", root,
	).Replace(template)

	topic = strings.TrimSuffix(topic, "/") + "/" + root + "/" + string(stream)
	if workerSuffix != "" {
		topic += "/" + workerSuffix
	}
	return topic
}

// OutboundTopic renders the outbound publish topic `<root>/<receiver>/config`.
func OutboundTopic(root, receiver string) string {
	return strings.TrimSuffix(root, "/") + "/" + receiver + "/config"
}
