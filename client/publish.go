package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edgenet-x/client-go/bus"
	"github.com/edgenet-x/client-go/crypto"
	"github.com/edgenet-x/client-go/ingress"
	"github.com/edgenet-x/client-go/internal/logger"
	"github.com/edgenet-x/client-go/internal/metrics"
	"github.com/edgenet-x/client-go/registry"
)

// ErrReceiverNotFound is returned when Publish's receiver cannot be
// resolved through the address directory, per spec.md §4.8/§7.
var ErrReceiverNotFound = errors.New("client: receiver not found")

// ErrClientClosed is returned by Publish after Shutdown.
var ErrClientClosed = errors.New("client: shutdown in progress")

// PublishRequest is a fully-formed outgoing command. Watches are the
// payload paths whose matching notifications settle the returned
// Outcome; building them from an ACTION's expected reply shape is the
// Domain-Model Bridge's job (spec.md's Pipeline/PluginInstance models
// are out of scope here), not the Client's.
type PublishRequest struct {
	Receiver string
	Action   string
	Payload  map[string]interface{}
	Watches  [][]string
}

// Outcome is delivered on the channel Publish returns once the
// underlying PendingRequest resolves, rejects, or times out.
type Outcome struct {
	OK            bool
	Notifications []registry.Notification
}

// Publish implements the outbound path from spec.md §4.8: resolve the
// receiver, stamp identifying fields, register the request against its
// watches, optionally encrypt, sign, and publish.
func (c *Client) Publish(req PublishRequest) (requestID string, outcome <-chan Outcome, err error) {
	c.fleetMu.Lock()
	closed := c.closed
	c.fleetMu.Unlock()
	if closed {
		return "", nil, ErrClientClosed
	}

	address, ok := c.directory.GetAddress(req.Receiver)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrReceiverNotFound, req.Receiver)
	}

	requestID = uuid.NewString()
	eeID := uuid.NewString()

	msg := map[string]interface{}{
		"INITIATOR_ID": c.cfg.Initiator,
		"EE_ID":        eeID,
		"TIME":         time.Now().UTC().Format(time.RFC3339),
		"SESSION_ID":   requestID,
		"ACTION":       req.Action,
		"PAYLOAD":      req.Payload,
	}

	outcomeCh := make(chan Outcome, 1)
	strategy := registry.StrategyFor(req.Action)
	c.registry.Open(requestID, req.Watches, strategy,
		func(notifications []registry.Notification) {
			c.closeRequestWatches(requestID, req.Watches)
			metrics.RequestOutcomes.WithLabelValues(req.Action, "resolved").Inc()
			outcomeCh <- Outcome{OK: true, Notifications: notifications}
		},
		func(notifications []registry.Notification) {
			c.closeRequestWatches(requestID, req.Watches)
			metrics.RequestOutcomes.WithLabelValues(req.Action, "rejected").Inc()
			outcomeCh <- Outcome{OK: false, Notifications: notifications}
		},
	)

	pathKeys := make([]string, len(req.Watches))
	for i, w := range req.Watches {
		pathKeys[i] = registry.PathKey(w)
		c.broadcastAll(ingress.Command{
			Kind:      ingress.CmdWatchForSessionID,
			PathKey:   pathKeys[i],
			SessionID: requestID,
			InboxID:   requestID,
		})
	}
	if err := c.stateMgr.BroadcastRequestID(c.ctx, requestID, pathKeys, requestID); err != nil {
		c.log.Warn("client: broadcast request watch failed", logger.Error(err))
	}

	if stickyID, ok := extractStickyID(req.Payload); ok {
		c.broadcastAll(ingress.Command{Kind: ingress.CmdWatchForStickySessionID, StickyID: stickyID, InboxID: requestID})
		if err := c.stateMgr.BroadcastPayloadStickySession(c.ctx, stickyID, requestID); err != nil {
			c.log.Warn("client: broadcast sticky session failed", logger.Error(err))
		}
	}

	if c.cfg.EncryptEnabled() {
		plaintext, err := json.Marshal(map[string]interface{}{"ACTION": req.Action, "PAYLOAD": req.Payload})
		if err != nil {
			return "", nil, fmt.Errorf("client: marshal encrypted payload: %w", err)
		}
		encrypted, err := c.identity.Encrypt(plaintext, crypto.Address(address))
		if err != nil {
			return "", nil, fmt.Errorf("client: encrypt: %w", err)
		}
		delete(msg, "ACTION")
		delete(msg, "PAYLOAD")
		msg[ingress.FieldIsEncrypted] = true
		msg[ingress.FieldEncryptedData] = encrypted
	}

	envelope, err := crypto.Sign(msg, c.identity)
	if err != nil {
		return "", nil, fmt.Errorf("client: sign: %w", err)
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return "", nil, fmt.Errorf("client: marshal envelope: %w", err)
	}

	topic := bus.OutboundTopic(c.cfg.TopicRoot, address)
	if err := c.bus.Publish(c.ctx, topic, body); err != nil {
		return "", nil, fmt.Errorf("client: publish: %w", err)
	}

	return requestID, outcomeCh, nil
}

func (c *Client) closeRequestWatches(requestID string, watches [][]string) {
	for _, w := range watches {
		c.broadcastAll(ingress.Command{
			Kind:      ingress.CmdIgnoreSessionID,
			PathKey:   registry.PathKey(w),
			SessionID: requestID,
		})
	}
}

// extractStickyID implements spec.md §4.8's sticky-id extraction:
// INSTANCE_CONFIG.INSTANCE_COMMAND.__COMMAND_ID, or failing that,
// PIPELINE_COMMAND.__COMMAND_ID.
func extractStickyID(payload map[string]interface{}) (string, bool) {
	if ic, ok := payload["INSTANCE_CONFIG"].(map[string]interface{}); ok {
		if cmd, ok := ic["INSTANCE_COMMAND"].(map[string]interface{}); ok {
			if id, ok := cmd["__COMMAND_ID"].(string); ok && id != "" {
				return id, true
			}
		}
	}
	if cmd, ok := payload["PIPELINE_COMMAND"].(map[string]interface{}); ok {
		if id, ok := cmd["__COMMAND_ID"].(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}
