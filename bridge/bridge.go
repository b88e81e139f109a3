// Package bridge is the thin seam the out-of-scope domain models
// (Pipeline, PluginInstance, DataCaptureThread, NodeManager) are
// expected to consume: state lookups, publish, and schema validation of
// outbound plugin configs, without exposing the rest of Client's surface
// (boot sequencing, fleet membership, worker pools) to code that has no
// business touching it.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/edgenet-x/client-go/client"
	"github.com/edgenet-x/client-go/state"
)

// StateReader is the read-only subset of Client a domain model needs to
// consult before deciding what to publish.
type StateReader interface {
	NodeInfo(ctx context.Context, address string) (state.HeartbeatSnapshot, bool)
	Universe(ctx context.Context) map[string]int64
	NetworkSnapshot(ctx context.Context, supervisor string) (state.SupervisorSnapshot, bool)
	NetworkSupervisors(ctx context.Context) []string
	ResolveAddress(nameOrAddress string) (string, bool)
	NodeForAddress(address string) (string, bool)
}

// Publisher is the outbound half of Client a domain model needs: send a
// fully-formed request and get back its settlement.
type Publisher interface {
	Publish(req client.PublishRequest) (requestID string, outcome <-chan client.Outcome, err error)
}

var (
	_ StateReader = (*client.Client)(nil)
	_ Publisher   = (*client.Client)(nil)
)

// ErrSchemaValidation is wrapped by validation failures returned from
// SchemaRegistry.Validate, per spec.md's "may fail with a validation
// error" note.
var ErrSchemaValidation = errors.New("bridge: schema validation failed")

// Validator checks one action's payload shape before it reaches the
// core. Domain models register one per ACTION they can emit.
type Validator func(payload map[string]interface{}) error

// SchemaRegistry holds one Validator per outbound action name. Domain
// models own what "valid" means for their own payload shapes; this
// package only provides the registration/lookup seam.
type SchemaRegistry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

// NewSchemaRegistry creates an empty registry. Actions with no
// registered validator pass through unchecked.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{validators: make(map[string]Validator)}
}

// Register binds v as the validator for action, replacing any prior
// registration.
func (r *SchemaRegistry) Register(action string, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[action] = v
}

// Validate runs action's registered validator against payload, if one
// is registered.
func (r *SchemaRegistry) Validate(action string, payload map[string]interface{}) error {
	r.mu.RLock()
	v, ok := r.validators[action]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := v(payload); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchemaValidation, action, err)
	}
	return nil
}

// Bridge composes a StateReader, a Publisher, and a SchemaRegistry into
// the single collaborator surface domain models depend on, per spec.md's
// Domain-Model Bridge component.
type Bridge struct {
	State   StateReader
	Schemas *SchemaRegistry

	publisher Publisher
}

// New wires a Bridge over an already-started Client, which serves as
// both its StateReader and its Publisher.
func New(c *client.Client, schemas *SchemaRegistry) *Bridge {
	if schemas == nil {
		schemas = NewSchemaRegistry()
	}
	return &Bridge{
		State:     c,
		Schemas:   schemas,
		publisher: c,
	}
}

// Publish validates req.Payload against the registered schema for
// req.Action, then forwards to the underlying Publisher. Schema
// validation happens before the core ever sees the message, per
// spec.md's domain-validation ordering.
func (b *Bridge) Publish(req client.PublishRequest) (requestID string, outcome <-chan client.Outcome, err error) {
	if err := b.Schemas.Validate(req.Action, req.Payload); err != nil {
		return "", nil, err
	}
	return b.publisher.Publish(req)
}
