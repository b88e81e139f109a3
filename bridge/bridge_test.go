package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgenet-x/client-go/client"
)

type fakePublisher struct {
	calls []client.PublishRequest
}

func (f *fakePublisher) Publish(req client.PublishRequest) (string, <-chan client.Outcome, error) {
	f.calls = append(f.calls, req)
	ch := make(chan client.Outcome, 1)
	ch <- client.Outcome{OK: true}
	return "req-1", ch, nil
}

func newTestBridge(pub Publisher) *Bridge {
	return &Bridge{
		State:     nil,
		Schemas:   NewSchemaRegistry(),
		publisher: pub,
	}
}

func TestPublishPassesThroughWithNoRegisteredSchema(t *testing.T) {
	pub := &fakePublisher{}
	b := newTestBridge(pub)

	id, outcome, err := b.Publish(client.PublishRequest{Action: "PIPELINE_COMMAND", Payload: map[string]interface{}{"x": 1}})
	require.NoError(t, err)
	assert.Equal(t, "req-1", id)
	assert.True(t, (<-outcome).OK)
	assert.Len(t, pub.calls, 1)
}

func TestPublishRejectsInvalidPayloadBeforeReachingPublisher(t *testing.T) {
	pub := &fakePublisher{}
	b := newTestBridge(pub)
	b.Schemas.Register("PIPELINE_COMMAND", func(payload map[string]interface{}) error {
		if _, ok := payload["name"]; !ok {
			return errors.New("missing name")
		}
		return nil
	})

	_, outcome, err := b.Publish(client.PublishRequest{Action: "PIPELINE_COMMAND", Payload: map[string]interface{}{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaValidation)
	assert.Nil(t, outcome)
	assert.Empty(t, pub.calls)
}

func TestPublishAllowsValidPayloadThrough(t *testing.T) {
	pub := &fakePublisher{}
	b := newTestBridge(pub)
	b.Schemas.Register("PIPELINE_COMMAND", func(payload map[string]interface{}) error {
		if _, ok := payload["name"]; !ok {
			return errors.New("missing name")
		}
		return nil
	})

	_, _, err := b.Publish(client.PublishRequest{Action: "PIPELINE_COMMAND", Payload: map[string]interface{}{"name": "ok"}})
	require.NoError(t, err)
	assert.Len(t, pub.calls, 1)
}

func TestSchemaRegistryOverwritesPriorRegistration(t *testing.T) {
	reg := NewSchemaRegistry()
	reg.Register("A", func(map[string]interface{}) error { return errors.New("first") })
	reg.Register("A", func(map[string]interface{}) error { return nil })

	assert.NoError(t, reg.Validate("A", nil))
}
