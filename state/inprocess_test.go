package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessNodeInfoUpdateRoundTrips(t *testing.T) {
	m := NewInProcess()
	defer m.Close()
	ctx := context.Background()

	hb := HeartbeatSnapshot{LastUpdateMs: time.Now().UnixMilli(), Data: map[string]interface{}{"load": 1.5}}
	require.NoError(t, m.NodeInfoUpdate(ctx, "0xai_a", hb))

	got, ok := m.GetNodeInfo(ctx, "0xai_a")
	require.True(t, ok)
	assert.Equal(t, hb.LastUpdateMs, got.LastUpdateMs)

	universe := m.GetUniverse(ctx)
	assert.Contains(t, universe, "0xai_a")
}

func TestInProcessUpdateNetworkSnapshotEmitsEvent(t *testing.T) {
	m := NewInProcess()
	defer m.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	var received SupervisorSnapshot
	unsub := m.Subscribe(EventSupervisorPayload, func(ev Event) {
		received = ev.Payload.(SupervisorSnapshot)
		wg.Done()
	})
	defer unsub()

	require.NoError(t, m.UpdateNetworkSnapshot(ctx, "0xai_sup", map[string]interface{}{"status": "OK"}))
	wg.Wait()

	assert.Equal(t, "0xai_sup", received.Address)
	assert.Equal(t, "OK", received.Status)

	snap, ok := m.GetNetworkSnapshot(ctx, "0xai_sup")
	require.True(t, ok)
	assert.Equal(t, "OK", snap.Status)
	assert.Contains(t, m.GetNetworkSupervisors(ctx), "0xai_sup")
}

func TestInProcessSatisfiesManager(t *testing.T) {
	var _ Manager = NewInProcess()
}

func TestInProcessBroadcastFleetDeltaEmitsLocally(t *testing.T) {
	m := NewInProcess()
	defer m.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	var got FleetDelta
	unsub := m.Subscribe(EventFleetUpdate, func(ev Event) {
		got = ev.Payload.(FleetDelta)
		wg.Done()
	})
	defer unsub()

	require.NoError(t, m.BroadcastUpdateFleet(context.Background(), FleetDelta{Address: "0xai_x", Action: FleetAdd}))
	wg.Wait()

	assert.Equal(t, "0xai_x", got.Address)
	assert.Equal(t, FleetAdd, got.Action)
}
