package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvesOnSingleWatchSuccess(t *testing.T) {
	reg := New(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var resolvedWith []Notification

	req := reg.Open("req-1", [][]string{{"node-1", "pipe-1"}}, StrategyFor(ActionUpdatePipelineInstance),
		func(n []Notification) { resolvedWith = n; wg.Done() },
		func(n []Notification) { wg.Done() },
	)
	require.NotNil(t, req)

	reg.Dispatch(PathKey([]string{"node-1", "pipe-1"}), Notification{Code: "PLUGIN_OK"})

	wg.Wait()
	require.Len(t, resolvedWith, 1)
	assert.Equal(t, "PLUGIN_OK", resolvedWith[0].Code)
}

func TestResolvesOnlyAfterAllWatchesSettle(t *testing.T) {
	reg := New(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	settled := false

	reg.Open("req-2", [][]string{{"n1", "p1"}, {"n1", "p2"}}, StrategyFor(ActionUpdatePipelineInstance),
		func(n []Notification) { settled = true; wg.Done() },
		func(n []Notification) { settled = true; wg.Done() },
	)

	reg.Dispatch(PathKey([]string{"n1", "p1"}), Notification{Code: "PLUGIN_OK"})
	assert.False(t, settled)

	reg.Dispatch(PathKey([]string{"n1", "p2"}), Notification{Code: "PLUGIN_OK"})
	wg.Wait()
	assert.True(t, settled)
}

func TestBatchRejectsWithBothNotificationsOnMixedResult(t *testing.T) {
	reg := New(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var rejectedWith []Notification

	reg.Open("req-3", [][]string{{"n1", "p1", "s1", "i1"}, {"n1", "p1", "s1", "i2"}}, StrategyFor(ActionBatchUpdatePipelineInstance),
		func(n []Notification) { wg.Done() },
		func(n []Notification) { rejectedWith = n; wg.Done() },
	)

	reg.Dispatch(PathKey([]string{"n1", "p1", "s1", "i1"}), Notification{Code: "PLUGIN_OK"})
	reg.Dispatch(PathKey([]string{"n1", "p1", "s1", "i2"}), Notification{Code: "PLUGIN_FAILED"})

	wg.Wait()
	require.Len(t, rejectedWith, 2)
}

func TestExceptionForcesImmediateReject(t *testing.T) {
	reg := New(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	rejected := false

	reg.Open("req-4", [][]string{{"n1", "p1"}}, StrategyFor(ActionUpdateConfig),
		func(n []Notification) { wg.Done() },
		func(n []Notification) { rejected = true; wg.Done() },
	)

	reg.Dispatch(PathKey([]string{"n1", "p1"}), Notification{Type: NotificationTypeException, Code: "BOOM"})

	wg.Wait()
	assert.True(t, rejected)
}

func TestEmptyWatchesResolveImmediately(t *testing.T) {
	reg := New(nil)

	var wg sync.WaitGroup
	wg.Add(1)

	reg.Open("req-5", nil, StrategyFor(ActionUpdateConfig),
		func(n []Notification) { wg.Done() },
		func(n []Notification) { wg.Done() },
	)

	wg.Wait()
}

func TestCancelAllFailsOpenRequestsWithShutdownReason(t *testing.T) {
	reg := New(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var reason string

	reg.Open("req-6", [][]string{{"n1", "p1"}}, StrategyFor(ActionUpdateConfig),
		func(n []Notification) { wg.Done() },
		func(n []Notification) {
			if len(n) > 0 {
				reason = n[0].Code
			}
			wg.Done()
		},
	)

	reg.CancelAll("shutdown")
	wg.Wait()
	assert.Equal(t, "shutdown", reason)
}

func TestRegistryIndexIsRemovedOnSettle(t *testing.T) {
	reg := New(nil)

	var wg sync.WaitGroup
	wg.Add(1)

	reg.Open("req-7", [][]string{{"n1", "p1"}}, StrategyFor(ActionUpdateConfig),
		func(n []Notification) { wg.Done() },
		func(n []Notification) { wg.Done() },
	)
	reg.Dispatch(PathKey([]string{"n1", "p1"}), Notification{Code: "PIPELINE_STATE_OK"})
	wg.Wait()

	time.Sleep(10 * time.Millisecond)
	_, found := reg.Dispatch(PathKey([]string{"n1", "p1"}), Notification{Code: "PIPELINE_STATE_OK"})
	assert.False(t, found)

	_, ok := reg.Get("req-7")
	assert.False(t, ok)
}
