package client

import (
	"time"

	"github.com/edgenet-x/client-go/ingress"
	"github.com/edgenet-x/client-go/internal/logger"
	"github.com/edgenet-x/client-go/internal/metrics"
	"github.com/edgenet-x/client-go/state"
)

// RegisterEdgeNode adds nameOrAddress to the tracked fleet. It is
// idempotent and, per spec.md §4.8, retries every 2s until the address
// directory can resolve a bare node name.
func (c *Client) RegisterEdgeNode(nameOrAddress string) {
	go c.registerEdgeNode(nameOrAddress)
}

// DeregisterEdgeNode removes nameOrAddress from the tracked fleet, with
// the same resolution-retry behavior as RegisterEdgeNode.
func (c *Client) DeregisterEdgeNode(nameOrAddress string) {
	go c.deregisterEdgeNode(nameOrAddress)
}

func (c *Client) registerEdgeNode(nameOrAddress string) {
	address, ok := c.resolveWithRetry(nameOrAddress)
	if !ok {
		return
	}

	c.fleetMu.Lock()
	_, already := c.fleet[address]
	c.fleet[address] = struct{}{}
	c.fleetMu.Unlock()
	if already {
		return
	}

	c.applyFleetDelta(address, state.FleetAdd)
	c.events.emit(EventEngineRegistered, map[string]interface{}{"address": address})
}

func (c *Client) deregisterEdgeNode(nameOrAddress string) {
	address, ok := c.resolveWithRetry(nameOrAddress)
	if !ok {
		return
	}

	c.fleetMu.Lock()
	_, present := c.fleet[address]
	delete(c.fleet, address)
	c.fleetMu.Unlock()
	if !present {
		return
	}

	c.applyFleetDelta(address, state.FleetRemove)
	c.events.emit(EventEngineDeregistered, map[string]interface{}{"address": address})
}

// resolveWithRetry blocks, retrying every fleetRetryInterval, until the
// directory can resolve nameOrAddress or the client shuts down.
func (c *Client) resolveWithRetry(nameOrAddress string) (string, bool) {
	for {
		if address, ok := c.directory.GetAddress(nameOrAddress); ok {
			return address, true
		}

		select {
		case <-c.ctx.Done():
			return "", false
		case <-time.After(fleetRetryInterval):
		}
	}
}

// applyFleetDelta pushes a fleet mutation to every worker and, on the
// external backend, to peer processes.
func (c *Client) applyFleetDelta(address string, action state.FleetAction) {
	c.broadcastAll(ingress.Command{
		Kind:     ingress.CmdUpdateFleet,
		Address:  address,
		FleetAdd: action == state.FleetAdd,
	})

	if err := c.stateMgr.BroadcastUpdateFleet(c.ctx, state.FleetDelta{Address: address, Action: action}); err != nil {
		c.log.Warn("client: broadcast fleet delta failed", logger.Error(err))
	}

	c.fleetMu.Lock()
	size := len(c.fleet)
	c.fleetMu.Unlock()
	metrics.FleetSize.Set(float64(size))
}
