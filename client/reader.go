package client

import (
	"context"

	"github.com/edgenet-x/client-go/state"
)

// NodeInfo returns the last known heartbeat snapshot for address, as
// stored by whichever state manager backend is active.
func (c *Client) NodeInfo(ctx context.Context, address string) (state.HeartbeatSnapshot, bool) {
	return c.stateMgr.GetNodeInfo(ctx, address)
}

// Universe returns every address ever observed, keyed to the
// millisecond timestamp it was last seen.
func (c *Client) Universe(ctx context.Context) map[string]int64 {
	return c.stateMgr.GetUniverse(ctx)
}

// NetworkSnapshot returns the last CURRENT_NETWORK-style payload
// received from supervisor.
func (c *Client) NetworkSnapshot(ctx context.Context, supervisor string) (state.SupervisorSnapshot, bool) {
	return c.stateMgr.GetNetworkSnapshot(ctx, supervisor)
}

// NetworkSupervisors lists every supervisor address with a known
// snapshot.
func (c *Client) NetworkSupervisors(ctx context.Context) []string {
	return c.stateMgr.GetNetworkSupervisors(ctx)
}

// ResolveAddress resolves a human node name or already-canonical address
// through the address directory.
func (c *Client) ResolveAddress(nameOrAddress string) (string, bool) {
	return c.directory.GetAddress(nameOrAddress)
}

// NodeForAddress returns the last-known human name bound to address.
func (c *Client) NodeForAddress(address string) (string, bool) {
	return c.directory.GetNodeForAddress(address)
}
