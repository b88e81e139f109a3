// Package directory implements the bi-directional node-name ⇄ address
// map that is refreshed from supervisor payloads and consulted whenever
// the public API accepts either form of identifier.
package directory

import (
	"strings"
	"sync"

	"github.com/edgenet-x/client-go/crypto"
)

// Directory is safe for concurrent use; updates are expected to arrive
// from the client's supervisor-payload handling while lookups happen
// from worker goroutines and the client facade.
type Directory struct {
	mu            sync.RWMutex
	nodeToAddress map[string]string
	addressToNode map[string]string
}

// New creates an empty Directory.
func New() *Directory {
	return &Directory{
		nodeToAddress: make(map[string]string),
		addressToNode: make(map[string]string),
	}
}

// Replace atomically swaps the entire directory contents, as produced by
// a REFRESH_ADDRESSES command or a supervisor's CURRENT_NETWORK payload.
// nodes and addresses must be parallel slices.
func (d *Directory) Replace(nodes, addresses []string) {
	nodeToAddress := make(map[string]string, len(nodes))
	addressToNode := make(map[string]string, len(nodes))

	n := len(nodes)
	if len(addresses) < n {
		n = len(addresses)
	}
	for i := 0; i < n; i++ {
		nodeToAddress[nodes[i]] = addresses[i]
		addressToNode[addresses[i]] = nodes[i]
	}

	d.mu.Lock()
	d.nodeToAddress = nodeToAddress
	d.addressToNode = addressToNode
	d.mu.Unlock()
}

// Set records a single node/address pair, overwriting any prior mapping
// for either side.
func (d *Directory) Set(node, address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodeToAddress[node] = address
	d.addressToNode[address] = node
}

// GetAddress resolves a mixed node-name/address identifier to a
// canonical address. If nodeOrAddress already has the canonical prefix
// it is returned unchanged; otherwise it is treated as a node name and
// resolved, returning ("", false) if unknown.
func (d *Directory) GetAddress(nodeOrAddress string) (string, bool) {
	if strings.HasPrefix(nodeOrAddress, crypto.AddressPrefix) {
		return nodeOrAddress, true
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	addr, ok := d.nodeToAddress[nodeOrAddress]
	return addr, ok
}

// GetNodeForAddress returns the last-known human name bound to address,
// or ("", false) if none is known.
func (d *Directory) GetNodeForAddress(address string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	node, ok := d.addressToNode[address]
	return node, ok
}
