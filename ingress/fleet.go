package ingress

import "sync"

// Fleet is a worker's local, read-only-to-the-outside copy of the
// tracked address set. It is mutated only by UPDATE_FLEET commands
// posted from the client, never read from or written to concurrently by
// anything else — each worker owns its own Fleet instance.
type Fleet struct {
	mu      sync.RWMutex
	all     bool
	members map[string]struct{}
}

// NewFleet creates a Fleet from the configured address/node list.
// A single "*" member disables filtering entirely.
func NewFleet(addresses []string) *Fleet {
	f := &Fleet{members: make(map[string]struct{}, len(addresses))}
	f.Replace(addresses)
	return f
}

// Contains reports whether addr passes the fleet filter.
func (f *Fleet) Contains(addr string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.all {
		return true
	}
	_, ok := f.members[addr]
	return ok
}

// Add tracks addr.
func (f *Fleet) Add(addr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if addr == "*" {
		f.all = true
		return
	}
	f.members[addr] = struct{}{}
}

// Remove untracks addr.
func (f *Fleet) Remove(addr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, addr)
}

// Replace atomically swaps the tracked set.
func (f *Fleet) Replace(addresses []string) {
	members := make(map[string]struct{}, len(addresses))
	all := false
	for _, a := range addresses {
		if a == "*" {
			all = true
			continue
		}
		members[a] = struct{}{}
	}

	f.mu.Lock()
	f.all = all
	f.members = members
	f.mu.Unlock()
}
