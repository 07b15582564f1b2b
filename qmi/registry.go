package qmi

import (
	"sync"
	"time"
)

// MaxTrackedClients is the tracked-client count above which NeedsReset
// reports true (spec.md §3). Register does not refuse entries past it.
const MaxTrackedClients = 32

// ReservedNodeID is the well-known IPC router node id that must never be
// treated as a real peer (spec.md §4.1, §8 property 6).
const ReservedNodeID = 41

// ForceReleaseAge is the elapsed-since-first-registration threshold beyond
// which the registry is considered stale and must be force-released
// (spec.md §4.5).
const ForceReleaseAge = 240_000 * time.Millisecond

// Entry is a single tracked client registration.
type Entry struct {
	ServiceID    byte
	RegisteredAt time.Time
}

// ClientRegistry is the ordered set of (service_id) entries the host has
// registered, owned exclusively by the RMNET-proxy worker (C5). It is an
// ordered set: at most one entry per service id, insertion order preserved.
type ClientRegistry struct {
	mu      sync.Mutex
	entries []Entry
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{}
}

// Register records service as registered, unless it is already tracked.
// Registering the reserved node id as a service id is refused: it can
// never be a legitimate client.
func (r *ClientRegistry) Register(service byte, now time.Time) {
	if service == ReservedNodeID {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ServiceID == service {
			return
		}
	}
	r.entries = append(r.entries, Entry{ServiceID: service, RegisteredAt: now})
}

// Release removes the entry for service, if tracked.
func (r *ClientRegistry) Release(service byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ServiceID == service {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Count returns the number of currently tracked entries.
func (r *ClientRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a snapshot of the tracked entries, oldest first.
func (r *ClientRegistry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// FirstRegisteredAt returns the timestamp of the oldest tracked entry, and
// false if the registry is empty.
func (r *ClientRegistry) FirstRegisteredAt() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return time.Time{}, false
	}
	return r.entries[0].RegisteredAt, true
}

// NeedsReset reports whether the registry has grown stale enough, or large
// enough, that the host should be considered gone (spec.md §4.5, §7
// HostAwol).
func (r *ClientRegistry) NeedsReset(now time.Time) bool {
	if r.Count() > MaxTrackedClients {
		return true
	}
	first, ok := r.FirstRegisteredAt()
	if !ok {
		return false
	}
	return now.Sub(first) >= ForceReleaseAge
}

// DrainLIFO removes and returns all entries in last-in-first-out order,
// leaving the registry empty. Used by the force-close routine to drive
// synthesized client-release frames (spec.md §4.5).
func (r *ClientRegistry) DrainLIFO() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[len(r.entries)-1-i] = e
	}
	r.entries = nil
	return out
}

// Reset fully drains the registry without returning the entries, for use
// on proxy restart.
func (r *ClientRegistry) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}
