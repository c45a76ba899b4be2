// Package registry keeps the in-memory set of live Hotline servers, keyed by
// the ID each server chooses, and expires entries that stop re-registering.
package registry

import (
	"math"
	"net/netip"
	"sync"
	"time"

	"github.com/woozymasta/hltracker/internal/protocol"
)

// DefaultExpiry is how long a registration stays listed without renewal.
const DefaultExpiry = 300 * time.Second

// Entry is one live server with the time of its last registration.
type Entry struct {
	LastSeen time.Time
	Server   protocol.ServerRecord
	ID       uint32
}

// Registry maps server IDs to entries. It is safe for concurrent use; the
// lock is only held for map operations, never across I/O.
type Registry struct {
	servers map[uint32]Entry
	now     func() time.Time
	expiry  time.Duration
	mu      sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates an empty registry. A non-positive expiry selects DefaultExpiry.
func New(expiry time.Duration, opts ...Option) *Registry {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	r := &Registry{
		servers: make(map[uint32]Entry),
		now:     time.Now,
		expiry:  expiry,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Expiry returns the configured entry lifetime.
func (r *Registry) Expiry() time.Duration {
	return r.expiry
}

// Register inserts or overwrites the entry for rec.ID as seen from addr.
func (r *Registry) Register(addr netip.Addr, rec protocol.RegistrationRecord) {
	entry := Entry{
		LastSeen: r.now(),
		Server:   rec.ToServerRecord(addr.Unmap()),
		ID:       rec.ID,
	}

	r.mu.Lock()
	r.servers[rec.ID] = entry
	r.mu.Unlock()
}

// Remove drops the entry for id and reports whether it existed.
func (r *Registry) Remove(id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.servers[id]
	delete(r.servers, id)
	return ok
}

// Expire removes entries last seen at least one expiry ago and returns how many were removed.
func (r *Registry) Expire() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.expireLocked()
}

func (r *Registry) expireLocked() int {
	cutoff := r.now().Add(-r.expiry)
	removed := 0
	for id, e := range r.servers {
		if !e.LastSeen.After(cutoff) {
			delete(r.servers, id)
			removed++
		}
	}

	return removed
}

// Len returns the number of entries, including ones not yet expired by a sweep.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.servers)
}

// CreateUpdateRecord expires stale entries and summarizes the rest.
func (r *Registry) CreateUpdateRecord() protocol.UpdateRecord {
	update, _ := r.Snapshot()
	return update
}

// ServerRecords returns a copy of the current records without expiring.
func (r *Registry) ServerRecords() []protocol.ServerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, servers := r.summarizeLocked()
	return servers
}

// Snapshot expires stale entries, then returns the update record and the
// server records it describes, both taken under one lock acquisition.
func (r *Registry) Snapshot() (protocol.UpdateRecord, []protocol.ServerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expireLocked()
	return r.summarizeLocked()
}

// Entries expires stale entries and returns a copy of what remains.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expireLocked()
	out := make([]Entry, 0, len(r.servers))
	for _, e := range r.servers {
		out = append(out, e)
	}

	return out
}

// summarizeLocked builds the listing for the current map. The update fields
// are 16-bit, so the listing stops at the last record that still fits both
// the server count and the byte count it announces.
func (r *Registry) summarizeLocked() (protocol.UpdateRecord, []protocol.ServerRecord) {
	servers := make([]protocol.ServerRecord, 0, len(r.servers))
	size := 0
	for _, e := range r.servers {
		n := e.Server.DataSize()
		if len(servers) == math.MaxUint16 || size+n > math.MaxUint16 {
			break
		}
		servers = append(servers, e.Server)
		size += n
	}

	return protocol.UpdateRecord{
		Version:           protocol.Version,
		RemainingDataSize: uint16(size),
		TotalServers:      uint16(len(servers)),
		RemainingServers:  uint16(len(servers)),
	}, servers
}
