// Package crdt is the ordered-sequence CRDT substrate that spec.md §1
// treats as an external collaborator ("the engine treats it as a black
// box that provides: an ordered sequence of opaque entries, a transaction
// primitive, update events carrying a delta map, binary encode/decode of
// full state, and a monotonic clientID"). It is deliberately the simplest
// implementation that satisfies that contract — not a general op-based
// CRDT research artifact — so that lww.Store, and everything built on it,
// can exercise real merge/observe/persist behavior without depending on
// an external CRDT engine the Go ecosystem doesn't provide.
//
// See DESIGN.md "crdt" for what this is grounded on.
package crdt

import (
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"
)

// Action describes how a key changed within one transaction or merge,
// mirroring spec.md §4.3's observer delta shape.
type Action int

const (
	ActionAdd Action = iota
	ActionUpdate
	ActionDelete
)

// Change is one key's net effect within a single transaction or merge.
type Change struct {
	Action   Action
	OldValue []byte
	NewValue []byte
}

// UpdateEvent carries the merged delta produced by one transaction or one
// Apply call, keyed first by store name then by key within that store —
// "observers receive a single merged delta per transaction" (spec.md
// §4.3 Invariants).
type UpdateEvent struct {
	Changes map[string]map[string]Change
	// Origin distinguishes a locally-produced transaction (nil) from a
	// remotely merged update (non-nil, carrying whatever the caller of
	// Apply passed in) — extensions use this to avoid re-persisting
	// updates they themselves just applied from disk.
	Origin any
}

// UpdateHandler observes committed transactions/merges.
type UpdateHandler func(UpdateEvent)

// store is one named CRDT sequence (one per table, one shared for all KV
// keys) inside a Doc.
type store struct {
	seq     *btree.BTreeG[entry]
	winners map[string]entry
	seen    map[entryID]struct{}
}

func newStore() *store {
	return &store{
		seq:     btree.NewBTreeG[entry](entryLess),
		winners: make(map[string]entry),
		seen:    make(map[entryID]struct{}),
	}
}

// Doc is an in-process CRDT document: a set of named ordered sequences
// (stores) that can be transacted on, observed, merged from a remote
// update, and encoded to/decoded from a portable binary form.
type Doc struct {
	mu       sync.Mutex
	clientID uint64
	clock    hybridClock
	counter  uint64
	stores   map[string]*store

	handlersMu sync.Mutex
	nextID     int
	handlers   map[int]UpdateHandler
}

// NewDoc creates a new, empty CRDT document with a freshly generated
// clientID (unique per process; good enough for the single-process,
// single-writer-at-a-time substrate this port needs — see DESIGN.md).
func NewDoc() *Doc {
	return &Doc{
		clientID: newClientID(),
		stores:   make(map[string]*store),
		handlers: make(map[int]UpdateHandler),
	}
}

var clientIDCounter uint64

func newClientID() uint64 {
	return atomic.AddUint64(&clientIDCounter, 1)
}

// ClientID returns this document's monotonic client identifier.
func (d *Doc) ClientID() uint64 {
	return d.clientID
}

func (d *Doc) storeFor(name string) *store {
	s, ok := d.stores[name]
	if !ok {
		s = newStore()
		d.stores[name] = s
	}
	return s
}

// Observe subscribes handler to every committed transaction/merge across
// the whole document and returns an unsubscribe function.
func (d *Doc) Observe(handler UpdateHandler) (unsubscribe func()) {
	d.handlersMu.Lock()
	id := d.nextID
	d.nextID++
	d.handlers[id] = handler
	d.handlersMu.Unlock()
	return func() {
		d.handlersMu.Lock()
		delete(d.handlers, id)
		d.handlersMu.Unlock()
	}
}

func (d *Doc) emit(evt UpdateEvent) {
	if len(evt.Changes) == 0 {
		return
	}
	d.handlersMu.Lock()
	handlers := make([]UpdateHandler, 0, len(d.handlers))
	for _, h := range d.handlers {
		handlers = append(handlers, h)
	}
	d.handlersMu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}

// Get returns the current winning value for key in the named store, and
// whether one exists (a tombstoned/deleted key reports ok=false).
func (d *Doc) Get(storeName, key string) (value []byte, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, exists := d.stores[storeName]
	if !exists {
		return nil, false
	}
	e, exists := s.winners[key]
	if !exists || e.Tombstone {
		return nil, false
	}
	return e.Value, true
}

// Has reports whether key currently has a non-tombstoned winner in the
// named store.
func (d *Doc) Has(storeName, key string) bool {
	_, ok := d.Get(storeName, key)
	return ok
}

// Map returns a snapshot of the named store's live key -> value
// projection, skipping tombstoned keys — the shadow map spec.md §4.3
// calls `map`.
func (d *Doc) Map(storeName string) map[string][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string][]byte)
	s, exists := d.stores[storeName]
	if !exists {
		return out
	}
	for k, e := range s.winners {
		if !e.Tombstone {
			out[k] = e.Value
		}
	}
	return out
}

// Len returns the number of live (non-tombstoned) keys in the named
// store.
func (d *Doc) Len(storeName string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, exists := d.stores[storeName]
	if !exists {
		return 0
	}
	n := 0
	for _, e := range s.winners {
		if !e.Tombstone {
			n++
		}
	}
	return n
}
