// Package lww implements C3, the LWW Keyed Store (`YKeyValueLww` in
// spec.md §4.3): a map-over-sequence view of one named store inside a
// crdt.Doc, with get/has/set/delete, a live shadow map, and an
// observe/unobserve protocol.
//
// Conflict resolution and the shadow-map maintenance itself live in the
// crdt package (entry.go/transaction.go) — this package is the thin typed
// facade spec.md §4.3 describes, generalizing the teacher's single-value
// core/crdt/lwwreg.go merge rule to a keyed map.
package lww

import (
	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/errors"
)

// ChangeAction mirrors crdt.Action at the lww API surface.
type ChangeAction = crdt.Action

const (
	Add    = crdt.ActionAdd
	Update = crdt.ActionUpdate
	Delete = crdt.ActionDelete
)

// Change is one key's net effect within a transaction, as delivered to an
// lww.Store observer.
type Change struct {
	Action   ChangeAction
	OldValue []byte
	NewValue []byte
}

// Handler observes a per-transaction map of key -> Change for one store.
type Handler func(changes map[string]Change, origin any)

// Store is C3's YKeyValueLww: a keyed LWW view over one named sequence
// inside a shared crdt.Doc.
type Store struct {
	doc       *crdt.Doc
	name      string
	unsub     func()
	handlers  map[int]Handler
	nextID    int
}

// New binds a Store to the named sequence inside doc. Multiple Stores
// over the same doc with different names are independent; Stores sharing
// the same name share the same underlying sequence (this is how KV's one
// shared store and a Table's dedicated store both work — see the
// workspace package, which hands out Store instances by name).
func New(doc *crdt.Doc, name string) *Store {
	s := &Store{
		doc:      doc,
		name:     name,
		handlers: make(map[int]Handler),
	}
	s.unsub = doc.Observe(s.dispatch)
	return s
}

func (s *Store) dispatch(evt crdt.UpdateEvent) {
	storeChanges, ok := evt.Changes[s.name]
	if !ok || len(storeChanges) == 0 {
		return
	}
	out := make(map[string]Change, len(storeChanges))
	for k, c := range storeChanges {
		out[k] = Change(c)
	}
	for _, h := range s.handlers {
		h(out, evt.Origin)
	}
}

// Get returns the current LWW-winning value for key, or ok=false if the
// key is absent or was deleted.
func (s *Store) Get(key string) (value []byte, ok bool) {
	return s.doc.Get(s.name, key)
}

// Has reports whether key currently has a live value.
func (s *Store) Has(key string) bool {
	return s.doc.Has(s.name, key)
}

// Set appends a new LWW entry for key inside its own single-op CRDT
// transaction.
func (s *Store) Set(key string, value []byte) error {
	if key == "" {
		return errors.ErrEmptyKey
	}
	s.doc.Transact(func(tx *crdt.Tx) {
		tx.Set(s.name, key, value)
	})
	return nil
}

// SetTx queues a write inside an already-open transaction (used by
// batch()-style callers that need several stores/keys to commit
// atomically together).
func (s *Store) SetTx(tx *crdt.Tx, key string, value []byte) error {
	if key == "" {
		return errors.ErrEmptyKey
	}
	tx.Set(s.name, key, value)
	return nil
}

// Delete appends a tombstone entry for key inside its own transaction.
func (s *Store) Delete(key string) error {
	if key == "" {
		return errors.ErrEmptyKey
	}
	s.doc.Transact(func(tx *crdt.Tx) {
		tx.Delete(s.name, key)
	})
	return nil
}

// DeleteTx queues a tombstone write inside an already-open transaction.
func (s *Store) DeleteTx(tx *crdt.Tx, key string) error {
	if key == "" {
		return errors.ErrEmptyKey
	}
	tx.Delete(s.name, key)
	return nil
}

// Transact exposes the underlying doc's transaction primitive, for batch()
// callers in table/kv. The Tx is not limited to this store: writes queued
// on it for other store names commit in the same transaction.
func (s *Store) Transact(fn func(tx *crdt.Tx)) {
	s.doc.Transact(fn)
}

// Map returns a snapshot of the current live key -> value projection.
func (s *Store) Map() map[string][]byte {
	return s.doc.Map(s.name)
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	return s.doc.Len(s.name)
}

// Name returns the store's name inside the document.
func (s *Store) Name() string {
	return s.name
}

// Doc returns the underlying document, for extensions that need to encode
// full state or subscribe at the document level.
func (s *Store) Doc() *crdt.Doc {
	return s.doc
}

// Observe subscribes handler to this store's changes and returns an
// unsubscribe function.
func (s *Store) Observe(handler Handler) (unsubscribe func()) {
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	return func() { delete(s.handlers, id) }
}

// Close unsubscribes this Store from the underlying document. It does not
// affect other Store instances sharing the same document.
func (s *Store) Close() {
	if s.unsub != nil {
		s.unsub()
	}
}
