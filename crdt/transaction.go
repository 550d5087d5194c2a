package crdt

// Tx is the mutation surface exposed inside Doc.Transact. Every op queued
// on it commits as part of the single enclosing transaction — spec.md
// §4.3 Invariants: "after any batch of writes within a transaction,
// observers see exactly one delta with one entry per affected key".
type Tx struct {
	doc *Doc
	ops []op
}

type op struct {
	store     string
	key       string
	value     []byte
	tombstone bool
}

// Set queues a write of value for key in the named store.
func (tx *Tx) Set(storeName, key string, value []byte) {
	tx.ops = append(tx.ops, op{store: storeName, key: key, value: value})
}

// Delete queues a tombstone write for key in the named store.
func (tx *Tx) Delete(storeName, key string) {
	tx.ops = append(tx.ops, op{store: storeName, key: key, tombstone: true})
}

// Get reads the post-write-so-far value within the same transaction —
// "reads inside a transaction see post-write state" (spec.md §4.3).
func (tx *Tx) Get(storeName, key string) ([]byte, bool) {
	for i := len(tx.ops) - 1; i >= 0; i-- {
		o := tx.ops[i]
		if o.store == storeName && o.key == key {
			if o.tombstone {
				return nil, false
			}
			return o.value, true
		}
	}
	return tx.doc.Get(storeName, key)
}

// Transact runs fn inside exactly one CRDT transaction and, if it queued
// any writes, commits them atomically and fires every observer exactly
// once with the net per-key effect.
func (d *Doc) Transact(fn func(tx *Tx)) {
	tx := &Tx{doc: d}
	fn(tx)
	if len(tx.ops) == 0 {
		return
	}

	d.mu.Lock()
	changes := make(map[string]map[string]Change)
	for _, o := range tx.ops {
		s := d.storeFor(o.store)
		ts := d.clock.next()
		d.counter++
		e := entry{
			Store:     o.store,
			Key:       o.key,
			Value:     o.value,
			Tombstone: o.tombstone,
			Timestamp: ts,
			ClientID:  d.clientID,
			Counter:   d.counter,
		}
		applyEntryLocked(s, e, changes)
	}
	d.mu.Unlock()

	d.emit(UpdateEvent{Changes: changes})
}

// applyEntryLocked inserts e into s's sequence, updates the shadow map if
// e wins, and records the net change for this transaction/merge. Caller
// holds d.mu.
func applyEntryLocked(s *store, e entry, changes map[string]map[string]Change) {
	id := e.id()
	if _, dup := s.seen[id]; dup {
		// Apply must be idempotent: re-merging an entry we've already
		// seen (e.g. a replayed update) is a no-op.
		return
	}
	s.seen[id] = struct{}{}
	s.seq.Set(e)

	current, existed := s.winners[e.Key]
	if existed && !wins(e, current) {
		return
	}
	s.winners[e.Key] = e

	var action Action
	var oldValue []byte
	switch {
	case e.Tombstone:
		if !existed || current.Tombstone {
			// Deleting a key that was already absent/deleted: no
			// observable change.
			return
		}
		action = ActionDelete
		oldValue = current.Value
	case !existed || current.Tombstone:
		action = ActionAdd
	default:
		action = ActionUpdate
		oldValue = current.Value
	}

	storeChanges, ok := changes[e.Store]
	if !ok {
		storeChanges = make(map[string]Change)
		changes[e.Store] = storeChanges
	}
	newValue := e.Value
	if e.Tombstone {
		newValue = nil
	}
	change := Change{Action: action, OldValue: oldValue, NewValue: newValue}
	if prev, seen := storeChanges[e.Key]; seen {
		switch {
		case prev.Action == ActionAdd && e.Tombstone:
			delete(storeChanges, e.Key)
			return
		case prev.Action == ActionAdd:
			change.Action, change.OldValue = ActionAdd, nil
		case !e.Tombstone:
			change.Action, change.OldValue = ActionUpdate, prev.OldValue
		default:
			change.OldValue = prev.OldValue
		}
	}
	storeChanges[e.Key] = change
}

// Apply merges a remote full-state or delta update (as produced by
// EncodeStateAsUpdate) into this document, firing observers with the net
// effect exactly like a local transaction would. origin is attached to
// the resulting UpdateEvent so observers (in particular the persistence
// extension) can distinguish a remotely-merged update from a local write.
func (d *Doc) Apply(update []byte, origin any) error {
	entries, err := decodeUpdate(update)
	if err != nil {
		return err
	}

	d.mu.Lock()
	changes := make(map[string]map[string]Change)
	maxCounter := d.counter
	for _, e := range entries {
		s := d.storeFor(e.Store)
		applyEntryLocked(s, e, changes)
		if e.ClientID == d.clientID && e.Counter > maxCounter {
			maxCounter = e.Counter
		}
	}
	d.counter = maxCounter
	d.mu.Unlock()

	d.emit(UpdateEvent{Changes: changes, Origin: origin})
	return nil
}
