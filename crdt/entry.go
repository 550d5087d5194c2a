package crdt

// entry is one record in the ordered CRDT sequence described in spec.md
// §3 "LWW entry": { key, value, timestamp }, generalized with a store
// name (so one Doc can host many independent tables plus one KV store)
// and a (ClientID, Counter) pair that gives entries with an equal
// timestamp a deterministic, totally-ordered tiebreak — the "sequence
// position" spec.md §4.3 calls for.
//
// Grounded on the RGA node shape in
// _examples/other_examples/dbd93eb5_..._crdt.go.go (ID = {Seq, NodeID},
// tombstone-by-flag deletes) and the priority/lexicographic merge rule in
// the teacher's core/crdt/lwwreg.go.
type entry struct {
	Store     string
	Key       string
	Value     []byte
	Tombstone bool
	Timestamp int64
	ClientID  uint64
	Counter   uint64
}

// entryLess gives entries a total order: by timestamp, then by the
// (ClientID, Counter) pair as the deterministic tiebreak. Two entries with
// the same (Store, Key, Timestamp, ClientID, Counter) are the same entry.
func entryLess(a, b entry) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.ClientID != b.ClientID {
		return a.ClientID < b.ClientID
	}
	return a.Counter < b.Counter
}

// wins reports whether candidate beats current as the LWW winner for
// their shared key, per spec.md §4.3: larger timestamp wins; ties broken
// by sequence order (the later entry in entryLess order wins).
func wins(candidate, current entry) bool {
	return entryLess(current, candidate)
}

// id returns the dedup identity of an entry, used to recognize an entry
// already merged into this Doc (Apply must be idempotent).
func (e entry) id() entryID {
	return entryID{ClientID: e.ClientID, Counter: e.Counter, Store: e.Store}
}

type entryID struct {
	ClientID uint64
	Counter  uint64
	Store    string
}
