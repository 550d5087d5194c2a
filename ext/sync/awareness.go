package syncext

import (
	"encoding/json"
	"sort"
	"sync"
)

// AwarenessState holds ephemeral per-client presence state (spec.md
// GLOSSARY: "Awareness ... not persisted"), keyed by clientID, with a
// per-client clock used the same way the CRDT's own LWW discipline uses a
// timestamp: a higher clock wins.
type AwarenessState struct {
	mu     sync.Mutex
	clocks map[uint64]uint64
	states map[uint64]json.RawMessage
}

// NewAwarenessState returns an empty AwarenessState.
func NewAwarenessState() *AwarenessState {
	return &AwarenessState{
		clocks: make(map[uint64]uint64),
		states: make(map[uint64]json.RawMessage),
	}
}

// Apply merges msg into the state, returning the clientIDs that actually
// changed (skipping entries at or behind the locally-known clock).
func (a *AwarenessState) Apply(msg AwarenessMessage) []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var changed []uint64
	for _, e := range msg.Entries {
		if known, ok := a.clocks[e.ClientID]; ok && e.Clock <= known {
			continue
		}
		a.clocks[e.ClientID] = e.Clock
		if e.State == nil {
			delete(a.states, e.ClientID)
		} else {
			a.states[e.ClientID] = e.State
		}
		changed = append(changed, e.ClientID)
	}
	return changed
}

// Set records the local client's own state at clock, for inclusion in the
// next broadcast.
func (a *AwarenessState) Set(clientID uint64, clock uint64, state json.RawMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clocks[clientID] = clock
	if state == nil {
		delete(a.states, clientID)
	} else {
		a.states[clientID] = state
	}
}

// Remove clears clientID's state with a fresh clock tick, so peers that
// merge this removal know it supersedes any state they're holding.
func (a *AwarenessState) Remove(clientID uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clocks[clientID]++
	delete(a.states, clientID)
}

// Snapshot returns a stable copy of every currently-known client state.
func (a *AwarenessState) Snapshot() map[uint64]json.RawMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[uint64]json.RawMessage, len(a.states))
	for id, s := range a.states {
		out[id] = s
	}
	return out
}

// Encode renders the full current state as an AwarenessMessage suitable
// for broadcast.
func (a *AwarenessState) Encode() AwarenessMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]uint64, 0, len(a.clocks))
	for id := range a.clocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := AwarenessMessage{Entries: make([]AwarenessEntry, 0, len(ids))}
	for _, id := range ids {
		out.Entries = append(out.Entries, AwarenessEntry{ClientID: id, Clock: a.clocks[id], State: a.states[id]})
	}
	return out
}
