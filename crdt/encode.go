package crdt

import (
	"bytes"

	"github.com/ugorji/go/codec"

	"github.com/thisisharsh7/epicenter-sub010/errors"
)

// wireEntry is the CBOR-serializable projection of entry. Grounded on the
// teacher's core/crdt/lwwreg.go LWWRegDelta, which encodes its delta with
// exactly this codec ("for now let's do cbor (quick to implement)").
type wireEntry struct {
	Store     string
	Key       string
	Value     []byte
	Tombstone bool
	Timestamp int64
	ClientID  uint64
	Counter   uint64
}

func cborHandle() *codec.CborHandle {
	return &codec.CborHandle{}
}

// EncodeStateAsUpdate encodes the document's full current entry log —
// every entry across every store, not just current winners, so a replica
// that applies this update can independently re-derive the same LWW
// winners — as a single opaque binary blob. This is the "binary
// encode/decode of full state" primitive spec.md §1 attributes to the
// CRDT library.
func (d *Doc) EncodeStateAsUpdate() ([]byte, error) {
	d.mu.Lock()
	var wire []wireEntry
	for _, s := range d.stores {
		s.seq.Scan(func(e entry) bool {
			wire = append(wire, wireEntry(e))
			return true
		})
	}
	d.mu.Unlock()

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, cborHandle())
	if err := enc.Encode(wire); err != nil {
		return nil, errors.Wrap("failed to encode crdt state", err)
	}
	return buf.Bytes(), nil
}

func decodeUpdate(update []byte) ([]entry, error) {
	if len(update) == 0 {
		return nil, nil
	}
	var wire []wireEntry
	dec := codec.NewDecoderBytes(update, cborHandle())
	if err := dec.Decode(&wire); err != nil {
		return nil, errors.Wrap("failed to decode crdt update", err)
	}
	out := make([]entry, len(wire))
	for i, w := range wire {
		out[i] = entry(w)
	}
	return out, nil
}

// StateVector returns, for every clientID this document has seen an entry
// from, the highest Counter observed from that client. A remote replica
// exchanges state vectors to compute the minimal delta it's missing (see
// ext/sync's framing of this exchange).
func (d *Doc) StateVector() map[uint64]uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	sv := make(map[uint64]uint64)
	for _, s := range d.stores {
		s.seq.Scan(func(e entry) bool {
			if e.Counter > sv[e.ClientID] {
				sv[e.ClientID] = e.Counter
			}
			return true
		})
	}
	return sv
}

// EncodeStateAsUpdateSince encodes only the entries this document has
// that are not already reflected in remoteSV — the delta a peer needs to
// catch up, per spec.md §4.9's SV1/SV2 exchange.
func (d *Doc) EncodeStateAsUpdateSince(remoteSV map[uint64]uint64) ([]byte, error) {
	d.mu.Lock()
	var wire []wireEntry
	for _, s := range d.stores {
		s.seq.Scan(func(e entry) bool {
			if e.Counter > remoteSV[e.ClientID] {
				wire = append(wire, wireEntry(e))
			}
			return true
		})
	}
	d.mu.Unlock()

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, cborHandle())
	if err := enc.Encode(wire); err != nil {
		return nil, errors.Wrap("failed to encode crdt delta", err)
	}
	return buf.Bytes(), nil
}
