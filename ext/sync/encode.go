package syncext

import (
	"bytes"
	"sort"
)

func encodeStateVector(buf *bytes.Buffer, sv StateVector) {
	ids := make([]uint64, 0, len(sv))
	for id := range sv {
		ids = append(ids, id)
	}
	// Deterministic order so equal state equals equal bytes, the same
	// property spec.md §8 requires of the JSON mirror.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	appendUvarint(buf, uint64(len(ids)))
	for _, id := range ids {
		appendUvarint(buf, id)
		appendUvarint(buf, sv[id])
	}
}

// EncodeSync frames a SyncMessage as a complete wire message, tag byte
// included.
func EncodeSync(msg SyncMessage) []byte {
	var buf bytes.Buffer
	appendUvarint(&buf, uint64(MessageSync))
	appendUvarint(&buf, uint64(msg.Subtype))
	switch msg.Subtype {
	case SyncStateVectorRequest:
		encodeStateVector(&buf, msg.StateVector)
	case SyncUpdate:
		appendBytes(&buf, msg.Update)
	case SyncStateVectorAndUpdate:
		encodeStateVector(&buf, msg.StateVector)
		appendBytes(&buf, msg.Update)
	}
	return buf.Bytes()
}

// EncodeAwareness frames an AwarenessMessage as a complete wire message,
// tag byte included. A nil Entry.State encodes as a zero-length payload,
// decoded back as `null`.
func EncodeAwareness(msg AwarenessMessage) []byte {
	var buf bytes.Buffer
	appendUvarint(&buf, uint64(MessageAwareness))
	appendUvarint(&buf, uint64(len(msg.Entries)))
	for _, e := range msg.Entries {
		appendUvarint(&buf, e.ClientID)
		appendUvarint(&buf, e.Clock)
		appendBytes(&buf, e.State)
	}
	return buf.Bytes()
}
