package syncext

import (
	"context"
	"encoding/json"

	"github.com/thisisharsh7/epicenter-sub010/logging"
)

// Decode parses one wire message. It never returns an error: per
// spec.md §4.9/§8, truncated, empty, or unknown-tag messages are dropped
// without effect (ok=false) and logged, the connection preserved. A
// malformed JSON awareness entry is dropped individually, not the whole
// message.
func Decode(ctx context.Context, raw []byte) (msg Message, ok bool) {
	if len(raw) == 0 {
		logging.Warn(ctx, "syncext: dropping empty message")
		return Message{}, false
	}
	r := newByteReader(raw)
	tag, err := r.uvarint()
	if err != nil {
		logging.Warn(ctx, "syncext: dropping truncated message (tag)")
		return Message{}, false
	}

	switch MessageType(tag) {
	case MessageSync:
		sm, err := decodeSync(r)
		if err != nil {
			logging.Warn(ctx, "syncext: dropping malformed sync message", logging.NewKV("error", err.Error()))
			return Message{}, false
		}
		return Message{Type: MessageSync, Sync: sm}, true
	case MessageAwareness:
		am, err := decodeAwareness(ctx, r)
		if err != nil {
			logging.Warn(ctx, "syncext: dropping malformed awareness message", logging.NewKV("error", err.Error()))
			return Message{}, false
		}
		return Message{Type: MessageAwareness, Awareness: am}, true
	default:
		logging.Warn(ctx, "syncext: dropping message with unknown tag", logging.NewKV("tag", tag))
		return Message{}, false
	}
}

func decodeStateVector(r *byteReader) (StateVector, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	sv := make(StateVector, n)
	for i := uint64(0); i < n; i++ {
		id, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		counter, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		sv[id] = counter
	}
	return sv, nil
}

func decodeSync(r *byteReader) (*SyncMessage, error) {
	subtype, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	msg := &SyncMessage{Subtype: SyncSubtype(subtype)}
	switch msg.Subtype {
	case SyncStateVectorRequest:
		sv, err := decodeStateVector(r)
		if err != nil {
			return nil, err
		}
		msg.StateVector = sv
	case SyncUpdate:
		update, err := r.bytes()
		if err != nil {
			return nil, err
		}
		msg.Update = update
	case SyncStateVectorAndUpdate:
		sv, err := decodeStateVector(r)
		if err != nil {
			return nil, err
		}
		update, err := r.bytes()
		if err != nil {
			return nil, err
		}
		msg.StateVector = sv
		msg.Update = update
	default:
		return nil, errTruncated
	}
	return msg, nil
}

func decodeAwareness(ctx context.Context, r *byteReader) (*AwarenessMessage, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	out := &AwarenessMessage{Entries: make([]AwarenessEntry, 0, n)}
	for i := uint64(0); i < n; i++ {
		clientID, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		clock, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		stateBytes, err := r.bytes()
		if err != nil {
			return nil, err
		}

		var state json.RawMessage
		if len(stateBytes) > 0 {
			if !json.Valid(stateBytes) {
				// Malformed JSON entries are skipped with a log entry,
				// per spec.md §4.9 — the rest of the message still
				// decodes.
				logging.Warn(ctx, "syncext: skipping awareness entry with malformed state json",
					logging.NewKV("clientId", clientID))
				continue
			}
			state = append(json.RawMessage{}, stateBytes...)
		}
		out.Entries = append(out.Entries, AwarenessEntry{ClientID: clientID, Clock: clock, State: state})
	}
	return out, nil
}
