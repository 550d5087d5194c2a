package syncext

import (
	"context"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/logging"
)

// remoteOrigin marks a crdt.UpdateEvent produced by applying a message
// this Session just received, so the extension's broadcast-on-update
// observer doesn't immediately echo it back to the peer it came from.
type remoteOrigin struct{}

// Role picks which side of spec.md §4.9's exchange a Session plays:
// "client sends SV1 ... server responds with SV2 ... client responds
// with its own delta."
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Session runs the sync+awareness protocol over one ByteConn against one
// shared crdt.Doc and AwarenessState.
type Session struct {
	conn      ByteConn
	doc       *crdt.Doc
	awareness *AwarenessState
	role      Role
}

// NewSession binds a protocol Session to an already-established conn.
func NewSession(conn ByteConn, doc *crdt.Doc, awareness *AwarenessState, role Role) *Session {
	return &Session{conn: conn, doc: doc, awareness: awareness, role: role}
}

// Start kicks off the exchange: a client opens with a state-vector
// request; a server waits for one.
func (s *Session) Start(ctx context.Context) error {
	if s.role != RoleClient {
		return nil
	}
	return s.conn.Write(ctx, EncodeSync(SyncMessage{
		Subtype:     SyncStateVectorRequest,
		StateVector: s.doc.StateVector(),
	}))
}

// Run reads frames until ctx is cancelled or the connection errors,
// dispatching each to HandleMessage. The caller owns conn lifecycle
// (Close) — Run returns the read error on exit, including a clean
// cancellation.
func (s *Session) Run(ctx context.Context) error {
	for {
		raw, err := s.conn.Read(ctx)
		if err != nil {
			return err
		}
		if err := s.HandleMessage(ctx, raw); err != nil {
			logging.ErrorE(ctx, "syncext: failed to handle incoming message", err)
		}
	}
}

// HandleMessage decodes and dispatches one raw frame. Malformed/unknown
// frames are already dropped by Decode (ok=false); HandleMessage never
// errors on bad input, only on a failed write/apply while responding.
func (s *Session) HandleMessage(ctx context.Context, raw []byte) error {
	msg, ok := Decode(ctx, raw)
	if !ok {
		return nil
	}
	switch msg.Type {
	case MessageSync:
		return s.handleSync(ctx, msg.Sync)
	case MessageAwareness:
		s.awareness.Apply(*msg.Awareness)
	}
	return nil
}

func (s *Session) handleSync(ctx context.Context, sm *SyncMessage) error {
	switch sm.Subtype {
	case SyncStateVectorRequest:
		// We're the server half of the exchange: answer with our state
		// vector plus the delta the requester is missing.
		delta, err := s.doc.EncodeStateAsUpdateSince(sm.StateVector)
		if err != nil {
			return err
		}
		return s.conn.Write(ctx, EncodeSync(SyncMessage{
			Subtype:     SyncStateVectorAndUpdate,
			StateVector: s.doc.StateVector(),
			Update:      delta,
		}))

	case SyncStateVectorAndUpdate:
		// We're the client half: apply what we were sent, then answer
		// with the delta the server is missing from us.
		if err := s.doc.Apply(sm.Update, remoteOrigin{}); err != nil {
			return err
		}
		delta, err := s.doc.EncodeStateAsUpdateSince(sm.StateVector)
		if err != nil {
			return err
		}
		if len(delta) == 0 {
			return nil
		}
		return s.conn.Write(ctx, EncodeSync(SyncMessage{Subtype: SyncUpdate, Update: delta}))

	case SyncUpdate:
		return s.doc.Apply(sm.Update, remoteOrigin{})
	}
	return nil
}

// SendUpdate frames and writes update as a one-way SyncUpdate message
// (used to broadcast a locally-produced delta to an already-synced
// peer, outside the initial SV1/SV2/delta handshake).
func (s *Session) SendUpdate(ctx context.Context, update []byte) error {
	if len(update) == 0 {
		return nil
	}
	return s.conn.Write(ctx, EncodeSync(SyncMessage{Subtype: SyncUpdate, Update: update}))
}

// SendAwareness frames and writes msg as an awareness broadcast.
func (s *Session) SendAwareness(ctx context.Context, msg AwarenessMessage) error {
	return s.conn.Write(ctx, EncodeAwareness(msg))
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}
