package syncext

import (
	"context"
	"sync"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/logging"
	"github.com/thisisharsh7/epicenter-sub010/workspace"
)

// Extension is C9's sync extension instance: it owns no persistent
// state of its own (spec.md GLOSSARY: awareness is "not persisted"), only
// the set of currently-connected Sessions and the shared AwarenessState
// they read/write. Accepting actual websocket connections at an HTTP
// layer is the host application's job (spec.md §1 scopes "HTTP servers"
// out); this extension only wires an already-established ByteConn into
// the protocol via AddConn.
type Extension struct {
	doc         *crdt.Doc
	awareness   *AwarenessState
	unsubscribe func()

	mu        sync.Mutex
	sessions  map[int]*Session
	nextID    int
	destroyed bool

	whenSynced *workspace.Signal
}

// New returns a workspace.Factory that constructs a sync Extension.
func New() workspace.Factory {
	return func(ctx workspace.Context) (workspace.Extension, error) {
		return build(ctx)
	}
}

func build(ctx workspace.Context) (*Extension, error) {
	ext := &Extension{
		doc:        ctx.Doc,
		awareness:  NewAwarenessState(),
		sessions:   make(map[int]*Session),
		whenSynced: workspace.Resolved(nil),
	}
	ext.unsubscribe = ctx.Doc.Observe(ext.onUpdate)
	return ext, nil
}

// WhenSynced resolves immediately: this extension has no state of its own
// to hydrate on construction, only connections that arrive afterward.
func (e *Extension) WhenSynced() *workspace.Signal {
	return e.whenSynced
}

func (e *Extension) onUpdate(evt crdt.UpdateEvent) {
	if _, fromRemote := evt.Origin.(remoteOrigin); fromRemote {
		// Already arrived over the wire from some peer; every other
		// connected peer will independently catch up via its own
		// SV1/SV2 handshake or the next locally-originated broadcast.
		// Re-broadcasting immediately would just double the traffic for
		// entries peers will dedupe anyway, not add correctness.
		return
	}
	data, err := e.doc.EncodeStateAsUpdate()
	if err != nil {
		logging.ErrorE(context.Background(), "syncext: failed to encode update for broadcast", err)
		return
	}
	e.broadcastUpdate(context.Background(), data)
}

func (e *Extension) connectedSessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	return out
}

func (e *Extension) broadcastUpdate(ctx context.Context, data []byte) {
	for _, s := range e.connectedSessions() {
		if err := s.SendUpdate(ctx, data); err != nil {
			logging.ErrorE(ctx, "syncext: failed to broadcast update to a peer", err)
		}
	}
}

// BroadcastAwareness sends msg to every currently-connected peer.
func (e *Extension) BroadcastAwareness(ctx context.Context, msg AwarenessMessage) {
	for _, s := range e.connectedSessions() {
		if err := s.SendAwareness(ctx, msg); err != nil {
			logging.ErrorE(ctx, "syncext: failed to broadcast awareness to a peer", err)
		}
	}
}

// Awareness returns the shared awareness state every Session merges into.
func (e *Extension) Awareness() *AwarenessState {
	return e.awareness
}

// AddConn wires an already-established ByteConn into the protocol and
// starts its read loop in the background. It returns the Session so the
// caller can drive SendAwareness directly for its own presence updates.
func (e *Extension) AddConn(ctx context.Context, conn ByteConn, role Role) *Session {
	session := NewSession(conn, e.doc, e.awareness, role)

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.sessions[id] = session
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.sessions, id)
			e.mu.Unlock()
		}()
		if err := session.Start(ctx); err != nil {
			logging.ErrorE(ctx, "syncext: failed to start session", err)
			return
		}
		if err := session.Run(ctx); err != nil {
			logging.Debug(ctx, "syncext: session ended", logging.NewKV("error", err.Error()))
		}
	}()

	return session
}

// Destroy closes every connected session and detaches the document
// observer. It is idempotent.
func (e *Extension) Destroy() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}
	e.destroyed = true
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.sessions = make(map[int]*Session)
	e.mu.Unlock()

	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	for _, s := range sessions {
		_ = s.Close()
	}
	return nil
}
