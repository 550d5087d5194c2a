package syncext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
)

func TestEncodeDecodeSyncStateVectorRequest(t *testing.T) {
	sv := StateVector{1: 3, 2: 7}
	raw := EncodeSync(SyncMessage{Subtype: SyncStateVectorRequest, StateVector: sv})

	msg, ok := Decode(context.Background(), raw)
	require.True(t, ok)
	require.Equal(t, MessageSync, msg.Type)
	assert.Equal(t, SyncStateVectorRequest, msg.Sync.Subtype)
	assert.Equal(t, sv, msg.Sync.StateVector)
}

func TestEncodeDecodeSyncUpdate(t *testing.T) {
	raw := EncodeSync(SyncMessage{Subtype: SyncUpdate, Update: []byte("delta-bytes")})
	msg, ok := Decode(context.Background(), raw)
	require.True(t, ok)
	assert.Equal(t, SyncUpdate, msg.Sync.Subtype)
	assert.Equal(t, []byte("delta-bytes"), msg.Sync.Update)
}

func TestEncodeDecodeAwareness(t *testing.T) {
	raw := EncodeAwareness(AwarenessMessage{Entries: []AwarenessEntry{
		{ClientID: 1, Clock: 2, State: []byte(`{"name":"a"}`)},
		{ClientID: 2, Clock: 1, State: nil},
	}})

	msg, ok := Decode(context.Background(), raw)
	require.True(t, ok)
	require.Equal(t, MessageAwareness, msg.Type)
	require.Len(t, msg.Awareness.Entries, 2)
	assert.JSONEq(t, `{"name":"a"}`, string(msg.Awareness.Entries[0].State))
	assert.Nil(t, msg.Awareness.Entries[1].State)
}

func TestDecodeEmptyAndTruncatedAreDropped(t *testing.T) {
	_, ok := Decode(context.Background(), nil)
	assert.False(t, ok)

	_, ok = Decode(context.Background(), []byte{})
	assert.False(t, ok)

	full := EncodeSync(SyncMessage{Subtype: SyncUpdate, Update: []byte("hello world")})
	_, ok = Decode(context.Background(), full[:len(full)-3])
	assert.False(t, ok)
}

func TestDecodeUnknownTagDropped(t *testing.T) {
	_, ok := Decode(context.Background(), []byte{9})
	assert.False(t, ok)
}

func TestDecodeAwarenessSkipsMalformedEntryOnly(t *testing.T) {
	// Hand-build a message with one malformed entry followed by a valid
	// one, exercising spec.md §8's "one entry with state = '{invalid
	// json' ... engine does not throw; awareness set unchanged [for that
	// entry]" scenario.
	msg := AwarenessMessage{Entries: []AwarenessEntry{
		{ClientID: 1, Clock: 1, State: []byte(`{invalid json`)},
		{ClientID: 5, Clock: 1, State: []byte(`{"ok":true}`)},
	}}
	raw := EncodeAwareness(msg)

	decoded, ok := Decode(context.Background(), raw)
	require.True(t, ok)
	require.Len(t, decoded.Awareness.Entries, 1)
	assert.Equal(t, uint64(5), decoded.Awareness.Entries[0].ClientID)
}

func TestAwarenessStateApplyAndEncode(t *testing.T) {
	state := NewAwarenessState()
	changed := state.Apply(AwarenessMessage{Entries: []AwarenessEntry{
		{ClientID: 1, Clock: 1, State: []byte(`{"name":"a"}`)},
	}})
	assert.Equal(t, []uint64{1}, changed)

	// A stale clock (lower than known) is ignored.
	changed = state.Apply(AwarenessMessage{Entries: []AwarenessEntry{
		{ClientID: 1, Clock: 0, State: []byte(`{"name":"stale"}`)},
	}})
	assert.Empty(t, changed)

	snap := state.Snapshot()
	assert.JSONEq(t, `{"name":"a"}`, string(snap[1]))

	state.Remove(1)
	assert.Empty(t, state.Snapshot())
}

// pipeConn is an in-memory ByteConn for exercising Session without a real
// socket.
type pipeConn struct {
	out  chan []byte
	in   chan []byte
	done chan struct{}
}

func newPipePair() (a, b *pipeConn) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	a = &pipeConn{out: ab, in: ba, done: make(chan struct{})}
	b = &pipeConn{out: ba, in: ab, done: make(chan struct{})}
	return a, b
}

func (p *pipeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.done:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeConn) Write(ctx context.Context, data []byte) error {
	select {
	case p.out <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeConn) Close() error {
	close(p.done)
	return nil
}

func TestSessionHandshakeSyncsBothWays(t *testing.T) {
	serverDoc := crdt.NewDoc()
	serverDoc.Transact(func(tx *crdt.Tx) { tx.Set("posts", "p1", []byte("server-row")) })

	clientDoc := crdt.NewDoc()
	clientDoc.Transact(func(tx *crdt.Tx) { tx.Set("posts", "p2", []byte("client-row")) })

	clientConn, serverConn := newPipePair()

	clientAwareness := NewAwarenessState()
	serverAwareness := NewAwarenessState()

	clientSession := NewSession(clientConn, clientDoc, clientAwareness, RoleClient)
	serverSession := NewSession(serverConn, serverDoc, serverAwareness, RoleServer)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go serverSession.Run(ctx)
	go clientSession.Run(ctx)

	require.NoError(t, clientSession.Start(ctx))

	require.Eventually(t, func() bool {
		_, ok := serverDoc.Get("posts", "p2")
		return ok
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := clientDoc.Get("posts", "p1")
		return ok
	}, time.Second, 5*time.Millisecond)
}
