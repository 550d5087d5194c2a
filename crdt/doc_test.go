package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactSetGet(t *testing.T) {
	d := NewDoc()
	d.Transact(func(tx *Tx) {
		tx.Set("posts", "p1", []byte("hello"))
	})

	v, ok := d.Get("posts", "p1")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), v)
	assert.Equal(t, 1, d.Len("posts"))
}

func TestTransactSingleDeltaPerBatch(t *testing.T) {
	d := NewDoc()
	var events []UpdateEvent
	d.Observe(func(e UpdateEvent) { events = append(events, e) })

	d.Transact(func(tx *Tx) {
		tx.Set("posts", "p1", []byte("x"))
		tx.Set("posts", "p2", []byte("y"))
		tx.Delete("posts", "p3")
	})

	require.Len(t, events, 1)
	assert.Len(t, events[0].Changes["posts"], 2) // p3 delete is a no-op, not present before
}

func TestDeleteThenObserve(t *testing.T) {
	d := NewDoc()
	d.Transact(func(tx *Tx) { tx.Set("posts", "p1", []byte("x")) })

	var events []UpdateEvent
	d.Observe(func(e UpdateEvent) { events = append(events, e) })
	d.Transact(func(tx *Tx) { tx.Delete("posts", "p1") })

	require.Len(t, events, 1)
	change := events[0].Changes["posts"]["p1"]
	assert.Equal(t, ActionDelete, change.Action)
	assert.Equal(t, []byte("x"), change.OldValue)

	_, ok := d.Get("posts", "p1")
	assert.False(t, ok)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := NewDoc()
	d.Transact(func(tx *Tx) {
		tx.Set("posts", "p1", []byte("hello"))
		tx.Set("posts", "p2", []byte("world"))
	})

	update, err := d.EncodeStateAsUpdate()
	require.NoError(t, err)

	d2 := NewDoc()
	require.NoError(t, d2.Apply(update, nil))

	v1, ok := d2.Get("posts", "p1")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), v1)
	v2, ok := d2.Get("posts", "p2")
	require.True(t, ok)
	assert.Equal(t, []byte("world"), v2)
}

func TestApplyIsIdempotent(t *testing.T) {
	d := NewDoc()
	d.Transact(func(tx *Tx) { tx.Set("posts", "p1", []byte("x")) })
	update, err := d.EncodeStateAsUpdate()
	require.NoError(t, err)

	d2 := NewDoc()
	require.NoError(t, d2.Apply(update, nil))
	require.NoError(t, d2.Apply(update, nil))

	assert.Equal(t, 1, d2.Len("posts"))
}

func TestConcurrentSetLWWConflict(t *testing.T) {
	replicaA := NewDoc()
	replicaB := NewDoc()

	replicaA.Transact(func(tx *Tx) { tx.Set("posts", "p1", []byte("A")) })
	replicaB.Transact(func(tx *Tx) { tx.Set("posts", "p1", []byte("B")) })

	updateA, err := replicaA.EncodeStateAsUpdate()
	require.NoError(t, err)
	updateB, err := replicaB.EncodeStateAsUpdate()
	require.NoError(t, err)

	// Merge both updates, in either order, into a third replica.
	third := NewDoc()
	require.NoError(t, third.Apply(updateA, nil))
	require.NoError(t, third.Apply(updateB, nil))

	v, ok := third.Get("posts", "p1")
	require.True(t, ok)
	// Whichever write has the larger timestamp wins; since both used the
	// hybrid logical clock we can't assert which letter wins, only that
	// both replicas converge to the same value.
	fourth := NewDoc()
	require.NoError(t, fourth.Apply(updateB, nil))
	require.NoError(t, fourth.Apply(updateA, nil))
	v2, ok := fourth.Get("posts", "p1")
	require.True(t, ok)
	assert.Equal(t, v, v2)
}

func TestStateVectorAndDelta(t *testing.T) {
	d := NewDoc()
	d.Transact(func(tx *Tx) { tx.Set("posts", "p1", []byte("x")) })

	remote := NewDoc()
	sv := remote.StateVector()

	delta, err := d.EncodeStateAsUpdateSince(sv)
	require.NoError(t, err)
	require.NoError(t, remote.Apply(delta, nil))

	v, ok := remote.Get("posts", "p1")
	require.True(t, ok)
	assert.Equal(t, []byte("x"), v)
}
