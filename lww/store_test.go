package lww

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
)

func TestSetGetDelete(t *testing.T) {
	doc := crdt.NewDoc()
	s := New(doc, "posts")

	require.NoError(t, s.Set("p1", []byte("hello")))
	v, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), v)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete("p1"))
	_, ok = s.Get("p1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestEmptyKeyRejected(t *testing.T) {
	doc := crdt.NewDoc()
	s := New(doc, "posts")
	assert.Error(t, s.Set("", []byte("x")))
	assert.Error(t, s.Delete(""))
}

func TestObserveOneDeltaPerBatch(t *testing.T) {
	doc := crdt.NewDoc()
	s := New(doc, "posts")

	var calls int
	var lastChanges map[string]Change
	s.Observe(func(changes map[string]Change, origin any) {
		calls++
		lastChanges = changes
	})

	s.Transact(func(tx *crdt.Tx) {
		s.SetTx(tx, "p1", []byte("x"))
		s.SetTx(tx, "p2", []byte("y"))
	})

	assert.Equal(t, 1, calls)
	assert.Len(t, lastChanges, 2)
}

func TestIndependentStoresDoNotLeak(t *testing.T) {
	doc := crdt.NewDoc()
	posts := New(doc, "posts")
	comments := New(doc, "comments")

	require.NoError(t, posts.Set("p1", []byte("x")))
	_, ok := comments.Get("p1")
	assert.False(t, ok)
}
