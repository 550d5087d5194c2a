package revision

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/sourcenetwork/immutable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/workspace"
)

func newExtension(t *testing.T, doc *crdt.Doc, cfg Config) *Extension {
	t.Helper()
	if cfg.Fs == nil {
		cfg.Fs = afero.NewMemMapFs()
	}
	ext, err := build(workspace.Context{WorkspaceID: "w1", Epoch: 0, Doc: doc}, cfg)
	require.NoError(t, err)
	return ext
}

func TestSaveListViewRestore(t *testing.T) {
	doc := crdt.NewDoc()
	store := crdtStore(doc, "posts")
	require.NoError(t, store.Set("p1", []byte(`{"id":"p1"}`)))

	ext := newExtension(t, doc, Config{RootDir: "/data"})

	rec, err := ext.Save("first")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Version)

	require.NoError(t, store.Set("p2", []byte(`{"id":"p2"}`)))
	rec2, err := ext.Save("second")
	require.NoError(t, err)
	assert.Equal(t, 1, rec2.Version)

	list, err := ext.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Label)
	assert.Equal(t, "second", list[1].Label)

	view, err := ext.View(0)
	require.NoError(t, err)
	_, ok := view.Get("posts", "p2")
	assert.False(t, ok, "snapshot 0 predates p2")
	_, ok = view.Get("posts", "p1")
	assert.True(t, ok)

	fresh := crdt.NewDoc()
	freshExt := newExtension(t, fresh, Config{RootDir: "/data", Fs: ext.fs})
	require.NoError(t, freshExt.Restore(1))
	_, ok = fresh.Get("posts", "p2")
	assert.True(t, ok)
}

func TestEviction(t *testing.T) {
	doc := crdt.NewDoc()
	ext := newExtension(t, doc, Config{RootDir: "/data", MaxVersions: immutable.Some(2)})

	for i := 0; i < 4; i++ {
		_, err := ext.Save("")
		require.NoError(t, err)
	}

	versions, err := ext.existingVersions()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, versions)
}

func TestViewUnknownVersion(t *testing.T) {
	doc := crdt.NewDoc()
	ext := newExtension(t, doc, Config{RootDir: "/data"})
	_, err := ext.View(7)
	assert.Error(t, err)
}

// crdtStore is a tiny helper to exercise the crdt.Doc directly the way
// lww.Store does, without importing the lww package (which would create
// an import cycle were this file placed under lww instead).
type rawStore struct {
	doc  *crdt.Doc
	name string
}

func crdtStore(doc *crdt.Doc, name string) rawStore {
	return rawStore{doc: doc, name: name}
}

func (s rawStore) Set(key string, value []byte) error {
	s.doc.Transact(func(tx *crdt.Tx) { tx.Set(s.name, key, value) })
	return nil
}
