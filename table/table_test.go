package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/lww"
	"github.com/thisisharsh7/epicenter-sub010/schema"
)

func requireString(field string) schema.Validator {
	return schema.ValidatorFunc(func(v schema.Row) schema.RawResult {
		s, ok := v[field].(string)
		if !ok || s == "" {
			return schema.RawResult{Issues: []schema.Issue{{Message: field + " required"}}}
		}
		return schema.RawResult{Value: v}
	})
}

func newPostsTable(t *testing.T) *Table {
	t.Helper()
	def, err := schema.NewTableDefinition(func(v schema.Row) (schema.Row, error) {
		return v, nil
	}, requireString("id"))
	require.NoError(t, err)

	doc := crdt.NewDoc()
	store := lww.New(doc, "posts")
	return New(store, def)
}

func TestSetThenGet(t *testing.T) {
	tbl := newPostsTable(t)
	require.NoError(t, tbl.Set(schema.Row{"id": "p1", "title": "Hello"}))

	res := tbl.Get("p1")
	assert.Equal(t, StatusValid, res.Status)
	assert.Equal(t, "Hello", res.Row["title"])
	assert.Equal(t, 1, tbl.Count())
}

func TestVersionedMigration(t *testing.T) {
	def, err := schema.NewTableDefinition(func(v schema.Row) (schema.Row, error) {
		if _, ok := v["views"]; !ok {
			v["views"] = float64(0)
		}
		return v, nil
	}, requireString("id"))
	require.NoError(t, err)

	doc := crdt.NewDoc()
	store := lww.New(doc, "posts")
	tbl := New(store, def)

	// Directly insert a raw v1 entry (no "views" field) into the store,
	// bypassing Set's JSON encoding path to simulate data written by
	// older code.
	raw := []byte(`{"id":"p1","title":"Old"}`)
	require.NoError(t, store.Set("p1", raw))

	res := tbl.Get("p1")
	require.Equal(t, StatusValid, res.Status)
	assert.Equal(t, "Old", res.Row["title"])
	assert.Equal(t, float64(0), res.Row["views"])
}

func TestGetNotFound(t *testing.T) {
	tbl := newPostsTable(t)
	res := tbl.Get("missing")
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestMismatchedMigratedIDIsInvalid(t *testing.T) {
	def, err := schema.NewTableDefinition(func(v schema.Row) (schema.Row, error) {
		v["id"] = "different"
		return v, nil
	}, requireString("id"))
	require.NoError(t, err)

	doc := crdt.NewDoc()
	store := lww.New(doc, "posts")
	tbl := New(store, def)
	require.NoError(t, store.Set("p1", []byte(`{"id":"p1"}`)))

	res := tbl.Get("p1")
	assert.Equal(t, StatusInvalid, res.Status)
}

func TestBatchAtomicity(t *testing.T) {
	tbl := newPostsTable(t)
	require.NoError(t, tbl.Set(schema.Row{"id": "p3", "title": "to-delete"}))

	var calls int
	var seen map[string]struct{}
	tbl.Observe(func(changedIDs map[string]struct{}, origin any) {
		calls++
		seen = changedIDs
	})

	tbl.Batch(func(tx *Tx) {
		_ = tx.Set(schema.Row{"id": "p1", "title": "X"})
		_ = tx.Set(schema.Row{"id": "p2", "title": "Y"})
		_ = tx.Delete("p3")
	})

	assert.Equal(t, 1, calls)
	assert.Len(t, seen, 3)
	_, hasP1 := seen["p1"]
	_, hasP2 := seen["p2"]
	_, hasP3 := seen["p3"]
	assert.True(t, hasP1 && hasP2 && hasP3)
}

func TestDeleteAndDeleteMany(t *testing.T) {
	tbl := newPostsTable(t)
	require.NoError(t, tbl.Set(schema.Row{"id": "p1", "title": "a"}))

	res := tbl.Delete("p1")
	assert.Equal(t, StatusDeleted, res.Status)

	res2 := tbl.Delete("p1")
	assert.Equal(t, StatusNotFoundLocally, res2.Status)

	require.NoError(t, tbl.Set(schema.Row{"id": "p2", "title": "b"}))
	many := tbl.DeleteMany([]string{"p2", "ghost"})
	assert.Equal(t, []string{"p2"}, many.Deleted)
	assert.Equal(t, []string{"ghost"}, many.NotFoundLocally)
}

func TestFilterAndFind(t *testing.T) {
	tbl := newPostsTable(t)
	require.NoError(t, tbl.SetMany([]schema.Row{
		{"id": "p1", "title": "alpha"},
		{"id": "p2", "title": "beta"},
	}))

	filtered := tbl.Filter(func(r schema.Row) bool { return r["title"] == "beta" })
	require.Len(t, filtered, 1)
	assert.Equal(t, "p2", filtered[0]["id"])

	found := tbl.Find(func(r schema.Row) bool { return r["id"] == "p1" })
	require.NotNil(t, found)
	assert.Equal(t, "alpha", found["title"])
}

func TestClear(t *testing.T) {
	tbl := newPostsTable(t)
	require.NoError(t, tbl.SetMany([]schema.Row{
		{"id": "p1", "title": "a"},
		{"id": "p2", "title": "b"},
	}))
	tbl.Clear()
	assert.Equal(t, 0, tbl.Count())
}

func TestGetAllInvalid(t *testing.T) {
	tbl := newPostsTable(t)
	doc := tbl.store.Doc()
	store := lww.New(doc, "posts")
	require.NoError(t, store.Set("bad", []byte(`{"missing":"id"}`)))

	invalid := tbl.GetAllInvalid()
	require.Len(t, invalid, 1)
	assert.Equal(t, "bad", invalid[0].ID)
}
