package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/lww"
	"github.com/thisisharsh7/epicenter-sub010/schema"
	"github.com/thisisharsh7/epicenter-sub010/table"
	"github.com/thisisharsh7/epicenter-sub010/workspace"
)

func passthroughDef(t *testing.T) *schema.TableDefinition {
	t.Helper()
	def, err := schema.NewTableDefinition(func(v schema.Row) (schema.Row, error) {
		return v, nil
	}, schema.ValidatorFunc(func(v schema.Row) schema.RawResult {
		return schema.RawResult{Value: v}
	}))
	require.NoError(t, err)
	return def
}

func newPostsTable(t *testing.T) *table.Table {
	t.Helper()
	doc := crdt.NewDoc()
	store := lww.New(doc, "posts")
	return table.New(store, passthroughDef(t))
}

func TestSeedAndMirrorWrites(t *testing.T) {
	posts := newPostsTable(t)
	require.NoError(t, posts.Set(schema.Row{"id": "p1", "title": "Hello"}))

	ext, err := build(workspace.Context{Tables: map[string]*table.Table{"posts": posts}}, Config{DSN: ":memory:"})
	require.NoError(t, err)
	defer ext.Destroy()

	var data string
	require.NoError(t, ext.DB().QueryRow(`SELECT data FROM "posts" WHERE id = ?`, "p1").Scan(&data))
	assert.Contains(t, data, "Hello")

	require.NoError(t, posts.Set(schema.Row{"id": "p2", "title": "Second"}))
	var count int
	require.NoError(t, ext.DB().QueryRow(`SELECT count(*) FROM "posts"`).Scan(&count))
	assert.Equal(t, 2, count)

	posts.Delete("p1")
	var afterDelete int
	require.NoError(t, ext.DB().QueryRow(`SELECT count(*) FROM "posts" WHERE id = ?`, "p1").Scan(&afterDelete))
	assert.Equal(t, 0, afterDelete)
}

func TestMirrorUnknownTableErrors(t *testing.T) {
	posts := newPostsTable(t)
	_, err := build(workspace.Context{Tables: map[string]*table.Table{"posts": posts}}, Config{
		DSN:    ":memory:",
		Tables: []string{"missing"},
	})
	assert.Error(t, err)
}
