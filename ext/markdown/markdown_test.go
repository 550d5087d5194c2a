package markdown

import (
	"context"
	"testing"

	"github.com/spf13/afero"
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

func TestExportThenImportRoundTrips(t *testing.T) {
	posts := newPostsTable(t)
	require.NoError(t, posts.Set(schema.Row{"id": "p1", "title": "Hello", "views": float64(3), "body": "# Hi\n\nworld"}))
	require.NoError(t, posts.Set(schema.Row{"id": "p2", "title": "Second", "views": float64(0), "body": "plain text"}))

	fs := afero.NewMemMapFs()
	ext, err := build(workspace.Context{Tables: map[string]*table.Table{"posts": posts}}, Config{
		OutDir: "/export",
		Fs:     fs,
	})
	require.NoError(t, err)

	require.NoError(t, ext.Export(context.Background(), "posts"))

	mdExists, err := afero.Exists(fs, "/export/posts/p1.md")
	require.NoError(t, err)
	assert.True(t, mdExists)
	htmlExists, err := afero.Exists(fs, "/export/posts/p1.html")
	require.NoError(t, err)
	assert.True(t, htmlExists)

	html, err := afero.ReadFile(fs, "/export/posts/p1.html")
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Hi</h1>")

	// Reimport into a fresh table and compare.
	fresh := newPostsTable(t)
	freshExt, err := build(workspace.Context{Tables: map[string]*table.Table{"posts": fresh}}, Config{
		OutDir: "/export",
		Fs:     fs,
	})
	require.NoError(t, err)
	require.NoError(t, freshExt.Import(context.Background(), "posts"))

	res := fresh.Get("p1")
	require.Equal(t, table.StatusValid, res.Status)
	assert.Equal(t, "Hello", res.Row["title"])
	assert.Equal(t, float64(3), res.Row["views"])
	assert.Equal(t, "# Hi\n\nworld", res.Row["body"])

	res2 := fresh.Get("p2")
	require.Equal(t, table.StatusValid, res2.Status)
	assert.Equal(t, float64(0), res2.Row["views"])
}

func TestExportUnknownTableErrors(t *testing.T) {
	posts := newPostsTable(t)
	_, err := build(workspace.Context{Tables: map[string]*table.Table{"posts": posts}}, Config{
		OutDir: "/export",
		Fs:     afero.NewMemMapFs(),
		Tables: []string{"missing"},
	})
	assert.Error(t, err)
}

func TestImportMissingDirectoryIsNoop(t *testing.T) {
	posts := newPostsTable(t)
	ext, err := build(workspace.Context{Tables: map[string]*table.Table{"posts": posts}}, Config{
		OutDir: "/export",
		Fs:     afero.NewMemMapFs(),
	})
	require.NoError(t, err)
	assert.NoError(t, ext.Import(context.Background(), "posts"))
	assert.Equal(t, 0, posts.Count())
}
