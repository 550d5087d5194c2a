package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wserrors "github.com/thisisharsh7/epicenter-sub010/errors"
	"github.com/thisisharsh7/epicenter-sub010/schema"
)

func stringSchema() *schema.TableDefinition {
	def, _ := schema.NewTableDefinition(func(v schema.Row) (schema.Row, error) {
		return v, nil
	}, schema.ValidatorFunc(func(v schema.Row) schema.RawResult {
		if _, ok := v["id"].(string); !ok {
			return schema.RawResult{Issues: []schema.Issue{{Message: "id required"}}}
		}
		return schema.RawResult{Value: v}
	}))
	return def
}

type stubExtension struct {
	synced    *Signal
	destroyed bool
}

func (s *stubExtension) WhenSynced() *Signal { return s.synced }
func (s *stubExtension) Destroy() error      { s.destroyed = true; return nil }

func TestEmptyWorkspaceWhenSyncedResolves(t *testing.T) {
	client, err := Create(Config{WorkspaceID: "w1", Epoch: 0})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, client.WhenSynced(ctx))
	assert.Equal(t, "w1@0", client.GUID())
}

func TestExtensionsComposedWithConjunction(t *testing.T) {
	extA := &stubExtension{synced: Resolved(nil)}
	extB := &stubExtension{synced: NewSignal()}

	client, err := Create(Config{
		WorkspaceID: "w1",
		Tables:      map[string]*schema.TableDefinition{"posts": stringSchema()},
		Extensions: map[string]Factory{
			"a": func(ctx Context) (Extension, error) { return extA, nil },
			"b": func(ctx Context) (Extension, error) { return extB, nil },
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	// extB never resolves, so WhenSynced should time out, not resolve.
	err = client.WhenSynced(ctx)
	assert.Error(t, err)

	extB.synced.Resolve(nil)
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, client.WhenSynced(ctx2))
}

func TestDestroyIsIdempotentAndConcurrent(t *testing.T) {
	extA := &stubExtension{synced: Resolved(nil)}
	extB := &stubExtension{synced: Resolved(nil)}

	client, err := Create(Config{
		WorkspaceID: "w1",
		Extensions: map[string]Factory{
			"a": func(ctx Context) (Extension, error) { return extA, nil },
			"b": func(ctx Context) (Extension, error) { return extB, nil },
		},
	})
	require.NoError(t, err)

	require.NoError(t, client.Destroy(context.Background()))
	assert.True(t, extA.destroyed)
	assert.True(t, extB.destroyed)

	// second destroy is a no-op, no error
	require.NoError(t, client.Destroy(context.Background()))
}

func TestDestroyBeforeSyncRejectsWhenSynced(t *testing.T) {
	never := &stubExtension{synced: NewSignal()}
	client, err := Create(Config{
		WorkspaceID: "w1",
		Extensions: map[string]Factory{
			"never": func(ctx Context) (Extension, error) { return never, nil },
		},
	})
	require.NoError(t, err)

	require.NoError(t, client.Destroy(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = client.WhenSynced(ctx)
	assert.ErrorIs(t, err, wserrors.ErrWorkspaceDestroyed)
}

func TestTableAndKVAccessible(t *testing.T) {
	client, err := Create(Config{
		WorkspaceID: "w1",
		Tables:      map[string]*schema.TableDefinition{"posts": stringSchema()},
	})
	require.NoError(t, err)
	require.NoError(t, client.Table("posts").Set(schema.Row{"id": "p1"}))
	assert.Equal(t, 1, client.Table("posts").Count())
}
