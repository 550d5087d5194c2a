package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requiredStringValidator(field string) Validator {
	return ValidatorFunc(func(value Row) RawResult {
		v, ok := value[field]
		if !ok {
			return RawResult{Issues: []Issue{{Message: field + " is required", Path: []string{field}}}}
		}
		if _, ok := v.(string); !ok {
			return RawResult{Issues: []Issue{{Message: field + " must be a string", Path: []string{field}}}}
		}
		return RawResult{Value: value}
	})
}

func TestAdapterValidate(t *testing.T) {
	a := NewAdapter(requiredStringValidator("title"))
	ok := a.Validate(Row{"title": "hi"})
	assert.True(t, ok.Valid())

	bad := a.Validate(Row{})
	assert.False(t, bad.Valid())
	require.Len(t, bad.Issues, 1)
}

func TestAdapterPanicsOnPending(t *testing.T) {
	a := NewAdapter(ValidatorFunc(func(value Row) RawResult {
		return RawResult{Pending: true}
	}))
	assert.Panics(t, func() { a.Validate(Row{}) })
}

func TestUnionFirstMatchWins(t *testing.T) {
	u, err := NewUnion(requiredStringValidator("title"), requiredStringValidator("name"))
	require.NoError(t, err)

	r := u.Validate(Row{"title": "hi"})
	assert.True(t, r.Valid())

	r2 := u.Validate(Row{"name": "hi"})
	assert.True(t, r2.Valid())
}

func TestUnionTotalFailureCollectsIssues(t *testing.T) {
	u, err := NewUnion(requiredStringValidator("title"), requiredStringValidator("name"))
	require.NoError(t, err)

	r := u.Validate(Row{})
	require.False(t, r.Valid())
	require.GreaterOrEqual(t, len(r.Issues), 1)
	assert.Contains(t, r.Issues[0].Message, "no schema version matched")
}

func TestMigrationIdempotence(t *testing.T) {
	def, err := NewTableDefinition(func(v Row) (Row, error) {
		out := Row{}
		for k, val := range v {
			out[k] = val
		}
		if _, ok := out["views"]; !ok {
			out["views"] = 0
		}
		return out, nil
	}, requiredStringValidator("id"))
	require.NoError(t, err)

	row, issues, err := def.ValidateAndMigrate(Row{"id": "p1", "title": "Old"})
	require.NoError(t, err)
	require.Nil(t, issues)
	assert.Equal(t, 0, row["views"])

	row2, issues2, err := def.ValidateAndMigrate(row)
	require.NoError(t, err)
	require.Nil(t, issues2)
	assert.Equal(t, row, row2)
}
