package schema

import "github.com/thisisharsh7/epicenter-sub010/errors"

// MigrateFunc maps any version accepted by a Definition's Union schema to
// the latest shape. Per spec.md §4.4 Policies, migrations must be pure and
// idempotent: migrating an already-latest row returns it unchanged.
type MigrateFunc func(value Row) (Row, error)

// Definition is the shared shape of TableDefinition and KVDefinition:
// spec.md §3 "A non-empty ordered sequence of schema versions plus a
// total migration function that maps any accepted version to the latest."
type Definition struct {
	union   *Union
	migrate MigrateFunc
}

// NewDefinition builds a Definition from an ordered, non-empty list of
// per-version validators (newest first) and a total migration function.
func NewDefinition(migrate MigrateFunc, versions ...Validator) (*Definition, error) {
	if migrate == nil {
		return nil, errors.New("definition requires a migration function")
	}
	union, err := NewUnion(versions...)
	if err != nil {
		return nil, err
	}
	return &Definition{union: union, migrate: migrate}, nil
}

// ValidateAndMigrate validates raw against the union-of-versions schema
// and, on success, migrates the result to the latest shape. This is the
// read-path pipeline every Table/KV get() runs (spec.md §4.4).
func (d *Definition) ValidateAndMigrate(raw Row) (Row, []Issue, error) {
	result := d.union.Validate(raw)
	if !result.Valid() {
		return nil, result.Issues, nil
	}
	migrated, err := d.migrate(result.Value)
	if err != nil {
		return nil, nil, errors.Wrap("migration function returned an error", err)
	}
	return migrated, nil, nil
}

// TableDefinition is spec.md §3's table definition: the union-of-versions
// schema validates on read; the latest version is the compile-time shape
// of writes (enforced by callers, not by this type — spec.md §4.4: "set
// does not validate — writes are trusted").
type TableDefinition struct {
	*Definition
}

// NewTableDefinition builds a TableDefinition.
func NewTableDefinition(migrate MigrateFunc, versions ...Validator) (*TableDefinition, error) {
	def, err := NewDefinition(migrate, versions...)
	if err != nil {
		return nil, err
	}
	return &TableDefinition{Definition: def}, nil
}

// KVDefinition is the same shape as TableDefinition, but the latest shape
// need not carry an "id" (spec.md §3).
type KVDefinition struct {
	*Definition
}

// NewKVDefinition builds a KVDefinition.
func NewKVDefinition(migrate MigrateFunc, versions ...Validator) (*KVDefinition, error) {
	def, err := NewDefinition(migrate, versions...)
	if err != nil {
		return nil, err
	}
	return &KVDefinition{Definition: def}, nil
}
