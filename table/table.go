// Package table implements C4, the Table Helper from spec.md §4.4: CRUD +
// linear query over an lww.Store bound to a table's schema.TableDefinition,
// validating and migrating every read.
package table

import (
	"encoding/json"
	"sort"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/errors"
	"github.com/thisisharsh7/epicenter-sub010/lww"
	"github.com/thisisharsh7/epicenter-sub010/schema"
)

// Status is the result taxonomy spec.md §4.4 specifies for reads.
type Status string

const (
	StatusValid    Status = "valid"
	StatusInvalid  Status = "invalid"
	StatusNotFound Status = "not_found"
)

// GetResult is the outcome of Get/one element of GetAll.
type GetResult struct {
	Status Status
	ID     string
	Row    schema.Row
	Errors []schema.Issue
	Raw    schema.Row
}

// DeleteStatus is the result taxonomy for Delete.
type DeleteStatus string

const (
	StatusDeleted         DeleteStatus = "deleted"
	StatusNotFoundLocally DeleteStatus = "not_found_locally"
)

// DeleteResult is the outcome of Delete.
type DeleteResult struct {
	Status DeleteStatus
}

// DeleteManyResult partitions a deleteMany call's ids, per spec.md §4.4.
type DeleteManyResult struct {
	Deleted         []string
	NotFoundLocally []string
}

// Tx is the batch() mutation surface, exposing only Set and Delete as
// spec.md §4.4 specifies.
type Tx struct {
	table *Table
	tx    *crdt.Tx
}

// Set queues a row write within the open batch transaction.
func (t *Tx) Set(row schema.Row) error {
	return setTx(t.table, t.tx, row)
}

// Delete queues a tombstone write within the open batch transaction.
func (t *Tx) Delete(id string) error {
	return deleteTx(t.table, t.tx, id)
}

// ObserveCallback receives the set of row ids that changed in one
// transaction, and the transaction's origin (nil for local writes).
type ObserveCallback func(changedIDs map[string]struct{}, origin any)

// Table is C4's Table Helper.
type Table struct {
	store *lww.Store
	def   *schema.TableDefinition
}

// New binds a Table helper to store using def.
func New(store *lww.Store, def *schema.TableDefinition) *Table {
	return &Table{store: store, def: def}
}

// Store returns the underlying lww.Store, for extensions (persistence,
// revision, sqlite mirror) that need raw access below the validate/migrate
// pipeline.
func (t *Table) Store() *lww.Store {
	return t.store
}

func encodeRow(row schema.Row) ([]byte, error) {
	// JSON, not the crdt package's CBOR wire format: values round-trip
	// through the persistence extension's JSON mirror (spec.md §4.7), so
	// storing them as JSON avoids a second transcoding step there.
	b, err := json.Marshal(row)
	if err != nil {
		return nil, errors.Wrap("failed to encode row", err)
	}
	return b, nil
}

func decodeRow(raw []byte) (schema.Row, error) {
	var row schema.Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func rowID(row schema.Row) string {
	id, _ := row["id"].(string)
	return id
}

// Set overwrites any prior row with row["id"], inside an implicit
// single-op CRDT transaction. Per spec.md §4.4, set does not validate;
// only reads validate.
func (t *Table) Set(row schema.Row) error {
	id := rowID(row)
	if id == "" {
		return errors.ErrEmptyKey
	}
	raw, err := encodeRow(row)
	if err != nil {
		return err
	}
	return t.store.Set(id, raw)
}

func setTx(table *Table, tx *crdt.Tx, row schema.Row) error {
	id := rowID(row)
	if id == "" {
		return errors.ErrEmptyKey
	}
	raw, err := encodeRow(row)
	if err != nil {
		return err
	}
	return table.store.SetTx(tx, id, raw)
}

func deleteTx(table *Table, tx *crdt.Tx, id string) error {
	if id == "" {
		return errors.ErrEmptyKey
	}
	return table.store.DeleteTx(tx, id)
}

// SetMany writes every row in a single CRDT transaction.
func (t *Table) SetMany(rows []schema.Row) error {
	var firstErr error
	t.store.Transact(func(tx *crdt.Tx) {
		for _, row := range rows {
			if err := setTx(t, tx, row); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

func (t *Table) validate(id string, raw []byte) GetResult {
	decoded, err := decodeRow(raw)
	if err != nil {
		return GetResult{
			Status: StatusInvalid,
			ID:     id,
			Errors: []schema.Issue{{Message: "stored value is not valid JSON: " + err.Error()}},
		}
	}

	row, issues, err := t.def.ValidateAndMigrate(decoded)
	if err != nil {
		return GetResult{Status: StatusInvalid, ID: id, Errors: []schema.Issue{{Message: err.Error()}}, Raw: decoded}
	}
	if len(issues) > 0 {
		return GetResult{Status: StatusInvalid, ID: id, Errors: issues, Raw: decoded}
	}
	if migratedID := rowID(row); migratedID != id {
		return GetResult{
			Status: StatusInvalid,
			ID:     id,
			Errors: []schema.Issue{{Message: "migrated row id does not match the lookup key"}},
			Raw:    decoded,
		}
	}
	return GetResult{Status: StatusValid, ID: id, Row: row}
}

// Get reads, validates, and migrates the row stored under id.
func (t *Table) Get(id string) GetResult {
	raw, ok := t.store.Get(id)
	if !ok {
		return GetResult{Status: StatusNotFound, ID: id}
	}
	return t.validate(id, raw)
}

// Has reports whether id is locally present (valid or not).
func (t *Table) Has(id string) bool {
	return t.store.Has(id)
}

// Count returns the number of locally known rows (valid or invalid).
func (t *Table) Count() int {
	return t.store.Len()
}

func (t *Table) sortedIDs() []string {
	m := t.store.Map()
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetAll returns every locally known row's validation result, in a stable
// order.
func (t *Table) GetAll() []GetResult {
	ids := t.sortedIDs()
	out := make([]GetResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.Get(id))
	}
	return out
}

// GetAllValid returns only the valid, migrated rows.
func (t *Table) GetAllValid() []schema.Row {
	all := t.GetAll()
	out := make([]schema.Row, 0, len(all))
	for _, r := range all {
		if r.Status == StatusValid {
			out = append(out, r.Row)
		}
	}
	return out
}

// InvalidRow describes one row that failed validation, for diagnostics or
// repair tooling.
type InvalidRow struct {
	ID     string
	Errors []schema.Issue
	Raw    schema.Row
}

// GetAllInvalid returns every locally known row that failed validation.
func (t *Table) GetAllInvalid() []InvalidRow {
	all := t.GetAll()
	out := make([]InvalidRow, 0)
	for _, r := range all {
		if r.Status == StatusInvalid {
			out = append(out, InvalidRow{ID: r.ID, Errors: r.Errors, Raw: r.Raw})
		}
	}
	return out
}

// Filter returns every valid row matching predicate, in stable order.
// Only valid rows are ever offered to predicate.
func (t *Table) Filter(predicate func(schema.Row) bool) []schema.Row {
	out := make([]schema.Row, 0)
	for _, row := range t.GetAllValid() {
		if predicate(row) {
			out = append(out, row)
		}
	}
	return out
}

// Find returns the first valid row matching predicate, or nil.
func (t *Table) Find(predicate func(schema.Row) bool) schema.Row {
	for _, row := range t.GetAllValid() {
		if predicate(row) {
			return row
		}
	}
	return nil
}

// Delete removes the locally known row for id. This is a local check
// only; a remote replica may still hold the row (spec.md §4.4).
func (t *Table) Delete(id string) DeleteResult {
	if !t.store.Has(id) {
		return DeleteResult{Status: StatusNotFoundLocally}
	}
	_ = t.store.Delete(id)
	return DeleteResult{Status: StatusDeleted}
}

// DeleteMany removes every locally known row among ids in one CRDT
// transaction, partitioning the outcome.
func (t *Table) DeleteMany(ids []string) DeleteManyResult {
	var result DeleteManyResult
	t.store.Transact(func(tx *crdt.Tx) {
		for _, id := range ids {
			if !t.store.Has(id) {
				result.NotFoundLocally = append(result.NotFoundLocally, id)
				continue
			}
			_ = deleteTx(t, tx, id)
			result.Deleted = append(result.Deleted, id)
		}
	})
	return result
}

// Clear deletes every locally known row in one transaction.
func (t *Table) Clear() {
	ids := t.sortedIDs()
	if len(ids) == 0 {
		return
	}
	t.store.Transact(func(tx *crdt.Tx) {
		for _, id := range ids {
			_ = deleteTx(t, tx, id)
		}
	})
}

// Batch runs fn inside one CRDT transaction, exposing only Set/Delete.
func (t *Table) Batch(fn func(tx *Tx)) {
	t.store.Transact(func(ctx *crdt.Tx) {
		fn(&Tx{table: t, tx: ctx})
	})
}

// Observe subscribes callback to every transaction that touches this
// table and returns an unsubscribe function.
func (t *Table) Observe(callback ObserveCallback) (unsubscribe func()) {
	return t.store.Observe(func(changes map[string]lww.Change, origin any) {
		ids := make(map[string]struct{}, len(changes))
		for id := range changes {
			ids[id] = struct{}{}
		}
		callback(ids, origin)
	})
}
