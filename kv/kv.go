// Package kv implements C5, the KV Helper from spec.md §4.5: a flat
// dictionary (get/set/delete/observe by key) and a per-key accessor
// (kv.<key>.get/set/reset/observe) over one shared lww.Store, bound to a
// map of per-key schema.KVDefinitions.
package kv

import (
	"encoding/json"

	"github.com/thisisharsh7/epicenter-sub010/errors"
	"github.com/thisisharsh7/epicenter-sub010/lww"
	"github.com/thisisharsh7/epicenter-sub010/schema"
)

// Status mirrors table.Status for KV reads (spec.md §4.5: "Result
// taxonomy mirrors tables").
type Status string

const (
	StatusValid    Status = "valid"
	StatusInvalid  Status = "invalid"
	StatusNotFound Status = "not_found"
)

// GetResult is the outcome of Get.
type GetResult struct {
	Status Status
	Key    string
	Value  schema.Row
	Errors []schema.Issue
}

// DeleteStatus mirrors table.DeleteStatus.
type DeleteStatus string

const (
	StatusDeleted         DeleteStatus = "deleted"
	StatusNotFoundLocally DeleteStatus = "not_found_locally"
)

// DeleteResult is the outcome of Delete.
type DeleteResult struct {
	Status DeleteStatus
}

// EventType distinguishes a set from a delete in an observer callback.
type EventType string

const (
	EventSet    EventType = "set"
	EventDelete EventType = "delete"
)

// Event is delivered to an Observe callback: {type:'set', value} or
// {type:'delete'}, per spec.md §4.5.
type Event struct {
	Type  EventType
	Value schema.Row
}

// ObserveCallback receives Events for one key.
type ObserveCallback func(Event)

// KeyDefinition pairs a schema.KVDefinition with the default value Reset
// restores, so the per-key accessor's .reset() has somewhere to land.
type KeyDefinition struct {
	Definition *schema.KVDefinition
	Default    schema.Row
}

// KV is C5's KV Helper, bound to one shared lww.Store and a map of
// per-key definitions.
type KV struct {
	store *lww.Store
	defs  map[string]KeyDefinition
}

// New binds a KV helper to store using the given per-key definitions.
func New(store *lww.Store, defs map[string]KeyDefinition) *KV {
	return &KV{store: store, defs: defs}
}

// Store returns the underlying lww.Store, for extensions that need raw
// access below the validate/migrate pipeline.
func (k *KV) Store() *lww.Store {
	return k.store
}

// Defs returns the KV's per-key definition map, for extensions that need
// to enumerate declared keys (e.g. the persistence extension's
// definition.json writer).
func (k *KV) Defs() map[string]KeyDefinition {
	return k.defs
}

func encodeValue(v schema.Row) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap("failed to encode kv value", err)
	}
	return b, nil
}

func decodeValue(raw []byte) (schema.Row, error) {
	var v schema.Row
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (k *KV) definitionFor(key string) (KeyDefinition, error) {
	def, ok := k.defs[key]
	if !ok {
		return KeyDefinition{}, errors.ErrUnknownKVKey
	}
	return def, nil
}

// Get reads, validates, and migrates the value stored under key.
func (k *KV) Get(key string) GetResult {
	def, err := k.definitionFor(key)
	if err != nil {
		return GetResult{Status: StatusInvalid, Key: key, Errors: []schema.Issue{{Message: err.Error()}}}
	}
	raw, ok := k.store.Get(key)
	if !ok {
		return GetResult{Status: StatusNotFound, Key: key}
	}
	decoded, err := decodeValue(raw)
	if err != nil {
		return GetResult{Status: StatusInvalid, Key: key, Errors: []schema.Issue{{Message: "stored value is not valid JSON: " + err.Error()}}}
	}
	value, issues, err := def.Definition.ValidateAndMigrate(decoded)
	if err != nil {
		return GetResult{Status: StatusInvalid, Key: key, Errors: []schema.Issue{{Message: err.Error()}}}
	}
	if len(issues) > 0 {
		return GetResult{Status: StatusInvalid, Key: key, Errors: issues}
	}
	return GetResult{Status: StatusValid, Key: key, Value: value}
}

// Set writes value for key, trusted without validation (spec.md §4.4's
// "set does not validate" policy, shared by KV per §4.5).
func (k *KV) Set(key string, value schema.Row) error {
	if key == "" {
		return errors.ErrEmptyKey
	}
	if _, err := k.definitionFor(key); err != nil {
		return err
	}
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	return k.store.Set(key, raw)
}

// Delete removes the locally known value for key.
func (k *KV) Delete(key string) DeleteResult {
	if !k.store.Has(key) {
		return DeleteResult{Status: StatusNotFoundLocally}
	}
	_ = k.store.Delete(key)
	return DeleteResult{Status: StatusDeleted}
}

// Observe subscribes callback to changes on one key, skipping invalid
// states ("they surface on get", spec.md §4.5) and returns an unsubscribe
// function.
func (k *KV) Observe(key string, callback ObserveCallback) (unsubscribe func()) {
	return k.store.Observe(func(changes map[string]lww.Change, origin any) {
		change, ok := changes[key]
		if !ok {
			return
		}
		if change.Action == lww.Delete {
			callback(Event{Type: EventDelete})
			return
		}
		def, err := k.definitionFor(key)
		if err != nil {
			return
		}
		decoded, err := decodeValue(change.NewValue)
		if err != nil {
			return
		}
		value, issues, err := def.Definition.ValidateAndMigrate(decoded)
		if err != nil || len(issues) > 0 {
			return
		}
		callback(Event{Type: EventSet, Value: value})
	})
}

// Accessor is the per-key shape generated from the KV definition map:
// kv.<key>.get()/.set(v)/.reset()/.observe(cb).
type Accessor struct {
	kv  *KV
	key string
}

// Key returns the generated accessor for key, or ErrUnknownKVKey if key
// was never declared in the KV definition map.
func (k *KV) Key(key string) (*Accessor, error) {
	if _, err := k.definitionFor(key); err != nil {
		return nil, err
	}
	return &Accessor{kv: k, key: key}, nil
}

func (a *Accessor) Get() GetResult           { return a.kv.Get(a.key) }
func (a *Accessor) Set(value schema.Row) error { return a.kv.Set(a.key, value) }
func (a *Accessor) Delete() DeleteResult     { return a.kv.Delete(a.key) }

// Reset restores this key's default value, as declared in its
// KeyDefinition.
func (a *Accessor) Reset() error {
	def, err := a.kv.definitionFor(a.key)
	if err != nil {
		return err
	}
	return a.kv.Set(a.key, def.Default)
}

func (a *Accessor) Observe(callback ObserveCallback) (unsubscribe func()) {
	return a.kv.Observe(a.key, callback)
}
