// Package schema implements C1 (Validation Adapter) and C2 (Union Schema)
// from spec.md §4.1/§4.2, plus the TableDefinition/KVDefinition shapes
// from spec.md §3.
//
// Rows and KV values are represented as Row, a JSON-object-shaped
// map[string]any — the engine stores and migrates opaque structured
// values, not a statically-typed Go struct, exactly as spec.md describes
// ("Rows are stored as opaque values keyed by id").
package schema

import (
	"github.com/thisisharsh7/epicenter-sub010/errors"
)

// Row is a structured value: a table row or a KV value. Table rows are
// required to carry a non-empty string "id" field; KV values are not.
type Row = map[string]any

// Issue is a single validation failure, carrying a human-readable message
// and an optional path of property keys into the validated value — the
// Standard-Schema-v1 issue shape spec.md §4.1 describes.
type Issue struct {
	Message string
	Path    []string
}

// RawResult is what a wrapped validator returns from a single synchronous
// call: either a successful Value, or a non-empty Issues list. Pending
// must never be true for a conforming validator — see Validate.
type RawResult struct {
	Value   Row
	Issues  []Issue
	Pending bool
}

// Validator is the minimal contract this package adapts: any type exposing
// a synchronous validate(value) → {value} | {issues} contract, i.e.
// Standard Schema v1.
type Validator interface {
	Validate(value Row) RawResult
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(value Row) RawResult

func (f ValidatorFunc) Validate(value Row) RawResult { return f(value) }

// Result is the adapted, Go-idiomatic outcome of validating a value: a
// successful Value, or a non-empty Issues slice, never both.
type Result struct {
	Value  Row
	Issues []Issue
}

// Valid reports whether Validate succeeded.
func (r Result) Valid() bool { return len(r.Issues) == 0 }

// Adapter wraps a single Validator (C1), validating synchronously and
// surfacing issues without any transformation beyond what the validator
// itself emits.
type Adapter struct {
	validator Validator
}

// NewAdapter wraps validator for synchronous use.
func NewAdapter(validator Validator) *Adapter {
	return &Adapter{validator: validator}
}

// Validate runs the wrapped validator. It panics with ErrAsyncValidator if
// the validator reports a pending result — per spec.md §7 item 5, a
// contract violation by the caller/validator author is a programmer bug,
// not a data error, and spec.md §4.1 says the adapter "throws if the
// validator returns a pending result".
func (a *Adapter) Validate(value Row) Result {
	raw := a.validator.Validate(value)
	if raw.Pending {
		panic(errors.ErrAsyncValidator)
	}
	if len(raw.Issues) > 0 {
		return Result{Issues: raw.Issues}
	}
	return Result{Value: raw.Value}
}
