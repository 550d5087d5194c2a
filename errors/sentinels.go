package errors

// Sentinel errors for the programmer-error taxonomy described in spec §7
// item 5 ("Contract violation by caller"). These are the only errors that
// ever propagate out of a helper's read/write path; everything else is
// represented in a typed result value.
var (
	// ErrAsyncValidator is raised when a validator passed to the schema
	// adapter returns a pending/async result instead of a synchronous one.
	ErrAsyncValidator = New("validator returned a pending result; synchronous validate(value) required")

	// ErrNoVersions is raised when a TableDefinition or KVDefinition is
	// constructed with zero schema versions.
	ErrNoVersions = New("definition must declare at least one schema version")

	// ErrEmptyKey is returned when a write (a set, or a store-level or
	// batch delete) is given an empty string id or KV key. Reads and the
	// table/KV helpers' Delete report an empty key through their result
	// values instead.
	ErrEmptyKey = New("key must not be empty")

	// ErrWorkspaceDestroyed is returned by whenSynced when destroy()
	// completed before hydration finished (see SPEC_FULL.md §4 Open
	// Question decision).
	ErrWorkspaceDestroyed = New("workspace was destroyed before it finished syncing")

	// ErrExtensionMissingContract is raised when an extension factory
	// returns a value that does not satisfy the minimal {whenSynced,
	// destroy} contract required by spec §4.6.
	ErrExtensionMissingContract = New("extension must provide WhenSynced and Destroy")

	// ErrUnknownKVKey is raised by the generated per-key KV accessor when
	// asked for a key that was never declared in the KV definition map.
	ErrUnknownKVKey = New("kv definition does not declare this key")

	// ErrSnapshotNotFound is returned by the revision extension when
	// view/restore is asked for a version number that doesn't exist.
	ErrSnapshotNotFound = New("revision snapshot not found")
)
