package workspace

import (
	"context"
	"sync"
)

// Signal is a resolve-once future: exactly the shape spec.md needs for
// `whenSynced: Promise<void>` without pulling in a promise library. The
// first call to Resolve wins; later calls are no-ops, which is what lets
// workspace.go implement the Destroy-while-pending-whenSynced policy
// (SPEC_FULL.md §4): whichever of "sync finished" or "destroy finished"
// happens first decides the outcome.
type Signal struct {
	ch   chan struct{}
	err  error
	once sync.Once
}

// NewSignal returns an unresolved Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Resolve settles the signal with err (nil for success). Only the first
// call has any effect.
func (s *Signal) Resolve(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.ch)
	})
}

// Wait blocks until the signal resolves or ctx is cancelled.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the signal resolves, for select
// statements that need to multiplex several signals.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// IsResolved reports whether the signal has already settled.
func (s *Signal) IsResolved() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Resolved returns an already-resolved Signal, useful for extensions whose
// hydration is synchronous.
func Resolved(err error) *Signal {
	s := NewSignal()
	s.Resolve(err)
	return s
}
