package schema

import "github.com/thisisharsh7/epicenter-sub010/errors"

// maxCollectedIssues bounds how many per-version issues the union schema
// collects on total failure, per spec.md §4.2: "a summary, …first-5
// collected issues".
const maxCollectedIssues = 5

// Union is C2: an ordered, non-empty list of validators tried in order,
// first success wins. Ordering affects cost, not correctness — spec.md
// §4.2 recommends newer versions first so fresh rows validate fast.
type Union struct {
	versions []*Adapter
}

// NewUnion builds a Union over versions, in the order they should be
// tried. Returns ErrNoVersions if versions is empty.
func NewUnion(versions ...Validator) (*Union, error) {
	if len(versions) == 0 {
		return nil, errors.ErrNoVersions
	}
	adapters := make([]*Adapter, len(versions))
	for i, v := range versions {
		adapters[i] = NewAdapter(v)
	}
	return &Union{versions: adapters}, nil
}

// Validate tries each version's validator in order and returns the first
// success. If every version fails, it returns an issue list starting with
// a summary issue and followed by up to the first 5 issues collected
// across all versions (spec.md §4.2).
func (u *Union) Validate(value Row) Result {
	var collected []Issue
	for _, v := range u.versions {
		result := v.Validate(value)
		if result.Valid() {
			return result
		}
		for _, issue := range result.Issues {
			if len(collected) < maxCollectedIssues {
				collected = append(collected, issue)
			}
		}
	}

	summary := Issue{Message: "no schema version matched the stored value"}
	return Result{Issues: append([]Issue{summary}, collected...)}
}
