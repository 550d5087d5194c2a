// Package id implements C10: opaque, short, URL-safe identifiers and typed
// brands for key kinds, as specified in spec.md §4.10.
//
// No nanoid package appears anywhere in the retrieved example corpus (see
// DESIGN.md), so generation is built directly on crypto/rand with a fixed
// alphabet; this is the one deliberately stdlib-only leaf in the module.
package id

import (
	"crypto/rand"

	"github.com/thisisharsh7/epicenter-sub010/errors"
)

// alphabet is lowercase URL-safe alphanumeric, matching spec.md's
// "12-character URL-safe lowercase alphanumeric nanoid" requirement.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const defaultLength = 12

// Generate returns a random URL-safe lowercase alphanumeric identifier of
// the given length. At length 12 over a 36-symbol alphabet, the collision
// probability at 10^8 generated ids is negligible (~36^12 keyspace).
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("id length must be positive")
	}
	buf := make([]byte, length)
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap("failed to read random bytes for id", err)
	}
	for i, b := range raw {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// GenerateID returns a 12-character URL-safe lowercase alphanumeric id,
// suitable for row ids, workspace ids, and revision labels.
func GenerateID() string {
	// crypto/rand.Read on the fixed-size buffer above cannot practically
	// fail on a supported OS; a failure here indicates a broken entropy
	// source, which is a programmer/environment bug, not a data error.
	out, err := Generate(defaultLength)
	if err != nil {
		panic(err)
	}
	return out
}

// richContentPrefix is prepended to rich-content ids so they are
// syntactically distinguishable from plain row ids at a glance.
const richContentPrefix = "rtxt_"

// CreateRichContentID returns an id of the form "rtxt_" + 12 random
// characters, for content blobs addressed separately from table rows.
func CreateRichContentID() string {
	return richContentPrefix + GenerateID()
}
