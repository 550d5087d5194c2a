package id

import (
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/thisisharsh7/epicenter-sub010/errors"
)

// SnakeSlug is a branded string type for snake_case identifiers (table and
// KV names use this kind). Branding is erased at runtime — it is a plain
// string under the hood — but the distinct named type prevents a caller
// from passing a KebabSlug or RichContentID where a table name is expected.
type SnakeSlug string

// KebabSlug is a branded string type for kebab-case identifiers (used for
// extension names, which are conventionally hyphenated).
type KebabSlug string

// RichContentID is a branded string type for ids produced by
// CreateRichContentID, distinguishing them from row/workspace ids.
type RichContentID string

// NewSnakeSlug converts s to snake_case and brands it. Returns an error if
// the result is empty.
func NewSnakeSlug(s string) (SnakeSlug, error) {
	converted := strcase.ToSnake(s)
	if converted == "" {
		return "", errors.New("snake slug must not be empty", errors.NewKV("input", s))
	}
	return SnakeSlug(converted), nil
}

// NewKebabSlug converts s to kebab-case and brands it. Returns an error if
// the result is empty.
func NewKebabSlug(s string) (KebabSlug, error) {
	converted := strcase.ToKebab(s)
	if converted == "" {
		return "", errors.New("kebab slug must not be empty", errors.NewKV("input", s))
	}
	return KebabSlug(converted), nil
}

// NewRichContentID brands a string produced by CreateRichContentID,
// validating the expected prefix.
func NewRichContentID(s string) (RichContentID, error) {
	if !strings.HasPrefix(s, richContentPrefix) {
		return "", errors.New("not a rich content id", errors.NewKV("input", s))
	}
	return RichContentID(s), nil
}

func (s SnakeSlug) String() string      { return string(s) }
func (s KebabSlug) String() string      { return string(s) }
func (s RichContentID) String() string  { return string(s) }
