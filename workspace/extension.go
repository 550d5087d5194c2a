package workspace

import (
	"github.com/mitchellh/mapstructure"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/errors"
	"github.com/thisisharsh7/epicenter-sub010/kv"
	"github.com/thisisharsh7/epicenter-sub010/table"
)

// Context is what every extension factory is called with synchronously
// at workspace construction time (spec.md §4.6): "the factory must return
// an object with at least whenSynced and destroy".
type Context struct {
	WorkspaceID string
	Epoch       int
	Doc         *crdt.Doc
	Tables      map[string]*table.Table
	KV          *kv.KV
}

// Extension is the minimal contract every extension factory's return
// value must satisfy.
type Extension interface {
	WhenSynced() *Signal
	Destroy() error
}

// Factory constructs one named extension from a Context, synchronously.
type Factory func(ctx Context) (Extension, error)

// FactoryFromOptions decodes a generic options map (e.g. loaded from a
// host application's own JSON/YAML config file) into a typed config
// struct T via mapstructure, then calls build. This is how a host wires
// an extension without this module depending on any particular config
// file format or flag-parsing library — spec.md §1 puts that firmly on
// the "downstream collaborator" side of the line.
func FactoryFromOptions[T any](options map[string]any, build func(ctx Context, cfg T) (Extension, error)) Factory {
	return func(ctx Context) (Extension, error) {
		var cfg T
		if options != nil {
			decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				Result:           &cfg,
				WeaklyTypedInput: true,
				TagName:          "mapstructure",
			})
			if err != nil {
				return nil, errors.Wrap("failed to build extension options decoder", err)
			}
			if err := decoder.Decode(options); err != nil {
				return nil, errors.Wrap("failed to decode extension options", err)
			}
		}
		return build(ctx, cfg)
	}
}
