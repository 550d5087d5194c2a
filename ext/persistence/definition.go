package persistence

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"

	"github.com/thisisharsh7/epicenter-sub010/errors"
)

// FieldMeta describes one field of a table's latest schema version, for
// definition.json's descriptive (not validating) field list.
type FieldMeta struct {
	Name string `json:"name" mapstructure:"name"`
	Type string `json:"type" mapstructure:"type"`
}

// TableMeta is definition.json's per-table descriptor: spec.md §6
// "tables maps a table name to { name, icon, cover, description, fields }".
type TableMeta struct {
	Name        string      `json:"name" mapstructure:"name"`
	Icon        string      `json:"icon,omitempty" mapstructure:"icon"`
	Cover       string      `json:"cover,omitempty" mapstructure:"cover"`
	Description string      `json:"description,omitempty" mapstructure:"description"`
	Fields      []FieldMeta `json:"fields" mapstructure:"fields"`
}

// KVMeta is definition.json's per-key descriptor.
type KVMeta struct {
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

// DefinitionMeta is spec.md §6's definition file format:
// { id, name, tables, kv }, with unknown extra top-level keys preserved
// on round-trip.
type DefinitionMeta struct {
	ID     string               `json:"id" mapstructure:"id"`
	Name   string               `json:"name" mapstructure:"name"`
	Tables map[string]TableMeta `json:"tables" mapstructure:"tables"`
	KV     map[string]KVMeta    `json:"kv" mapstructure:"kv"`
	// Extra preserves any top-level keys this port doesn't otherwise
	// model, so round-tripping definition.json through this extension
	// never silently drops data a host application stored there.
	Extra map[string]any `json:"-" mapstructure:",remain"`
}

func (e *Extension) writeDefinitionFile(ctx context.Context) error {
	if err := e.fs.MkdirAll(e.epochDir(), 0o755); err != nil {
		return err
	}
	b, err := MarshalDefinition(*e.definition)
	if err != nil {
		return err
	}
	return afero.WriteFile(e.fs, e.definitionPath(), b, 0o644)
}

// MarshalDefinition renders def as the pretty-printed JSON object
// definition.json expects, merging Extra's unknown keys in at the top
// level so they round-trip untouched.
func MarshalDefinition(def DefinitionMeta) ([]byte, error) {
	known, err := json.Marshal(struct {
		ID     string               `json:"id"`
		Name   string               `json:"name"`
		Tables map[string]TableMeta `json:"tables"`
		KV     map[string]KVMeta    `json:"kv"`
	}{ID: def.ID, Name: def.Name, Tables: def.Tables, KV: def.KV})
	if err != nil {
		return nil, errors.Wrap("failed to marshal definition", err)
	}

	merged := make(map[string]json.RawMessage)
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, errors.Wrap("failed to merge definition fields", err)
	}
	for key, value := range def.Extra {
		raw, err := json.Marshal(value)
		if err != nil {
			continue
		}
		merged[key] = raw
	}

	return json.MarshalIndent(merged, "", "  ")
}

// ReadDefinition loads and decodes a definition.json file, preserving any
// top-level keys this port doesn't model into DefinitionMeta.Extra via
// mapstructure's ",remain" tag — grounded on the same decode pattern
// workspace.FactoryFromOptions uses for extension option maps.
func ReadDefinition(fs afero.Fs, path string) (DefinitionMeta, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefinitionMeta{}, err
		}
		return DefinitionMeta{}, errors.Wrap("failed to read definition.json", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return DefinitionMeta{}, errors.Wrap("definition.json is not valid JSON", err)
	}

	var def DefinitionMeta
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &def,
		TagName: "mapstructure",
	})
	if err != nil {
		return DefinitionMeta{}, errors.Wrap("failed to build definition decoder", err)
	}
	if err := decoder.Decode(generic); err != nil {
		return DefinitionMeta{}, errors.Wrap("failed to decode definition.json", err)
	}
	return def, nil
}
