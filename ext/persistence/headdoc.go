package persistence

import (
	"context"
	"encoding/json"
	"os"
	"sort"

	"github.com/spf13/afero"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/logging"
)

// headMetaStore and headEpochsStore are the two named sequences inside
// the head document's own small crdt.Doc (independent of the per-epoch
// data document, per spec.md §3's "Head document").
const (
	headMetaStore   = "meta"
	headEpochsStore = "epochs"
	headEpochsKey   = "list"
)

// loadHeadDoc reads this workspace's head.yjs (if any), applies it, then
// merges in this extension's own Meta and the current epoch, and
// re-persists both the binary and the flattened JSON mirror.
func (e *Extension) loadHeadDoc(ctx context.Context) error {
	if err := e.fs.MkdirAll(e.headDir(), 0o755); err != nil {
		return err
	}

	raw, err := afero.ReadFile(e.fs, e.headBinaryPath())
	switch {
	case err == nil:
		if applyErr := e.headDoc.Apply(raw, loadOrigin{}); applyErr != nil {
			logging.ErrorE(ctx, "persistence: failed to apply loaded head document", applyErr)
		}
	case os.IsNotExist(err):
		// New head document; nothing to apply yet.
	default:
		logging.Error(ctx, "persistence: failed to read head document; treating as new",
			logging.NewKV("path", e.headBinaryPath()), logging.NewKV("error", err.Error()))
	}

	e.headDoc.Transact(func(tx *crdt.Tx) { e.mergeMeta(tx) })

	return e.saveHeadDoc(ctx)
}

func setJSON(tx *crdt.Tx, storeName, key string, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	tx.Set(storeName, key, b)
}

func (e *Extension) mergeMeta(tx *crdt.Tx) {
	if e.meta.Name != "" {
		setJSON(tx, headMetaStore, "name", e.meta.Name)
	}
	if e.meta.Icon != nil {
		setJSON(tx, headMetaStore, "icon", *e.meta.Icon)
	}
	if e.meta.Description != nil {
		setJSON(tx, headMetaStore, "description", *e.meta.Description)
	}

	epochs := e.currentEpochs()
	for _, ep := range epochs {
		if ep == e.epoch {
			return
		}
	}
	epochs = append(epochs, e.epoch)
	sort.Ints(epochs)
	setJSON(tx, headEpochsStore, headEpochsKey, epochs)
}

func (e *Extension) currentEpochs() []int {
	raw, ok := e.headDoc.Get(headEpochsStore, headEpochsKey)
	if !ok {
		return nil
	}
	var out []int
	_ = json.Unmarshal(raw, &out)
	return out
}

func (e *Extension) saveHeadDoc(ctx context.Context) error {
	data, err := e.headDoc.EncodeStateAsUpdate()
	if err != nil {
		return err
	}
	if err := afero.WriteFile(e.fs, e.headBinaryPath(), data, 0o644); err != nil {
		return err
	}
	return e.writeHeadJSON(ctx)
}

// writeHeadJSON implements spec.md §4.7's "Head doc JSON flattening": the
// meta map's fields become top-level keys, and epochs is preserved as-is
// rather than nested under a "meta" key.
func (e *Extension) writeHeadJSON(ctx context.Context) error {
	out := make(map[string]any)
	for key, raw := range e.headDoc.Map(headMetaStore) {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			out[key] = v
		}
	}
	epochs := e.currentEpochs()
	if epochs == nil {
		epochs = []int{}
	}
	out["epochs"] = epochs

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(e.fs, e.headJSONPath(), b, 0o644)
}
