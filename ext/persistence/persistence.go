// Package persistence implements C7, the Persistence Extension from
// spec.md §4.7: binary dump + JSON mirror per epoch folder, load-on-start,
// debounced JSON writes, immediate binary writes, and head-doc flattening.
//
// Grounded on the teacher's root-directory/config-file discipline in
// cli/start.go (config.CreateRootDirAndConfigFile, config.FolderExists):
// this port generalizes "one config file under one root dir" to "one
// epoch-partitioned data file plus a flattened head file under one
// per-workspace root dir". The filesystem is abstracted behind afero.Fs
// (a teacher indirect dependency, pulled in via viper) so tests run
// against afero.NewMemMapFs() instead of touching the real disk.
package persistence

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/errors"
	"github.com/thisisharsh7/epicenter-sub010/kv"
	"github.com/thisisharsh7/epicenter-sub010/logging"
	"github.com/thisisharsh7/epicenter-sub010/table"
	"github.com/thisisharsh7/epicenter-sub010/workspace"
)

// defaultJSONDebounce is spec.md §4.7's "Default debounce 500 ms".
const defaultJSONDebounce = 500 * time.Millisecond

// WorkspaceMeta is the identity information the head document carries,
// per spec.md §3's "Head document": name, icon, description.
type WorkspaceMeta struct {
	Name        string
	Icon        *string
	Description *string
}

// Config is spec.md §6's persistence extension configuration surface,
// plus this port's Meta/Definition additions needed to populate the head
// document and definition.json.
type Config struct {
	// RootDir is the directory all workspaces are persisted under.
	RootDir string
	// Fs is the filesystem to use; defaults to afero.NewOsFs().
	Fs afero.Fs
	// JSONDebounceMs is the debounce window for the JSON mirror write,
	// default 500.
	JSONDebounceMs int
	// Meta is this workspace's identity, mirrored into the head document.
	Meta WorkspaceMeta
	// Definition, if set, is written to definition.json on every load.
	Definition *DefinitionMeta
}

// loadOrigin marks an UpdateEvent produced by applying a file this
// extension itself just read from disk, so onUpdate doesn't immediately
// write back state it only just loaded.
type loadOrigin struct{}

// Extension is C7's persistence extension instance, one per workspace.
type Extension struct {
	fs             afero.Fs
	rootDir        string
	workspaceID    string
	epoch          int
	doc            *crdt.Doc
	tables         map[string]*table.Table
	kv             *kv.KV
	jsonDebounce   time.Duration
	meta           WorkspaceMeta
	definition     *DefinitionMeta
	headDoc        *crdt.Doc
	unsubscribe    func()

	mu        sync.Mutex
	jsonTimer *time.Timer
	destroyed bool

	whenSynced *workspace.Signal
}

// New returns a workspace.Factory that constructs a persistence Extension
// bound to cfg, for use in workspace.Config.Extensions.
func New(cfg Config) workspace.Factory {
	return func(ctx workspace.Context) (workspace.Extension, error) {
		return build(ctx, cfg)
	}
}

func build(ctx workspace.Context, cfg Config) (*Extension, error) {
	if cfg.RootDir == "" {
		return nil, errors.New("persistence: rootDir is required")
	}
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	debounce := defaultJSONDebounce
	if cfg.JSONDebounceMs > 0 {
		debounce = time.Duration(cfg.JSONDebounceMs) * time.Millisecond
	}

	ext := &Extension{
		fs:           fs,
		rootDir:      cfg.RootDir,
		workspaceID:  ctx.WorkspaceID,
		epoch:        ctx.Epoch,
		doc:          ctx.Doc,
		tables:       ctx.Tables,
		kv:           ctx.KV,
		jsonDebounce: debounce,
		meta:         cfg.Meta,
		definition:   cfg.Definition,
		headDoc:      crdt.NewDoc(),
		whenSynced:   workspace.NewSignal(),
	}
	ext.unsubscribe = ctx.Doc.Observe(ext.onUpdate)

	go ext.load()

	return ext, nil
}

// WhenSynced resolves once load-on-start has completed (file applied, or
// the initial full-state write for a brand-new workspace done).
func (e *Extension) WhenSynced() *workspace.Signal {
	return e.whenSynced
}

func (e *Extension) onUpdate(evt crdt.UpdateEvent) {
	if _, fromLoad := evt.Origin.(loadOrigin); fromLoad {
		return
	}
	e.saveBinary(context.Background())
	e.scheduleJSON()
}

// load implements spec.md §4.7's "Load" behavior: resolve the path,
// ensure parent directories exist, attempt to read workspace.yjs; if
// present, apply it; otherwise mark the file as new and write the
// current full state. whenSynced resolves only once this completes.
func (e *Extension) load() {
	ctx := context.Background()

	if err := e.fs.MkdirAll(e.epochDir(), 0o755); err != nil {
		logging.ErrorE(ctx, "persistence: failed to create epoch directory", err,
			logging.NewKV("dir", e.epochDir()))
	}

	raw, err := afero.ReadFile(e.fs, e.epochBinaryPath())
	switch {
	case err == nil:
		if applyErr := e.doc.Apply(raw, loadOrigin{}); applyErr != nil {
			logging.ErrorE(ctx, "persistence: failed to apply loaded state; continuing with an empty document", applyErr,
				logging.NewKV("path", e.epochBinaryPath()))
		}
	case os.IsNotExist(err):
		// New workspace/epoch: write the current (possibly empty) state
		// immediately so the file exists from the start.
		e.saveBinary(ctx)
	default:
		logging.Error(ctx, "persistence: failed to read workspace file; treating as new",
			logging.NewKV("path", e.epochBinaryPath()), logging.NewKV("error", err.Error()))
		e.saveBinary(ctx)
	}

	e.writeJSONMirror(ctx)

	if err := e.loadHeadDoc(ctx); err != nil {
		logging.ErrorE(ctx, "persistence: failed to load head document", err)
	}

	if e.definition != nil {
		if err := e.writeDefinitionFile(ctx); err != nil {
			logging.ErrorE(ctx, "persistence: failed to write definition.json", err)
		}
	}

	e.whenSynced.Resolve(nil)
}

func (e *Extension) saveBinary(ctx context.Context) {
	data, err := e.doc.EncodeStateAsUpdate()
	if err != nil {
		logging.ErrorE(ctx, "persistence: failed to encode workspace state", err)
		return
	}
	if err := e.fs.MkdirAll(e.epochDir(), 0o755); err != nil {
		logging.ErrorE(ctx, "persistence: failed to create epoch directory", err)
		return
	}
	if err := afero.WriteFile(e.fs, e.epochBinaryPath(), data, 0o644); err != nil {
		logging.ErrorE(ctx, "persistence: failed to write binary state", err,
			logging.NewKV("path", e.epochBinaryPath()))
	}
}

func (e *Extension) scheduleJSON() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	if e.jsonTimer != nil {
		e.jsonTimer.Stop()
	}
	e.jsonTimer = time.AfterFunc(e.jsonDebounce, func() {
		e.writeJSONMirror(context.Background())
	})
}

func (e *Extension) writeJSONMirror(ctx context.Context) {
	mirror := tableAndKVProjection(e.tables, e.kv)
	b, err := json.MarshalIndent(mirror, "", "  ")
	if err != nil {
		logging.ErrorE(ctx, "persistence: failed to marshal json mirror", err)
		return
	}
	if err := e.fs.MkdirAll(e.epochDir(), 0o755); err != nil {
		logging.ErrorE(ctx, "persistence: failed to create epoch directory", err)
		return
	}
	if err := afero.WriteFile(e.fs, e.epochJSONPath(), b, 0o644); err != nil {
		logging.ErrorE(ctx, "persistence: failed to write json mirror", err,
			logging.NewKV("path", e.epochJSONPath()))
	}
}

// Destroy implements spec.md §4.7's "Destroy": detach observer, cancel the
// debounce timer, and fire any pending JSON write best-effort.
func (e *Extension) Destroy() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}
	e.destroyed = true
	pendingTimer := e.jsonTimer
	e.jsonTimer = nil
	e.mu.Unlock()

	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	if pendingTimer != nil {
		pendingTimer.Stop()
		e.writeJSONMirror(context.Background())
	}
	return nil
}

func tableAndKVProjection(tables map[string]*table.Table, kvHelper *kv.KV) map[string]any {
	tablesOut := make(map[string]map[string]json.RawMessage, len(tables))
	for name, t := range tables {
		rows := make(map[string]json.RawMessage, t.Count())
		for id, raw := range t.Store().Map() {
			rows[id] = json.RawMessage(raw)
		}
		tablesOut[name] = rows
	}

	kvOut := make(map[string]json.RawMessage)
	if kvHelper != nil {
		for key := range kvHelper.Defs() {
			if raw, ok := kvHelper.Store().Get(key); ok {
				kvOut[key] = json.RawMessage(raw)
			}
		}
	}

	return map[string]any{
		"tables": tablesOut,
		"kv":     kvOut,
	}
}
