// Package revision implements C8, the Revision Extension from
// spec.md §4.8: periodic/manual CRDT snapshots under
// <root>/<workspaceId>/<epoch>/revisions/<n>.snap, with list/view/restore
// and capacity-bounded eviction of the lowest-numbered snapshot.
//
// Grounded on spec.md §4.8 verbatim; the on-disk snapshot envelope (a
// small JSON record carrying the binary crdt state as a base64 field)
// follows the same "prefer the stdlib JSON encoding over inventing a
// binary framing" choice the persistence extension's JSON mirror makes.
package revision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/sourcenetwork/immutable"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/errors"
	"github.com/thisisharsh7/epicenter-sub010/logging"
	"github.com/thisisharsh7/epicenter-sub010/workspace"
)

// Config is spec.md §6's revision extension configuration surface.
type Config struct {
	// RootDir is the directory all workspaces are persisted under (shared
	// with the persistence extension's layout).
	RootDir string
	// Fs is the filesystem to use; defaults to afero.NewOsFs().
	Fs afero.Fs
	// MaxVersions bounds how many snapshots are retained; unset means
	// unbounded, per spec.md §4.8.
	MaxVersions immutable.Option[int]
	// DebounceMs, if > 0, schedules an automatic label-less snapshot this
	// many milliseconds after each document update, debounced the same
	// way the persistence extension debounces its JSON mirror. 0 disables
	// automatic snapshots; Save can still be called manually.
	DebounceMs int
}

// Record is one entry of List()'s ordered output.
type Record struct {
	Version   int
	Label     string
	Timestamp time.Time
}

// snapshotFile is the on-disk envelope for one <n>.snap file.
type snapshotFile struct {
	Version   int       `json:"version"`
	Label     string    `json:"label,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
}

var snapshotName = regexp.MustCompile(`^(\d+)\.snap$`)

// Extension is C8's revision extension instance, one per workspace.
type Extension struct {
	fs          afero.Fs
	rootDir     string
	workspaceID string
	epoch       int
	doc         *crdt.Doc
	maxVersions immutable.Option[int]
	debounce    time.Duration
	unsubscribe func()

	mu        sync.Mutex
	timer     *time.Timer
	destroyed bool

	whenSynced *workspace.Signal
}

// New returns a workspace.Factory that constructs a revision Extension
// bound to cfg, for use in workspace.Config.Extensions.
func New(cfg Config) workspace.Factory {
	return func(ctx workspace.Context) (workspace.Extension, error) {
		return build(ctx, cfg)
	}
}

func build(ctx workspace.Context, cfg Config) (*Extension, error) {
	if cfg.RootDir == "" {
		return nil, errors.New("revision: rootDir is required")
	}
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	ext := &Extension{
		fs:          fs,
		rootDir:     cfg.RootDir,
		workspaceID: ctx.WorkspaceID,
		epoch:       ctx.Epoch,
		doc:         ctx.Doc,
		maxVersions: cfg.MaxVersions,
		debounce:    time.Duration(cfg.DebounceMs) * time.Millisecond,
		whenSynced:  workspace.Resolved(nil),
	}

	if err := fs.MkdirAll(ext.revisionsDir(), 0o755); err != nil {
		return nil, errors.Wrap("revision: failed to create revisions directory", err)
	}

	if cfg.DebounceMs > 0 {
		ext.unsubscribe = ctx.Doc.Observe(ext.onUpdate)
	}

	return ext, nil
}

// WhenSynced resolves immediately: the revision extension has nothing to
// hydrate on construction (snapshots are produced forward, not replayed
// automatically).
func (e *Extension) WhenSynced() *workspace.Signal {
	return e.whenSynced
}

func (e *Extension) onUpdate(crdt.UpdateEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, func() {
		if _, err := e.Save(""); err != nil {
			logging.ErrorE(context.Background(), "revision: automatic snapshot failed", err)
		}
	})
}

func (e *Extension) revisionsDir() string {
	return filepath.Join(e.rootDir, e.workspaceID, strconv.Itoa(e.epoch), "revisions")
}

func (e *Extension) snapshotPath(n int) string {
	return filepath.Join(e.revisionsDir(), fmt.Sprintf("%d.snap", n))
}

// existingVersions returns every snapshot number currently on disk, in
// ascending order.
func (e *Extension) existingVersions() ([]int, error) {
	entries, err := afero.ReadDir(e.fs, e.revisionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap("revision: failed to list revisions directory", err)
	}
	var out []int
	for _, entry := range entries {
		m := snapshotName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// Save takes a CRDT snapshot now, bypassing any pending debounce, and
// allocates the next integer version densely after the highest existing
// one (spec.md §4.8: "numbered densely from 0").
func (e *Extension) Save(label string) (Record, error) {
	versions, err := e.existingVersions()
	if err != nil {
		return Record{}, err
	}
	next := 0
	if len(versions) > 0 {
		next = versions[len(versions)-1] + 1
	}

	data, err := e.doc.EncodeStateAsUpdate()
	if err != nil {
		return Record{}, errors.Wrap("revision: failed to encode snapshot", err)
	}

	record := Record{Version: next, Label: label, Timestamp: time.Now()}
	file := snapshotFile{Version: next, Label: label, Timestamp: record.Timestamp, Data: data}

	if err := writeSnapshot(e.fs, e.snapshotPath(next), file); err != nil {
		return Record{}, err
	}

	if err := e.evict(append(versions, next)); err != nil {
		return Record{}, err
	}

	return record, nil
}

// evict deletes the lowest-numbered snapshots until at most MaxVersions
// remain; numbering is not recompacted (spec.md §4.8).
func (e *Extension) evict(versions []int) error {
	if !e.maxVersions.HasValue() || len(versions) <= e.maxVersions.Value() {
		return nil
	}
	max := e.maxVersions.Value()
	sort.Ints(versions)
	overflow := len(versions) - max
	for _, n := range versions[:overflow] {
		if err := e.fs.Remove(e.snapshotPath(n)); err != nil && !os.IsNotExist(err) {
			return errors.Wrap("revision: failed to evict snapshot", err, errors.NewKV("version", n))
		}
	}
	return nil
}

// List returns every retained snapshot's metadata, ordered by version.
func (e *Extension) List() ([]Record, error) {
	versions, err := e.existingVersions()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(versions))
	for _, n := range versions {
		file, err := readSnapshot(e.fs, e.snapshotPath(n))
		if err != nil {
			return nil, err
		}
		out = append(out, Record{Version: file.Version, Label: file.Label, Timestamp: file.Timestamp})
	}
	return out, nil
}

// View reconstructs a document from snapshot n without touching the live
// document. The returned *crdt.Doc is a freshly constructed replica: the
// caller is expected to treat it as read-only, matching spec.md §4.8's
// "returns a read-only document".
func (e *Extension) View(n int) (*crdt.Doc, error) {
	file, err := readSnapshot(e.fs, e.snapshotPath(n))
	if err != nil {
		return nil, err
	}
	view := crdt.NewDoc()
	if err := view.Apply(file.Data, nil); err != nil {
		return nil, errors.Wrap("revision: failed to reconstruct snapshot", err)
	}
	return view, nil
}

// Restore applies snapshot n's state into the live document as an
// additive merge (spec.md §4.8: "the CRDT's merge decides conflicts").
func (e *Extension) Restore(n int) error {
	file, err := readSnapshot(e.fs, e.snapshotPath(n))
	if err != nil {
		return err
	}
	return e.doc.Apply(file.Data, nil)
}

// Destroy cancels any pending debounced snapshot and detaches the
// observer. It is idempotent.
func (e *Extension) Destroy() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}
	e.destroyed = true
	timer := e.timer
	e.timer = nil
	e.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	return nil
}
