// Package markdown implements the markdown import/export extension named
// only in passing by spec.md §1/§9 ("around this core live extensions:
// ... markdown import/export ..."), supplemented by SPEC_FULL.md §3.
//
// Export renders every valid row of one or more tables to a directory of
// `.md` files: a front-matter-style header of the row's other fields,
// followed by the row's body field as markdown, plus a pre-rendered
// `.html` preview of that body via blackfriday. Import reverses the
// mapping. Both are synchronous and caller-triggered — no file watching,
// matching spec.md §1's "no generic query planner, just linear
// filter/find" minimalism carried over to this extension's own scope.
package markdown

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/russross/blackfriday/v2"
	"github.com/spf13/afero"

	"github.com/thisisharsh7/epicenter-sub010/errors"
	"github.com/thisisharsh7/epicenter-sub010/schema"
	"github.com/thisisharsh7/epicenter-sub010/table"
	"github.com/thisisharsh7/epicenter-sub010/workspace"
)

const defaultBodyField = "body"

// Config is this extension's construction surface.
type Config struct {
	// OutDir is the directory export writes under and import reads from,
	// one subdirectory per table.
	OutDir string
	// Tables lists which of the workspace's configured tables this
	// extension exports/imports. Empty means every table in the
	// workspace.
	Tables []string
	// Fs is the filesystem to use; defaults to afero.NewOsFs().
	Fs afero.Fs
	// BodyField names the row field rendered as the markdown body;
	// defaults to "body". Every other field becomes a front-matter line
	// (non-scalar values as JSON).
	BodyField string
}

// Extension is the markdown extension instance.
type Extension struct {
	fs        afero.Fs
	outDir    string
	tables    map[string]*table.Table
	bodyField string

	whenSynced *workspace.Signal
}

// New returns a workspace.Factory that constructs a markdown Extension
// bound to cfg.
func New(cfg Config) workspace.Factory {
	return func(ctx workspace.Context) (workspace.Extension, error) {
		return build(ctx, cfg)
	}
}

func build(ctx workspace.Context, cfg Config) (*Extension, error) {
	if cfg.OutDir == "" {
		return nil, errors.New("markdown: outDir is required")
	}
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	bodyField := cfg.BodyField
	if bodyField == "" {
		bodyField = defaultBodyField
	}

	names := cfg.Tables
	if len(names) == 0 {
		for name := range ctx.Tables {
			names = append(names, name)
		}
	}

	tables := make(map[string]*table.Table, len(names))
	for _, name := range names {
		t, ok := ctx.Tables[name]
		if !ok {
			return nil, errors.New("markdown: unknown table", errors.NewKV("table", name))
		}
		tables[name] = t
	}

	return &Extension{
		fs:         fs,
		outDir:     cfg.OutDir,
		tables:     tables,
		bodyField:  bodyField,
		whenSynced: workspace.Resolved(nil),
	}, nil
}

// WhenSynced resolves immediately: export/import are caller-triggered,
// not hydrated automatically on construction.
func (e *Extension) WhenSynced() *workspace.Signal {
	return e.whenSynced
}

// Destroy is a no-op: this extension holds no background resources.
func (e *Extension) Destroy() error {
	return nil
}

func (e *Extension) tableDir(name string) string {
	return filepath.Join(e.outDir, name)
}

// ExportAll exports every configured table.
func (e *Extension) ExportAll(ctx context.Context) error {
	names := make([]string, 0, len(e.tables))
	for name := range e.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := e.Export(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Export renders every valid row of the named table to one `.md` file
// plus one pre-rendered `.html` preview under <outDir>/<tableName>/.
func (e *Extension) Export(ctx context.Context, tableName string) error {
	t, ok := e.tables[tableName]
	if !ok {
		return errors.New("markdown: unknown table", errors.NewKV("table", tableName))
	}
	dir := e.tableDir(tableName)
	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap("markdown: failed to create export directory", err, errors.NewKV("dir", dir))
	}
	for _, row := range t.GetAllValid() {
		if err := e.exportRow(dir, row); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extension) exportRow(dir string, row schema.Row) error {
	id, _ := row["id"].(string)
	if id == "" {
		return errors.New("markdown: row is missing an id; cannot export")
	}

	md := renderFrontMatter(row, e.bodyField)
	if err := afero.WriteFile(e.fs, filepath.Join(dir, id+".md"), md, 0o644); err != nil {
		return errors.Wrap("markdown: failed to write markdown file", err, errors.NewKV("id", id))
	}

	body, _ := row[e.bodyField].(string)
	html := blackfriday.Run([]byte(body))
	if err := afero.WriteFile(e.fs, filepath.Join(dir, id+".html"), html, 0o644); err != nil {
		return errors.Wrap("markdown: failed to write html preview", err, errors.NewKV("id", id))
	}
	return nil
}

// Import reverses Export: every `.md` file under <outDir>/<tableName>/ is
// parsed back into a row and written with table.Set. `.html` previews
// are not read back; they are export-only artifacts.
func (e *Extension) Import(ctx context.Context, tableName string) error {
	t, ok := e.tables[tableName]
	if !ok {
		return errors.New("markdown: unknown table", errors.NewKV("table", tableName))
	}
	dir := e.tableDir(tableName)
	entries, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap("markdown: failed to list export directory", err, errors.NewKV("dir", dir))
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := afero.ReadFile(e.fs, path)
		if err != nil {
			return errors.Wrap("markdown: failed to read markdown file", err, errors.NewKV("path", path))
		}
		row, err := parseFrontMatter(raw, e.bodyField)
		if err != nil {
			return errors.Wrap("markdown: failed to parse markdown file", err, errors.NewKV("path", path))
		}
		if err := t.Set(row); err != nil {
			return errors.Wrap("markdown: failed to write imported row", err, errors.NewKV("path", path))
		}
	}
	return nil
}
