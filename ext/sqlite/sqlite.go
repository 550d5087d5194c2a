// Package sqlite implements the "secondary SQLite mirror" extension
// named only in passing by spec.md §1 ("around this core live
// extensions: ... a secondary SQLite mirror..."), supplemented by
// SPEC_FULL.md §3. It mirrors every row of every configured table into a
// SQLite table (`CREATE TABLE IF NOT EXISTS <name> (id TEXT PRIMARY KEY,
// data TEXT)`) on every observed change — read-only from the engine's
// perspective, exactly like the JSON mirror the persistence extension
// (C7) writes for the same reason.
//
// Grounded on SPEC_FULL.md's DOMAIN STACK entry for modernc.org/sqlite
// (from the AKJUS-bsc-erigon example's stack: a pure-Go, cgo-free SQLite
// driver), used through the standard database/sql interface the way any
// database/sql-based Go service does.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/thisisharsh7/epicenter-sub010/errors"
	"github.com/thisisharsh7/epicenter-sub010/logging"
	"github.com/thisisharsh7/epicenter-sub010/table"
	"github.com/thisisharsh7/epicenter-sub010/workspace"
)

// Config is this extension's construction surface.
type Config struct {
	// DSN is passed to sql.Open("sqlite", DSN); ignored if DB is set.
	// ":memory:" or a file path are both valid, per modernc.org/sqlite.
	DSN string
	// DB lets a caller supply an already-open *sql.DB (e.g. shared
	// across workspaces, or a test double); if set, DSN is ignored and
	// Destroy does not close it.
	DB *sql.DB
	// Tables lists which of the workspace's configured tables this
	// extension mirrors. Empty means every table in the workspace.
	Tables []string
}

// Extension is the sqlite mirror extension instance.
type Extension struct {
	db         *sql.DB
	ownsDB     bool
	unsubs     []func()
	whenSynced *workspace.Signal
}

// New returns a workspace.Factory that constructs a sqlite Extension
// bound to cfg.
func New(cfg Config) workspace.Factory {
	return func(ctx workspace.Context) (workspace.Extension, error) {
		return build(ctx, cfg)
	}
}

func build(ctx workspace.Context, cfg Config) (*Extension, error) {
	db := cfg.DB
	ownsDB := false
	if db == nil {
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		opened, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, errors.Wrap("sqlite: failed to open database", err, errors.NewKV("dsn", dsn))
		}
		db = opened
		ownsDB = true
	}

	names := cfg.Tables
	if len(names) == 0 {
		for name := range ctx.Tables {
			names = append(names, name)
		}
	}

	ext := &Extension{db: db, ownsDB: ownsDB, whenSynced: workspace.Resolved(nil)}

	for _, name := range names {
		t, ok := ctx.Tables[name]
		if !ok {
			if ownsDB {
				_ = db.Close()
			}
			return nil, errors.New("sqlite: unknown table", errors.NewKV("table", name))
		}
		if err := ext.createTable(name); err != nil {
			if ownsDB {
				_ = db.Close()
			}
			return nil, err
		}
		if err := ext.seedTable(name, t); err != nil {
			if ownsDB {
				_ = db.Close()
			}
			return nil, err
		}
		unsub := ext.mirrorTable(name, t)
		ext.unsubs = append(ext.unsubs, unsub)
	}

	return ext, nil
}

// DB returns the underlying *sql.DB, for callers that want to query the
// mirror directly.
func (e *Extension) DB() *sql.DB {
	return e.db
}

// WhenSynced resolves once every configured table's rows have been seeded
// into the mirror, which this extension does synchronously during
// construction.
func (e *Extension) WhenSynced() *workspace.Signal {
	return e.whenSynced
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

func (e *Extension) createTable(name string) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, data TEXT)`, quoteIdent(name))
	if _, err := e.db.Exec(stmt); err != nil {
		return errors.Wrap("sqlite: failed to create mirror table", err, errors.NewKV("table", name))
	}
	return nil
}

func (e *Extension) seedTable(name string, t *table.Table) error {
	for id, raw := range t.Store().Map() {
		if err := e.upsert(name, id, raw); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extension) mirrorTable(name string, t *table.Table) func() {
	return t.Observe(func(changedIDs map[string]struct{}, origin any) {
		for id := range changedIDs {
			if raw, ok := t.Store().Get(id); ok {
				if err := e.upsert(name, id, raw); err != nil {
					logMirrorError(err)
				}
				continue
			}
			if err := e.deleteRow(name, id); err != nil {
				logMirrorError(err)
			}
		}
	})
}

func (e *Extension) upsert(tableName, id string, raw []byte) error {
	stmt := fmt.Sprintf(
		`INSERT INTO %s (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		quoteIdent(tableName),
	)
	_, err := e.db.Exec(stmt, id, string(raw))
	if err != nil {
		return errors.Wrap("sqlite: failed to upsert mirrored row", err,
			errors.NewKV("table", tableName), errors.NewKV("id", id))
	}
	return nil
}

func (e *Extension) deleteRow(tableName, id string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, quoteIdent(tableName))
	_, err := e.db.Exec(stmt, id)
	if err != nil {
		return errors.Wrap("sqlite: failed to delete mirrored row", err,
			errors.NewKV("table", tableName), errors.NewKV("id", id))
	}
	return nil
}

func logMirrorError(err error) {
	// Mirror writes never propagate to the table/KV caller — spec.md §7
	// item 3's "I/O failure in extension: logged ... extension continues"
	// policy, same as the persistence extension's save path.
	logging.ErrorE(context.Background(), "sqlite: failed to mirror row", err)
}

// Destroy unsubscribes every table observer and, if this extension opened
// its own *sql.DB, closes it.
func (e *Extension) Destroy() error {
	for _, unsub := range e.unsubs {
		unsub()
	}
	if e.ownsDB {
		return e.db.Close()
	}
	return nil
}
