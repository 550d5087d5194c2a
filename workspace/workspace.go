// Package workspace implements C6: the bundle of tables, KV, and
// extensions that makes up one collaborative workspace, with the
// synchronous-construction / whenSynced / destroy lifecycle spec.md §4.6
// and §5 describe.
//
// Grounded on the teacher's net.Peer construction/start/close shape
// (_examples/orpheuslummis-defradb/net/peer.go: NewPeer builds everything
// synchronously and returns a ready object; Start launches background
// loops; Close tears down concurrently and logs teardown failures instead
// of propagating them) generalized from one P2P peer to a workspace plus
// an arbitrary named set of extensions.
package workspace

import (
	"context"
	"strconv"
	"sync"

	"github.com/thisisharsh7/epicenter-sub010/crdt"
	"github.com/thisisharsh7/epicenter-sub010/errors"
	"github.com/thisisharsh7/epicenter-sub010/kv"
	"github.com/thisisharsh7/epicenter-sub010/logging"
	"github.com/thisisharsh7/epicenter-sub010/lww"
	"github.com/thisisharsh7/epicenter-sub010/schema"
	"github.com/thisisharsh7/epicenter-sub010/table"
)

// Config is spec.md §6's configuration surface.
type Config struct {
	WorkspaceID string
	Epoch       int
	Tables      map[string]*schema.TableDefinition
	KV          map[string]kv.KeyDefinition
	Extensions  map[string]Factory
}

// Client is spec.md §4.6's workspace client: the single owner of the
// CRDT document, the LWW stores, and every extension's resources.
type Client struct {
	workspaceID string
	epoch       int
	doc         *crdt.Doc

	tables     map[string]*table.Table
	tableCloses []func()
	kvHelper   *kv.KV
	kvClose    func()

	extensions map[string]Extension

	mu         sync.Mutex
	destroyed  bool
	whenSynced *Signal
	cancelSync context.CancelFunc
}

// GUID returns the stable identifier of this workspace's CRDT document:
// "{workspaceId}@{epoch}" per spec.md §3.
func (c *Client) GUID() string {
	return guid(c.workspaceID, c.epoch)
}

func guid(workspaceID string, epoch int) string {
	return workspaceID + "@" + strconv.Itoa(epoch)
}

// Create allocates a CRDT document, binds table/KV helpers to it, and
// synchronously instantiates every configured extension, per spec.md
// §4.6. The returned Client is immediately usable for reads/writes; call
// WhenSynced to await every extension's initial hydration.
func Create(cfg Config) (*Client, error) {
	if cfg.WorkspaceID == "" {
		return nil, errors.New("workspaceId is required")
	}
	if cfg.Epoch < 0 {
		return nil, errors.New("epoch must be >= 0")
	}

	doc := crdt.NewDoc()

	tables := make(map[string]*table.Table, len(cfg.Tables))
	var tableCloses []func()
	for name, def := range cfg.Tables {
		store := lww.New(doc, storeNameForTable(name))
		tables[name] = table.New(store, def)
		tableCloses = append(tableCloses, store.Close)
	}

	kvStore := lww.New(doc, kvStoreName)
	kvHelper := kv.New(kvStore, cfg.KV)

	client := &Client{
		workspaceID: cfg.WorkspaceID,
		epoch:       cfg.Epoch,
		doc:         doc,
		tables:      tables,
		tableCloses: tableCloses,
		kvHelper:    kvHelper,
		kvClose:     kvStore.Close,
		extensions:  make(map[string]Extension, len(cfg.Extensions)),
		whenSynced:  NewSignal(),
	}

	extCtx := Context{
		WorkspaceID: cfg.WorkspaceID,
		Epoch:       cfg.Epoch,
		Doc:         doc,
		Tables:      tables,
		KV:          kvHelper,
	}

	for name, factory := range cfg.Extensions {
		ext, err := factory(extCtx)
		if err != nil {
			return nil, errors.Wrap("extension failed to initialize", err, errors.NewKV("extension", name))
		}
		if ext == nil || ext.WhenSynced() == nil {
			return nil, errors.ErrExtensionMissingContract
		}
		client.extensions[name] = ext
	}

	ctx, cancel := context.WithCancel(context.Background())
	client.cancelSync = cancel
	go client.awaitExtensionSync(ctx)

	return client, nil
}

const kvStoreName = "__kv__"

func storeNameForTable(name string) string { return "table:" + name }

func (c *Client) awaitExtensionSync(ctx context.Context) {
	var wg sync.WaitGroup
	errCh := make(chan error, len(c.extensions))
	for _, ext := range c.extensions {
		wg.Add(1)
		go func(ext Extension) {
			defer wg.Done()
			errCh <- ext.WhenSynced().Wait(ctx)
		}(ext)
	}
	wg.Wait()
	close(errCh)

	var firstErr error
	for err := range errCh {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.whenSynced.Resolve(firstErr)
}

// WhenSynced blocks until every extension's initial hydration completes,
// or ctx is cancelled, or the workspace is destroyed before hydration
// finished — in which case it returns errors.ErrWorkspaceDestroyed (the
// policy choice documented in SPEC_FULL.md §4).
func (c *Client) WhenSynced(ctx context.Context) error {
	return c.whenSynced.Wait(ctx)
}

// Tables returns every configured table helper, keyed by table name.
func (c *Client) Tables() map[string]*table.Table {
	return c.tables
}

// Table returns the table helper bound to name, or nil if unconfigured.
func (c *Client) Table(name string) *table.Table {
	return c.tables[name]
}

// KV returns the workspace's single shared KV helper.
func (c *Client) KV() *kv.KV {
	return c.kvHelper
}

// Doc returns the underlying CRDT document, for extensions constructed
// outside of Create's factory wiring (e.g. tests).
func (c *Client) Doc() *crdt.Doc {
	return c.doc
}

// WorkspaceID returns the workspace's opaque identifier.
func (c *Client) WorkspaceID() string { return c.workspaceID }

// Epoch returns the workspace's current epoch.
func (c *Client) Epoch() int { return c.epoch }

// Destroy unsubscribes every observer, runs every extension's Destroy
// concurrently, awaits them, and frees the CRDT document. It is
// idempotent (spec.md §7 item 6: "Destroy after destroy ... no error").
func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.mu.Unlock()

	for _, closeFn := range c.tableCloses {
		closeFn()
	}
	c.kvClose()

	var wg sync.WaitGroup
	errs := make([]error, 0, len(c.extensions))
	var errsMu sync.Mutex
	for name, ext := range c.extensions {
		wg.Add(1)
		go func(name string, ext Extension) {
			defer wg.Done()
			if err := ext.Destroy(); err != nil {
				logging.ErrorE(ctx, "extension failed to destroy cleanly", err, logging.NewKV("extension", name))
				errsMu.Lock()
				errs = append(errs, err)
				errsMu.Unlock()
			}
		}(name, ext)
	}
	wg.Wait()

	// If hydration never completed, reject any pending/future WhenSynced
	// caller now (no-op if it already resolved).
	c.whenSynced.Resolve(errors.ErrWorkspaceDestroyed)
	c.cancelSync()

	if len(errs) > 0 {
		return errors.Wrap("one or more extensions failed to destroy", errs[0])
	}
	return nil
}
