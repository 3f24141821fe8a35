// Package gocouch is the thin facade in front of the three adapter
// implementations: an in-memory store, an embedded badger-backed store,
// and a remote CouchDB-wire-compatible client. A Database wraps exactly
// one adapter.Adapter behind a lifecycle (open/close) a caller can treat
// uniformly across all three backends.
package gocouch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gocouch/gocouch/internal/config"
	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/dberr"
	"github.com/gocouch/gocouch/pkg/httpadapter"
	"github.com/gocouch/gocouch/pkg/kvadapter"
	"github.com/gocouch/gocouch/pkg/memadapter"
	"github.com/gocouch/gocouch/pkg/revision"
)

// ErrClosed is returned by any operation on a Database after Close.
var ErrClosed = errors.New("gocouch: database closed")

// Database wraps one adapter.Adapter behind a lifecycle a caller can
// Close exactly once, regardless of which backend it was opened with.
type Database struct {
	name string
	log  *slog.Logger

	mu        sync.RWMutex
	a         adapter.Adapter
	closer    func() error
	closeOnce sync.Once
}

func defaultLogger() *slog.Logger { return slog.Default() }

// Memory opens an in-memory database. Data does not survive process
// exit; there is nothing to Close beyond releasing the handle.
func Memory(name string) *Database {
	return &Database{name: name, log: defaultLogger(), a: memadapter.New(name)}
}

// EmbeddedConfig configures an on-disk database backed by the
// transactional KV engine.
type EmbeddedConfig struct {
	Name          string
	DataDir       string
	ConfigPath    string // optional YAML file; see internal/config
	MinimumFreeGB int
	RevLimit      int64
	Logger        *slog.Logger
}

// Embedded opens (creating if absent) an on-disk database directory.
func Embedded(cfg EmbeddedConfig) (*Database, error) {
	var cc config.Config
	var err error
	if cfg.ConfigPath != "" {
		cc, err = config.Load(cfg.ConfigPath, cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("gocouch: loading config: %w", err)
		}
	} else {
		cc = config.Default(cfg.DataDir)
	}
	if cfg.MinimumFreeGB > 0 {
		cc.MinimumFreeGB = cfg.MinimumFreeGB
	}
	if cfg.RevLimit > 0 {
		cc.RevLimit = cfg.RevLimit
	}

	log := cfg.Logger
	if log == nil {
		log = defaultLogger()
	}

	kv, err := kvadapter.Open(kvadapter.Config{
		Path:          cc.DataDir,
		MinimumFreeGB: cc.MinimumFreeGB,
		RevLimit:      cc.RevLimit,
		Name:          cfg.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("gocouch: opening embedded database: %w", err)
	}

	log.Info("embedded database opened", "name", cfg.Name, "dataDir", cc.DataDir)
	return &Database{
		name:   cfg.Name,
		log:    log,
		a:      kv,
		closer: kv.Close,
	}, nil
}

// HTTPConfig configures a client for a remote CouchDB-compatible server.
type HTTPConfig struct {
	BaseURL  string
	Username string
	Password string
	Client   *http.Client
	Logger   *slog.Logger
}

// HTTP opens a handle to a remote database. It performs no I/O until
// the first operation.
func HTTP(cfg HTTPConfig) *Database {
	return &Database{
		name: cfg.BaseURL,
		log:  defaultLogger(),
		a: httpadapter.New(httpadapter.Config{
			BaseURL:  cfg.BaseURL,
			Username: cfg.Username,
			Password: cfg.Password,
			Client:   cfg.Client,
			Logger:   cfg.Logger,
		}),
	}
}

// Close releases any resources the backing adapter holds. Close is
// idempotent and safe to call multiple times; it is a no-op for Memory
// and HTTP databases, which own no file handles.
func (d *Database) Close() error {
	var closeErr error
	d.closeOnce.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.closer != nil {
			closeErr = d.closer()
		}
		d.a = nil
		d.log.Info("database closed", "name", d.name)
	})
	return closeErr
}

func (d *Database) handle() (adapter.Adapter, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.a == nil {
		return nil, ErrClosed
	}
	return d.a, nil
}

// Adapter exposes the underlying adapter.Adapter for callers that need
// the full contract directly, e.g. the replicator.
func (d *Database) Adapter() (adapter.Adapter, error) { return d.handle() }

func (d *Database) Info(ctx context.Context) (adapter.DbInfo, error) {
	a, err := d.handle()
	if err != nil {
		return adapter.DbInfo{}, err
	}
	return a.Info(ctx)
}

func (d *Database) Get(ctx context.Context, id string, opts adapter.GetOptions) (*adapter.Document, error) {
	a, err := d.handle()
	if err != nil {
		return nil, err
	}
	return a.Get(ctx, id, opts)
}

// Put is a single-document convenience over BulkDocs: it stores body
// under id, using rev as the expected current revision (the zero
// Revision for a new document).
func (d *Database) Put(ctx context.Context, id string, rev revision.Revision, body adapter.Body) (adapter.PutResponse, error) {
	a, err := d.handle()
	if err != nil {
		return adapter.PutResponse{}, err
	}
	results, err := a.BulkDocs(ctx, []*adapter.Document{{ID: id, Rev: rev, Body: body}}, adapter.BulkDocsOptions{})
	if err != nil {
		return adapter.PutResponse{}, err
	}
	return docResultToPutResponse(results[0])
}

// Delete marks id as deleted at rev, the way CouchDB deletion works: a
// tombstone revision, not a row removal.
func (d *Database) Delete(ctx context.Context, id string, rev revision.Revision) (adapter.PutResponse, error) {
	a, err := d.handle()
	if err != nil {
		return adapter.PutResponse{}, err
	}
	results, err := a.BulkDocs(ctx, []*adapter.Document{{ID: id, Rev: rev, Deleted: true, Body: adapter.Body{}}}, adapter.BulkDocsOptions{})
	if err != nil {
		return adapter.PutResponse{}, err
	}
	return docResultToPutResponse(results[0])
}

func docResultToPutResponse(r adapter.DocResult) (adapter.PutResponse, error) {
	if !r.OK {
		if r.Error == "conflict" {
			return adapter.PutResponse{}, fmt.Errorf("gocouch: %s: %w", r.Reason, dberr.Conflict())
		}
		return adapter.PutResponse{}, fmt.Errorf("gocouch: %s: %s", r.Error, r.Reason)
	}
	return adapter.PutResponse{ID: r.ID, Rev: r.Rev}, nil
}

func (d *Database) BulkDocs(ctx context.Context, docs []*adapter.Document, opts adapter.BulkDocsOptions) ([]adapter.DocResult, error) {
	a, err := d.handle()
	if err != nil {
		return nil, err
	}
	return a.BulkDocs(ctx, docs, opts)
}

func (d *Database) AllDocs(ctx context.Context, opts adapter.AllDocsOptions) (adapter.AllDocsResponse, error) {
	a, err := d.handle()
	if err != nil {
		return adapter.AllDocsResponse{}, err
	}
	return a.AllDocs(ctx, opts)
}

func (d *Database) Changes(ctx context.Context, opts adapter.ChangesOptions) (adapter.ChangesResponse, error) {
	a, err := d.handle()
	if err != nil {
		return adapter.ChangesResponse{}, err
	}
	return a.Changes(ctx, opts)
}

func (d *Database) RevsDiff(ctx context.Context, req adapter.RevsDiffRequest) (adapter.RevsDiffResponse, error) {
	a, err := d.handle()
	if err != nil {
		return nil, err
	}
	return a.RevsDiff(ctx, req)
}

func (d *Database) BulkGet(ctx context.Context, reqs []adapter.BulkGetRequest) ([]adapter.BulkGetResult, error) {
	a, err := d.handle()
	if err != nil {
		return nil, err
	}
	return a.BulkGet(ctx, reqs)
}

func (d *Database) GetLocal(ctx context.Context, id string) (adapter.Body, error) {
	a, err := d.handle()
	if err != nil {
		return nil, err
	}
	return a.GetLocal(ctx, id)
}

func (d *Database) PutLocal(ctx context.Context, id string, body adapter.Body) error {
	a, err := d.handle()
	if err != nil {
		return err
	}
	return a.PutLocal(ctx, id, body)
}

func (d *Database) RemoveLocal(ctx context.Context, id string) error {
	a, err := d.handle()
	if err != nil {
		return err
	}
	return a.RemoveLocal(ctx, id)
}

func (d *Database) Compact(ctx context.Context) error {
	a, err := d.handle()
	if err != nil {
		return err
	}
	return a.Compact(ctx)
}

func (d *Database) Destroy(ctx context.Context) error {
	a, err := d.handle()
	if err != nil {
		return err
	}
	return a.Destroy(ctx)
}
