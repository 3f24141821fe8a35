// Package kvadapter implements pkg/adapter.Adapter on top of an embedded
// ACID key-value store (badger), with a table schema and a transactional
// bulk_docs write path.
package kvadapter

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/gocouch/gocouch/internal/diskcheck"
	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/dberr"
)

// Key prefixes for the adapter's tables. A single badger.DB holds every
// table; the prefix plus badger's own byte-order iteration gives each
// table its own contiguous key range.
const (
	prefixDocs       = 'd'
	prefixRevData    = 'r'
	prefixChanges    = 'c'
	prefixLocalDocs  = 'l'
	prefixAttachment = 'a'
	prefixMeta       = 'm'
)

const metaKey = string(prefixMeta)

// Config configures Open.
type Config struct {
	// Path is the data directory; badger.Open creates it if absent.
	Path string
	// MinimumFreeGB is enforced at open time via internal/diskcheck.
	MinimumFreeGB int
	// RevLimit bounds revision tree depth by triggering stemming.
	// Zero selects the default of 1000.
	RevLimit int64
	// Name is the database name reported by Info.
	Name string
	// Logger defaults to a new logrus.Logger if nil.
	Logger *logrus.Logger
}

// Adapter is the badger-backed storage engine.
type Adapter struct {
	db       *badger.DB
	log      *logrus.Logger
	name     string
	revLimit int64

	// writeMu is a process-level write permit: it serializes the
	// read-modify-write sequence over a document's rev tree across
	// concurrent BulkDocs calls, on top of badger's own
	// serialized write transactions, which alone would not stop two
	// callers from interleaving a read and a write against the same
	// document before either commits.
	writeMu sync.Mutex
}

var _ adapter.Adapter = (*Adapter)(nil)

// Open opens (creating if absent) a database directory.
func Open(cfg Config) (*Adapter, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.RevLimit == 0 {
		cfg.RevLimit = 1000
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Path
	}

	if cfg.MinimumFreeGB > 0 {
		if _, err := diskcheck.Check(cfg.Logger, cfg.Path, cfg.MinimumFreeGB); err != nil {
			return nil, err
		}
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, dberr.IO(fmt.Errorf("opening badger at %s: %w", cfg.Path, err))
	}

	a := &Adapter{db: db, log: cfg.Logger, name: cfg.Name, revLimit: cfg.RevLimit}
	if err := a.ensureMeta(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the underlying badger handle.
func (a *Adapter) Close() error {
	return a.db.Close()
}

type metaRecord struct {
	UpdateSeq int64  `json:"update_seq"`
	DBUUID    string `json:"db_uuid"`
}

func (a *Adapter) ensureMeta() error {
	return a.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(metaKey))
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		meta := metaRecord{UpdateSeq: 0, DBUUID: newUUID()}
		return putJSON(txn, []byte(metaKey), meta)
	})
}

func newUUID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func docsKey(id string) []byte {
	return append([]byte{prefixDocs, 0}, []byte(id)...)
}

func revDataKey(id string, revStr string) []byte {
	k := append([]byte{prefixRevData, 0}, []byte(id)...)
	k = append(k, 0)
	return append(k, []byte(revStr)...)
}

func revDataPrefix(id string) []byte {
	k := append([]byte{prefixRevData, 0}, []byte(id)...)
	return append(k, 0)
}

func changesKey(seq int64) []byte {
	k := make([]byte, 1+8)
	k[0] = prefixChanges
	putBigEndian(k[1:], uint64(seq))
	return k
}

func changesPrefix() []byte {
	return []byte{prefixChanges}
}

func seqFromChangesKey(k []byte) int64 {
	return int64(bigEndianUint64(k[1:]))
}

func localKey(id string) []byte {
	return append([]byte{prefixLocalDocs, 0}, []byte(id)...)
}

func attachmentKey(digest string) []byte {
	return append([]byte{prefixAttachment, 0}, []byte(digest)...)
}

func putBigEndian(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func bigEndianUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
