// Package store implements the persistent block and account-state
// storage backed by an embedded LevelDB instance, with a bounded
// in-memory LRU cache in front of the hot path.
package store

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	goerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// ErrCorrupted wraps a detected on-disk corruption, distinct from
// ordinary open/IO failures, so callers can choose the storage-
// corruption exit path.
var ErrCorrupted = errors.New("store: database corrupted")

var (
	writeOpt = opt.WriteOptions{}
	readOpt  = opt.ReadOptions{}
)

// Engine is a thin handle on the embedded key-value database.
// Namespaces are implemented as single-byte key prefixes rather than
// separate column families, since goleveldb exposes one flat keyspace.
type Engine struct {
	db *leveldb.DB
}

// OpenFile opens (or creates) a LevelDB instance rooted at dir.
func OpenFile(dir string) (*Engine, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{
		OpenFilesCacheCapacity: 128,
		BlockCacheCapacity:     8 * opt.MiB,
		WriteBuffer:            8 * opt.MiB,
	})
	if err != nil {
		if goerrors.IsCorrupted(err) {
			return nil, ErrCorrupted
		}
		return nil, errors.Wrap(err, "store: open leveldb")
	}
	return &Engine{db: db}, nil
}

// OpenMemory opens an in-memory LevelDB instance, for tests and
// ephemeral nodes.
func OpenMemory() (*Engine, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), &opt.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "store: open memory leveldb")
	}
	return &Engine{db: db}, nil
}

// Close releases the underlying database handle.
func (e *Engine) Close() error { return e.db.Close() }

// IsNotFound reports whether err is the engine's not-found sentinel.
func (e *Engine) IsNotFound(err error) bool { return err == leveldb.ErrNotFound }

func (e *Engine) get(key []byte) ([]byte, error) { return e.db.Get(key, &readOpt) }
func (e *Engine) has(key []byte) (bool, error)   { return e.db.Has(key, &readOpt) }
func (e *Engine) put(key, val []byte) error      { return e.db.Put(key, val, &writeOpt) }
func (e *Engine) delete(key []byte) error        { return e.db.Delete(key, &writeOpt) }

// Batch accumulates puts for a single atomic write, mirroring the
// engine's bulk-write path.
type Batch struct {
	e *Engine
	b leveldb.Batch
}

// NewBatch starts a new atomic write batch.
func (e *Engine) NewBatch() *Batch { return &Batch{e: e} }

func (b *Batch) Put(key, val []byte) { b.b.Put(key, val) }
func (b *Batch) Delete(key []byte)   { b.b.Delete(key) }

// Write commits the accumulated batch atomically.
func (b *Batch) Write() error {
	return b.e.db.Write(&b.b, &writeOpt)
}
