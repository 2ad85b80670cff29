// Package badger implements the storage engine on BadgerDB (LSM tree).
// Samples are keyed by a hashed (group, device) prefix followed by the
// big-endian timestamp, so a range scan over one device's keyspace yields
// samples in ascending timestamp order.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/taransay/taransayd/pkg/series"
	"github.com/taransay/taransayd/pkg/storage"
)

// Engine is a BadgerDB-backed storage engine.
type Engine struct {
	db *badger.DB
}

// Config holds BadgerDB configuration.
type Config struct {
	// Path to store database files.
	Path string

	// InMemory mode (for testing).
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = conservative
	// defaults sized for small deployments).
	MaxMemoryMB int64
}

// New opens a BadgerDB storage engine.
func New(cfg Config) (*Engine, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Badger's defaults assume a large host; bound the memtable and caches
	// so the engine stays usable on small boxes.
	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &Engine{db: db}, nil
}

// Reader acquires a read handle for a device.
func (e *Engine) Reader(group, device string) (storage.Reader, error) {
	return &reader{db: e.db, prefix: seriesPrefix(group, device)}, nil
}

// Writer acquires a write handle for a device. Appends are buffered in a
// write batch and committed on Close.
func (e *Engine) Writer(group, device string) (storage.Writer, error) {
	return &writer{
		batch:  e.db.NewWriteBatch(),
		prefix: seriesPrefix(group, device),
	}, nil
}

// Close shuts the underlying database down.
func (e *Engine) Close() error {
	return e.db.Close()
}

// RunGC runs one round of value-log garbage collection.
func (e *Engine) RunGC(discardRatio float64) error {
	return e.db.RunValueLogGC(discardRatio)
}

// seriesPrefix derives the 8-byte keyspace prefix for a device.
func seriesPrefix(group, device string) []byte {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, xxhash.Sum64String(group+"/"+device))
	return prefix
}

// makeKey appends the timestamp to the device prefix. The sign bit is
// flipped so that pre-epoch timestamps still sort below post-epoch ones in
// unsigned byte order.
func makeKey(prefix []byte, t time.Time) []byte {
	key := make([]byte, 16)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[8:], uint64(t.UnixNano())^(1<<63))
	return key
}

func keyTime(key []byte) time.Time {
	nanos := int64(binary.BigEndian.Uint64(key[8:]) ^ (1 << 63))
	return time.Unix(0, nanos).UTC()
}

// encodeValues packs a value vector as a count followed by big-endian
// float64 bit patterns.
func encodeValues(values []float64) []byte {
	buf := make([]byte, 4+8*len(values))
	binary.BigEndian.PutUint32(buf, uint32(len(values)))
	for i, v := range values {
		binary.BigEndian.PutUint64(buf[4+8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeValues(buf []byte) ([]float64, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("value truncated: %d bytes", len(buf))
	}
	count := int(binary.BigEndian.Uint32(buf))
	if len(buf) != 4+8*count {
		return nil, fmt.Errorf("value length mismatch: %d values in %d bytes", count, len(buf))
	}

	values := make([]float64, count)
	for i := range values {
		values[i] = math.Float64frombits(binary.BigEndian.Uint64(buf[4+8*i:]))
	}
	return values, nil
}

type reader struct {
	db     *badger.DB
	prefix []byte
}

func (r *reader) QueryInterval(ctx context.Context, start, stop time.Time, step int) (series.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txn := r.db.NewTransaction(false)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = r.prefix
	opts.PrefetchSize = 100

	it := &iterator{
		ctx:      ctx,
		txn:      txn,
		it:       txn.NewIterator(opts),
		startKey: makeKey(r.prefix, start),
		stopKey:  makeKey(r.prefix, stop),
	}
	return series.Decimate(it, step), nil
}

func (r *reader) Close() error { return nil }

// iterator walks one device's keyspace between two timestamp keys. It holds
// a read transaction open until closed, so Close must run on every exit
// path including consumer aborts.
type iterator struct {
	ctx      context.Context
	txn      *badger.Txn
	it       *badger.Iterator
	startKey []byte
	stopKey  []byte
	current  series.Sample
	started  bool
	closed   bool
	err      error
}

func (it *iterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}

	if !it.started {
		it.it.Seek(it.startKey)
		it.started = true
	} else {
		it.it.Next()
	}

	if !it.it.Valid() {
		return false
	}

	item := it.it.Item()
	key := item.Key()
	if bytes.Compare(key, it.stopKey) >= 0 {
		return false
	}

	if err := item.Value(func(val []byte) error {
		values, err := decodeValues(val)
		if err != nil {
			return err
		}
		it.current = series.Sample{Time: keyTime(key), Values: values}
		return nil
	}); err != nil {
		it.err = fmt.Errorf("reading sample: %w", err)
		return false
	}
	return true
}

func (it *iterator) Sample() series.Sample { return it.current }
func (it *iterator) Err() error            { return it.err }

func (it *iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.it.Close()
	it.txn.Discard()
	return nil
}

type writer struct {
	batch  *badger.WriteBatch
	prefix []byte
	last   time.Time
	any    bool
}

func (w *writer) Append(t time.Time, values []float64) error {
	if w.any && t.Before(w.last) {
		return fmt.Errorf("append out of order: %s before %s", t, w.last)
	}
	w.last = t
	w.any = true

	return w.batch.Set(makeKey(w.prefix, t), encodeValues(values))
}

// Close flushes the write batch, committing all appends.
func (w *writer) Close() error {
	return w.batch.Flush()
}
