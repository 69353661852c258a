// Package gaincache memoises finite-horizon gain sequences in badger.
//
// Entries are keyed by the solver fingerprint, the horizon length and the
// exact bits of the goal, so a hit is bit-identical to a fresh solve.
package gaincache

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/san-kum/dampsim/internal/control"
	"github.com/san-kum/dampsim/internal/dynamo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const keyPrefix = "gains/"

// Source is a gain source that can identify its model and costs.
type Source interface {
	control.GainSource
	Fingerprint() string
}

type entry struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// Cache is a read-through GainSource. It is safe for concurrent use.
type Cache struct {
	db      *badger.DB
	source  Source
	logger  *zap.Logger
	flights singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens a cache in dir in front of source. An empty dir keeps entries
// in memory only.
func Open(dir string, source Source, logger *zap.Logger) (*Cache, error) {
	if source == nil {
		return nil, errors.New("gaincache: nil source")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := badger.DefaultOptions(dir).
		WithLogger(&badgerLogger{sugar: logger.Named("badger").Sugar()}).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(32 << 20).
		WithNumMemtables(1).
		WithNumLevelZeroTables(1).
		WithNumLevelZeroTablesStall(2).
		WithBlockCacheSize(8 << 20).
		WithIndexCacheSize(4 << 20)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("gaincache: open %q: %w", dir, err)
	}
	return &Cache{db: db, source: source, logger: logger}, nil
}

// Gains returns the cached sequence for goal and steps, solving and storing
// it on a miss. Concurrent misses for the same key share one solve.
func (c *Cache) Gains(goal dynamo.State, steps int) (*control.GainSequence, error) {
	key := c.key(goal, steps)

	gains, err := c.get(key)
	if err != nil {
		return nil, err
	}
	if gains != nil {
		c.hits.Add(1)
		c.logger.Debug("gain cache hit", zap.String("key", key))
		return gains, nil
	}

	v, err, _ := c.flights.Do(key, func() (interface{}, error) {
		c.misses.Add(1)
		gains, err := c.source.Gains(goal, steps)
		if err != nil {
			return nil, err
		}
		if err := c.put(key, gains); err != nil {
			return nil, err
		}
		c.logger.Debug("gain cache miss", zap.String("key", key), zap.Int("steps", steps))
		return gains, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*control.GainSequence), nil
}

func (c *Cache) Fingerprint() string { return c.source.Fingerprint() }

// Stats reports the number of hits and misses since Open.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len counts the stored sequences.
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Purge drops every stored sequence.
func (c *Cache) Purge() error {
	return c.db.DropPrefix([]byte(keyPrefix))
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) key(goal dynamo.State, steps int) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteString(c.source.Fingerprint())
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(steps))
	for _, v := range goal {
		b.WriteByte('/')
		b.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
	}
	return b.String()
}

func (c *Cache) get(key string) (*control.GainSequence, error) {
	var e entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gaincache: read %s: %w", key, err)
	}
	return control.NewGainSequence(e.Rows, e.Cols, e.Data)
}

func (c *Cache) put(key string, gains *control.GainSequence) error {
	rows, cols := gains.Dims()
	data, err := json.Marshal(entry{Rows: rows, Cols: cols, Data: gains.Raw()})
	if err != nil {
		return fmt.Errorf("gaincache: encode %s: %w", key, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// badgerLogger routes badger's printf-style logging into zap.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.sugar.Debugf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(strings.TrimSpace(format), args...)
}
