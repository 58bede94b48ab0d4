// Package badgerdb provides a mentorship graph stored in an embedded BadgerDB
// instance, either on disk or fully in memory.
package badgerdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/dgraph-io/badger/v4"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/sirupsen/logrus"
)

var (
	userKeyPrefix = []byte("user/")

	// Compile-time check for ensuring BadgerGraph implements Graph.
	_ graph.Graph = (*BadgerGraph)(nil)
)

// Config holds the settings for opening a BadgerGraph.
type Config struct {
	// Directory for the database files. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in RAM. Useful for tests.
	InMemory bool

	// SyncWrites flushes every write to disk before returning.
	SyncWrites bool

	// MemTableSize overrides badger's memtable size. It also bounds the
	// largest write transaction (15% of the memtable). Zero keeps the
	// badger default.
	MemTableSize int64

	// Optional logger for badger's internal messages. If nil, badger
	// logging is disabled.
	Logger *logrus.Entry
}

// record is the stored representation of a graph.User.
type record struct {
	Coaches   []int64 `json:"coaches,omitempty"`
	CoachedBy []int64 `json:"coached_by,omitempty"`
	Version   int64   `json:"version"`
}

// BadgerGraph implements a mentorship graph on top of BadgerDB.
type BadgerGraph struct {
	db *badger.DB
}

// NewBadgerGraph opens a BadgerDB instance using the provided config.
func NewBadgerGraph(cfg Config) (*BadgerGraph, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else if cfg.Path != "" {
		opts = badger.DefaultOptions(cfg.Path)
	} else {
		return nil, errors.New("path is required for persistent database")
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.MemTableSize > 0 {
		opts = opts.WithMemTableSize(cfg.MemTableSize)
		if maxBatchSize := cfg.MemTableSize * 15 / 100; opts.ValueThreshold > maxBatchSize {
			opts = opts.WithValueThreshold(maxBatchSize)
		}
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerGraph{db: db}, nil
}

// Close flushes pending writes and releases the database.
func (g *BadgerGraph) Close() error {
	return g.db.Close()
}

// UpsertUser creates a new user or replaces an existing user.
func (g *BadgerGraph) UpsertUser(_ context.Context, user *graph.User) error {
	val, err := json.Marshal(record{Coaches: user.Coaches, CoachedBy: user.CoachedBy, Version: user.Version})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	err = g.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(user.ID), val)
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// FindUser looks up a user by its ID.
func (g *BadgerGraph) FindUser(_ context.Context, id int64) (*graph.User, error) {
	var user *graph.User
	err := g.db.View(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		user = rec.user(id)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("find user: %w", graph.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// Users returns an iterator for the set of users whose IDs belong to the
// [fromID, toID) range.
func (g *BadgerGraph) Users(ctx context.Context, fromID, toID int64) (graph.UserIterator, error) {
	if fromID >= toID {
		return &userIterator{}, nil
	}

	var list []*graph.User
	err := g.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: userKeyPrefix})
		defer it.Close()

		end := userKey(toID)
		for it.Seek(userKey(fromID)); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			if bytes.Compare(item.Key(), end) >= 0 {
				break
			}

			var rec record
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return err
			}
			list = append(list, rec.user(keyID(item.Key())))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	return &userIterator{users: list}, nil
}

// NeighborsOf returns the IDs of every user connected to any of ids.
func (g *BadgerGraph) NeighborsOf(ctx context.Context, ids []int64) (graph.IDSet, error) {
	neighbors := make(graph.IDSet)
	err := g.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}

			rec, err := getRecord(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			} else if err != nil {
				return err
			}
			neighbors.Add(rec.Coaches...)
			neighbors.Add(rec.CoachedBy...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("neighbors of: %w", err)
	}
	return neighbors, nil
}

// PickUnmarked returns the lowest user ID not present in excluded.
func (g *BadgerGraph) PickUnmarked(ctx context.Context, excluded graph.IDSet) (int64, error) {
	var (
		picked int64
		found  bool
	)
	err := g.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: userKeyPrefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if id := keyID(it.Item().Key()); !excluded.Has(id) {
				picked, found = id, true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pick unmarked: %w", err)
	} else if !found {
		return 0, fmt.Errorf("pick unmarked: %w", graph.ErrNotFound)
	}
	return picked, nil
}

// ApplyVersion sets the version of every listed user in a single
// transaction, so either every user is stamped or none is.
//
// When the update is larger than badger allows in one transaction
// (badger.ErrTxnTooBig) the ids are split in halves that are committed
// separately. Only in that case can a failure leave part of the users
// stamped.
func (g *BadgerGraph) ApplyVersion(ctx context.Context, ids []int64, version int64) error {
	if err := g.applyVersion(ctx, ids, version); err != nil {
		return fmt.Errorf("apply version: %w", err)
	}
	return nil
}

func (g *BadgerGraph) applyVersion(ctx context.Context, ids []int64, version int64) error {
	err := g.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}

			rec, err := getRecord(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			} else if err != nil {
				return err
			}

			rec.Version = version
			val, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err = txn.Set(userKey(id), val); err != nil {
				return err
			}
		}
		return nil
	})
	if !errors.Is(err, badger.ErrTxnTooBig) || len(ids) < 2 {
		return err
	}

	half := len(ids) / 2
	if err = g.applyVersion(ctx, ids[:half], version); err != nil {
		return err
	}
	return g.applyVersion(ctx, ids[half:], version)
}

func getRecord(txn *badger.Txn, id int64) (*record, error) {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return nil, err
	}

	rec := new(record)
	if err = item.Value(func(val []byte) error { return json.Unmarshal(val, rec) }); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *record) user(id int64) *graph.User {
	return &graph.User{ID: id, Coaches: r.Coaches, CoachedBy: r.CoachedBy, Version: r.Version}
}

// userKey encodes id so that the byte order of keys matches the numeric order
// of IDs, including negative ones.
func userKey(id int64) []byte {
	key := make([]byte, len(userKeyPrefix)+8)
	copy(key, userKeyPrefix)
	binary.BigEndian.PutUint64(key[len(userKeyPrefix):], uint64(id)^(1<<63))
	return key
}

func keyID(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[len(userKeyPrefix):]) ^ (1 << 63))
}
