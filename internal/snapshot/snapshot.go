package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/entity"
	"github.com/specialistvlad/graphmut/internal/graphstore"
)

var (
	nodePrefix = []byte("node:")
	relPrefix  = []byte("rel:")
	savedAtKey = []byte("meta:saved_at")
)

// Graph is the content of a snapshot.
type Graph struct {
	Nodes         []entity.Node
	Relationships []entity.Relationship
	// SavedAt is zero for a database that has never been written.
	SavedAt time.Time
}

// Empty reports whether the snapshot holds no entities.
func (g Graph) Empty() bool {
	return len(g.Nodes) == 0 && len(g.Relationships) == 0
}

// Capture copies the current content of store.
func Capture(ctx context.Context, store graphstore.Store, now time.Time) Graph {
	return Graph{
		Nodes:         store.AllNodes(ctx),
		Relationships: store.AllRelationships(ctx),
		SavedAt:       now,
	}
}

// Restore inserts the snapshot into store, nodes first. The store must not
// already hold any of the entities.
func (g Graph) Restore(ctx context.Context, store graphstore.Store) error {
	for _, n := range g.Nodes {
		if err := store.InsertNode(ctx, n); err != nil {
			return fmt.Errorf("restoring node %s: %w", n.ID, err)
		}
	}
	for _, r := range g.Relationships {
		if err := store.InsertRelationship(ctx, r); err != nil {
			return fmt.Errorf("restoring relationship %s: %w", r.ID, err)
		}
	}
	return nil
}

// Store is a snapshot database on disk.
type Store struct {
	db   *badger.DB
	path string
}

// Open opens or creates the snapshot database in the directory path.
func Open(ctx context.Context, path string) (*Store, error) {
	logger := ctxlog.FromContext(ctx).With("snapshot_path", path)
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{l: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database %s: %w", path, err)
	}
	logger.Debug("Snapshot database opened.")
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored snapshot with g.
func (s *Store) Save(ctx context.Context, g Graph) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("failed to clear previous snapshot: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, n := range g.Nodes {
		if err := setJSON(wb, key(nodePrefix, n.ID.String()), n); err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
	}
	for _, r := range g.Relationships {
		if err := setJSON(wb, key(relPrefix, r.ID.String()), r); err != nil {
			return fmt.Errorf("relationship %s: %w", r.ID, err)
		}
	}
	stamp, err := g.SavedAt.MarshalText()
	if err != nil {
		return err
	}
	if err := wb.Set(savedAtKey, stamp); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	ctxlog.FromContext(ctx).Info("Snapshot saved.",
		"snapshot_path", s.path,
		"nodes", len(g.Nodes),
		"relationships", len(g.Relationships),
	)
	return nil
}

// Load reads the stored snapshot. A database that was never saved yields
// an empty Graph.
func (s *Store) Load(ctx context.Context) (Graph, error) {
	var g Graph
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(savedAtKey)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(g.SavedAt.UnmarshalText); err != nil {
				return fmt.Errorf("corrupt snapshot timestamp: %w", err)
			}
		}

		if err := scan(txn, nodePrefix, func(n entity.Node) { g.Nodes = append(g.Nodes, n) }); err != nil {
			return err
		}
		return scan(txn, relPrefix, func(r entity.Relationship) { g.Relationships = append(g.Relationships, r) })
	})
	if err != nil {
		return Graph{}, fmt.Errorf("failed to load snapshot from %s: %w", s.path, err)
	}

	ctxlog.FromContext(ctx).Debug("Snapshot loaded.",
		"snapshot_path", s.path,
		"nodes", len(g.Nodes),
		"relationships", len(g.Relationships),
	)
	return g, nil
}

func key(prefix []byte, id string) []byte {
	return append(append([]byte{}, prefix...), id...)
}

func setJSON(wb *badger.WriteBatch, k []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return wb.Set(k, data)
}

func scan[T any](txn *badger.Txn, prefix []byte, yield func(T)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var v T
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return fmt.Errorf("corrupt entry %s: %w", item.Key(), err)
		}
		yield(v)
	}
	return nil
}
