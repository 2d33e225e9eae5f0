package ddbstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/acksell/crm/dynamodb/ddbsdk"
	"github.com/acksell/crm/dynamodb/table"
)

// Store emulates a single DynamoDB table and its GSIs on BadgerDB.
// Every operation runs in one badger transaction, so item writes and their
// GSI entries are atomic.
type Store struct {
	db    *badger.DB
	table table.TableDefinition
	main  keyEncoder
	gsis  []gsiSchema

	// writes serializes read-modify-write transactions. Without it two writers
	// of one key conflict and one of them fails, where DynamoDB lets the last
	// write win.
	writes sync.Mutex
}

// maxConflictRetries bounds retries of a write that still hit
// badger.ErrConflict.
const maxConflictRetries = 10

var _ ddbsdk.Table = &Store{}

type gsiSchema struct {
	definition table.GSIDefinition
	enc        keyEncoder
}

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger for BadgerDB. If nil, logging is disabled.
	Logger badger.Logger
}

// New creates a new BadgerDB-backed store for def.
func New(opts StoreOptions, def table.TableDefinition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &Store{
		db:    db,
		table: def,
		main:  keyEncoder{tableName: def.Name, keyDefs: def.KeyDefinitions},
	}
	for _, g := range def.GSIs {
		s.gsis = append(s.gsis, gsiSchema{
			definition: g,
			enc:        keyEncoder{tableName: def.Name, gsiName: g.Name, keyDefs: g.KeyDefinitions},
		})
	}
	return s, nil
}

// NewMemoryStore opens an in-memory store, as used by tests and local runs.
func NewMemoryStore(def table.TableDefinition) (*Store, error) {
	return New(StoreOptions{InMemory: true}, def)
}

// update runs fn in a read-write transaction, one writer at a time, and
// retries it when badger reports a conflict.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	s.writes.Lock()
	defer s.writes.Unlock()

	var err error
	for range maxConflictRetries {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("write failed after %d attempts: %w", maxConflictRetries, err)
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) encoder(index string) (keyEncoder, error) {
	if index == "" {
		return s.main, nil
	}
	for _, g := range s.gsis {
		if g.definition.Name == index {
			return g.enc, nil
		}
	}
	return keyEncoder{}, fmt.Errorf("GSI not found: %s", index)
}

// checkKey rejects keys built for another table layout.
func (s *Store) checkKey(pk table.PrimaryKey) error {
	if pk.Definition != s.table.KeyDefinitions {
		return fmt.Errorf("key %s does not match the key schema of table %s", pk, s.table.Name)
	}
	return nil
}

// badger does not observe contexts, so cancellation is only checked up front.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}
