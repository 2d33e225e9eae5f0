package ddbstore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/acksell/crm/dynamodb/table"
)

// DeleteItem removes an item and its GSI entries. Deleting a missing item is
// not an error.
func (s *Store) DeleteItem(ctx context.Context, key table.PrimaryKey) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if err := s.checkKey(key); err != nil {
		return err
	}
	k, err := s.main.encodeKey(key)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		old, err := getItem(txn, k)
		if err != nil {
			return err
		}
		if old == nil {
			return nil
		}
		if err := txn.Delete(k); err != nil {
			return err
		}
		return s.reindex(txn, k, key, old, nil)
	})
}
