package ddbstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"

	"github.com/acksell/crm/dynamodb/ddbsdk"
	"github.com/acksell/crm/dynamodb/table"
)

// GetItem retrieves a single item by primary key, or nil if it does not exist.
func (s *Store) GetItem(ctx context.Context, key table.PrimaryKey) (ddbsdk.Item, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if err := s.checkKey(key); err != nil {
		return nil, err
	}
	k, err := s.main.encodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}

	var item ddbsdk.Item
	err = s.db.View(func(txn *badger.Txn) error {
		item, err = getItem(txn, k)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// getItem reads and decodes the item at key, returning nil if absent.
func getItem(txn *badger.Txn, key []byte) (map[string]types.AttributeValue, error) {
	entry, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = entry.Value(func(val []byte) error {
		item, err = deserializeItem(val)
		return err
	})
	return item, err
}
