package ddbstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"

	"github.com/acksell/crm/dynamodb/ddbsdk"
	"github.com/acksell/crm/dynamodb/table"
)

// Query returns every item of a partition matching the sort key condition
// and filters, ordered by sort key. The whole result is read in one
// transaction, so PageSize has no effect.
func (s *Store) Query(ctx context.Context, q ddbsdk.Query) ([]ddbsdk.Item, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	enc, err := s.encoder(q.Index)
	if err != nil {
		return nil, err
	}
	prefix, err := enc.partitionPrefix(q.Partition)
	if err != nil {
		return nil, fmt.Errorf("encode partition key prefix: %w", err)
	}
	// begins_with on a string sort key narrows the scan prefix.
	if p, ok := q.SortKey.Prefix(); ok && enc.keyDefs.SortKey.Kind == table.KeyKindS {
		prefix = append(prefix, keyTypeString)
		prefix = append(prefix, escapeBytes([]byte(p))...)
	}
	skName := enc.keyDefs.SortKey.Name

	var items []ddbsdk.Item
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.Valid(); it.Next() {
			var item map[string]types.AttributeValue
			err := it.Item().Value(func(val []byte) error {
				var err error
				if enc.gsiName == "" {
					item, err = deserializeItem(val)
					return err
				}
				item, err = getItem(txn, slices.Clone(val))
				return err
			})
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("dangling GSI entry in %s", enc.gsiName)
			}
			ok, err := matches(q, skName, item)
			if err != nil {
				return err
			}
			if ok {
				items = append(items, item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if q.Descending {
		slices.Reverse(items)
	}
	return items, nil
}

func matches(q ddbsdk.Query, skName string, item map[string]types.AttributeValue) (bool, error) {
	if q.SortKey.IsSet() {
		sk, ok := item[skName]
		if !ok {
			return false, nil
		}
		ok, err := q.SortKey.Matches(sk)
		if err != nil || !ok {
			return false, err
		}
	}
	return q.Matches(item)
}
