package ddbstore

import (
	"context"
	"fmt"
	"maps"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"

	"github.com/acksell/crm/dynamodb/ddbsdk"
	"github.com/acksell/crm/dynamodb/table"
)

// PutItem creates or replaces an item.
func (s *Store) PutItem(ctx context.Context, p *ddbsdk.Put) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if p == nil || p.Item == nil {
		return fmt.Errorf("item is required")
	}
	pk, err := s.table.ExtractPrimaryKey(p.Item)
	if err != nil {
		return fmt.Errorf("extract primary key: %w", err)
	}
	key, err := s.main.encodeKey(pk)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	itemBytes, err := serializeItem(p.Item)
	if err != nil {
		return fmt.Errorf("serialize item: %w", err)
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		old, err := getItem(txn, key)
		if err != nil {
			return err
		}
		if old != nil && p.IfNotExists {
			return ddbsdk.ErrConditionFailed
		}
		if err := txn.Set(key, itemBytes); err != nil {
			return err
		}
		return s.reindex(txn, key, pk, old, p.Item)
	})
}

// UpdateItem sets the fields of an existing item and returns the new item.
func (s *Store) UpdateItem(ctx context.Context, u *ddbsdk.Update) (ddbsdk.Item, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkKey(u.Key); err != nil {
		return nil, err
	}
	sets, err := u.MarshalSets()
	if err != nil {
		return nil, err
	}
	key, err := s.main.encodeKey(u.Key)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}

	var updated ddbsdk.Item
	err = s.update(ctx, func(txn *badger.Txn) error {
		old, err := getItem(txn, key)
		if err != nil {
			return err
		}
		if old == nil {
			return ddbsdk.ErrConditionFailed
		}
		updated = maps.Clone(old)
		maps.Copy(updated, sets)
		itemBytes, err := serializeItem(updated)
		if err != nil {
			return fmt.Errorf("serialize item: %w", err)
		}
		if err := txn.Set(key, itemBytes); err != nil {
			return err
		}
		return s.reindex(txn, key, u.Key, old, updated)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// reindex replaces the GSI entries of the item at itemKey. Either item may be
// nil. Items lacking a GSI's key attributes are not part of that GSI.
func (s *Store) reindex(txn *badger.Txn, itemKey []byte, pk table.PrimaryKey, oldItem, newItem map[string]types.AttributeValue) error {
	for _, gsi := range s.gsis {
		if oldItem != nil {
			oldKey, ok, err := gsi.entryKey(pk, oldItem)
			if err != nil {
				return err
			}
			if ok {
				if err := txn.Delete(oldKey); err != nil {
					return err
				}
			}
		}
		if newItem != nil {
			newKey, ok, err := gsi.entryKey(pk, newItem)
			if err != nil {
				return err
			}
			if ok {
				if err := txn.Set(newKey, itemKey); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (g gsiSchema) entryKey(pk table.PrimaryKey, item map[string]types.AttributeValue) ([]byte, bool, error) {
	keys := g.definition.KeyDefinitions
	if _, ok := item[keys.PartitionKey.Name]; !ok {
		return nil, false, nil
	}
	if keys.SortKey.Name != "" {
		if _, ok := item[keys.SortKey.Name]; !ok {
			return nil, false, nil
		}
	}
	gsiKey, err := g.definition.ExtractPrimaryKey(item)
	if err != nil {
		return nil, false, fmt.Errorf("GSI %s: %w", g.definition.Name, err)
	}
	k, err := g.enc.encodeIndexKey(gsiKey, pk)
	if err != nil {
		return nil, false, fmt.Errorf("encode GSI %s key: %w", g.definition.Name, err)
	}
	return k, true, nil
}
