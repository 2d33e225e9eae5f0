package ddbstore

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/acksell/crm/dynamodb/ddbsdk"
	"github.com/acksell/crm/dynamodb/table"
)

// Test table definitions
var singleTableDesign = table.TableDefinition{
	Name: "test-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
	GSIs: []table.GSIDefinition{
		{
			Name: "gsi1",
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: table.KeyDef{Name: "type", Kind: table.KeyKindS},
				SortKey:      table.KeyDef{Name: "created", Kind: table.KeyKindS},
			},
		},
	},
}

var numericSortKeyTable = table.TableDefinition{
	Name: "numeric-sk-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindN},
	},
}

func newTestStore(t *testing.T, def table.TableDefinition) *Store {
	store, err := NewMemoryStore(def)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func key(pk, sk string) table.PrimaryKey {
	return singleTableDesign.KeyDefinitions.Key(pk, sk)
}

func put(item ddbsdk.Item) *ddbsdk.Put {
	return &ddbsdk.Put{Item: item}
}

func values(t *testing.T, items []ddbsdk.Item, attr string) []string {
	t.Helper()
	out := make([]string, 0, len(items))
	for _, item := range items {
		v, ok := item[attr].(*types.AttributeValueMemberS)
		require.True(t, ok, "attribute %q missing or not a string", attr)
		out = append(out, v.Value)
	}
	return out
}
