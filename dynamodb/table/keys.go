package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	SortKey      KeyDef
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

type PrimaryKeyValues struct {
	PartitionKey any
	SortKey      any
}

type PrimaryKey struct {
	Definition PrimaryKeyDefinition
	Values     PrimaryKeyValues
}

// Key builds a primary key for this definition. sk is ignored for
// partition-only definitions.
func (k PrimaryKeyDefinition) Key(pk, sk any) PrimaryKey {
	return PrimaryKey{
		Definition: k,
		Values:     PrimaryKeyValues{PartitionKey: pk, SortKey: sk},
	}
}

// KeySchema returns the HASH/RANGE schema used by CreateTable.
func (k PrimaryKeyDefinition) KeySchema() []types.KeySchemaElement {
	schema := []types.KeySchemaElement{
		{AttributeName: &k.PartitionKey.Name, KeyType: types.KeyTypeHash},
	}
	if k.SortKey.Name != "" {
		schema = append(schema, types.KeySchemaElement{AttributeName: &k.SortKey.Name, KeyType: types.KeyTypeRange})
	}
	return schema
}

// DDB marshals the key into the attribute map DynamoDB expects as a Key.
func (k PrimaryKey) DDB() (map[string]types.AttributeValue, error) {
	pk, err := attributevalue.Marshal(k.Values.PartitionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal partition key of type %T with value %v: %w", k.Values.PartitionKey, k.Values.PartitionKey, err)
	}
	if err := attributeMatchesDefinition(k.Definition.PartitionKey.Kind, pk); err != nil {
		return nil, fmt.Errorf("partition key kind does not match dynamo value: %w", err)
	}
	if k.Definition.SortKey.Name == "" {
		return map[string]types.AttributeValue{
			k.Definition.PartitionKey.Name: pk,
		}, nil
	}
	if k.Values.SortKey == nil {
		return nil, fmt.Errorf("sort key %q is required but got nil", k.Definition.SortKey.Name)
	}
	sk, err := attributevalue.Marshal(k.Values.SortKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sort key of type %T with value %v: %w", k.Values.SortKey, k.Values.SortKey, err)
	}
	if err := attributeMatchesDefinition(k.Definition.SortKey.Kind, sk); err != nil {
		return nil, fmt.Errorf("sort key %q kind does not match dynamo value: %w", k.Definition.SortKey.Name, err)
	}
	return map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: pk,
		k.Definition.SortKey.Name:      sk,
	}, nil
}

func (k PrimaryKey) String() string {
	if k.Definition.SortKey.Name == "" {
		return fmt.Sprintf("%s=%v", k.Definition.PartitionKey.Name, k.Values.PartitionKey)
	}
	return fmt.Sprintf("%s=%v,%s=%v", k.Definition.PartitionKey.Name, k.Values.PartitionKey, k.Definition.SortKey.Name, k.Values.SortKey)
}

func attributeMatchesDefinition(want KeyKind, v types.AttributeValue) error {
	var got KeyKind
	switch v.(type) {
	case *types.AttributeValueMemberS:
		got = KeyKindS
	case *types.AttributeValueMemberN:
		got = KeyKindN
	case *types.AttributeValueMemberB:
		got = KeyKindB
	default:
		return fmt.Errorf("unexpected key attribute type %T", v)
	}
	if got != want {
		return fmt.Errorf("got KeyKind %q want %q", got, want)
	}
	return nil
}
