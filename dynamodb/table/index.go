package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PrimaryIndexDefinition describes how one entity type derives its keys in
// the table from its own attributes.
type PrimaryIndexDefinition struct {
	Table          TableDefinition
	PartitionKeyer Keyer
	SortKeyer      Keyer
}

func (i PrimaryIndexDefinition) PrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	part, err := i.PartitionKeyer.Key(doc)
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("failed to get partition key: %w", err)
	}
	if err := attributeMatchesDefinition(i.Table.KeyDefinitions.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("partition key kind does not match table definition: %w", err)
	}
	partVal, err := keyValueFromAV(part)
	if err != nil {
		return PrimaryKey{}, err
	}
	pk := PrimaryKey{
		Definition: i.Table.KeyDefinitions,
		Values: PrimaryKeyValues{
			PartitionKey: partVal,
		},
	}
	if i.Table.KeyDefinitions.SortKey.Name == "" {
		return pk, nil
	}
	if i.SortKeyer == nil {
		return PrimaryKey{}, fmt.Errorf("table %q requires a sort key but index has no sort keyer", i.Table.Name)
	}
	sort, err := i.SortKeyer.Key(doc)
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("failed to get sort key: %w", err)
	}
	if err := attributeMatchesDefinition(i.Table.KeyDefinitions.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key kind does not match table definition: %w", err)
	}
	pk.Values.SortKey, err = keyValueFromAV(sort)
	if err != nil {
		return PrimaryKey{}, err
	}
	return pk, nil
}
