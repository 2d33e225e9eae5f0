package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type TableDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
	GSIs           []GSIDefinition
}

// GSIDefinition represents a Global Secondary Index definition.
// All GSIs project every attribute.
type GSIDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
}

// ExtractPrimaryKey extracts the index key values from a document.
// Documents missing the index partition key are not part of the index.
func (g GSIDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return g.KeyDefinitions.ExtractPrimaryKey(doc)
}

func (t TableDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return t.KeyDefinitions.ExtractPrimaryKey(doc)
}

// WithName returns a copy of the definition bound to another physical table.
func (t TableDefinition) WithName(name string) TableDefinition {
	t.Name = name
	return t
}

// KeysFor returns the key definition of the table itself when index is empty,
// or of the named GSI.
func (t TableDefinition) KeysFor(index string) (PrimaryKeyDefinition, error) {
	if index == "" {
		return t.KeyDefinitions, nil
	}
	gsi, ok := t.GSI(index)
	if !ok {
		return PrimaryKeyDefinition{}, fmt.Errorf("index %q not defined on table %q", index, t.Name)
	}
	return gsi.KeyDefinitions, nil
}

func (t TableDefinition) GSI(name string) (GSIDefinition, bool) {
	for _, g := range t.GSIs {
		if g.Name == name {
			return g, true
		}
	}
	return GSIDefinition{}, false
}

// AttributeDefinitions lists every key attribute of the table and its GSIs once.
func (t TableDefinition) AttributeDefinitions() []types.AttributeDefinition {
	seen := map[string]bool{}
	var defs []types.AttributeDefinition
	add := func(k KeyDef) {
		if k.Name == "" || seen[k.Name] {
			return
		}
		seen[k.Name] = true
		defs = append(defs, types.AttributeDefinition{
			AttributeName: &k.Name,
			AttributeType: types.ScalarAttributeType(k.Kind),
		})
	}
	add(t.KeyDefinitions.PartitionKey)
	add(t.KeyDefinitions.SortKey)
	for _, g := range t.GSIs {
		add(g.KeyDefinitions.PartitionKey)
		add(g.KeyDefinitions.SortKey)
	}
	return defs
}

func (k PrimaryKeyDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	part, ok := doc[k.PartitionKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("partition key %q not found", k.PartitionKey.Name)
	}
	if err := attributeMatchesDefinition(k.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("document key %q kind does not match definition: %w", k.PartitionKey.Name, err)
	}
	partVal, err := keyValueFromAV(part)
	if err != nil {
		return PrimaryKey{}, err
	}
	pk := PrimaryKey{
		Definition: k,
		Values: PrimaryKeyValues{
			PartitionKey: partVal,
		},
	}
	if k.SortKey.Name == "" {
		return pk, nil
	}
	sort, ok := doc[k.SortKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("sort key %q not found on document", k.SortKey.Name)
	}
	if err := attributeMatchesDefinition(k.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key %q kind does not match definition: %w", k.SortKey.Name, err)
	}
	pk.Values.SortKey, err = keyValueFromAV(sort)
	if err != nil {
		return PrimaryKey{}, err
	}
	return pk, nil
}

func keyValueFromAV(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return v.Value, nil
	case *types.AttributeValueMemberB:
		return v.Value, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value %T for dynamodb keys", v)
	}
}
