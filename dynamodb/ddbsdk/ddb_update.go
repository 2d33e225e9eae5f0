package ddbsdk

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/crm/dynamodb/table"
)

// Update sets individual attributes of an existing item, leaving every
// other attribute untouched.
type Update struct {
	Key  table.PrimaryKey
	Sets []SetFieldOp
}

// SetFieldOp sets the value of a field regardless of any existing value.
type SetFieldOp struct {
	Field string
	Value any
}

func NewUpdate(key table.PrimaryKey) *Update {
	return &Update{Key: key}
}

func (u *Update) Set(field string, value any) *Update {
	u.Sets = append(u.Sets, SetFieldOp{Field: field, Value: value})
	return u
}

func (u *Update) IsEmpty() bool {
	return len(u.Sets) == 0
}

// Fields lists the updated attribute names in the order they were set.
func (u *Update) Fields() []string {
	fields := make([]string, len(u.Sets))
	for i, op := range u.Sets {
		fields[i] = op.Field
	}
	return fields
}

// Validate rejects empty updates, updates of key attributes and fields set twice.
func (u *Update) Validate() error {
	if u.IsEmpty() {
		return fmt.Errorf("update of %s has no fields", u.Key)
	}
	seen := make(map[string]bool, len(u.Sets))
	for _, op := range u.Sets {
		if op.Field == u.Key.Definition.PartitionKey.Name || op.Field == u.Key.Definition.SortKey.Name {
			return fmt.Errorf("field %q is part of the primary key and cannot be updated", op.Field)
		}
		if seen[op.Field] {
			return fmt.Errorf("field %q set twice in update", op.Field)
		}
		seen[op.Field] = true
	}
	return nil
}

// MarshalSets returns the attribute values the update writes.
func (u *Update) MarshalSets() (Item, error) {
	vals := make(Item, len(u.Sets))
	for _, op := range u.Sets {
		av, err := attributevalue.Marshal(op.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", op.Field, err)
		}
		vals[op.Field] = av
	}
	return vals, nil
}

func (u *Update) toUpdateItem(tableName string) (*dynamodb.UpdateItemInput, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	key, err := u.Key.DDB()
	if err != nil {
		return nil, err
	}
	var upd expression.UpdateBuilder
	for _, op := range u.Sets {
		upd = upd.Set(expression.Name(op.Field), expression.Value(op.Value))
	}
	cond := expression.AttributeExists(expression.Name(u.Key.Definition.PartitionKey.Name))
	expr, err := expression.NewBuilder().WithUpdate(upd).WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	return &dynamodb.UpdateItemInput{
		TableName:                 &tableName,
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	}, nil
}

func (c *Client) UpdateItem(ctx context.Context, u *Update) (Item, error) {
	in, err := u.toUpdateItem(c.table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}
	out, err := c.awsddb.UpdateItem(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to update item %s: %w", u.Key, conditionErr(err))
	}
	return out.Attributes, nil
}
