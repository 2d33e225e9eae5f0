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

const defaultPageSize = 100

// Query selects the items of one partition, on the table or on a GSI.
//
// Build with NewQuery and chain OnIndex, WithFilterEquals, Descending and
// WithPageSize.
type Query struct {
	Index     string
	Partition any
	SortKey   SortKeyCondition
	// Filters are applied after the key condition, so filtered out items
	// still count towards the page size.
	Filters    []Filter
	Descending bool
	PageSize   int32
}

type Filter struct {
	Name  string
	Value any
}

func NewQuery(partition any, sk SortKeyCondition) Query {
	return Query{
		Partition: partition,
		SortKey:   sk,
		PageSize:  defaultPageSize,
	}
}

func (q Query) OnIndex(name string) Query {
	q.Index = name
	return q
}

func (q Query) WithFilterEquals(name string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Name: name, Value: value})
	return q
}

func (q Query) WithDescending() Query {
	q.Descending = true
	return q
}

func (q Query) WithPageSize(n int) Query {
	q.PageSize = int32(n)
	return q
}

// Matches reports whether the item passes every filter.
func (q Query) Matches(item Item) (bool, error) {
	for _, f := range q.Filters {
		want, err := attributevalue.Marshal(f.Value)
		if err != nil {
			return false, fmt.Errorf("marshal filter %q: %w", f.Name, err)
		}
		got, ok := item[f.Name]
		if !ok || !scalarEqual(want, got) {
			return false, nil
		}
	}
	return true, nil
}

func (q Query) build(def table.TableDefinition) (*dynamodb.QueryInput, error) {
	keys, err := def.KeysFor(q.Index)
	if err != nil {
		return nil, err
	}
	key := expression.KeyEqual(expression.Key(keys.PartitionKey.Name), expression.Value(q.Partition))
	if q.SortKey.IsSet() {
		key = key.And(q.SortKey.builder(keys.SortKey.Name))
	}
	b := expression.NewBuilder().WithKeyCondition(key)

	if len(q.Filters) > 0 {
		var filter expression.ConditionBuilder
		for i, f := range q.Filters {
			c := expression.Name(f.Name).Equal(expression.Value(f.Value))
			if i == 0 {
				filter = c
			} else {
				filter = filter.And(c)
			}
		}
		b = b.WithFilter(filter)
	}

	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	in := &dynamodb.QueryInput{
		TableName:                 &def.Name,
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeValues: expr.Values(),
		ExpressionAttributeNames:  expr.Names(),
		ScanIndexForward:          ptr(!q.Descending),
	}
	if q.PageSize > 0 {
		in.Limit = ptr(q.PageSize)
	}
	if q.Index != "" {
		// GSIs only support eventually consistent reads.
		in.IndexName = ptr(q.Index)
	} else {
		in.ConsistentRead = ptr(true)
	}
	return in, nil
}

func (c *Client) Query(ctx context.Context, q Query) ([]Item, error) {
	in, err := q.build(c.table)
	if err != nil {
		return nil, err
	}
	var (
		items  []Item
		cursor map[string]types.AttributeValue
	)
	for {
		in.ExclusiveStartKey = cursor
		res, err := c.awsddb.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		items = append(items, res.Items...)
		if len(res.LastEvaluatedKey) == 0 {
			return items, nil
		}
		cursor = res.LastEvaluatedKey
	}
}

func ptr[T any](v T) *T {
	return &v
}
