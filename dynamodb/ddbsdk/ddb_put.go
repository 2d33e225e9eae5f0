package ddbsdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/crm/dynamodb/table"
)

// Put writes a whole item. Item always contains the key attributes.
type Put struct {
	Key  table.PrimaryKey
	Item Item
	// IfNotExists fails the put with ErrConditionFailed when the key is taken.
	IfNotExists bool
}

// NewPut marshals entity and derives its primary key through index.
func NewPut(index table.PrimaryIndexDefinition, entity any) (*Put, error) {
	item, err := attributevalue.MarshalMap(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity to dynamodb map: %w", err)
	}
	key, err := index.PrimaryKey(item)
	if err != nil {
		return nil, fmt.Errorf("failed to derive primary key for %T: %w", entity, err)
	}
	keyAttrs, err := key.DDB()
	if err != nil {
		return nil, err
	}
	for k, v := range keyAttrs {
		item[k] = v
	}
	return &Put{Key: key, Item: item}, nil
}

func (p *Put) WithIfNotExists() *Put {
	p.IfNotExists = true
	return p
}

func (p *Put) toPutItem(tableName string) (*dynamodb.PutItemInput, error) {
	in := &dynamodb.PutItemInput{
		TableName: &tableName,
		Item:      p.Item,
	}
	if !p.IfNotExists {
		return in, nil
	}
	cond := expression.AttributeNotExists(expression.Name(p.Key.Definition.PartitionKey.Name))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	in.ConditionExpression = expr.Condition()
	in.ExpressionAttributeNames = expr.Names()
	in.ExpressionAttributeValues = expr.Values()
	return in, nil
}

func (c *Client) PutItem(ctx context.Context, p *Put) error {
	in, err := p.toPutItem(c.table.Name)
	if err != nil {
		return fmt.Errorf("failed to build put: %w", err)
	}
	_, err = c.awsddb.PutItem(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to put item %s: %w", p.Key, conditionErr(err))
	}
	return nil
}

// conditionErr maps DynamoDB's conditional check failure onto ErrConditionFailed.
func conditionErr(err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrConditionFailed
	}
	return err
}
