package ddbsdk

import (
	"context"
	"errors"

	"github.com/acksell/crm/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AWSDynamoClientV2 is the subset of *dynamodb.Client used by Client.
type AWSDynamoClientV2 interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Table is the contract the services are written against. Client talks to
// DynamoDB, ddbstore.Store emulates it on badger.
type Table interface {
	// GetItem returns nil, nil when there is no item under key.
	GetItem(ctx context.Context, key table.PrimaryKey) (Item, error)
	// PutItem returns ErrConditionFailed if the put had IfNotExists set
	// and the key is taken.
	PutItem(ctx context.Context, p *Put) error
	// UpdateItem only applies to existing items, otherwise it returns
	// ErrConditionFailed. It returns the item after the update.
	UpdateItem(ctx context.Context, u *Update) (Item, error)
	// DeleteItem succeeds whether or not the item exists.
	DeleteItem(ctx context.Context, key table.PrimaryKey) error
	// Query reads every page of the result.
	Query(ctx context.Context, q Query) ([]Item, error)
}

// Item represents a raw DynamoDB item.
// Callers should use attributevalue.UnmarshalMap to convert to their struct.
type Item = map[string]types.AttributeValue

var ErrConditionFailed = errors.New("conditional check failed")
