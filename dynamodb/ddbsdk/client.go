package ddbsdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/crm/dynamodb/table"
)

// Option is a functional option for configuring a Client.
type Option func(*Options)

type Options struct {
	api      AWSDynamoClientV2
	endpoint string
}

// WithAPI sets a custom AWSDynamoClientV2 implementation, e.g. a mock in tests.
func WithAPI(api AWSDynamoClientV2) Option {
	return func(o *Options) {
		o.api = api
	}
}

// WithEndpoint points the client at a DynamoDB compatible endpoint such as
// DynamoDB Local.
func WithEndpoint(url string) Option {
	return func(o *Options) {
		o.endpoint = url
	}
}

// New creates a Client for the table described by def.
func New(awsCfg aws.Config, def table.TableDefinition, opts ...Option) *Client {
	options := &Options{}
	for _, o := range opts {
		o(options)
	}
	api := options.api
	if api == nil {
		api = dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if options.endpoint != "" {
				o.BaseEndpoint = aws.String(options.endpoint)
			}
		})
	}
	return &Client{
		awsddb: api,
		table:  def,
	}
}

// Client implements Table on top of DynamoDB. It is safe for concurrent use.
type Client struct {
	awsddb AWSDynamoClientV2
	table  table.TableDefinition
}

var _ Table = &Client{}

// CreateTable provisions the table and its GSIs with on-demand billing.
// All GSIs project every attribute.
func (c *Client) CreateTable(ctx context.Context) error {
	in := &dynamodb.CreateTableInput{
		TableName:            &c.table.Name,
		AttributeDefinitions: c.table.AttributeDefinitions(),
		KeySchema:            c.table.KeyDefinitions.KeySchema(),
		BillingMode:          types.BillingModePayPerRequest,
	}
	for _, g := range c.table.GSIs {
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:  aws.String(g.Name),
			KeySchema:  g.KeyDefinitions.KeySchema(),
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}
	_, err := c.awsddb.CreateTable(ctx, in)
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return fmt.Errorf("table %s already exists", c.table.Name)
		}
		return fmt.Errorf("failed to create table %s: %w", c.table.Name, err)
	}
	return nil
}

// Verify checks that the table exists, is active and has the key schema and
// GSIs of the definition.
func (c *Client) Verify(ctx context.Context) error {
	res, err := c.awsddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &c.table.Name,
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("table %s does not exist", c.table.Name)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.table.Name, err)
	}
	desc := res.Table
	if desc == nil {
		return fmt.Errorf("table %s has no description", c.table.Name)
	}
	if err := verifyKeySchema("table "+c.table.Name, desc.KeySchema, c.table.KeyDefinitions); err != nil {
		return err
	}
	if desc.TableStatus != types.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.table.Name, desc.TableStatus)
	}
	for _, g := range c.table.GSIs {
		if err := verifyGSI(desc, g); err != nil {
			return err
		}
	}
	return nil
}

func verifyGSI(desc *types.TableDescription, def table.GSIDefinition) error {
	for _, index := range desc.GlobalSecondaryIndexes {
		if aws.ToString(index.IndexName) != def.Name {
			continue
		}
		if err := verifyKeySchema("global secondary index "+def.Name, index.KeySchema, def.KeyDefinitions); err != nil {
			return err
		}
		if index.IndexStatus != types.IndexStatusActive {
			return fmt.Errorf("global secondary index %s is not active (status: %s)", def.Name, index.IndexStatus)
		}
		if index.Projection == nil || index.Projection.ProjectionType != types.ProjectionTypeAll {
			return fmt.Errorf("global secondary index %s must project all attributes", def.Name)
		}
		return nil
	}
	return fmt.Errorf("global secondary index %s not found", def.Name)
}

func verifyKeySchema(what string, schema []types.KeySchemaElement, def table.PrimaryKeyDefinition) error {
	if len(schema) < 1 {
		return fmt.Errorf("%s has no key schema", what)
	}
	if got := aws.ToString(schema[0].AttributeName); got != def.PartitionKey.Name {
		return fmt.Errorf("%s has partition key %s, expected %s", what, got, def.PartitionKey.Name)
	}
	if def.SortKey.Name == "" {
		return nil
	}
	if len(schema) < 2 {
		return fmt.Errorf("%s has a simple primary key, expected composite", what)
	}
	if got := aws.ToString(schema[1].AttributeName); got != def.SortKey.Name {
		return fmt.Errorf("%s has sort key %s, expected %s", what, got, def.SortKey.Name)
	}
	return nil
}
