package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/acksell/crm"
	"github.com/acksell/crm/config"
	"github.com/acksell/crm/dynamodb/ddbsdk"
	"github.com/acksell/crm/dynamodb/ddbstore"
	"github.com/acksell/crm/events"
	"github.com/acksell/crm/objectstore"
)

func loadAWS(ctx context.Context, c config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.AWS.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if c.AWS.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(c.AWS.Endpoint)
	}
	return awsCfg, nil
}

// openTable returns the table the services run against and the closer that
// releases it.
func openTable(c config.Config, awsCfg aws.Config, logger *slog.Logger) (ddbsdk.Table, io.Closer, error) {
	def := crm.Table.WithName(c.Store.Table)
	switch c.Store.Driver {
	case config.DriverDynamoDB:
		return newDynamoClient(c, awsCfg), nopCloser{}, nil
	case config.DriverBadger, config.DriverMemory:
		opts := ddbstore.StoreOptions{
			Path:     c.Store.Path,
			InMemory: c.Store.Driver == config.DriverMemory,
			Logger:   ddbstore.SlogLogger(logger),
		}
		store, err := ddbstore.New(opts, def)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
}

func newDynamoClient(c config.Config, awsCfg aws.Config) *ddbsdk.Client {
	var opts []ddbsdk.Option
	if c.Store.Endpoint != "" {
		opts = append(opts, ddbsdk.WithEndpoint(c.Store.Endpoint))
	}
	return ddbsdk.New(awsCfg, crm.Table.WithName(c.Store.Table), opts...)
}

func newObjectStore(c config.Config, awsCfg aws.Config) (*objectstore.S3, error) {
	opts := []objectstore.Option{objectstore.WithTTL(c.Storage.PresignTTL)}
	if c.Storage.Endpoint != "" || c.Storage.UsePathStyle {
		opts = append(opts, objectstore.WithEndpoint(c.Storage.Endpoint, c.Storage.UsePathStyle))
	}
	return objectstore.NewS3(awsCfg, c.Storage.Bucket, opts...)
}

func newPublisher(c config.Config, awsCfg aws.Config, logger *slog.Logger) events.Publisher {
	if c.Events.QueueURL == "" {
		return events.NewLog(logger)
	}
	return events.NewSQS(awsCfg, c.Events.QueueURL, logger)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
