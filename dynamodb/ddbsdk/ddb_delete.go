package ddbsdk

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/acksell/crm/dynamodb/table"
)

func (c *Client) DeleteItem(ctx context.Context, key table.PrimaryKey) error {
	k, err := key.DDB()
	if err != nil {
		return err
	}
	_, err = c.awsddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &c.table.Name,
		Key:       k,
	})
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", key, err)
	}
	return nil
}
