package ddbsdk

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/acksell/crm/dynamodb/table"
)

// GetItem is a strongly consistent point read.
func (c *Client) GetItem(ctx context.Context, key table.PrimaryKey) (Item, error) {
	k, err := key.DDB()
	if err != nil {
		return nil, err
	}
	out, err := c.awsddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &c.table.Name,
		Key:            k,
		ConsistentRead: ptr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}
