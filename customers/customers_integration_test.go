//go:build integration

package customers_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/crm"
	"github.com/acksell/crm/crmerr"
	"github.com/acksell/crm/customers"
	"github.com/acksell/crm/dynamodb/ddbsdk"
)

var client *ddbsdk.Client

func TestMain(m *testing.M) {
	ctx := context.Background()

	region := os.Getenv("AWS_REGION")
	tableName := os.Getenv("CRM_STORE_TABLE")

	if region == "" || tableName == "" {
		fmt.Fprintln(os.Stderr, "AWS_REGION and CRM_STORE_TABLE environment variables must be set for integration tests")
		os.Exit(1)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	c := ddbsdk.New(awsCfg, crm.Table.WithName(tableName))
	if err := c.Verify(ctx); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("table not ready, run `crm table create`: %w", err))
		os.Exit(1)
	}
	client = c

	os.Exit(m.Run())
}

func TestCustomerLifecycleDynamoDB(t *testing.T) {
	ctx := context.Background()
	svc := customers.New(client)

	created, err := svc.Create(ctx, customers.CreateInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		JobTitle:  "Analyst",
		Company:   "Engines Ltd",
		Email:     "ada@example.com",
		Phone:     "+44 20 0000 0000",
		Address: &customers.AddressInput{
			Street: "12 St James's Square", City: "London", State: "LDN", PostalCode: "SW1Y", Country: "UK",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = svc.Delete(context.Background(), created.ID) })

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Contains(t, all, created)

	// A note written directly under the customer partition must go with it.
	noteID := uuid.NewString()
	note := crm.Note{
		ID: noteID, CustomerID: created.ID, Title: "t", Content: "c", EntityType: "Lead",
		Created: created.Created, Updated: created.Created, Type: crm.TypeNote,
	}
	put, err := ddbsdk.NewPut(crm.NoteIndex, note)
	require.NoError(t, err)
	require.NoError(t, client.PutItem(ctx, put))

	n, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.Get(ctx, created.ID)
	assert.True(t, crmerr.IsNotFound(err))

	left, err := client.Query(ctx, ddbsdk.NewQuery(crm.CustomerPK(created.ID), ddbsdk.SortKeyCondition{}))
	require.NoError(t, err)
	assert.Empty(t, left)
}
