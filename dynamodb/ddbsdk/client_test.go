package ddbsdk

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/crm/dynamodb/table"
)

// clientTestTable is a shared table definition used across client operation tests
var clientTestTable = table.TableDefinition{
	Name: "test-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
	GSIs: []table.GSIDefinition{
		{
			Name: "gsi1",
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: table.KeyDef{Name: "type", Kind: table.KeyKindS},
				SortKey:      table.KeyDef{Name: "created", Kind: table.KeyKindS},
			},
		},
	},
}

var testIndex = table.PrimaryIndexDefinition{
	Table:          clientTestTable,
	PartitionKeyer: table.FmtKeyer("USER#%s", "id"),
	SortKeyer:      table.ConstKeyer("PROFILE"),
}

type testEntity struct {
	ID      string `dynamodbav:"id"`
	Name    string `dynamodbav:"name"`
	Type    string `dynamodbav:"type"`
	Created string `dynamodbav:"created"`
}

// testKey is a helper function to create a primary key for tests
func testKey(pk, sk string) table.PrimaryKey {
	return clientTestTable.KeyDefinitions.Key(pk, sk)
}

// mockAPI is a mock implementation of AWSDynamoClientV2 for testing.
type mockAPI struct {
	getItemFunc       func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	putItemFunc       func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	updateItemFunc    func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	deleteItemFunc    func(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	queryFunc         func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	createTableFunc   func(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	describeTableFunc func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

func (m *mockAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockAPI) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if m.updateItemFunc != nil {
		return m.updateItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockAPI) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if m.deleteItemFunc != nil {
		return m.deleteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockAPI) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, params, optFns...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockAPI) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if m.createTableFunc != nil {
		return m.createTableFunc(ctx, params, optFns...)
	}
	return &dynamodb.CreateTableOutput{}, nil
}

func (m *mockAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeTableFunc != nil {
		return m.describeTableFunc(ctx, params, optFns...)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func newTestClient(api *mockAPI) *Client {
	return New(aws.Config{}, clientTestTable, WithAPI(api))
}

func TestClient_GetItem(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		var got *dynamodb.GetItemInput
		c := newTestClient(&mockAPI{
			getItemFunc: func(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
				got = in
				return &dynamodb.GetItemOutput{Item: Item{
					"pk":   &types.AttributeValueMemberS{Value: "USER#1"},
					"name": &types.AttributeValueMemberS{Value: "Alice"},
				}}, nil
			},
		})
		item, err := c.GetItem(ctx, testKey("USER#1", "PROFILE"))
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, "test-table", aws.ToString(got.TableName))
		assert.True(t, aws.ToBool(got.ConsistentRead))
		assert.Equal(t, &types.AttributeValueMemberS{Value: "PROFILE"}, got.Key["sk"])
	})

	t.Run("missing returns nil", func(t *testing.T) {
		c := newTestClient(&mockAPI{})
		item, err := c.GetItem(ctx, testKey("USER#1", "PROFILE"))
		require.NoError(t, err)
		assert.Nil(t, item)
	})

	t.Run("invalid key", func(t *testing.T) {
		c := newTestClient(&mockAPI{})
		_, err := c.GetItem(ctx, clientTestTable.KeyDefinitions.Key("USER#1", nil))
		require.Error(t, err)
	})
}

func TestClient_PutItem(t *testing.T) {
	ctx := context.Background()
	entity := testEntity{ID: "1", Name: "Alice", Type: "USER", Created: "2025"}

	t.Run("merges derived key into item", func(t *testing.T) {
		var got *dynamodb.PutItemInput
		c := newTestClient(&mockAPI{
			putItemFunc: func(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
				got = in
				return &dynamodb.PutItemOutput{}, nil
			},
		})
		put, err := NewPut(testIndex, entity)
		require.NoError(t, err)
		require.NoError(t, c.PutItem(ctx, put))

		assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#1"}, got.Item["pk"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "PROFILE"}, got.Item["sk"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "Alice"}, got.Item["name"])
		assert.Nil(t, got.ConditionExpression)
	})

	t.Run("if not exists", func(t *testing.T) {
		var got *dynamodb.PutItemInput
		c := newTestClient(&mockAPI{
			putItemFunc: func(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
				got = in
				return nil, &types.ConditionalCheckFailedException{Message: aws.String("taken")}
			},
		})
		put, err := NewPut(testIndex, entity)
		require.NoError(t, err)
		err = c.PutItem(ctx, put.WithIfNotExists())
		require.ErrorIs(t, err, ErrConditionFailed)
		require.NotNil(t, got.ConditionExpression)
		assert.Contains(t, aws.ToString(got.ConditionExpression), "attribute_not_exists")
	})

	t.Run("entity without key attributes", func(t *testing.T) {
		_, err := NewPut(testIndex, testEntity{Name: "nobody"})
		require.Error(t, err)
	})
}

func TestClient_UpdateItem(t *testing.T) {
	ctx := context.Background()

	t.Run("sets only given fields and returns new item", func(t *testing.T) {
		var got *dynamodb.UpdateItemInput
		c := newTestClient(&mockAPI{
			updateItemFunc: func(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
				got = in
				return &dynamodb.UpdateItemOutput{Attributes: Item{
					"name": &types.AttributeValueMemberS{Value: "Bob"},
				}}, nil
			},
		})
		item, err := c.UpdateItem(ctx, NewUpdate(testKey("USER#1", "PROFILE")).Set("name", "Bob").Set("updated", "2026"))
		require.NoError(t, err)

		var out testEntity
		require.NoError(t, attributevalue.UnmarshalMap(item, &out))
		assert.Equal(t, "Bob", out.Name)

		expr := aws.ToString(got.UpdateExpression)
		assert.Contains(t, expr, "SET")
		assert.NotContains(t, expr, "ADD")
		assert.Len(t, got.ExpressionAttributeValues, 2)
		assert.Contains(t, aws.ToString(got.ConditionExpression), "attribute_exists")
		assert.Equal(t, types.ReturnValueAllNew, got.ReturnValues)
	})

	t.Run("missing item", func(t *testing.T) {
		c := newTestClient(&mockAPI{
			updateItemFunc: func(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
				return nil, &types.ConditionalCheckFailedException{}
			},
		})
		_, err := c.UpdateItem(ctx, NewUpdate(testKey("USER#1", "PROFILE")).Set("name", "Bob"))
		require.ErrorIs(t, err, ErrConditionFailed)
	})

	tests := []struct {
		name   string
		update *Update
	}{
		{"empty", NewUpdate(testKey("USER#1", "PROFILE"))},
		{"partition key", NewUpdate(testKey("USER#1", "PROFILE")).Set("pk", "x")},
		{"sort key", NewUpdate(testKey("USER#1", "PROFILE")).Set("sk", "x")},
		{"duplicate field", NewUpdate(testKey("USER#1", "PROFILE")).Set("name", "a").Set("name", "b")},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			called := false
			c := newTestClient(&mockAPI{
				updateItemFunc: func(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
					called = true
					return &dynamodb.UpdateItemOutput{}, nil
				},
			})
			_, err := c.UpdateItem(ctx, tt.update)
			require.Error(t, err)
			assert.False(t, called)
		})
	}
}

func TestClient_DeleteItem(t *testing.T) {
	var got *dynamodb.DeleteItemInput
	c := newTestClient(&mockAPI{
		deleteItemFunc: func(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			got = in
			return &dynamodb.DeleteItemOutput{}, nil
		},
	})
	require.NoError(t, c.DeleteItem(context.Background(), testKey("USER#1", "PROFILE")))
	assert.Len(t, got.Key, 2)
	assert.Nil(t, got.ConditionExpression)
}

func TestClient_Query(t *testing.T) {
	ctx := context.Background()

	t.Run("pages until done", func(t *testing.T) {
		var inputs []dynamodb.QueryInput
		pages := []*dynamodb.QueryOutput{
			{
				Items:            []Item{{"id": &types.AttributeValueMemberS{Value: "1"}}},
				LastEvaluatedKey: Item{"pk": &types.AttributeValueMemberS{Value: "USER#1"}},
			},
			{
				Items: []Item{{"id": &types.AttributeValueMemberS{Value: "2"}}},
			},
		}
		c := newTestClient(&mockAPI{
			queryFunc: func(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
				inputs = append(inputs, *in)
				return pages[len(inputs)-1], nil
			},
		})
		items, err := c.Query(ctx, NewQuery("USER#1", BeginsWith("NOTE#")).WithFilterEquals("id", "2"))
		require.NoError(t, err)
		require.Len(t, items, 2)
		require.Len(t, inputs, 2)

		assert.Nil(t, inputs[0].ExclusiveStartKey)
		assert.NotNil(t, inputs[1].ExclusiveStartKey)
		assert.Contains(t, aws.ToString(inputs[0].KeyConditionExpression), "begins_with")
		assert.NotNil(t, inputs[0].FilterExpression)
		assert.True(t, aws.ToBool(inputs[0].ScanIndexForward))
		assert.True(t, aws.ToBool(inputs[0].ConsistentRead))
		assert.Nil(t, inputs[0].IndexName)
	})

	t.Run("gsi descending", func(t *testing.T) {
		var got *dynamodb.QueryInput
		c := newTestClient(&mockAPI{
			queryFunc: func(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
				got = in
				return &dynamodb.QueryOutput{}, nil
			},
		})
		_, err := c.Query(ctx, NewQuery("USER", SortKeyCondition{}).OnIndex("gsi1").WithDescending())
		require.NoError(t, err)
		assert.Equal(t, "gsi1", aws.ToString(got.IndexName))
		assert.False(t, aws.ToBool(got.ScanIndexForward))
		assert.Nil(t, got.ConsistentRead)
		assert.Nil(t, got.FilterExpression)
	})

	t.Run("unknown index", func(t *testing.T) {
		c := newTestClient(&mockAPI{})
		_, err := c.Query(ctx, NewQuery("USER", SortKeyCondition{}).OnIndex("nope"))
		require.Error(t, err)
	})

	t.Run("error", func(t *testing.T) {
		c := newTestClient(&mockAPI{
			queryFunc: func(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
				return nil, errors.New("boom")
			},
		})
		_, err := c.Query(ctx, NewQuery("USER#1", SortKeyCondition{}))
		require.ErrorContains(t, err, "boom")
	})
}

func TestClient_CreateTable(t *testing.T) {
	var got *dynamodb.CreateTableInput
	c := newTestClient(&mockAPI{
		createTableFunc: func(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
			got = in
			return &dynamodb.CreateTableOutput{}, nil
		},
	})
	require.NoError(t, c.CreateTable(context.Background()))
	assert.Equal(t, types.BillingModePayPerRequest, got.BillingMode)
	assert.Len(t, got.AttributeDefinitions, 4)
	require.Len(t, got.GlobalSecondaryIndexes, 1)
	assert.Equal(t, "gsi1", aws.ToString(got.GlobalSecondaryIndexes[0].IndexName))
	assert.Equal(t, types.ProjectionTypeAll, got.GlobalSecondaryIndexes[0].Projection.ProjectionType)
}

func activeTableDescription() *types.TableDescription {
	return &types.TableDescription{
		TableStatus: types.TableStatusActive,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndexDescription{
			{
				IndexName:   aws.String("gsi1"),
				IndexStatus: types.IndexStatusActive,
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("type"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("created"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
	}
}

func TestClient_Verify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.TableDescription)
		err     error
		wantErr string
	}{
		{name: "valid", mutate: func(*types.TableDescription) {}},
		{name: "missing table", err: &types.ResourceNotFoundException{}, wantErr: "does not exist"},
		{
			name:    "wrong sort key",
			mutate:  func(d *types.TableDescription) { d.KeySchema[1].AttributeName = aws.String("other") },
			wantErr: "has sort key other",
		},
		{
			name:    "inactive",
			mutate:  func(d *types.TableDescription) { d.TableStatus = types.TableStatusCreating },
			wantErr: "is not active",
		},
		{
			name:    "missing gsi",
			mutate:  func(d *types.TableDescription) { d.GlobalSecondaryIndexes = nil },
			wantErr: "gsi1 not found",
		},
		{
			name: "keys only projection",
			mutate: func(d *types.TableDescription) {
				d.GlobalSecondaryIndexes[0].Projection.ProjectionType = types.ProjectionTypeKeysOnly
			},
			wantErr: "project all attributes",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(&mockAPI{
				describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					desc := activeTableDescription()
					tt.mutate(desc)
					return &dynamodb.DescribeTableOutput{Table: desc}, nil
				},
			})
			err := c.Verify(context.Background())
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSortKeyConditionMatches(t *testing.T) {
	s := func(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
	tests := []struct {
		name string
		cond SortKeyCondition
		sk   types.AttributeValue
		want bool
	}{
		{"any", SortKeyCondition{}, s("x"), true},
		{"prefix match", BeginsWith("NOTE#"), s("NOTE#1"), true},
		{"prefix miss", BeginsWith("NOTE#"), s("METADATA"), false},
		{"equals", Equals("METADATA"), s("METADATA"), true},
		{"equals miss", Equals("METADATA"), s("NOTE#1"), false},
		{"equals number", Equals(5), &types.AttributeValueMemberN{Value: "5"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cond.Matches(tt.sk)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := BeginsWith("x").Matches(&types.AttributeValueMemberN{Value: "1"})
	require.Error(t, err)
}

func TestQueryMatches(t *testing.T) {
	item := Item{
		"id":        &types.AttributeValueMemberS{Value: "n1"},
		"isPrivate": &types.AttributeValueMemberBOOL{Value: true},
	}
	q := NewQuery("p", SortKeyCondition{})

	ok, err := q.WithFilterEquals("id", "n1").Matches(item)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.WithFilterEquals("id", "n1").WithFilterEquals("isPrivate", false).Matches(item)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = q.WithFilterEquals("missing", "x").Matches(item)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Empty(t, q.Filters, "chained filters must not leak into the base query")
}
