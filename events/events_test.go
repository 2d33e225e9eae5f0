package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/crm"
)

type mockSQSClient struct {
	sendMessageFunc func(ctx context.Context, input *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	sent            []*sqs.SendMessageInput
}

func (m *mockSQSClient) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.sent = append(m.sent, params)
	if m.sendMessageFunc != nil {
		return m.sendMessageFunc(ctx, params, optFns...)
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func noteCreated() crm.NoteCreated {
	ctx := crm.WithRequestIDs(context.Background(), "req-1", "")
	return crm.NoteCreated{
		Meta: crm.NewEventMeta(ctx, crm.EventNoteCreated),
		Note: crm.Note{ID: "n1", CustomerID: "c1", Title: "Follow up", Type: crm.TypeNote},
	}
}

func TestSQSPublish(t *testing.T) {
	tests := []struct {
		name     string
		queueURL string
		fifo     bool
	}{
		{name: "standard queue", queueURL: "https://sqs.eu-west-1.amazonaws.com/123/crm-events"},
		{name: "fifo queue", queueURL: "https://sqs.eu-west-1.amazonaws.com/123/crm-events.fifo", fifo: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockSQSClient{}
			p := newSQSWithAPI(api, tt.queueURL, nil)

			require.NoError(t, p.Publish(context.Background(), noteCreated()))
			require.Len(t, api.sent, 1)
			in := api.sent[0]
			assert.Equal(t, tt.queueURL, aws.ToString(in.QueueUrl))
			assert.Equal(t, crm.EventNoteCreated, aws.ToString(in.MessageAttributes[AttrEventType].StringValue))

			var body struct {
				Meta crm.EventMeta `json:"meta"`
				Note crm.Note      `json:"note"`
			}
			require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &body))
			assert.Equal(t, "n1", body.Note.ID)
			assert.Equal(t, "req-1", body.Meta.CausationID)
			assert.Equal(t, "req-1", body.Meta.CorrelationID)

			if tt.fifo {
				assert.Equal(t, "c1", aws.ToString(in.MessageGroupId))
				assert.NotEmpty(t, aws.ToString(in.MessageDeduplicationId))
			} else {
				assert.Nil(t, in.MessageGroupId)
				assert.Nil(t, in.MessageDeduplicationId)
			}
		})
	}
}

func TestSQSPublishDedupID(t *testing.T) {
	api := &mockSQSClient{}
	p := newSQSWithAPI(api, "https://sqs.eu-west-1.amazonaws.com/123/q.fifo", nil)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, noteCreated()))
	require.NoError(t, p.Publish(ctx, noteCreated()))
	other := noteCreated()
	other.Note.ID = "n2"
	require.NoError(t, p.Publish(ctx, other))

	require.Len(t, api.sent, 3)
	assert.Equal(t, aws.ToString(api.sent[0].MessageDeduplicationId), aws.ToString(api.sent[1].MessageDeduplicationId))
	assert.NotEqual(t, aws.ToString(api.sent[0].MessageDeduplicationId), aws.ToString(api.sent[2].MessageDeduplicationId))
}

func TestSQSPublishError(t *testing.T) {
	api := &mockSQSClient{
		sendMessageFunc: func(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
			return nil, errors.New("queue does not exist")
		},
	}
	p := newSQSWithAPI(api, "https://sqs.eu-west-1.amazonaws.com/123/q", nil)
	err := p.Publish(context.Background(), crm.CustomerDeleted{Meta: crm.EventMeta{Type: crm.EventCustomerDeleted}, CustomerID: "c1"})
	require.ErrorContains(t, err, "send CustomerDeleted event")
	require.ErrorContains(t, err, "queue does not exist")
}

func TestLogPublish(t *testing.T) {
	var buf bytes.Buffer
	p := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, p.Publish(context.Background(), noteCreated()))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, crm.EventNoteCreated, line["event"])
	assert.Equal(t, "c1", line["groupKey"])
	assert.Equal(t, "req-1", line["causationId"])
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), noteCreated()))
}
