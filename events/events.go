// Package events delivers crm domain events. Publishing is best effort: the
// services log a failed publish and carry on.
package events

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/acksell/crm"
)

// AttrEventType is the message attribute carrying the event name, so
// consumers can route without decoding the body.
const AttrEventType = "eventType"

type Publisher interface {
	Publish(ctx context.Context, e crm.Event) error
}

// SQSAPI is the subset of *sqs.Client used by SQS.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS publishes events as JSON messages to a single queue. For FIFO queues
// the message group is the event's GroupKey, so all events about one
// customer are delivered in order.
type SQS struct {
	api      SQSAPI
	queueURL string
	fifo     bool
	logger   *slog.Logger
}

var _ Publisher = &SQS{}

func NewSQS(awsCfg aws.Config, queueURL string, logger *slog.Logger) *SQS {
	return newSQSWithAPI(sqs.NewFromConfig(awsCfg), queueURL, logger)
}

func newSQSWithAPI(api SQSAPI, queueURL string, logger *slog.Logger) *SQS {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQS{
		api:      api,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
		logger:   logger,
	}
}

func (p *SQS) Publish(ctx context.Context, e crm.Event) error {
	meta := e.GetMeta()
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", meta.Type, err)
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			AttrEventType: {DataType: aws.String("String"), StringValue: aws.String(meta.Type)},
		},
	}
	if p.fifo {
		input.MessageGroupId = aws.String(e.GroupKey())
		input.MessageDeduplicationId = aws.String(hash(meta.Type, meta.CausationID, string(body)))
	}
	out, err := p.api.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("send %s event: %w", meta.Type, err)
	}
	p.logger.DebugContext(ctx, "event published",
		slog.String("event", meta.Type),
		slog.String("messageId", aws.ToString(out.MessageId)))
	return nil
}

func hash(input ...string) string {
	h := sha256.New()
	for _, s := range input {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// Log writes events to a logger. Used when no queue is configured.
type Log struct {
	logger *slog.Logger
}

var _ Publisher = &Log{}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (p *Log) Publish(ctx context.Context, e crm.Event) error {
	meta := e.GetMeta()
	p.logger.InfoContext(ctx, "event",
		slog.String("event", meta.Type),
		slog.String("groupKey", e.GroupKey()),
		slog.String("causationId", meta.CausationID),
		slog.String("correlationId", meta.CorrelationID))
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, crm.Event) error { return nil }
