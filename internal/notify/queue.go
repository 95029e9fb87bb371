package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"swellwatch/internal/report"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueueNotifier enqueues a rendered report on SQS for the report worker to
// deliver. Queueing decouples the forecast run from email delivery: a slow
// or throttled email provider never stalls the alerter.
type QueueNotifier struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewQueueNotifier creates a QueueNotifier targeting the given queue URL.
func NewQueueNotifier(client SQSSender, queueURL string, logger *slog.Logger) *QueueNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueNotifier{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Deliver serializes the report to a ReportMessage and sends it to the queue.
func (n *QueueNotifier) Deliver(ctx context.Context, rep report.AggregateReport) error {
	msg := NewReportMessage(uuid.New().String(), rep)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal ReportMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reference_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.ReferenceID),
			},
		},
	}

	if _, err := n.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("notify: failed to send ReportMessage to %s: %w", n.queueURL, err)
	}

	n.logger.InfoContext(ctx, "report message enqueued",
		"queue_url", n.queueURL,
		"reference_id", msg.ReferenceID,
		"subject", msg.Subject,
	)
	return nil
}
