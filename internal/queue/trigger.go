// Package queue provides the SQS producer that hands morning briefings to
// the email delivery worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/sony/gobreaker/v2"

	"vitalbrief/internal/batch"
	"vitalbrief/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// BriefingTrigger publishes BriefingMessages to the delivery queue behind a
// circuit breaker. A dispatch run touches the queue once per pending row; if
// SQS is down the breaker opens after a few consecutive failures and the
// remaining rows fail fast instead of each waiting out the SDK timeout. The
// rows stay pending and the next scheduled run retries them.
type BriefingTrigger struct {
	client   SQSSender
	queueURL string
	breaker  *gobreaker.CircuitBreaker[*sqs.SendMessageOutput]
	logger   *slog.Logger
}

// NewBriefingTrigger creates a BriefingTrigger for the given queue URL.
func NewBriefingTrigger(client SQSSender, queueURL string, logger *slog.Logger) *BriefingTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[*sqs.SendMessageOutput](gobreaker.Settings{
		Name:        "briefing-queue",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &BriefingTrigger{
		client:   client,
		queueURL: queueURL,
		breaker:  cb,
		logger:   logger,
	}
}

// Publish serializes the briefing message and sends it to the delivery
// queue. Failures, including an open breaker, surface as
// upstream_queue_unavailable so callers treat the row as still pending.
func (t *BriefingTrigger) Publish(ctx context.Context, msg batch.BriefingMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to marshal briefing message", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"trace_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.TraceID),
			},
		},
	}

	_, err = t.breaker.Execute(func() (*sqs.SendMessageOutput, error) {
		return t.client.SendMessage(ctx, input)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return types.NewAppError(types.ErrCodeUpstreamQueue,
				"briefing queue circuit open", err)
		}
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to send briefing message to %s", t.queueURL), err)
	}

	t.logger.InfoContext(ctx, "briefing message sent",
		"queue_url", t.queueURL,
		"summary_id", msg.SummaryID,
		"user_id", msg.UserID,
		"trace_id", msg.TraceID,
	)

	return nil
}
