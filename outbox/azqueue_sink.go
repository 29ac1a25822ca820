package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"auction-api/domain"
)

type messageEnqueuer interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// AzureQueueSink enqueues event envelopes on an Azure Storage queue.
type AzureQueueSink struct {
	queue messageEnqueuer
}

// NewAzureQueueSink connects to queueName using connStr.
func NewAzureQueueSink(connStr, queueName string) (*AzureQueueSink, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 30,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &AzureQueueSink{queue: q}, nil
}

func (s *AzureQueueSink) Deliver(ctx context.Context, ev domain.Event) error {
	payload, err := domain.EncodeEvent(ev)
	if err != nil {
		return err
	}
	if _, err := s.queue.EnqueueMessage(ctx, string(payload), nil); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			return fmt.Errorf("enqueue event %s: status %d: %w", ev.Meta().ID, respErr.StatusCode, err)
		}
		return fmt.Errorf("enqueue event %s: %w", ev.Meta().ID, err)
	}
	return nil
}
