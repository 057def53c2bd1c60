package notify

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSClient is the subset of the SQS API the notifier uses.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSNotifier enqueues structured notifications for downstream automation
// (ticketing, chat bridges). The full message is JSON so consumers get the
// event type and record fields, not just prose.
type SQSNotifier struct {
	client   SQSClient
	queueURL string
}

// NewSQS creates an SQS notifier for the given queue.
func NewSQS(client SQSClient, queueURL string) *SQSNotifier {
	return &SQSNotifier{client: client, queueURL: queueURL}
}

// Notify enqueues the message.
func (n *SQSNotifier) Notify(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
	})
	return err
}

// Close is a no-op.
func (n *SQSNotifier) Close() error { return nil }
