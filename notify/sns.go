package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSClient is the subset of the SNS API the notifier uses.
type SNSClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes notifications to an SNS topic. This is the primary
// channel: operators subscribe their email or pager to the topic.
type SNSNotifier struct {
	client   SNSClient
	topicARN string
}

// NewSNS creates an SNS notifier for the given topic.
func NewSNS(client SNSClient, topicARN string) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN}
}

// Notify publishes the message.
func (n *SNSNotifier) Notify(ctx context.Context, msg Message) error {
	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(msg.Subject),
		Message:  aws.String(msg.Body),
	})
	return err
}

// Close is a no-op.
func (n *SNSNotifier) Close() error { return nil }
