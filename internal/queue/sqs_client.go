package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"intellidoc-backend/internal/shared/telemetry"
)

const defaultRegion = "us-east-1"

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher publishes jobs to an SQS queue.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

// LoadSQS builds an SQS client from the default AWS credential chain.
func LoadSQS(ctx context.Context, region string) (*sqs.Client, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		region = defaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg), nil
}

// NewSQSPublisher loads AWS credentials and targets queueURL.
func NewSQSPublisher(ctx context.Context, queueURL, region string) (*SQSPublisher, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("SQS_QUEUE_URL is required")
	}
	client, err := LoadSQS(ctx, region)
	if err != nil {
		return nil, err
	}
	return NewSQSPublisherWithAPI(client, queueURL), nil
}

// NewSQSPublisherWithAPI wraps an existing client.
func NewSQSPublisherWithAPI(client SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// Publish sends msg with its document id as a message attribute so the
// queue console can be filtered without decoding bodies.
func (p *SQSPublisher) Publish(ctx context.Context, msg Message) error {
	if msg.DocumentID == "" || msg.UserID == "" {
		return fmt.Errorf("publish reextract: document and user are required")
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode reextract message: %w", err)
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"documentId": {DataType: aws.String("String"), StringValue: aws.String(msg.DocumentID)},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send reextract %s: %w", msg.DocumentID, err)
	}
	telemetry.Info("queue.reextract_published", map[string]any{
		"document_id":    msg.DocumentID,
		"request_id":     msg.RequestID,
		"sqs_message_id": aws.ToString(out.MessageId),
	})
	return nil
}

var _ Publisher = (*SQSPublisher)(nil)
