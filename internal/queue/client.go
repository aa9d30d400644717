package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	mailwatch_errors "mailwatch/pkg/errors"
)

// Message is one received queue message.
type Message struct {
	ID            string
	Body          []byte
	ReceiptHandle string
}

// API is the queue surface the tracking services consume. Tests substitute
// in-memory fakes.
type API interface {
	Receive(ctx context.Context, queueURL string, maxMessages int, visibilityTimeoutSecs int) ([]Message, error)
	Delete(ctx context.Context, queueURL, receiptHandle string) error
	Depth(ctx context.Context, queueURL string) (int, error)
}

type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

type Client struct {
	cfg Config
	sqs *sqs.Client
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: AWS region is required (set AWS_REGION)", mailwatch_errors.ErrConfiguration)
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mailwatch_errors.ErrConfiguration, err)
	}

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Client{cfg: cfg, sqs: sqsClient}, nil
}

func (c *Client) Receive(ctx context.Context, queueURL string, maxMessages int, visibilityTimeoutSecs int) ([]Message, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("%w: queue endpoint is not configured (set the tracking queue_url setting)", mailwatch_errors.ErrConfiguration)
	}

	out, err := c.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(queueURL),
		MaxNumberOfMessages:   int32(maxMessages),
		VisibilityTimeout:     int32(visibilityTimeoutSecs),
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: receive from %s: %v", mailwatch_errors.ErrTransport, queueURL, err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, Message{
			ID:            aws.ToString(m.MessageId),
			Body:          []byte(aws.ToString(m.Body)),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return messages, nil
}

// Delete acknowledges a message. A receipt handle that is no longer valid
// means another consumer already deleted the message, which is not an error.
func (c *Client) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	_, err := c.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		var invalidHandle *types.ReceiptHandleIsInvalid
		if errors.As(err, &invalidHandle) {
			return nil
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ReceiptHandleIsInvalid" {
			return nil
		}
		return fmt.Errorf("%w: delete from %s: %v", mailwatch_errors.ErrTransport, queueURL, err)
	}
	return nil
}

// Depth returns the approximate number of visible messages, used for the
// worker's backlog estimate.
func (c *Client) Depth(ctx context.Context, queueURL string) (int, error) {
	out, err := c.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: attributes for %s: %v", mailwatch_errors.ErrTransport, queueURL, err)
	}
	raw := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	depth, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return depth, nil
}
