package sqs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"claimease/internal/config"
	"claimease/internal/domain"
	"claimease/internal/port"
)

const priorityAttribute = "priority"

// API is the subset of the SQS client the queue uses.
type API interface {
	GetQueueUrl(ctx context.Context, params *awssqs.GetQueueUrlInput, optFns ...func(*awssqs.Options)) (*awssqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
}

// Queue is an SQS-backed JobQueue. SQS has no reordering, so priority is
// carried as a message attribute only.
type Queue struct {
	client            API
	url               string
	visibilityTimeout int32
}

// NewClient builds an SQS client from config.
func NewClient(ctx context.Context, cfg *config.SQSConfig) (*awssqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config for sqs: %w", err)
	}
	var opts []func(*awssqs.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *awssqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	return awssqs.NewFromConfig(awsCfg, opts...), nil
}

// NewQueue resolves the queue URL and returns the JobQueue.
func NewQueue(ctx context.Context, client API, cfg *config.SQSConfig) (*Queue, error) {
	resp, err := client.GetQueueUrl(ctx, &awssqs.GetQueueUrlInput{QueueName: aws.String(cfg.QueueName)})
	if err != nil {
		return nil, fmt.Errorf("resolving sqs queue %s: %w", cfg.QueueName, err)
	}
	return &Queue{
		client:            client,
		url:               aws.ToString(resp.QueueUrl),
		visibilityTimeout: cfg.VisibilityTimeout,
	}, nil
}

func (q *Queue) Enqueue(ctx context.Context, jobID string, priority domain.Priority) error {
	_, err := q.client.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(jobID),
		MessageAttributes: map[string]types.MessageAttributeValue{
			priorityAttribute: {DataType: aws.String("String"), StringValue: aws.String(string(priority))},
		},
	})
	if err != nil {
		return fmt.Errorf("sqsQueue.Enqueue: %w", err)
	}
	return nil
}

func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*port.QueueMessage, error) {
	wait := int32(timeout / time.Second)
	if wait > 20 {
		wait = 20
	}
	resp, err := q.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     wait,
		VisibilityTimeout:   q.visibilityTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("sqsQueue.Dequeue: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	return &port.QueueMessage{
		JobID:  aws.ToString(msg.Body),
		Handle: aws.ToString(msg.ReceiptHandle),
	}, nil
}

func (q *Queue) Ack(ctx context.Context, msg *port.QueueMessage) error {
	if msg == nil || msg.Handle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(msg.Handle),
	})
	if err != nil {
		return fmt.Errorf("sqsQueue.Ack: %w", err)
	}
	return nil
}
