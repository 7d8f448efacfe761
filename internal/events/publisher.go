package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

// Publisher delivers appointment events.
type Publisher interface {
	Publish(ctx context.Context, event AppointmentEventV1) error
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends events to an SQS queue.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
}

// NewSQSPublisher creates a publisher around the provided SQS client.
func NewSQSPublisher(client *sqs.Client, queueURL string) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	return newSQSPublisher(client, queueURL)
}

func newSQSPublisher(client sqsAPI, queueURL string) *SQSPublisher {
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// Publish marshals the event and sends it with the event type as a message
// attribute.
func (p *SQSPublisher) Publish(ctx context.Context, event AppointmentEventV1) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event.EventType, err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.EventType),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}

// LogPublisher writes events to the log when no queue is configured.
type LogPublisher struct {
	logger *logging.Logger
}

// NewLogPublisher creates a log-only publisher.
func NewLogPublisher(logger *logging.Logger) *LogPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event at debug level.
func (p *LogPublisher) Publish(ctx context.Context, event AppointmentEventV1) error {
	p.logger.Debug("appointment event", "event_type", event.EventType, "appointment_id", event.AppointmentID)
	return nil
}
