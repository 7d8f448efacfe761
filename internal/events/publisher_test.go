package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSPublisher_Publish(t *testing.T) {
	client := &fakeSQS{}
	pub := newSQSPublisher(client, "https://sqs.local/queue")

	err := pub.Publish(context.Background(), AppointmentEventV1{
		EventType:     AppointmentBooked,
		AppointmentID: "appt-1",
		Slot:          "10:00",
		OccurredAt:    time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)

	input := client.inputs[0]
	assert.Equal(t, "https://sqs.local/queue", aws.ToString(input.QueueUrl))
	assert.Equal(t, AppointmentBooked, aws.ToString(input.MessageAttributes["event_type"].StringValue))

	var decoded AppointmentEventV1
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(input.MessageBody)), &decoded))
	assert.Equal(t, "appt-1", decoded.AppointmentID)
	assert.NotEmpty(t, decoded.EventID)
}

func TestSQSPublisher_SendError(t *testing.T) {
	client := &fakeSQS{err: errors.New("throttled")}
	pub := newSQSPublisher(client, "https://sqs.local/queue")

	err := pub.Publish(context.Background(), AppointmentEventV1{EventType: AppointmentCancelled})
	assert.ErrorContains(t, err, "throttled")
}

func TestNewSQSPublisher_RequiresQueue(t *testing.T) {
	assert.Panics(t, func() { newSQSPublisher(&fakeSQS{}, "") })
}

func TestLogPublisher(t *testing.T) {
	pub := NewLogPublisher(logging.Default())
	assert.NoError(t, pub.Publish(context.Background(), AppointmentEventV1{EventType: AppointmentCompleted}))
}
