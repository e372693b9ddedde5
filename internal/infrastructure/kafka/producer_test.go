package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/reaction-service/config"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

func decodeEvent(t *testing.T, val []byte) LifecycleEvent {
	t.Helper()
	var event LifecycleEvent
	require.NoError(t, json.Unmarshal(val, &event))
	return event
}

func TestNewEventProducer_Validation(t *testing.T) {
	m := metrics.GetDefaultMetrics()

	_, err := NewEventProducer(&config.KafkaConfig{TopicEvents: "reaction.events"}, "svc", zerolog.Nop(), m)
	require.Error(t, err)
	assert.Equal(t, "no kafka brokers specified", err.Error())

	_, err = NewEventProducer(&config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "svc", zerolog.Nop(), m)
	require.Error(t, err)
	assert.Equal(t, "kafka topic is required", err.Error())
}

func TestEventProducer_PublishWorkerStarted(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		event := decodeEvent(t, val)
		if event.Type != EventTypeWorkerStarted {
			return errors.New("unexpected event type " + event.Type)
		}
		if event.WorkerID != WorkerID("TOKEN123") {
			return errors.New("unexpected worker id")
		}
		if event.GroupID != -1001 || event.Emoji != "🔥" {
			return errors.New("unexpected worker fields")
		}
		if event.Phone != "+10****0000" {
			return errors.New("phone must be masked, got " + event.Phone)
		}
		return nil
	})

	p := newEventProducer(mockProducer, "reaction.events", zerolog.Nop(), metrics.GetDefaultMetrics())

	err := p.PublishWorkerStarted(context.Background(), entities.WorkerInfo{
		AuthToken: "TOKEN123",
		Phone:     "+10000000000",
		GroupID:   -1001,
		Emoji:     "🔥",
		StartedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestEventProducer_PublishWorkerStoppedAndAuthorized(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		event := decodeEvent(t, val)
		if event.Type != EventTypeWorkerStopped || event.Reason != "stopped" {
			return errors.New("unexpected stopped event")
		}
		return nil
	})
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		event := decodeEvent(t, val)
		if event.Type != EventTypeAccountAuthorized || event.UserID != 42 {
			return errors.New("unexpected authorized event")
		}
		return nil
	})

	p := newEventProducer(mockProducer, "reaction.events", zerolog.Nop(), metrics.GetDefaultMetrics())
	ctx := context.Background()

	require.NoError(t, p.PublishWorkerStopped(ctx, "TOKEN123", "stopped"))
	require.NoError(t, p.PublishAccountAuthorized(ctx, "TOKEN123", &entities.Account{UserID: 42, Phone: "+10000000000"}))
	require.NoError(t, p.Close())
}

func TestEventProducer_SendFailure(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	sendErr := errors.New("broker unavailable")
	mockProducer.ExpectSendMessageAndFail(sendErr)

	p := newEventProducer(mockProducer, "reaction.events", zerolog.Nop(), metrics.GetDefaultMetrics())

	err := p.PublishWorkerStopped(context.Background(), "TOKEN123", "replaced")
	assert.ErrorIs(t, err, sendErr)
	require.NoError(t, p.Close())
}

func TestEventProducer_CancelledContext(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	p := newEventProducer(mockProducer, "reaction.events", zerolog.Nop(), metrics.GetDefaultMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PublishWorkerStopped(ctx, "TOKEN123", "stopped")
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, p.Close())
}

func TestWorkerID(t *testing.T) {
	a := WorkerID("TOKEN123")
	assert.Len(t, a, 12)
	assert.Equal(t, a, WorkerID("TOKEN123"))
	assert.NotEqual(t, a, WorkerID("TOKEN124"))
	assert.NotContains(t, a, "TOKEN")
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	ctx := context.Background()
	assert.NoError(t, p.PublishWorkerStarted(ctx, entities.WorkerInfo{}))
	assert.NoError(t, p.PublishWorkerStopped(ctx, "T", "r"))
	assert.NoError(t, p.PublishAccountAuthorized(ctx, "T", nil))
}
