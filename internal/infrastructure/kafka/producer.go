package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/Conte777/reaction-service/config"
	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
	"github.com/Conte777/reaction-service/internal/utils"
)

// EventProducer publishes lifecycle events to Kafka
type EventProducer struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// NewEventProducer creates a new Kafka producer for lifecycle events
func NewEventProducer(cfg *config.KafkaConfig, serviceName string, logger zerolog.Logger, m *metrics.Metrics) (*EventProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers specified")
	}
	if cfg.TopicEvents == "" {
		return nil, errors.New("kafka topic is required")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = 500 * time.Millisecond
	saramaConfig.Producer.Timeout = 10 * time.Second
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Version = sarama.V2_6_0_0
	saramaConfig.ClientID = serviceName + "-events"

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create Kafka producer")
		return nil, err
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.TopicEvents).
		Msg("Kafka event producer initialized")

	return newEventProducer(producer, cfg.TopicEvents, logger, m), nil
}

func newEventProducer(producer sarama.SyncProducer, topic string, logger zerolog.Logger, m *metrics.Metrics) *EventProducer {
	return &EventProducer{
		producer: producer,
		topic:    topic,
		logger:   logger.With().Str("component", "event_producer").Logger(),
		metrics:  m,
	}
}

// PublishWorkerStarted sends a worker_started event
func (p *EventProducer) PublishWorkerStarted(ctx context.Context, info entities.WorkerInfo) error {
	event := newEvent(EventTypeWorkerStarted, info.AuthToken)
	event.Phone = utils.MaskPhoneNumber(info.Phone)
	event.GroupID = info.GroupID
	event.Emoji = info.Emoji
	return p.send(ctx, event)
}

// PublishWorkerStopped sends a worker_stopped event
func (p *EventProducer) PublishWorkerStopped(ctx context.Context, authToken, reason string) error {
	event := newEvent(EventTypeWorkerStopped, authToken)
	event.Reason = reason
	return p.send(ctx, event)
}

// PublishAccountAuthorized sends an account_authorized event
func (p *EventProducer) PublishAccountAuthorized(ctx context.Context, authToken string, account *entities.Account) error {
	event := newEvent(EventTypeAccountAuthorized, authToken)
	if account != nil {
		event.Phone = utils.MaskPhoneNumber(account.Phone)
		event.UserID = account.UserID
	}
	return p.send(ctx, event)
}

func (p *EventProducer) send(ctx context.Context, event *LifecycleEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bytes, err := json.Marshal(event)
	if err != nil {
		p.metrics.RecordEventError()
		p.logger.Error().Err(err).Str("type", event.Type).Msg("failed to marshal event")
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.WorkerID),
		Value: sarama.ByteEncoder(bytes),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.metrics.RecordEventError()
		p.logger.Error().Err(err).
			Str("type", event.Type).
			Str("worker_id", event.WorkerID).
			Msg("failed to send event")
		return err
	}

	p.metrics.RecordEvent()
	p.logger.Debug().
		Str("type", event.Type).
		Str("worker_id", event.WorkerID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("event sent")

	return nil
}

// Close closes the Kafka producer
func (p *EventProducer) Close() error {
	if p.producer == nil {
		return nil
	}

	if err := p.producer.Close(); err != nil {
		p.logger.Error().Err(err).Msg("failed to close event producer")
		return err
	}

	p.logger.Info().Msg("event producer closed")
	return nil
}

// NopPublisher drops every event; used when no brokers are configured
type NopPublisher struct{}

func (NopPublisher) PublishWorkerStarted(context.Context, entities.WorkerInfo) error { return nil }

func (NopPublisher) PublishWorkerStopped(context.Context, string, string) error { return nil }

func (NopPublisher) PublishAccountAuthorized(context.Context, string, *entities.Account) error {
	return nil
}

var (
	_ deps.EventPublisher = (*EventProducer)(nil)
	_ deps.EventPublisher = NopPublisher{}
)
