package kafka

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/reaction-service/config"
	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

// Module provides the lifecycle event publisher for fx DI
var Module = fx.Module("kafka",
	fx.Provide(NewEventPublisherFx),
)

// NewEventPublisherFx creates a Kafka publisher, or a no-op one when no
// brokers are configured
func NewEventPublisherFx(
	lc fx.Lifecycle,
	kafkaCfg *config.KafkaConfig,
	serviceCfg *config.ServiceConfig,
	logger zerolog.Logger,
	m *metrics.Metrics,
) (deps.EventPublisher, error) {
	if len(kafkaCfg.Brokers) == 0 {
		logger.Info().Msg("KAFKA_BROKERS not set, lifecycle events disabled")
		return NopPublisher{}, nil
	}

	producer, err := NewEventProducer(kafkaCfg, serviceCfg.Name, logger, m)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})

	return producer, nil
}
