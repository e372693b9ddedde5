package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

// Reactor reacts with one emoji to every new message of one chat
type Reactor struct {
	groupID int64
	emoji   string
	limiter *rate.Limiter
	client  deps.PlatformClient
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewReactor creates a reactor for groupID. Sends are limited to
// ratePerSec with the given burst.
func NewReactor(groupID int64, emoji string, ratePerSec float64, burst int, logger zerolog.Logger, m *metrics.Metrics) *Reactor {
	return &Reactor{
		groupID: groupID,
		emoji:   emoji,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		logger:  logger,
		metrics: m,
	}
}

// Bind sets the client reactions are sent through
func (r *Reactor) Bind(client deps.PlatformClient) {
	r.client = client
}

// Handle is the deps.MessageHandler of a worker's client
func (r *Reactor) Handle(ctx context.Context, msg entities.IncomingMessage) {
	if msg.ChatID != r.groupID || r.client == nil {
		return
	}

	if err := r.limiter.Wait(ctx); err != nil {
		r.metrics.RecordReactionDropped()
		r.logger.Debug().Err(err).Int("message_id", msg.MessageID).Msg("reaction dropped")
		return
	}

	start := time.Now()
	if err := r.client.SendReaction(ctx, msg.ChatID, msg.MessageID, r.emoji); err != nil {
		r.metrics.RecordReactionError(reactionErrorType(err))
		r.logger.Error().
			Err(err).
			Int64("chat_id", msg.ChatID).
			Int("message_id", msg.MessageID).
			Msg("reaction error")
		return
	}

	r.metrics.RecordReaction(time.Since(start).Seconds())
	r.logger.Info().
		Int64("chat_id", msg.ChatID).
		Int("message_id", msg.MessageID).
		Msg("reaction sent")
}

func reactionErrorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "send_failed"
	}
}
