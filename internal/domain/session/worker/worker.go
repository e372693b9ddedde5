package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
	"github.com/Conte777/reaction-service/internal/utils"
)

// ErrNotAuthorized is returned when a worker's session is not signed in
var ErrNotAuthorized = errors.New("session is not authorized, login again")

// Config controls worker startup, shutdown and reaction pace
type Config struct {
	StartTimeout  time.Duration
	StopTimeout   time.Duration
	ReactionRate  float64
	ReactionBurst int
}

// Worker keeps one connected client reacting to one chat until stopped
type Worker struct {
	runID  string
	info   entities.WorkerInfo
	client deps.PlatformClient

	cancel  context.CancelFunc
	done    chan struct{}
	stopErr error
	once    sync.Once

	stopTimeout time.Duration
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// Start connects a client with creds and begins reacting in info.GroupID.
// It returns once the client is connected and authorized.
func Start(
	ctx context.Context,
	factory deps.ClientFactory,
	creds entities.Credentials,
	info entities.WorkerInfo,
	cfg Config,
	logger zerolog.Logger,
	m *metrics.Metrics,
) (*Worker, error) {
	runID := uuid.New().String()
	logger = logger.With().
		Str("component", "worker").
		Str("run_id", runID).
		Str("phone", utils.MaskPhoneNumber(info.Phone)).
		Int64("group_id", info.GroupID).
		Logger()

	reactor := NewReactor(info.GroupID, info.Emoji, cfg.ReactionRate, cfg.ReactionBurst, logger, m)

	client, err := factory.NewClient(deps.ClientOptions{
		Credentials: creds,
		OnMessage:   reactor.Handle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	reactor.Bind(client)

	startCtx := ctx
	if cfg.StartTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, cfg.StartTimeout)
		defer cancel()
	}

	if err := client.Connect(startCtx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	authorized, err := client.IsAuthorized(startCtx)
	if err == nil && !authorized {
		err = ErrNotAuthorized
	}
	if err != nil {
		disconnect(client, cfg.StopTimeout, logger)
		return nil, err
	}

	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		runID:       runID,
		info:        info,
		client:      client,
		cancel:      cancel,
		done:        make(chan struct{}),
		stopTimeout: cfg.StopTimeout,
		logger:      logger,
		metrics:     m,
	}

	go w.supervise(runCtx)

	m.RecordWorkerStarted()
	logger.Info().Str("emoji", info.Emoji).Msg("worker started")

	return w, nil
}

// supervise waits for stop or for the connection to end on its own
func (w *Worker) supervise(ctx context.Context) {
	defer close(w.done)

	select {
	case <-ctx.Done():
		w.stopErr = disconnect(w.client, w.stopTimeout, w.logger)
	case <-w.client.Done():
		// No reconnect; the worker stays registered until stopped or replaced
		w.metrics.RecordWorkerDisconnect()
		w.logger.Warn().Err(w.client.Err()).Msg("worker connection ended")
	}
}

func disconnect(client deps.PlatformClient, timeout time.Duration, logger zerolog.Logger) error {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := client.Disconnect(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to disconnect client")
		return err
	}
	return nil
}

// Stop cancels the worker and waits until its client is disconnected or ctx ends.
// Calling Stop more than once returns the result of the first call's shutdown.
func (w *Worker) Stop(ctx context.Context) error {
	w.once.Do(func() {
		w.cancel()
		w.metrics.RecordWorkerStopped()
	})

	select {
	case <-w.done:
		if w.stopErr != nil {
			return fmt.Errorf("failed to stop worker: %w", w.stopErr)
		}
		w.logger.Info().Msg("worker stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to stop worker: %w", ctx.Err())
	}
}

// Info returns the worker's snapshot
func (w *Worker) Info() entities.WorkerInfo {
	return w.info
}

// RunID identifies this run of the worker in logs
func (w *Worker) RunID() string {
	return w.runID
}
