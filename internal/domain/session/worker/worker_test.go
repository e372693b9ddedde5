package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/reaction-service/internal/domain/session/deps/fakes"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

var testConfig = Config{
	StartTimeout:  time.Second,
	StopTimeout:   time.Second,
	ReactionRate:  1000,
	ReactionBurst: 100,
}

func authorizedFactory() *fakes.Factory {
	return &fakes.Factory{Configure: func(c *fakes.Client) { c.Authorized = true }}
}

func startTestWorker(t *testing.T, factory *fakes.Factory, groupID int64, emoji string) *Worker {
	t.Helper()
	w, err := Start(
		context.Background(),
		factory,
		entities.Credentials{APIID: 1, APIHash: "hash", Phone: "+10000000000"},
		entities.WorkerInfo{AuthToken: "TOKEN123", Phone: "+10000000000", GroupID: groupID, Emoji: emoji},
		testConfig,
		zerolog.Nop(),
		metrics.GetDefaultMetrics(),
	)
	require.NoError(t, err)
	return w
}

func TestStart_ReactsOnlyInGroup(t *testing.T) {
	factory := authorizedFactory()
	w := startTestWorker(t, factory, -1001, "🔥")
	defer w.Stop(context.Background())

	client := factory.Last()
	require.NotNil(t, client)
	assert.True(t, client.Connected())

	ctx := context.Background()
	client.Emit(ctx, entities.IncomingMessage{ChatID: -1001, MessageID: 1})
	client.Emit(ctx, entities.IncomingMessage{ChatID: -2002, MessageID: 2})
	client.Emit(ctx, entities.IncomingMessage{ChatID: -1001, MessageID: 3, Outgoing: true})

	assert.Equal(t, []fakes.Reaction{
		{ChatID: -1001, MessageID: 1, Emoji: "🔥"},
		{ChatID: -1001, MessageID: 3, Emoji: "🔥"},
	}, client.Reactions())
}

func TestStart_UsesGivenCredentials(t *testing.T) {
	factory := authorizedFactory()
	w := startTestWorker(t, factory, -1001, "🔥")
	defer w.Stop(context.Background())

	assert.Equal(t, entities.Credentials{APIID: 1, APIHash: "hash", Phone: "+10000000000"}, factory.Last().Opts.Credentials)
	assert.False(t, w.Info().StartedAt.IsZero())
	assert.NotEmpty(t, w.RunID())
}

func TestStart_ConnectFailure(t *testing.T) {
	connectErr := errors.New("dial failed")
	factory := &fakes.Factory{Configure: func(c *fakes.Client) { c.ConnectErr = connectErr }}

	_, err := Start(context.Background(), factory, entities.Credentials{Phone: "+1"},
		entities.WorkerInfo{AuthToken: "T", GroupID: 1, Emoji: "🔥"}, testConfig, zerolog.Nop(), metrics.GetDefaultMetrics())
	assert.ErrorIs(t, err, connectErr)
}

func TestStart_NotAuthorizedDisconnects(t *testing.T) {
	factory := &fakes.Factory{}

	_, err := Start(context.Background(), factory, entities.Credentials{Phone: "+1"},
		entities.WorkerInfo{AuthToken: "T", GroupID: 1, Emoji: "🔥"}, testConfig, zerolog.Nop(), metrics.GetDefaultMetrics())
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, 1, factory.Last().Disconnects())
}

func TestStart_FactoryError(t *testing.T) {
	factory := &fakes.Factory{Err: errors.New("no storage")}

	_, err := Start(context.Background(), factory, entities.Credentials{Phone: "+1"},
		entities.WorkerInfo{AuthToken: "T"}, testConfig, zerolog.Nop(), metrics.GetDefaultMetrics())
	assert.Error(t, err)
}

func TestWorker_StopDisconnectsAndWaits(t *testing.T) {
	factory := authorizedFactory()
	w := startTestWorker(t, factory, -1001, "🔥")
	client := factory.Last()

	require.NoError(t, w.Stop(context.Background()))
	assert.False(t, client.Connected())
	assert.Equal(t, 1, client.Disconnects())

	select {
	case <-w.done:
	default:
		t.Fatal("worker goroutine must have exited")
	}

	// Second stop is a no-op
	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, 1, client.Disconnects())
}

func TestWorker_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	factory := &fakes.Factory{Configure: func(c *fakes.Client) {
		c.Authorized = true
		c.BlockDisconnect = block
	}}
	w := startTestWorker(t, factory, -1001, "🔥")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := w.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorker_DisconnectErrorReported(t *testing.T) {
	disconnectErr := errors.New("already closed")
	factory := &fakes.Factory{Configure: func(c *fakes.Client) {
		c.Authorized = true
		c.DisconnectErr = disconnectErr
	}}
	w := startTestWorker(t, factory, -1001, "🔥")

	err := w.Stop(context.Background())
	assert.ErrorIs(t, err, disconnectErr)
}

func TestWorker_ConnectionLossKeepsWorker(t *testing.T) {
	factory := authorizedFactory()
	w := startTestWorker(t, factory, -1001, "🔥")
	client := factory.Last()

	client.Drop(errors.New("AUTH_KEY_UNREGISTERED"))

	select {
	case <-w.done:
	case <-time.After(time.Second):
		t.Fatal("worker must notice the dropped connection")
	}

	// Stopping a worker whose connection already ended succeeds
	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, 0, client.Disconnects())
}
