package telegram

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

// ClientFactory creates MTProto clients whose sessions live in one storage backend
type ClientFactory struct {
	storages       SessionStorageProvider
	requestTimeout time.Duration
	logger         zerolog.Logger
	metrics        *metrics.Metrics
}

// NewClientFactory creates a client factory
func NewClientFactory(
	storages SessionStorageProvider,
	requestTimeout time.Duration,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *ClientFactory {
	return &ClientFactory{
		storages:       storages,
		requestTimeout: requestTimeout,
		logger:         logger,
		metrics:        m,
	}
}

// NewClient creates a client for the phone number in opts
func (f *ClientFactory) NewClient(opts deps.ClientOptions) (deps.PlatformClient, error) {
	storage, err := f.storages.ForPhone(opts.Credentials.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to create session storage: %w", err)
	}

	return NewMTProtoClient(MTProtoClientConfig{
		APIID:          opts.Credentials.APIID,
		APIHash:        opts.Credentials.APIHash,
		PhoneNumber:    opts.Credentials.Phone,
		Storage:        storage,
		RequestTimeout: f.requestTimeout,
		OnMessage:      opts.OnMessage,
		Logger:         f.logger,
		Metrics:        f.metrics,
	})
}

var _ deps.ClientFactory = (*ClientFactory)(nil)
