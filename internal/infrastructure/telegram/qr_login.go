package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"
	"rsc.io/qr"

	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	sessionerrors "github.com/Conte777/reaction-service/internal/domain/session/errors"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
	"github.com/Conte777/reaction-service/internal/utils"
)

const (
	// QRLoginTTL bounds one QR login attempt
	QRLoginTTL = 5 * time.Minute
	// QRMaxSessions caps concurrent QR login attempts
	QRMaxSessions = 100

	qrGenerationTimeout = 30 * time.Second
	maxCodeAttempts     = 5
)

// errPasswordNotSupported fails QR logins of accounts with two-step verification
var errPasswordNotSupported = errors.New("two-step verification is enabled, use /Start/login")

// QRLoginManager runs QR logins and stores the authorized session per phone number
type QRLoginManager struct {
	store    *QRSessionStore
	storages SessionStorageProvider
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// NewQRLoginManager creates a new QR login manager
func NewQRLoginManager(
	store *QRSessionStore,
	storages SessionStorageProvider,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *QRLoginManager {
	return &QRLoginManager{
		store:    store,
		storages: storages,
		logger:   logger.With().Str("component", "qr_login_manager").Logger(),
		metrics:  m,
	}
}

// Start begins a QR login and returns once the first QR code is ready
func (m *QRLoginManager) Start(
	ctx context.Context,
	apiID int,
	apiHash string,
	onAuthorized deps.QRAuthorizedFunc,
) (*entities.QRLogin, error) {
	attempt, runCtx, err := m.newAttempt()
	if err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("attempt_id", attempt.id).
		Str("code", attempt.login.Code).
		Msg("starting QR login")

	qrReady := make(chan error, 1)

	go m.run(runCtx, attempt, apiID, apiHash, onAuthorized, qrReady)

	select {
	case err := <-qrReady:
		if err != nil {
			m.store.delete(attempt.login.Code)
			m.metrics.RecordQRLogin("failed")
			return nil, fmt.Errorf("%w: %v", sessionerrors.ErrQRGenerationFailed, err)
		}
	case <-time.After(qrGenerationTimeout):
		m.store.cancel(attempt)
		m.store.delete(attempt.login.Code)
		m.metrics.RecordQRLogin("failed")
		return nil, sessionerrors.ErrQRGenerationFailed
	case <-ctx.Done():
		m.store.cancel(attempt)
		m.store.delete(attempt.login.Code)
		return nil, ctx.Err()
	}

	return attempt.snapshot(), nil
}

// Status returns the current state of a QR login
func (m *QRLoginManager) Status(_ context.Context, code string) (*entities.QRLogin, error) {
	a, err := m.store.load(code)
	if err != nil {
		return nil, err
	}
	return a.snapshot(), nil
}

// newAttempt registers a pending attempt together with the context its run
// loop uses. The attempt can be cancelled as soon as it is visible in the store.
func (m *QRLoginManager) newAttempt() (*qrAttempt, context.Context, error) {
	now := time.Now()
	expiresAt := now.Add(m.store.sessionTTL)

	for i := 0; i < maxCodeAttempts; i++ {
		code, err := utils.GenerateCode()
		if err != nil {
			return nil, nil, err
		}

		ctx, cancel := context.WithDeadline(context.Background(), expiresAt)
		a := &qrAttempt{
			id: uuid.New().String(),
			login: entities.QRLogin{
				Code:      code,
				Status:    entities.QRStatusPending,
				CreatedAt: now,
				ExpiresAt: expiresAt,
				UpdatedAt: now,
			},
			cancelFunc: cancel,
		}

		stored, err := m.store.store(a)
		if err != nil {
			cancel()
			return nil, nil, err
		}
		if stored {
			return a, ctx, nil
		}
		cancel()
	}

	return nil, nil, fmt.Errorf("failed to allocate QR login code")
}

func (m *QRLoginManager) run(
	ctx context.Context,
	attempt *qrAttempt,
	apiID int,
	apiHash string,
	onAuthorized deps.QRAuthorizedFunc,
	qrReady chan<- error,
) {
	defer m.store.cancel(attempt)

	logger := m.logger.With().Str("attempt_id", attempt.id).Logger()

	storage := NewMemorySessionStorage()
	dispatcher := tg.NewUpdateDispatcher()
	loggedIn := qrlogin.OnLoginToken(dispatcher)

	client := telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  dispatcher,
	})

	ready := false
	err := client.Run(ctx, func(ctx context.Context) error {
		_, err := client.QR().Auth(ctx, loggedIn, func(ctx context.Context, token qrlogin.Token) error {
			png, err := renderQR(token.URL())
			if err != nil {
				return fmt.Errorf("encode QR: %w", err)
			}

			attempt.setQRCode(token.URL(), png)
			logger.Debug().Time("token_expires", token.Expires()).Msg("QR code generated")

			if !ready {
				ready = true
				qrReady <- nil
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, auth.ErrPasswordAuthNeeded) || tgerr.Is(err, "SESSION_PASSWORD_NEEDED") {
				return errPasswordNotSupported
			}
			return err
		}

		user, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("get self: %w", err)
		}

		return m.finalize(ctx, attempt, user, storage, onAuthorized)
	})

	if !ready {
		if err == nil {
			err = errors.New("QR login ended before a code was generated")
		}
		qrReady <- err
		return
	}

	switch {
	case err == nil:
		m.metrics.RecordQRLogin("success")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		if !attempt.snapshot().IsTerminal() {
			attempt.setStatus(entities.QRStatusExpired)
		}
		m.metrics.RecordQRLogin("expired")
		logger.Info().Msg("QR login expired")
	case errors.Is(ctx.Err(), context.Canceled):
		m.metrics.RecordQRLogin("cancelled")
		logger.Info().Msg("QR login cancelled")
	default:
		attempt.setError(err)
		m.metrics.RecordQRLogin("failed")
		logger.Error().Err(err).Msg("QR login failed")
	}
}

// finalize copies the session to the phone's storage and registers the account
func (m *QRLoginManager) finalize(
	ctx context.Context,
	attempt *qrAttempt,
	user *tg.User,
	storage *MemorySessionStorage,
	onAuthorized deps.QRAuthorizedFunc,
) error {
	account := accountFromUser(user, "")
	if account.Phone == "" {
		account.Phone = fmt.Sprintf("user_%d", user.ID)
	}

	data, err := storage.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	target, err := m.storages.ForPhone(account.Phone)
	if err != nil {
		return fmt.Errorf("create session storage: %w", err)
	}

	if err := target.StoreSession(ctx, data); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	authToken, err := onAuthorized(ctx, account)
	if err != nil {
		return fmt.Errorf("register account: %w", err)
	}

	attempt.setSuccess(authToken, account.Phone)

	m.logger.Info().
		Str("attempt_id", attempt.id).
		Str("phone", utils.MaskPhoneNumber(account.Phone)).
		Int64("user_id", user.ID).
		Msg("QR login successful")

	return nil
}

// renderQR encodes text as a base64 PNG QR code
func renderQR(text string) (string, error) {
	code, err := qr.Encode(text, qr.L)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(code.PNG()), nil
}

var _ deps.QRLoginManager = (*QRLoginManager)(nil)
