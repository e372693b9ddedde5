package business

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	sessionerrors "github.com/Conte777/reaction-service/internal/domain/session/errors"
	"github.com/Conte777/reaction-service/internal/domain/session/worker"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
	"github.com/Conte777/reaction-service/internal/utils"
)

// maxCodeAttempts bounds regeneration of a colliding code or auth token
const maxCodeAttempts = 10

var errNothingToPurge = errors.New("nothing to purge")

// Options configure the session use case
type Options struct {
	// WorkerAPIID and WorkerAPIHash are the credentials reaction workers connect with
	WorkerAPIID   int
	WorkerAPIHash string
	// PendingSessionTTL of zero keeps login codes until they are consumed
	PendingSessionTTL time.Duration
	Worker            worker.Config
}

// UseCase implements the login, verify and worker lifecycle
type UseCase struct {
	store    deps.Store
	clients  deps.ClientFactory
	qr       deps.QRLoginManager
	events   deps.EventPublisher
	registry *worker.Registry
	opts     Options
	locks    *keyedMutex
	now      func() time.Time
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// NewUseCase creates a new session use case
func NewUseCase(
	store deps.Store,
	clients deps.ClientFactory,
	qr deps.QRLoginManager,
	events deps.EventPublisher,
	registry *worker.Registry,
	opts Options,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *UseCase {
	return &UseCase{
		store:    store,
		clients:  clients,
		qr:       qr,
		events:   events,
		registry: registry,
		opts:     opts,
		locks:    newKeyedMutex(),
		now:      time.Now,
		logger:   logger.With().Str("component", "session_usecase").Logger(),
		metrics:  m,
	}
}

// Login sends a login code to phone and stores a pending session under a new code
func (u *UseCase) Login(ctx context.Context, apiIDStr, apiHash, phone string) (*entities.LoginResult, error) {
	apiID, err := strconv.Atoi(apiIDStr)
	if err != nil {
		u.metrics.RecordLogin("invalid")
		return nil, sessionerrors.ErrInvalidAPIID
	}

	logger := u.logger.With().Str("phone", utils.MaskPhoneNumber(phone)).Logger()

	client, err := u.connect(ctx, entities.Credentials{APIID: apiID, APIHash: apiHash, Phone: phone})
	if err != nil {
		u.metrics.RecordLogin("error")
		logger.Error().Err(err).Msg("Failed to connect for login")
		return nil, err
	}
	defer u.disconnect(client)

	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		u.metrics.RecordLogin("error")
		return nil, err
	}
	if authorized {
		u.metrics.RecordLogin("already_authorized")
		return nil, sessionerrors.ErrAlreadyAuthorized
	}

	phoneCodeHash, err := client.SendCode(ctx)
	if err != nil {
		u.metrics.RecordLogin("error")
		logger.Error().Err(err).Msg("Failed to send login code")
		return nil, err
	}

	var code string
	err = u.store.Update(ctx, func(doc *entities.Document) error {
		code, err = uniqueCode(func(c string) bool {
			_, taken := doc.TempSessions[c]
			return taken
		})
		if err != nil {
			return err
		}

		doc.TempSessions[code] = &entities.PendingSession{
			Phone:         phone,
			APIID:         apiID,
			APIHash:       apiHash,
			PhoneCodeHash: phoneCodeHash,
			CreatedAt:     u.now(),
		}
		return nil
	})
	if err != nil {
		u.metrics.RecordLogin("error")
		return nil, fmt.Errorf("failed to save pending session: %w", err)
	}

	u.metrics.RecordLogin("code_sent")
	logger.Info().Msg("Login code sent")

	return &entities.LoginResult{
		Code: code,
		Next: fmt.Sprintf("/Start/verify/%s/OTP", code),
	}, nil
}

// Verify signs in the pending session of code with otp and creates a user record
func (u *UseCase) Verify(ctx context.Context, code, otp string) (*entities.VerifyResult, error) {
	unlock := u.locks.Lock("code:" + code)
	defer unlock()

	pending, err := u.pendingSession(ctx, code)
	if err != nil {
		u.metrics.RecordVerification("invalid_code")
		return nil, err
	}

	client, err := u.connect(ctx, pending.Credentials())
	if err != nil {
		u.metrics.RecordVerification("error")
		return nil, err
	}
	defer u.disconnect(client)

	account, err := client.SignIn(ctx, pending.PhoneCodeHash, otp)
	if errors.Is(err, sessionerrors.ErrPasswordRequired) {
		u.metrics.RecordVerification("password_required")
		if markErr := u.markPasswordRequired(ctx, code); markErr != nil {
			return nil, markErr
		}
		return nil, err
	}
	if err != nil {
		u.metrics.RecordVerification("error")
		u.logger.Error().Err(err).Str("phone", utils.MaskPhoneNumber(pending.Phone)).Msg("Sign in failed")
		return nil, err
	}

	return u.completeSignIn(ctx, code, pending.Phone, account)
}

// SubmitPassword completes sign-in of a pending session that needs the cloud password
func (u *UseCase) SubmitPassword(ctx context.Context, code, password string) (*entities.VerifyResult, error) {
	unlock := u.locks.Lock("code:" + code)
	defer unlock()

	pending, err := u.pendingSession(ctx, code)
	if err != nil {
		u.metrics.RecordVerification("invalid_code")
		return nil, err
	}
	if !pending.PasswordRequired {
		u.metrics.RecordVerification("invalid_code")
		return nil, sessionerrors.ErrInvalidCode
	}

	client, err := u.connect(ctx, pending.Credentials())
	if err != nil {
		u.metrics.RecordVerification("error")
		return nil, err
	}
	defer u.disconnect(client)

	account, err := client.SignInPassword(ctx, password)
	if err != nil {
		u.metrics.RecordVerification("error")
		u.logger.Error().Err(err).Str("phone", utils.MaskPhoneNumber(pending.Phone)).Msg("Password sign in failed")
		return nil, err
	}

	return u.completeSignIn(ctx, code, pending.Phone, account)
}

// StartQR begins a QR login with the caller's credentials
func (u *UseCase) StartQR(ctx context.Context, apiIDStr, apiHash string) (*entities.QRLogin, error) {
	apiID, err := strconv.Atoi(apiIDStr)
	if err != nil {
		return nil, sessionerrors.ErrInvalidAPIID
	}

	return u.qr.Start(ctx, apiID, apiHash, u.registerQRAccount)
}

// QRStatus returns the state of a QR login
func (u *UseCase) QRStatus(ctx context.Context, code string) (*entities.QRLogin, error) {
	if !utils.IsCode(code) {
		return nil, sessionerrors.ErrQRNotFound
	}
	return u.qr.Status(ctx, code)
}

// Start starts a reaction worker for authToken, replacing a running one
func (u *UseCase) Start(ctx context.Context, authToken, groupIDStr, emoji string) error {
	unlock := u.locks.Lock("auth:" + authToken)
	defer unlock()

	if u.registry.Closed() {
		return sessionerrors.ErrShuttingDown
	}

	user, err := u.user(ctx, authToken)
	if err != nil {
		return err
	}

	groupID, err := strconv.ParseInt(groupIDStr, 10, 64)
	if err != nil {
		return sessionerrors.ErrInvalidGroupID
	}
	if emoji == "" {
		return sessionerrors.ErrEmptyEmoji
	}

	logger := u.logger.With().Str("phone", utils.MaskPhoneNumber(user.Phone)).Logger()

	replaced := false
	if prev, ok := u.registry.Remove(authToken); ok {
		replaced = true
		u.stopWorker(prev, authToken, "replaced")
	}

	w, err := worker.Start(
		ctx,
		u.clients,
		entities.Credentials{APIID: u.opts.WorkerAPIID, APIHash: u.opts.WorkerAPIHash, Phone: user.Phone},
		entities.WorkerInfo{AuthToken: authToken, Phone: user.Phone, GroupID: groupID, Emoji: emoji},
		u.opts.Worker,
		u.logger,
		u.metrics,
	)
	if err != nil {
		logger.Error().Err(err).Int64("group_id", groupID).Msg("Failed to start worker")
		if replaced {
			u.setInactive(ctx, authToken)
		}
		return err
	}

	prev, err := u.registry.Put(authToken, w)
	if err != nil {
		// Shutdown drained the registry while the worker was connecting
		u.stopWorker(w, authToken, "shutdown")
		return sessionerrors.ErrShuttingDown
	}
	if prev != nil {
		u.stopWorker(prev, authToken, "replaced")
	}

	err = u.store.Update(ctx, func(doc *entities.Document) error {
		rec, ok := doc.Users[authToken]
		if !ok {
			return sessionerrors.ErrInvalidAuth
		}
		rec.Active = true
		rec.GroupID = &groupID
		rec.Emoji = emoji
		return nil
	})
	if err != nil {
		u.registry.Remove(authToken)
		u.stopWorker(w, authToken, "persist_failed")
		return fmt.Errorf("failed to save worker state: %w", err)
	}

	if err := u.events.PublishWorkerStarted(ctx, w.Info()); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish worker started event")
	}

	logger.Info().Int64("group_id", groupID).Str("emoji", emoji).Msg("Worker started")
	return nil
}

// Stop stops the worker of authToken and marks the user inactive
func (u *UseCase) Stop(ctx context.Context, authToken string) error {
	unlock := u.locks.Lock("auth:" + authToken)
	defer unlock()

	w, ok := u.registry.Remove(authToken)
	if !ok {
		return sessionerrors.ErrNotRunning
	}

	stopErr := u.stopWorkerWait(w)

	err := u.store.Update(ctx, func(doc *entities.Document) error {
		if rec, ok := doc.Users[authToken]; ok {
			rec.Active = false
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save worker state: %w", err)
	}

	if err := u.events.PublishWorkerStopped(ctx, authToken, "stopped"); err != nil {
		u.logger.Warn().Err(err).Msg("Failed to publish worker stopped event")
	}

	if stopErr != nil {
		return stopErr
	}

	u.logger.Info().Str("phone", utils.MaskPhoneNumber(w.Info().Phone)).Msg("Worker stopped")
	return nil
}

// Status returns the stored settings of authToken and whether its worker runs
func (u *UseCase) Status(ctx context.Context, authToken string) (*entities.Status, error) {
	user, err := u.user(ctx, authToken)
	if err != nil {
		return nil, err
	}

	return &entities.Status{
		Active:  u.registry.Has(authToken),
		GroupID: user.GroupID,
		Emoji:   user.Emoji,
		Phone:   user.Phone,
	}, nil
}

// List returns the running workers sorted by auth token
func (u *UseCase) List(_ context.Context) ([]entities.WorkerInfo, error) {
	return u.registry.List(), nil
}

// PurgeExpired deletes pending sessions older than the configured TTL
func (u *UseCase) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	ttl := u.opts.PendingSessionTTL
	if ttl <= 0 {
		return 0, nil
	}

	purged := 0
	err := u.store.Update(ctx, func(doc *entities.Document) error {
		for code, s := range doc.TempSessions {
			if s.Expired(ttl, now) {
				delete(doc.TempSessions, code)
				purged++
			}
		}
		if purged == 0 {
			return errNothingToPurge
		}
		return nil
	})
	if errors.Is(err, errNothingToPurge) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	u.logger.Info().Int("purged", purged).Msg("Expired login codes purged")
	return purged, nil
}

// Shutdown stops every running worker. Persisted flags are left as they are.
func (u *UseCase) Shutdown(ctx context.Context) int {
	workers := u.registry.Drain()

	var wg sync.WaitGroup
	for token, w := range workers {
		wg.Add(1)
		go func(token string, w *worker.Worker) {
			defer wg.Done()
			if err := w.Stop(ctx); err != nil {
				u.logger.Warn().Err(err).Str("run_id", w.RunID()).Msg("Failed to stop worker on shutdown")
			}
			if err := u.events.PublishWorkerStopped(ctx, token, "shutdown"); err != nil {
				u.logger.Warn().Err(err).Msg("Failed to publish worker stopped event")
			}
		}(token, w)
	}
	wg.Wait()

	return len(workers)
}

// registerQRAccount creates the user record of an account signed in by QR
func (u *UseCase) registerQRAccount(ctx context.Context, account *entities.Account) (string, error) {
	token, err := u.createUser(ctx, "", account.Phone, account)
	if err != nil {
		return "", err
	}

	if err := u.events.PublishAccountAuthorized(ctx, token, account); err != nil {
		u.logger.Warn().Err(err).Msg("Failed to publish account authorized event")
	}

	return token, nil
}

// completeSignIn turns the pending session of code into a user record
func (u *UseCase) completeSignIn(ctx context.Context, code, phone string, account *entities.Account) (*entities.VerifyResult, error) {
	token, err := u.createUser(ctx, code, phone, account)
	if err != nil {
		u.metrics.RecordVerification("error")
		return nil, err
	}

	u.metrics.RecordVerification("success")
	u.logger.Info().
		Str("phone", utils.MaskPhoneNumber(phone)).
		Int64("user_id", account.UserID).
		Msg("Account verified")

	if err := u.events.PublishAccountAuthorized(ctx, token, account); err != nil {
		u.logger.Warn().Err(err).Msg("Failed to publish account authorized event")
	}

	return &entities.VerifyResult{
		AuthToken: token,
		Next:      fmt.Sprintf("/Start/bot/%s/GROUP_ID/🔥", token),
	}, nil
}

// createUser stores a new user record under a fresh auth token. When code is
// set, the pending session is consumed in the same write.
func (u *UseCase) createUser(ctx context.Context, code, phone string, account *entities.Account) (string, error) {
	var token string
	err := u.store.Update(ctx, func(doc *entities.Document) error {
		if code != "" {
			if _, ok := doc.TempSessions[code]; !ok {
				return sessionerrors.ErrInvalidCode
			}
		}

		var err error
		token, err = uniqueCode(func(c string) bool {
			_, taken := doc.Users[c]
			return taken
		})
		if err != nil {
			return err
		}

		doc.Users[token] = &entities.UserRecord{
			UserID:    account.UserID,
			Phone:     phone,
			Active:    false,
			GroupID:   nil,
			Emoji:     entities.DefaultEmoji,
			CreatedAt: u.now(),
		}

		if code != "" {
			delete(doc.TempSessions, code)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

func (u *UseCase) markPasswordRequired(ctx context.Context, code string) error {
	err := u.store.Update(ctx, func(doc *entities.Document) error {
		s, ok := doc.TempSessions[code]
		if !ok {
			return sessionerrors.ErrInvalidCode
		}
		s.PasswordRequired = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save pending session: %w", err)
	}
	return nil
}

// pendingSession returns the unexpired pending session of code
func (u *UseCase) pendingSession(ctx context.Context, code string) (*entities.PendingSession, error) {
	if !utils.IsCode(code) {
		return nil, sessionerrors.ErrInvalidCode
	}

	var pending *entities.PendingSession
	err := u.store.View(ctx, func(doc *entities.Document) error {
		s, ok := doc.TempSessions[code]
		if !ok || s.Expired(u.opts.PendingSessionTTL, u.now()) {
			return sessionerrors.ErrInvalidCode
		}
		copied := *s
		pending = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (u *UseCase) user(ctx context.Context, authToken string) (*entities.UserRecord, error) {
	var user *entities.UserRecord
	err := u.store.View(ctx, func(doc *entities.Document) error {
		rec, ok := doc.Users[authToken]
		if !ok {
			return sessionerrors.ErrInvalidAuth
		}
		copied := *rec
		user = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *UseCase) setInactive(ctx context.Context, authToken string) {
	err := u.store.Update(ctx, func(doc *entities.Document) error {
		if rec, ok := doc.Users[authToken]; ok {
			rec.Active = false
		}
		return nil
	})
	if err != nil {
		u.logger.Error().Err(err).Msg("Failed to mark user inactive")
	}
}

// connect creates a client for creds and connects it
func (u *UseCase) connect(ctx context.Context, creds entities.Credentials) (deps.PlatformClient, error) {
	client, err := u.clients.NewClient(deps.ClientOptions{Credentials: creds})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	connectCtx := ctx
	if u.opts.Worker.StartTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, u.opts.Worker.StartTimeout)
		defer cancel()
	}

	if err := client.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return client, nil
}

func (u *UseCase) disconnect(client deps.PlatformClient) {
	ctx, cancel := u.stopContext()
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		u.logger.Warn().Err(err).Msg("Failed to disconnect client")
	}
}

func (u *UseCase) stopContext() (context.Context, context.CancelFunc) {
	if u.opts.Worker.StopTimeout > 0 {
		return context.WithTimeout(context.Background(), u.opts.Worker.StopTimeout)
	}
	return context.WithCancel(context.Background())
}

// stopWorkerWait stops w within the stop timeout
func (u *UseCase) stopWorkerWait(w *worker.Worker) error {
	ctx, cancel := u.stopContext()
	defer cancel()
	return w.Stop(ctx)
}

// stopWorker stops a worker being replaced; errors are logged and swallowed
func (u *UseCase) stopWorker(w *worker.Worker, authToken, reason string) {
	if err := u.stopWorkerWait(w); err != nil {
		u.logger.Warn().Err(err).Str("run_id", w.RunID()).Msg("Failed to stop previous worker")
	}

	ctx, cancel := u.stopContext()
	defer cancel()
	if err := u.events.PublishWorkerStopped(ctx, authToken, reason); err != nil {
		u.logger.Warn().Err(err).Msg("Failed to publish worker stopped event")
	}
}

// uniqueCode generates codes until taken reports a free one
func uniqueCode(taken func(string) bool) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := utils.GenerateCode()
		if err != nil {
			return "", err
		}
		if !taken(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique code")
}

var _ deps.SessionService = (*UseCase)(nil)
