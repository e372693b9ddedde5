package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"

	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	sessionerrors "github.com/Conte777/reaction-service/internal/domain/session/errors"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
	"github.com/Conte777/reaction-service/internal/utils"
)

var (
	// ErrNotConnected is returned by API calls made before Connect or after the connection ended
	ErrNotConnected = errors.New("telegram client is not connected")
	// ErrClientUsed is returned by Connect on a client that already ran
	ErrClientUsed = errors.New("telegram client can only be connected once")
	// ErrPeerNotResolved is returned when a reaction targets a chat never seen in updates
	ErrPeerNotResolved = errors.New("peer is not resolved")
)

// MTProtoClient implements deps.PlatformClient using gotd/td library.
// A client connects once; create a new one to reconnect.
type MTProtoClient struct {
	client *telegram.Client

	apiID       int
	apiHash     string
	phoneNumber string

	requestTimeout time.Duration
	onMessage      deps.MessageHandler
	peers          *peerCache

	// Connection state
	started    bool
	connected  bool
	mu         sync.RWMutex
	runCtx     context.Context
	cancelFunc context.CancelFunc
	runDone    chan struct{} // closed when client.Run() returns
	runErr     error

	api *tg.Client

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// MTProtoClientConfig holds configuration for MTProtoClient
type MTProtoClientConfig struct {
	APIID          int
	APIHash        string
	PhoneNumber    string
	Storage        session.Storage
	RequestTimeout time.Duration
	OnMessage      deps.MessageHandler
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
}

// NewMTProtoClient creates a new MTProto client instance
func NewMTProtoClient(cfg MTProtoClientConfig) (*MTProtoClient, error) {
	if cfg.APIID == 0 {
		return nil, fmt.Errorf("APIID is required")
	}
	if cfg.APIHash == "" {
		return nil, fmt.Errorf("APIHash is required")
	}
	if cfg.PhoneNumber == "" {
		return nil, fmt.Errorf("PhoneNumber is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("session storage is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.GetDefaultMetrics()
	}

	c := &MTProtoClient{
		apiID:          cfg.APIID,
		apiHash:        cfg.APIHash,
		phoneNumber:    cfg.PhoneNumber,
		requestTimeout: cfg.RequestTimeout,
		onMessage:      cfg.OnMessage,
		peers:          newPeerCache(),
		runDone:        make(chan struct{}),
		logger: cfg.Logger.With().
			Str("component", "mtproto_client").
			Str("phone", utils.MaskPhoneNumber(cfg.PhoneNumber)).
			Logger(),
		metrics: cfg.Metrics,
	}

	opts := telegram.Options{
		SessionStorage: cfg.Storage,
	}

	if cfg.OnMessage != nil {
		dispatcher := tg.NewUpdateDispatcher()
		dispatcher.OnNewMessage(c.handleNewMessage)
		dispatcher.OnNewChannelMessage(c.handleNewChannelMessage)
		opts.UpdateHandler = dispatcher
	}

	c.client = telegram.NewClient(cfg.APIID, cfg.APIHash, opts)

	return c, nil
}

// Connect starts the client run loop and waits until the connection is ready.
// ctx bounds the wait only. The run loop is rooted in a background context
// and lives until Disconnect, so ctx may be a request context.
func (c *MTProtoClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		connected := c.connected
		c.mu.Unlock()
		if connected {
			c.logger.Debug().Msg("already connected")
			return nil
		}
		return ErrClientUsed
	}
	c.started = true

	runCtx, cancel := context.WithCancel(context.Background())
	c.runCtx = runCtx
	c.cancelFunc = cancel
	c.mu.Unlock()

	c.logger.Info().Msg("connecting to Telegram")

	readyChan := make(chan struct{})
	errChan := make(chan error, 1)

	go func() {
		defer close(c.runDone)

		err := c.client.Run(runCtx, func(ctx context.Context) error {
			c.mu.Lock()
			c.api = c.client.API()
			c.connected = true
			c.mu.Unlock()

			close(readyChan)

			// Keep connection alive
			<-ctx.Done()
			return ctx.Err()
		})

		c.mu.Lock()
		c.connected = false
		c.api = nil
		if err != nil && runCtx.Err() == nil {
			c.runErr = err
		}
		c.mu.Unlock()

		if err != nil && runCtx.Err() == nil {
			c.logger.Warn().Err(err).Msg("connection ended")
		}

		errChan <- err
	}()

	select {
	case <-readyChan:
		c.logger.Info().Msg("successfully connected to Telegram")
		return nil
	case err := <-errChan:
		cancel()
		if err == nil {
			err = errors.New("run loop ended before connection was ready")
		}
		return fmt.Errorf("failed to connect: %w", err)
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Disconnect cancels the run loop and waits for it to finish or ctx to expire.
// The session is saved by the underlying gotd/td client before shutdown.
// Multiple calls are safe.
func (c *MTProtoClient) Disconnect(ctx context.Context) error {
	c.mu.RLock()
	started := c.started
	cancelFunc := c.cancelFunc
	c.mu.RUnlock()

	if !started || cancelFunc == nil {
		return nil
	}

	cancelFunc()

	select {
	case <-c.runDone:
		c.logger.Debug().Msg("client stopped gracefully")
		return nil
	case <-ctx.Done():
		c.logger.Warn().Msg("disconnect timeout reached while waiting for client shutdown")
		return fmt.Errorf("disconnect: %w", ctx.Err())
	}
}

// Done is closed when the run loop returns
func (c *MTProtoClient) Done() <-chan struct{} {
	return c.runDone
}

// Err returns the error the run loop ended with; nil after Disconnect
func (c *MTProtoClient) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runErr
}

func (c *MTProtoClient) apiClient() (*tg.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.api == nil {
		return nil, ErrNotConnected
	}
	return c.api, nil
}

func (c *MTProtoClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

// IsAuthorized reports whether the stored session is signed in
func (c *MTProtoClient) IsAuthorized(ctx context.Context) (bool, error) {
	if _, err := c.apiClient(); err != nil {
		return false, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check auth status: %w", err)
	}

	return status.Authorized, nil
}

// SendCode requests a login code for the client's phone number
func (c *MTProtoClient) SendCode(ctx context.Context) (string, error) {
	api, err := c.apiClient()
	if err != nil {
		return "", err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	sent, err := api.AuthSendCode(ctx, &tg.AuthSendCodeRequest{
		PhoneNumber: c.phoneNumber,
		APIID:       c.apiID,
		APIHash:     c.apiHash,
		Settings:    tg.CodeSettings{},
	})
	if err != nil {
		c.logAuthError(err, "failed to send code")
		return "", fmt.Errorf("failed to send code: %w", err)
	}

	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected sent code response %T", sent)
	}

	c.logger.Info().Msg("authentication code has been sent")
	return code.PhoneCodeHash, nil
}

// SignIn completes login with the code sent by SendCode
func (c *MTProtoClient) SignIn(ctx context.Context, phoneCodeHash, code string) (*entities.Account, error) {
	if _, err := c.apiClient(); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.client.Auth().SignIn(ctx, c.phoneNumber, code, phoneCodeHash); err != nil {
		if errors.Is(err, auth.ErrPasswordAuthNeeded) {
			c.logger.Info().Msg("2FA is enabled, password required")
			return nil, sessionerrors.ErrPasswordRequired
		}
		c.logAuthError(err, "sign in failed")
		return nil, fmt.Errorf("sign in failed: %w", err)
	}

	c.logger.Info().Msg("authentication successful")
	return c.self(ctx)
}

// SignInPassword completes login of an account with two-step verification
func (c *MTProtoClient) SignInPassword(ctx context.Context, password string) (*entities.Account, error) {
	if _, err := c.apiClient(); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.client.Auth().Password(ctx, password); err != nil {
		c.logAuthError(err, "2FA authentication failed")
		return nil, fmt.Errorf("2FA authentication failed: %w", err)
	}

	c.logger.Info().Msg("2FA authentication successful")
	return c.self(ctx)
}

// Self returns the signed-in account
func (c *MTProtoClient) Self(ctx context.Context) (*entities.Account, error) {
	if _, err := c.apiClient(); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.self(ctx)
}

func (c *MTProtoClient) self(ctx context.Context) (*entities.Account, error) {
	user, err := c.client.Self(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get self: %w", err)
	}
	return accountFromUser(user, c.phoneNumber), nil
}

func accountFromUser(user *tg.User, phone string) *entities.Account {
	if phone == "" {
		phone = user.Phone
		if phone != "" && phone[0] != '+' {
			phone = "+" + phone
		}
	}
	return &entities.Account{
		UserID:   user.ID,
		Phone:    phone,
		Username: user.Username,
	}
}

// SendReaction sets emoji as the reaction on a message of a chat seen in updates
func (c *MTProtoClient) SendReaction(ctx context.Context, chatID int64, messageID int, emoji string) error {
	api, err := c.apiClient()
	if err != nil {
		return err
	}

	peer, ok := c.peers.Get(chatID)
	if !ok {
		return fmt.Errorf("chat %d: %w", chatID, ErrPeerNotResolved)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err = api.MessagesSendReaction(ctx, &tg.MessagesSendReactionRequest{
		Peer:     peer,
		MsgID:    messageID,
		Reaction: []tg.ReactionClass{&tg.ReactionEmoji{Emoticon: emoji}},
	})
	if err != nil {
		var rpcErr *tgerr.Error
		if errors.As(err, &rpcErr) && rpcErr.Code == 420 {
			c.metrics.RecordRateLimit()
			c.logger.Warn().
				Int64("chat_id", chatID).
				Dur("wait_duration", time.Duration(rpcErr.Argument)*time.Second).
				Msg("flood wait on reaction")
		}
		return fmt.Errorf("failed to send reaction: %w", err)
	}

	return nil
}

func (c *MTProtoClient) handleNewMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	c.dispatch(ctx, e, u.Message)
	return nil
}

func (c *MTProtoClient) handleNewChannelMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	c.dispatch(ctx, e, u.Message)
	return nil
}

func (c *MTProtoClient) dispatch(ctx context.Context, e tg.Entities, m tg.MessageClass) {
	msg, ok := m.(*tg.Message)
	if !ok {
		return
	}

	chatID, ok := c.peers.Remember(msg.PeerID, e)
	if !ok {
		c.logger.Debug().Int("message_id", msg.ID).Msg("message without peer, skipping")
		return
	}

	c.onMessage(ctx, entities.IncomingMessage{
		ChatID:    chatID,
		MessageID: msg.ID,
		Outgoing:  msg.Out,
	})
}

// logAuthError logs platform auth errors with their RPC type
func (c *MTProtoClient) logAuthError(err error, msg string) {
	event := c.logger.Error().Err(err)
	var rpcErr *tgerr.Error
	if errors.As(err, &rpcErr) {
		event = event.Str("rpc_error", rpcErr.Type)
	}
	event.Msg(msg)
}

var _ deps.PlatformClient = (*MTProtoClient)(nil)
