package deps

import (
	"context"
	"time"

	"github.com/Conte777/reaction-service/internal/domain/session/entities"
)

// Store persists the control-state document
type Store interface {
	// Update loads the document, applies fn and saves the result.
	// Nothing is written when fn returns an error.
	Update(ctx context.Context, fn func(doc *entities.Document) error) error
	// View loads the document and passes it to fn
	View(ctx context.Context, fn func(doc *entities.Document) error) error
}

// MessageHandler is called for every new message a client sees
type MessageHandler func(ctx context.Context, msg entities.IncomingMessage)

// ClientOptions configure a platform client
type ClientOptions struct {
	Credentials entities.Credentials
	// OnMessage receives new messages; nil disables update handling.
	OnMessage MessageHandler
}

// PlatformClient is one connection to Telegram for one phone number
type PlatformClient interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	// Done is closed when the connection ends for any reason
	Done() <-chan struct{}
	// Err returns the error the connection ended with, if any
	Err() error

	IsAuthorized(ctx context.Context) (bool, error)
	// SendCode requests a login code and returns the phone code hash
	SendCode(ctx context.Context) (string, error)
	// SignIn completes login with the code; returns ErrPasswordRequired
	// when the account has two-step verification
	SignIn(ctx context.Context, phoneCodeHash, code string) (*entities.Account, error)
	SignInPassword(ctx context.Context, password string) (*entities.Account, error)
	Self(ctx context.Context) (*entities.Account, error)
	SendReaction(ctx context.Context, chatID int64, messageID int, emoji string) error
}

// ClientFactory creates platform clients
type ClientFactory interface {
	NewClient(opts ClientOptions) (PlatformClient, error)
}

// QRLoginManager runs QR login attempts
type QRLoginManager interface {
	// Start begins an attempt; onAuthorized is called once the account
	// signed in and its session was stored under its phone number.
	Start(ctx context.Context, apiID int, apiHash string, onAuthorized QRAuthorizedFunc) (*entities.QRLogin, error)
	Status(ctx context.Context, code string) (*entities.QRLogin, error)
}

// QRAuthorizedFunc registers a QR-authorized account and returns its auth token
type QRAuthorizedFunc func(ctx context.Context, account *entities.Account) (string, error)

// EventPublisher publishes worker lifecycle events
type EventPublisher interface {
	PublishWorkerStarted(ctx context.Context, info entities.WorkerInfo) error
	PublishWorkerStopped(ctx context.Context, authToken, reason string) error
	PublishAccountAuthorized(ctx context.Context, authToken string, account *entities.Account) error
}

// SessionService defines the session lifecycle operations
type SessionService interface {
	Login(ctx context.Context, apiID, apiHash, phone string) (*entities.LoginResult, error)
	Verify(ctx context.Context, code, otp string) (*entities.VerifyResult, error)
	SubmitPassword(ctx context.Context, code, password string) (*entities.VerifyResult, error)
	StartQR(ctx context.Context, apiID, apiHash string) (*entities.QRLogin, error)
	QRStatus(ctx context.Context, code string) (*entities.QRLogin, error)
	Start(ctx context.Context, authToken, groupID, emoji string) error
	Stop(ctx context.Context, authToken string) error
	Status(ctx context.Context, authToken string) (*entities.Status, error)
	List(ctx context.Context) ([]entities.WorkerInfo, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
