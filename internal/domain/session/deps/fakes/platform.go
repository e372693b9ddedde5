// Package fakes provides in-memory platform clients for tests
package fakes

import (
	"context"
	"errors"
	"sync"

	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
)

// Reaction is a reaction sent through a fake client
type Reaction struct {
	ChatID    int64
	MessageID int
	Emoji     string
}

// Client is a scriptable deps.PlatformClient
type Client struct {
	Opts deps.ClientOptions

	ConnectErr      error
	Authorized      bool
	AuthorizedErr   error
	PhoneCodeHash   string
	SendCodeErr     error
	SignInErr       error
	PasswordErr     error
	Account         *entities.Account
	ReactionErr     error
	DisconnectErr   error
	BlockDisconnect chan struct{} // Disconnect waits for it when set

	mu          sync.Mutex
	connected   bool
	disconnects int
	reactions   []Reaction
	signIns     []string
	passwords   []string
	runErr      error
	done        chan struct{}
	doneOnce    sync.Once
}

// NewClient creates a fake client for opts
func NewClient(opts deps.ClientOptions) *Client {
	return &Client{
		Opts:          opts,
		PhoneCodeHash: "hash-" + opts.Credentials.Phone,
		Account:       &entities.Account{UserID: 1, Phone: opts.Credentials.Phone},
		done:          make(chan struct{}),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	if c.BlockDisconnect != nil {
		select {
		case <-c.BlockDisconnect:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	c.connected = false
	c.disconnects++
	c.mu.Unlock()

	c.doneOnce.Do(func() { close(c.done) })
	return c.DisconnectErr
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// Drop ends the connection as if the network or the session failed
func (c *Client) Drop(err error) {
	c.mu.Lock()
	c.connected = false
	c.runErr = err
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Client) IsAuthorized(_ context.Context) (bool, error) {
	return c.Authorized, c.AuthorizedErr
}

func (c *Client) SendCode(_ context.Context) (string, error) {
	if c.SendCodeErr != nil {
		return "", c.SendCodeErr
	}
	return c.PhoneCodeHash, nil
}

func (c *Client) SignIn(_ context.Context, phoneCodeHash, code string) (*entities.Account, error) {
	c.mu.Lock()
	c.signIns = append(c.signIns, phoneCodeHash+"/"+code)
	c.mu.Unlock()
	if c.SignInErr != nil {
		return nil, c.SignInErr
	}
	return c.Account, nil
}

func (c *Client) SignInPassword(_ context.Context, password string) (*entities.Account, error) {
	c.mu.Lock()
	c.passwords = append(c.passwords, password)
	c.mu.Unlock()
	if c.PasswordErr != nil {
		return nil, c.PasswordErr
	}
	return c.Account, nil
}

func (c *Client) Self(_ context.Context) (*entities.Account, error) {
	if c.Account == nil {
		return nil, errors.New("not authorized")
	}
	return c.Account, nil
}

func (c *Client) SendReaction(_ context.Context, chatID int64, messageID int, emoji string) error {
	if c.ReactionErr != nil {
		return c.ReactionErr
	}
	c.mu.Lock()
	c.reactions = append(c.reactions, Reaction{ChatID: chatID, MessageID: messageID, Emoji: emoji})
	c.mu.Unlock()
	return nil
}

// Emit delivers a new message to the client's message handler
func (c *Client) Emit(ctx context.Context, msg entities.IncomingMessage) {
	if c.Opts.OnMessage != nil {
		c.Opts.OnMessage(ctx, msg)
	}
}

// Connected reports whether the client is connected
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Disconnects returns how many times Disconnect completed
func (c *Client) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// Reactions returns the reactions sent so far
func (c *Client) Reactions() []Reaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Reaction(nil), c.reactions...)
}

// SignIns returns "hash/code" of every SignIn call
func (c *Client) SignIns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.signIns...)
}

// Passwords returns the passwords passed to SignInPassword
func (c *Client) Passwords() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.passwords...)
}

// Factory is a deps.ClientFactory creating fake clients
type Factory struct {
	// Configure scripts every new client before it is returned
	Configure func(c *Client)
	Err       error

	mu      sync.Mutex
	clients []*Client
}

func (f *Factory) NewClient(opts deps.ClientOptions) (deps.PlatformClient, error) {
	if f.Err != nil {
		return nil, f.Err
	}

	c := NewClient(opts)
	if f.Configure != nil {
		f.Configure(c)
	}

	f.mu.Lock()
	f.clients = append(f.clients, c)
	f.mu.Unlock()

	return c, nil
}

// Clients returns every client created so far
func (f *Factory) Clients() []*Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Client(nil), f.clients...)
}

// Last returns the most recent client or nil
func (f *Factory) Last() *Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

var (
	_ deps.PlatformClient = (*Client)(nil)
	_ deps.ClientFactory  = (*Factory)(nil)
)
