package entities

import "time"

// DefaultEmoji is the reaction of a freshly verified account
const DefaultEmoji = "😁"

// PendingSession is a login that is waiting for its one-time password
type PendingSession struct {
	Phone            string    `json:"phone"`
	APIID            int       `json:"api_id"`
	APIHash          string    `json:"api_hash"`
	PhoneCodeHash    string    `json:"phone_code_hash,omitempty"`
	PasswordRequired bool      `json:"password_required,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Expired reports whether the session is older than ttl. Zero ttl never expires.
func (s PendingSession) Expired(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(s.CreatedAt) > ttl
}

// Credentials returns the credentials the login was started with
func (s PendingSession) Credentials() Credentials {
	return Credentials{APIID: s.APIID, APIHash: s.APIHash, Phone: s.Phone}
}

// UserRecord is an authorized account addressed by its auth token
type UserRecord struct {
	UserID    int64     `json:"user_id"`
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	GroupID   *int64    `json:"group_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Document is the whole persisted control state
type Document struct {
	Users        map[string]*UserRecord     `json:"users"`
	TempSessions map[string]*PendingSession `json:"temp_sessions"`
}

// NewDocument returns an empty document with initialized maps
func NewDocument() *Document {
	return &Document{
		Users:        make(map[string]*UserRecord),
		TempSessions: make(map[string]*PendingSession),
	}
}

// Normalize replaces nil maps and entries left by a hand-edited file
func (d *Document) Normalize() {
	if d.Users == nil {
		d.Users = make(map[string]*UserRecord)
	}
	if d.TempSessions == nil {
		d.TempSessions = make(map[string]*PendingSession)
	}
	for k, v := range d.Users {
		if v == nil {
			delete(d.Users, k)
		}
	}
	for k, v := range d.TempSessions {
		if v == nil {
			delete(d.TempSessions, k)
		}
	}
}

// Credentials identify an account on the platform
type Credentials struct {
	APIID   int
	APIHash string
	Phone   string
}

// Account is the identity of a signed-in platform user
type Account struct {
	UserID   int64
	Phone    string
	Username string
}

// IncomingMessage is a new message seen by a worker
type IncomingMessage struct {
	// ChatID is the marked chat id: channels and supergroups are
	// -100<id>, basic groups are -<id>, users are positive.
	ChatID    int64
	MessageID int
	Outgoing  bool
}

// WorkerInfo is a snapshot of a registered worker
type WorkerInfo struct {
	AuthToken string
	Phone     string
	GroupID   int64
	Emoji     string
	StartedAt time.Time
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Code string
	Next string
}

// VerifyResult is returned by a successful verify, password or QR login
type VerifyResult struct {
	AuthToken string
	Next      string
}

// Status is the view of a single account
type Status struct {
	Active  bool
	GroupID *int64
	Emoji   string
	Phone   string
}
