package kafka

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Event types of worker lifecycle events
const (
	EventTypeAccountAuthorized = "account_authorized"
	EventTypeWorkerStarted     = "worker_started"
	EventTypeWorkerStopped     = "worker_stopped"
)

// LifecycleEvent is published on every account and worker state change.
// The auth token itself is never published, only its fingerprint.
type LifecycleEvent struct {
	Type      string `json:"type"`
	WorkerID  string `json:"worker_id"`
	Phone     string `json:"phone,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
	GroupID   int64  `json:"group_id,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// WorkerID returns a stable fingerprint of an auth token
func WorkerID(authToken string) string {
	sum := sha256.Sum256([]byte(authToken))
	return hex.EncodeToString(sum[:6])
}

func newEvent(eventType, authToken string) *LifecycleEvent {
	return &LifecycleEvent{
		Type:      eventType,
		WorkerID:  WorkerID(authToken),
		Timestamp: time.Now().Unix(),
	}
}
