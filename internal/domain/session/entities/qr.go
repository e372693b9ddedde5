package entities

import "time"

// QRStatus represents the current state of a QR login attempt
type QRStatus string

const (
	QRStatusPending   QRStatus = "pending"   // QR created, waiting for scan
	QRStatusSuccess   QRStatus = "success"   // account authorized and stored
	QRStatusFailed    QRStatus = "failed"    // attempt failed
	QRStatusExpired   QRStatus = "expired"   // attempt timed out
	QRStatusCancelled QRStatus = "cancelled" // service shutdown
)

// QRLogin is a snapshot of a QR login attempt
type QRLogin struct {
	Code         string
	URL          string // tg://login?token=...
	QRCodeBase64 string // PNG image
	Status       QRStatus
	AuthToken    string
	Phone        string
	Error        string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminal returns true if the attempt will not change any more
func (q *QRLogin) IsTerminal() bool {
	return q.Status == QRStatusSuccess ||
		q.Status == QRStatusFailed ||
		q.Status == QRStatusExpired ||
		q.Status == QRStatusCancelled
}

// IsExpired returns true if the attempt has outlived its token
func (q *QRLogin) IsExpired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}
