package dto

import "time"

// LoginResponse is returned once a login code was sent
type LoginResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Next   string `json:"next"`
}

// VerifyResponse is returned once an account is signed in
type VerifyResponse struct {
	Status string `json:"status"`
	Auth   string `json:"auth"`
	Next   string `json:"next"`
}

// QRStartResponse carries the QR code to scan
type QRStartResponse struct {
	Status      string    `json:"status"`
	Code        string    `json:"code"`
	URL         string    `json:"url"`           // tg://login?token=...
	QRPNGBase64 string    `json:"qr_png_base64"` // PNG image base64
	ExpiresAt   time.Time `json:"expires_at"`
	Next        string    `json:"next"`
}

// QRStatusResponse is the state of a QR login
type QRStatusResponse struct {
	Status string  `json:"status"`
	Auth   *string `json:"auth,omitempty"`  // Set after success
	Error  *string `json:"error,omitempty"` // Set on failure
}

// StatusResponse is a lifecycle acknowledgement
type StatusResponse struct {
	Status string `json:"status"`
}

// AccountStatusResponse is the view of one account
type AccountStatusResponse struct {
	Active  bool   `json:"active"`
	GroupID *int64 `json:"group_id"`
	Emoji   string `json:"emoji"`
	Phone   string `json:"phone"`
}

// BotResponse describes one running worker
type BotResponse struct {
	Auth    string `json:"auth"`
	GroupID int64  `json:"group_id"`
	Emoji   string `json:"emoji"`
	Phone   string `json:"phone"`
}

// ListResponse lists running workers
type ListResponse struct {
	Total int           `json:"total"`
	Bots  []BotResponse `json:"bots"`
}
