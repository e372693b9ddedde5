package errors

import (
	pkgerrors "github.com/Conte777/reaction-service/pkg/errors"
)

var (
	ErrAlreadyAuthorized = pkgerrors.NewConflictError("Already logged in")
	ErrInvalidCode       = pkgerrors.NewNotFoundError("Invalid code")
	ErrInvalidAuth       = pkgerrors.NewUnauthorizedError("Invalid auth")
	ErrNotRunning        = pkgerrors.NewConflictError("Bot not running")
	ErrPasswordRequired  = pkgerrors.NewUnauthorizedError("Two-step verification password required")
	ErrInvalidAPIID      = pkgerrors.NewValidationError("api_id must be an integer")
	ErrInvalidGroupID    = pkgerrors.NewValidationError("group_id must be an integer")
	ErrEmptyEmoji        = pkgerrors.NewValidationError("emoji is required")
	ErrShuttingDown      = pkgerrors.NewUnavailableError("Service is shutting down")

	ErrQRNotFound         = pkgerrors.NewNotFoundError("QR login not found")
	ErrQRExpired          = pkgerrors.NewNotFoundError("QR login expired")
	ErrQRMaxSessions      = pkgerrors.NewTooManyRequestsError("too many QR logins in progress")
	ErrQRGenerationFailed = pkgerrors.NewInternalError("failed to generate QR code")
)
