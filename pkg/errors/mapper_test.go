package errors

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestMapper_MapErrorToHTTP(t *testing.T) {
	mapper := NewMapper(zerolog.Nop())

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"nil", nil, fasthttp.StatusOK, ""},
		{"validation", NewValidationError("bad group id"), fasthttp.StatusBadRequest, "bad group id"},
		{"unauthorized", NewUnauthorizedError("Invalid auth"), fasthttp.StatusUnauthorized, "Invalid auth"},
		{"not found", NewNotFoundError("Invalid code"), fasthttp.StatusNotFound, "Invalid code"},
		{"conflict", NewConflictError("Bot not running"), fasthttp.StatusConflict, "Bot not running"},
		{"too many", NewTooManyRequestsError("busy"), fasthttp.StatusTooManyRequests, "busy"},
		{"unavailable", NewUnavailableError("shutting down"), fasthttp.StatusServiceUnavailable, "shutting down"},
		{"internal", NewInternalErrorf("disk %s", "full"), fasthttp.StatusInternalServerError, "disk full"},
		{
			"wrapped conflict",
			fmt.Errorf("start: %w", NewConflictError("Already logged in")),
			fasthttp.StatusConflict,
			"start: Already logged in",
		},
		{"untyped", fmt.Errorf("PHONE_CODE_INVALID"), fasthttp.StatusInternalServerError, "PHONE_CODE_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := mapper.MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}
