package http

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/domain/session/dto"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	sessionerrors "github.com/Conte777/reaction-service/internal/domain/session/errors"
	pkgerrors "github.com/Conte777/reaction-service/pkg/errors"
	"github.com/Conte777/reaction-service/pkg/httputil"
)

// SessionHandler handles the /Start control routes
type SessionHandler struct {
	useCase deps.SessionService
	mapper  *pkgerrors.Mapper
	logger  zerolog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(useCase deps.SessionService, logger zerolog.Logger) *SessionHandler {
	logger = logger.With().Str("handler", "session").Logger()
	return &SessionHandler{
		useCase: useCase,
		mapper:  pkgerrors.NewMapper(logger),
		logger:  logger,
	}
}

// Login handles GET /Start/login/{apiId}/{apiHash}/{phone}
func (h *SessionHandler) Login(ctx *fasthttp.RequestCtx) {
	p, err := params(ctx, "apiId", "apiHash", "phone")
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	res, err := h.useCase.Login(ctx, p[0], p[1], p[2])
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, dto.LoginResponse{
		Status: "code_sent",
		Code:   res.Code,
		Next:   res.Next,
	})
}

// Verify handles GET /Start/verify/{code}/{otp}
func (h *SessionHandler) Verify(ctx *fasthttp.RequestCtx) {
	p, err := params(ctx, "code", "otp")
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	code := p[0]

	res, err := h.useCase.Verify(ctx, code, p[1])
	if errors.Is(err, sessionerrors.ErrPasswordRequired) {
		status, msg := h.mapper.MapErrorToHTTP(err)
		httputil.WriteJSON(ctx, httputil.ErrorResponse{
			Error: msg,
			Next:  fmt.Sprintf("/Start/password/%s/PASSWORD", code),
		}, status)
		return
	}
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeVerified(ctx, res)
}

// Password handles GET /Start/password/{code}/{password}
func (h *SessionHandler) Password(ctx *fasthttp.RequestCtx) {
	p, err := params(ctx, "code", "password")
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	res, err := h.useCase.SubmitPassword(ctx, p[0], p[1])
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.writeVerified(ctx, res)
}

// StartQR handles GET /Start/qr/{apiId}/{apiHash}
func (h *SessionHandler) StartQR(ctx *fasthttp.RequestCtx) {
	p, err := params(ctx, "apiId", "apiHash")
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	login, err := h.useCase.StartQR(ctx, p[0], p[1])
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, dto.QRStartResponse{
		Status:      "qr_ready",
		Code:        login.Code,
		URL:         login.URL,
		QRPNGBase64: login.QRCodeBase64,
		ExpiresAt:   login.ExpiresAt,
		Next:        fmt.Sprintf("/Start/qr/status/%s", login.Code),
	})
}

// QRStatus handles GET /Start/qr/status/{code}
func (h *SessionHandler) QRStatus(ctx *fasthttp.RequestCtx) {
	p, err := params(ctx, "code")
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	login, err := h.useCase.QRStatus(ctx, p[0])
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	resp := dto.QRStatusResponse{Status: string(login.Status)}
	if login.AuthToken != "" {
		resp.Auth = &login.AuthToken
	}
	if login.Error != "" {
		resp.Error = &login.Error
	}

	httputil.WriteResponse(ctx, resp)
}

// StartBot handles GET /Start/bot/{auth}/{groupId}/{emoji}
func (h *SessionHandler) StartBot(ctx *fasthttp.RequestCtx) {
	p, err := params(ctx, "auth", "groupId", "emoji")
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	if err := h.useCase.Start(ctx, p[0], p[1], p[2]); err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, dto.StatusResponse{Status: "started"})
}

// StopBot handles GET /Start/stop/{auth}
func (h *SessionHandler) StopBot(ctx *fasthttp.RequestCtx) {
	p, err := params(ctx, "auth")
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	if err := h.useCase.Stop(ctx, p[0]); err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, dto.StatusResponse{Status: "stopped"})
}

// Status handles GET /Start/status/{auth}
func (h *SessionHandler) Status(ctx *fasthttp.RequestCtx) {
	p, err := params(ctx, "auth")
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	status, err := h.useCase.Status(ctx, p[0])
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, dto.AccountStatusResponse{
		Active:  status.Active,
		GroupID: status.GroupID,
		Emoji:   status.Emoji,
		Phone:   status.Phone,
	})
}

// List handles GET /Start/list
func (h *SessionHandler) List(ctx *fasthttp.RequestCtx) {
	workers, err := h.useCase.List(ctx)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, toListResponse(workers))
}

func (h *SessionHandler) writeVerified(ctx *fasthttp.RequestCtx, res *entities.VerifyResult) {
	httputil.WriteResponse(ctx, dto.VerifyResponse{
		Status: "success",
		Auth:   res.AuthToken,
		Next:   res.Next,
	})
}

// handleError writes err with the status of its kind
func (h *SessionHandler) handleError(ctx *fasthttp.RequestCtx, err error) {
	status, msg := h.mapper.MapErrorToHTTP(err)
	httputil.WriteErrorResponse(ctx, msg, status)
}

func toListResponse(workers []entities.WorkerInfo) dto.ListResponse {
	bots := make([]dto.BotResponse, 0, len(workers))
	for _, w := range workers {
		bots = append(bots, dto.BotResponse{
			Auth:    w.AuthToken,
			GroupID: w.GroupID,
			Emoji:   w.Emoji,
			Phone:   w.Phone,
		})
	}

	return dto.ListResponse{Total: len(bots), Bots: bots}
}

// params returns the named path segments percent-decoded. The router
// stores segments as they appear in the raw request path.
func params(ctx *fasthttp.RequestCtx, names ...string) ([]string, error) {
	values := make([]string, len(names))
	for i, name := range names {
		raw, _ := ctx.UserValue(name).(string)
		v, err := url.PathUnescape(raw)
		if err != nil {
			return nil, pkgerrors.NewValidationErrorf("invalid %s: malformed escape", name)
		}
		values[i] = v
	}
	return values, nil
}
