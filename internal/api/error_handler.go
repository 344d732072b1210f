package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/pkg/logger"
)

// GenericErrorMessage replaces the text of every unexpected error.
const GenericErrorMessage = "internal error, contact your administrator"

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to a safe message.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, logger.Ctx(c.Request().Context(), log), c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, rate limit, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	if code, msg, ok := PublicError(err); ok {
		if code == http.StatusNotFound {
			log.Debug().Err(err).Str("path", c.Path()).Msg("not found")
		}
		return code, msg
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, GenericErrorMessage
}

// PublicError maps errors whose message may be shown to the operator. Handled
// failures keep status 500 so front-ends can rely on it; only lookups of
// unknown endpoints answer 404. ok is false for anything unexpected.
func PublicError(err error) (code int, msg string, ok bool) {
	var missing *domain.MissingParameterError
	if errors.As(err, &missing) {
		return http.StatusInternalServerError, missing.Error(), true
	}
	var userMsg *domain.UserMessage
	if errors.As(err, &userMsg) {
		return http.StatusInternalServerError, userMsg.Message, true
	}

	switch {
	case errors.Is(err, domain.ErrEndpointNotFound), errors.Is(err, domain.ErrServiceNotFound):
		return http.StatusNotFound, "endpoint not found", true
	case errors.Is(err, domain.ErrPluginNotFound):
		return http.StatusNotFound, "page not found", true
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusInternalServerError, "permission denied", true
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return http.StatusInternalServerError, "invalid username or password", true
	case errors.Is(err, domain.ErrOtpInvalid):
		return http.StatusInternalServerError, "invalid verification code", true
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusInternalServerError, "the link or form has expired", true
	case errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusInternalServerError, "the link is invalid", true
	case errors.Is(err, domain.ErrIdentityNotFound):
		return http.StatusInternalServerError, "user not found", true
	case errors.Is(err, domain.ErrIntegrityBroken):
		return http.StatusInternalServerError, "your session has ended, please sign in again", true
	}
	return 0, "", false
}
