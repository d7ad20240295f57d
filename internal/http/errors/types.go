// Package errors traduce la taxonomía de errores del dominio a respuestas HTTP
// ({"code","message","detail"}).
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/lazyauth/internal/auth"
	"github.com/dropDatabas3/lazyauth/internal/domain/types"
)

// AppError define la estructura estándar para errores de la API.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Causa original, solo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// WithDetail devuelve una COPIA con detail (no muta las variables base).
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// FromError convierte cualquier error en un AppError. Los errores de dominio
// tienen mapeo fijo; el resto es 500. Los fallos de upstream (exchange,
// profile, normalization) salen como un 401 genérico: el detalle queda en logs.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var (
		csrf    *types.CsrfValidationError
		exch    *types.ProviderExchangeError
		prof    *types.ProviderProfileError
		unavail *types.ProviderUnavailableError
		norm    *types.NormalizationError
		sig     *types.InvalidSignatureError
		exp     *types.ExpiredTokenError
		cfg     *types.ConfigurationError
	)
	switch {
	case stderrors.Is(err, auth.ErrUnknownProvider):
		return ErrUnknownProvider.WithCause(err)
	case stderrors.Is(err, auth.ErrMissingCode):
		return ErrMissingCode.WithCause(err)
	case stderrors.As(err, &csrf):
		return ErrInvalidState.WithCause(err)
	case stderrors.As(err, &exch), stderrors.As(err, &prof), stderrors.As(err, &norm):
		return ErrAuthenticationFailed.WithCause(err)
	case stderrors.As(err, &unavail):
		return ErrProviderUnavailable.WithCause(err)
	case stderrors.As(err, &exp):
		return ErrTokenExpired.WithCause(err)
	case stderrors.As(err, &sig):
		return ErrTokenInvalid.WithCause(err)
	case stderrors.As(err, &cfg):
		return ErrServiceMisconfigured.WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

// ---------------------------------------------------------------------------------
// 400 Bad Request
// ---------------------------------------------------------------------------------

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "The request is missing required parameters.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidState = &AppError{
		Code:       "INVALID_STATE",
		Message:    "Invalid or expired state parameter. Please restart the login.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingCode = &AppError{
		Code:       "MISSING_CODE",
		Message:    "The callback has no authorization code.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrProviderDenied = &AppError{
		Code:       "PROVIDER_DENIED",
		Message:    "The identity provider did not grant access.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnknownProvider = &AppError{
		Code:       "UNKNOWN_PROVIDER",
		Message:    "The requested provider is not configured.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ---------------------------------------------------------------------------------
// 401 Unauthorized
// ---------------------------------------------------------------------------------

var (
	ErrAuthenticationFailed = &AppError{
		Code:       "AUTHENTICATION_FAILED",
		Message:    "Authentication failed.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenMissing = &AppError{
		Code:       "TOKEN_MISSING",
		Message:    "Not authenticated.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenInvalid = &AppError{
		Code:       "TOKEN_INVALID",
		Message:    "Not authenticated.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpired = &AppError{
		Code:       "TOKEN_EXPIRED",
		Message:    "Session expired. Please log in again.",
		HTTPStatus: http.StatusUnauthorized,
	}
)

// ---------------------------------------------------------------------------------
// 404 / 405 / 429
// ---------------------------------------------------------------------------------

var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Method not allowed for this resource.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests. Try again later.",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// ---------------------------------------------------------------------------------
// 5xx
// ---------------------------------------------------------------------------------

var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Unexpected internal error.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceMisconfigured = &AppError{
		Code:       "SERVICE_MISCONFIGURED",
		Message:    "The service is not configured correctly.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrProviderUnavailable = &AppError{
		Code:       "PROVIDER_UNAVAILABLE",
		Message:    "The identity provider is unreachable. Try again later.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
