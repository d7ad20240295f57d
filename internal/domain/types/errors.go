package types

import (
	"fmt"
	"time"
)

// =================================================================================
// TAXONOMÍA DE ERRORES
// =================================================================================
//
// Cada tipo corresponde a una clase de falla del flujo. Los mensajes de Error()
// nunca incluyen secretos (client_secret, signing key, tokens crudos).

// ConfigurationError is fatal at startup; the process must not serve traffic.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// CsrfValidationError means the callback state was missing, unknown, expired or
// already used. No exchange is attempted after it.
type CsrfValidationError struct {
	Reason string
}

func (e *CsrfValidationError) Error() string {
	if e.Reason == "" {
		return "csrf: invalid state"
	}
	return "csrf: " + e.Reason
}

// ProviderExchangeError means the token endpoint rejected the code exchange or
// answered without an access token.
type ProviderExchangeError struct {
	Status int
	Body   string
	Reason string
}

func (e *ProviderExchangeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider exchange: status %d: %s", e.Status, e.Reason)
	}
	return "provider exchange: " + e.Reason
}

// ProviderProfileError means the user-info endpoint rejected the access token
// or returned an unusable payload.
type ProviderProfileError struct {
	Status int
	Body   string
	Reason string
}

func (e *ProviderProfileError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider profile: status %d", e.Status)
	}
	return "provider profile: " + e.Reason
}

// ProviderUnavailableError wraps a transport-level failure (dial, DNS, TLS,
// timeout). It is the only class eligible for a single retry by the caller.
type ProviderUnavailableError struct {
	Op  string // "exchange" | "profile"
	Err error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable (%s): %v", e.Op, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// NormalizationError means the profile has no usable identity field.
type NormalizationError struct {
	Provider string
	Reason   string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s profile: %s", e.Provider, e.Reason)
}

// InvalidSignatureError covers forged, tampered or malformed session tokens.
type InvalidSignatureError struct {
	Err error
}

func (e *InvalidSignatureError) Error() string {
	if e.Err == nil {
		return "session: invalid signature"
	}
	return "session: invalid signature: " + e.Err.Error()
}

func (e *InvalidSignatureError) Unwrap() error { return e.Err }

// ExpiredTokenError is returned for a correctly signed token past its expiry.
type ExpiredTokenError struct {
	ExpiredAt time.Time
}

func (e *ExpiredTokenError) Error() string {
	if e.ExpiredAt.IsZero() {
		return "session: token expired"
	}
	return "session: token expired at " + e.ExpiredAt.UTC().Format(time.RFC3339)
}
