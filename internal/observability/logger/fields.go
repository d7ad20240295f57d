package logger

import (
	"go.uber.org/zap"
)

// =================================================================================
// HTTP
// =================================================================================

func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

func Method(v string) zap.Field {
	return zap.String("method", v)
}

func Path(v string) zap.Field {
	return zap.String("path", v)
}

func Status(v int) zap.Field {
	return zap.Int("status", v)
}

func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// =================================================================================
// AUTH FLOW
// =================================================================================

// Provider is the configured provider name ("google", "github", ...).
func Provider(v string) zap.Field {
	return zap.String("provider", v)
}

// Subject is the canonical provider_id of an identity.
func Subject(v string) zap.Field {
	return zap.String("subject", v)
}

// StateFP is the fingerprint of a CSRF state value, never the value itself.
func StateFP(v string) zap.Field {
	return zap.String("state_fp", v)
}

// TokenFP is the fingerprint of a session token.
func TokenFP(v string) zap.Field {
	return zap.String("token_fp", v)
}

// Event tags security-relevant log lines (csrf_rejected, session_forged, ...).
func Event(v string) zap.Field {
	return zap.String("event", v)
}

// UpstreamStatus is the HTTP status returned by the provider.
func UpstreamStatus(v int) zap.Field {
	return zap.Int("upstream_status", v)
}

// UpstreamBody is a provider response body, truncated for diagnostics.
func UpstreamBody(v string) zap.Field {
	const max = 512
	if len(v) > max {
		v = v[:max] + "..."
	}
	return zap.String("upstream_body", v)
}

// =================================================================================
// SISTEMA
// =================================================================================

func Component(v string) zap.Field {
	return zap.String("component", v)
}

func Op(v string) zap.Field {
	return zap.String("op", v)
}

func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

func Err(err error) zap.Field {
	return zap.Error(err)
}

func String(key, v string) zap.Field {
	return zap.String(key, v)
}

func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
