package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/lazyauth/internal/http/errors"
	"github.com/dropDatabas3/lazyauth/internal/observability/logger"
	"github.com/dropDatabas3/lazyauth/internal/rate"
)

// =================================================================================
// RATE LIMIT MIDDLEWARE
// =================================================================================

// remoteIP es la IP de la conexión TCP. No depende de headers del cliente.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// clientIP extrae la IP del cliente, considerando proxies. El header lo
// controla el cliente: sirve para logs, no para decisiones de seguridad.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	return remoteIP(r)
}

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPPathRateKey: "ip|path" con la IP de la conexión. Login y callback cuentan
// por separado.
func IPPathRateKey(r *http.Request) string {
	return remoteIP(r) + "|" + r.URL.Path
}

// ForwardedIPPathRateKey usa el primer X-Forwarded-For. Solo detrás de un proxy
// que reescribe el header (RATE_TRUST_XFF); si no, cualquiera rota la clave.
func ForwardedIPPathRateKey(r *http.Request) string {
	return clientIP(r) + "|" + r.URL.Path
}

// RateLimitConfig configura el comportamiento del middleware de rate limiting.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc RateKeyFunc
	// Now solo para tests
	Now func() time.Time
}

// WithRateLimit crea un middleware de rate limiting. Sin limiter es un no-op.
// Si el limiter falla (Redis caído) el request pasa: fail-open.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPPathRateKey
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := cfg.Limiter.Allow(r.Context(), cfg.KeyFunc(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error, allowing request",
					logger.Component("rate"),
					logger.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if res.WindowTTL > 0 {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(cfg.Now().Add(res.WindowTTL).Unix(), 10))
			}

			if !res.Allowed {
				if res.RetryAfter > 0 {
					h.Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}

			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
