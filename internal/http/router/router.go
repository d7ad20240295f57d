// Package router arma el http.Handler del servicio sobre chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/lazyauth/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/lazyauth/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/lazyauth/internal/http/errors"
	"github.com/dropDatabas3/lazyauth/internal/http/helpers"
	mw "github.com/dropDatabas3/lazyauth/internal/http/middlewares"
	"github.com/dropDatabas3/lazyauth/internal/metrics"
	"github.com/dropDatabas3/lazyauth/internal/rate"
)

// Deps contiene todo lo que el router necesita. Los limiters y Metrics son
// opcionales (nil desactiva).
type Deps struct {
	Auth     *authctrl.Controllers
	Health   *healthctrl.HealthController
	Verifier helpers.SessionVerifier

	CookieName  string
	CORSOrigins []string

	LoginLimiter    rate.Limiter
	CallbackLimiter rate.Limiter

	// TrustForwardedFor: la clave de rate limit sale de X-Forwarded-For.
	TrustForwardedFor bool

	Metrics *metrics.Metrics
}

// New construye el router.
//
// Chain global: recover -> request id -> security headers -> CORS -> metrics
// -> logging. Bajo /auth se agrega no-store y, en login/callback, rate limit.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(d.CORSOrigins),
		d.Metrics.Middleware,
		mw.WithLogging(),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// ─── health / metrics ───
	r.Get("/healthz", d.Health.Healthz)
	r.Get("/health", d.Health.Healthz)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	requireSession := mw.RequireSession(d.Verifier, d.CookieName)

	// ─── auth ───
	r.Route("/auth", func(r chi.Router) {
		r.Use(mw.WithNoStore())

		c := d.Auth
		r.With(rateLimit(d.LoginLimiter, d.TrustForwardedFor)).Get("/login", c.Login.Login)
		r.With(rateLimit(d.CallbackLimiter, d.TrustForwardedFor)).Get("/callback", c.Callback.Callback)
		r.With(requireSession).Get("/me", c.Session.Me)
		r.Get("/status", c.Session.Status)
		r.Post("/logout", c.Session.Logout)
	})

	r.With(mw.WithNoStore(), requireSession).Get("/protected", d.Auth.Session.Protected)

	return r
}

func rateLimit(l rate.Limiter, trustXFF bool) func(http.Handler) http.Handler {
	key := mw.IPPathRateKey
	if trustXFF {
		key = mw.ForwardedIPPathRateKey
	}
	return mw.WithRateLimit(mw.RateLimitConfig{Limiter: l, KeyFunc: key})
}
