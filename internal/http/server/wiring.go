// Package server arma el servicio completo a partir de la configuración:
// providers, state store, exchanger, normalizer, issuer, flow, métricas,
// rate limiters y router.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/lazyauth/internal/auth"
	"github.com/dropDatabas3/lazyauth/internal/config"
	authctrl "github.com/dropDatabas3/lazyauth/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/lazyauth/internal/http/controllers/health"
	"github.com/dropDatabas3/lazyauth/internal/http/helpers"
	"github.com/dropDatabas3/lazyauth/internal/http/router"
	"github.com/dropDatabas3/lazyauth/internal/identity"
	"github.com/dropDatabas3/lazyauth/internal/jwt"
	"github.com/dropDatabas3/lazyauth/internal/metrics"
	"github.com/dropDatabas3/lazyauth/internal/observability/logger"
	"github.com/dropDatabas3/lazyauth/internal/oauth"
	"github.com/dropDatabas3/lazyauth/internal/rate"
	"github.com/dropDatabas3/lazyauth/internal/state"
)

// Options son ajustes que no vienen de la configuración.
type Options struct {
	Version string
	// HTTPClient para las llamadas al provider (tests). Nil usa uno propio.
	HTTPClient *http.Client
	// Now reemplaza el reloj de state store, issuer y controllers (tests).
	Now func() time.Time
}

// App es el servicio ya cableado.
type App struct {
	Handler http.Handler
	Flow    *auth.Flow
	States  *state.Store
	Metrics *metrics.Metrics

	closers []func() error
}

// Close libera recursos de fondo (janitor del state store, cliente Redis).
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// Build construye el servicio. Cualquier error deja el proceso sin servir
// tráfico; los recursos ya creados se liberan antes de devolverlo.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := logger.Named("server")
	app := &App{}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	// 1. Providers + tabla de normalización
	registry, fieldMaps, err := cfg.BuildProviders()
	if err != nil {
		return nil, err
	}

	// 2. Métricas (opcionales)
	if cfg.Metrics.Enabled == nil || *cfg.Metrics.Enabled {
		app.Metrics, err = metrics.New(nil)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	// 3. State store
	app.States = state.New(state.Options{
		TTL:             cfg.State.TTL,
		CleanupInterval: cfg.State.CleanupInterval,
		Now:             opts.Now,
	})
	app.closers = append(app.closers, func() error { app.States.Close(); return nil })
	if err := app.Metrics.RegisterStateStore(app.States.Len); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	// 4. Session issuer
	issuer, err := jwt.NewSessionIssuer(jwt.Options{
		Secret:    []byte(cfg.JWT.SecretKey),
		Algorithm: cfg.JWT.Algorithm,
		Issuer:    cfg.JWT.Issuer,
		Now:       opts.Now,
	})
	if err != nil {
		return nil, err
	}

	// 5. Flow
	app.Flow, err = auth.NewFlow(auth.Deps{
		Providers: registry,
		States:    app.States,
		Exchanger: oauth.NewExchanger(oauth.Options{
			HTTPClient: opts.HTTPClient,
			Timeout:    cfg.OAuth2.HTTPTimeout,
			Observer:   app.Metrics,
		}),
		Normalizer:       identity.NewNormalizer(fieldMaps),
		Sessions:         issuer,
		SessionTTL:       cfg.SessionTTL(),
		RetryUnavailable: cfg.Auth.RetryUnavailable == nil || *cfg.Auth.RetryUnavailable,
		Metrics:          app.Metrics,
	})
	if err != nil {
		return nil, err
	}

	// 6. Rate limiting
	loginLimiter, callbackLimiter, err := buildLimiters(ctx, cfg, app)
	if err != nil {
		return nil, err
	}

	// 7. HTTP
	cookie := helpers.CookieOptions{
		Name:     cfg.Auth.CookieName,
		Domain:   cfg.Auth.CookieDomain,
		SameSite: cfg.Auth.CookieSameSite,
		Secure:   cfg.Auth.CookieSecure == nil || *cfg.Auth.CookieSecure,
	}
	app.Handler = router.New(router.Deps{
		Auth:            authctrl.NewControllers(authctrl.Deps{Flow: app.Flow, Cookie: cookie, Now: opts.Now}),
		Health:          healthctrl.NewHealthController(opts.Version, registry),
		Verifier:        app.Flow,
		CookieName:      cookie.Name,
		CORSOrigins:     cfg.Server.CORSAllowedOrigins,
		LoginLimiter:    loginLimiter,
		CallbackLimiter: callbackLimiter,
		Metrics:         app.Metrics,

		TrustForwardedFor: cfg.Rate.TrustForwardedFor,
	})

	log.Info("service wired",
		logger.String("providers", fmt.Sprint(registry.Names())),
		logger.String("jwt_alg", issuer.Algorithm()),
		logger.Bool("metrics", app.Metrics != nil),
		logger.Bool("rate_limit", loginLimiter != nil || callbackLimiter != nil),
	)
	return app, nil
}

// buildLimiters devuelve limiters nil si el rate limiting está desactivado.
func buildLimiters(ctx context.Context, cfg *config.Config, app *App) (login, callback rate.Limiter, err error) {
	if !cfg.Rate.Enabled {
		return nil, nil, nil
	}

	var mk func(name string, rule config.RateRule) rate.Limiter

	switch cfg.Rate.Backend {
	case "redis":
		client := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
		})
		app.closers = append(app.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		mk = func(name string, rule config.RateRule) rate.Limiter {
			if rule.Limit == 0 {
				return nil
			}
			return rate.NewRedisLimiter(client, cfg.Redis.Prefix+name+":", rule.Limit, rule.Window)
		}
	default:
		mk = func(name string, rule config.RateRule) rate.Limiter {
			if rule.Limit == 0 {
				return nil
			}
			return rate.NewMemoryLimiter(name+":", rule.Limit, rule.Window)
		}
	}

	return mk("login", cfg.Rate.Login), mk("callback", cfg.Rate.Callback), nil
}
