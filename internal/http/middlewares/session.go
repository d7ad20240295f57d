package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/lazyauth/internal/http/errors"
	"github.com/dropDatabas3/lazyauth/internal/http/helpers"
	"github.com/dropDatabas3/lazyauth/internal/observability/logger"
)

// RequireSession exige un session token válido (Bearer o cookie) y deja la
// identidad en el contexto; ver GetIdentity. Sin sesión responde 401.
func RequireSession(v helpers.SessionVerifier, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, tok, err := helpers.Authenticate(r, v, cookieName)
			if err != nil {
				errors.WriteError(w, err)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = withSessionToken(ctx, tok)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.Provider(id.ProviderName), logger.Subject(id.ProviderID)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
