package auth

import (
	"net/http"
	"regexp"

	"github.com/dropDatabas3/lazyauth/internal/auth"
	dto "github.com/dropDatabas3/lazyauth/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/lazyauth/internal/http/errors"
	"github.com/dropDatabas3/lazyauth/internal/http/helpers"
	"github.com/dropDatabas3/lazyauth/internal/observability/logger"
)

// providerErrorRE: solo códigos RFC 6749 (access_denied, invalid_scope...)
// vuelven al cliente como detail. error_description nunca.
var providerErrorRE = regexp.MustCompile(`^[a-z_]{1,64}$`)

// CallbackController handles GET /auth/callback.
type CallbackController struct {
	flow   Flow
	cookie helpers.CookieOptions
}

func NewCallbackController(flow Flow, cookie helpers.CookieOptions) *CallbackController {
	return &CallbackController{flow: flow, cookie: cookie}
}

// Callback completa el login: valida state, canjea el code y emite la sesión.
// GET /auth/callback?code=...&state=...
//
// En éxito setea la cookie HttpOnly y devuelve el token en el body. Ningún
// error setea cookie.
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController.Callback"))

	q := r.URL.Query()

	// El provider redirige con ?error=... si el usuario rechazó el consentimiento.
	// El state queda sin consumir y expira solo.
	if perr := q.Get("error"); perr != "" {
		log.Info("provider denied authorization", logger.String("provider_error", clipParam(perr)))
		appErr := httperrors.ErrProviderDenied
		if providerErrorRE.MatchString(perr) {
			appErr = appErr.WithDetail(perr)
		}
		httperrors.WriteError(w, appErr)
		return
	}

	res, err := c.flow.Callback(ctx, auth.CallbackRequest{
		Code:  q.Get("code"),
		State: q.Get("state"),
	})
	if err != nil {
		if httperrors.FromError(err).HTTPStatus >= 500 {
			log.Error("callback failed", logger.Err(err))
		}
		httperrors.WriteError(w, err)
		return
	}

	sess := res.Session
	http.SetCookie(w, helpers.BuildCookie(c.cookie, sess.Value, sess.TTL(), sess.IssuedAt))

	helpers.WriteJSON(w, http.StatusOK, dto.CallbackResponse{
		Message: "Authentication successful",
		User:    res.Identity,
		Token: dto.TokenResponse{
			AccessToken: sess.Value,
			TokenType:   "bearer",
			ExpiresIn:   int64(sess.TTL().Seconds()),
		},
	})
}

func clipParam(s string) string {
	if len(s) > 64 {
		return s[:64]
	}
	return s
}
