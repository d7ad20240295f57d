package auth

import (
	"net/http"
	"strings"
	"time"

	dto "github.com/dropDatabas3/lazyauth/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/lazyauth/internal/http/errors"
	"github.com/dropDatabas3/lazyauth/internal/http/helpers"
	"github.com/dropDatabas3/lazyauth/internal/observability/logger"
)

// LoginController handles GET /auth/login.
type LoginController struct {
	flow Flow
	now  func() time.Time
}

func NewLoginController(flow Flow, now func() time.Time) *LoginController {
	return &LoginController{flow: flow, now: now}
}

// Login emite un state y devuelve la authorization URL del provider.
// GET /auth/login?provider=github&redirect=true
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	q := r.URL.Query()
	res, err := c.flow.Login(ctx, strings.TrimSpace(q.Get("provider")))
	if err != nil {
		if httperrors.FromError(err).HTTPStatus >= 500 {
			log.Error("login failed", logger.Err(err))
		}
		httperrors.WriteError(w, err)
		return
	}

	if isTrue(q.Get("redirect")) {
		http.Redirect(w, r, res.AuthorizationURL, http.StatusFound)
		return
	}

	expiresIn := int64(res.ExpiresAt.Sub(c.now()).Round(time.Second).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	helpers.WriteJSON(w, http.StatusOK, dto.LoginResponse{
		AuthorizationURL: res.AuthorizationURL,
		State:            res.State,
		Provider:         res.Provider,
		ExpiresIn:        expiresIn,
		Message:          "Redirect user to authorization_url to complete login",
	})
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
