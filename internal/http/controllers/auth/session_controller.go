package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/lazyauth/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/lazyauth/internal/http/errors"
	"github.com/dropDatabas3/lazyauth/internal/http/helpers"
	"github.com/dropDatabas3/lazyauth/internal/http/middlewares"
	"github.com/dropDatabas3/lazyauth/internal/observability/logger"
)

// SessionController handles /auth/me, /auth/status, /auth/logout and the
// example protected route.
type SessionController struct {
	flow   Flow
	cookie helpers.CookieOptions
}

func NewSessionController(flow Flow, cookie helpers.CookieOptions) *SessionController {
	return &SessionController{flow: flow, cookie: cookie}
}

// Me devuelve la identidad de la sesión. Requiere RequireSession.
// GET /auth/me
func (c *SessionController) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, id)
}

// Status nunca falla: sin sesión válida responde authenticated=false.
// GET /auth/status
func (c *SessionController) Status(w http.ResponseWriter, r *http.Request) {
	resp := dto.StatusResponse{}
	if id, _, err := helpers.Authenticate(r, c.flow, c.cookie.Name); err == nil {
		resp.Authenticated = true
		resp.User = &id
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// Logout borra la cookie. No hay estado server-side que revocar: un token
// copiado sigue siendo válido hasta su exp.
// POST /auth/logout
func (c *SessionController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SessionController.Logout"))

	if id, _, err := helpers.Authenticate(r, c.flow, c.cookie.Name); err == nil {
		log = log.With(logger.Provider(id.ProviderName), logger.Subject(id.ProviderID))
	}
	c.flow.Logout(logger.ToContext(ctx, log))

	http.SetCookie(w, helpers.BuildDeletionCookie(c.cookie))
	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "Logged out successfully"})
}

// Protected es un recurso de ejemplo detrás de RequireSession.
// GET /protected
func (c *SessionController) Protected(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "This is a protected resource", User: &id})
}
