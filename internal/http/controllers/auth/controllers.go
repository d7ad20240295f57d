// Package auth contiene los controllers HTTP del flujo OAuth2.
package auth

import (
	"context"
	"time"

	"github.com/dropDatabas3/lazyauth/internal/auth"
	"github.com/dropDatabas3/lazyauth/internal/domain/types"
	"github.com/dropDatabas3/lazyauth/internal/http/helpers"
)

// Flow es lo que los controllers necesitan del núcleo (auth.Flow).
type Flow interface {
	Login(ctx context.Context, providerName string) (auth.LoginResult, error)
	Callback(ctx context.Context, req auth.CallbackRequest) (*auth.CallbackResult, error)
	Verify(ctx context.Context, token string) (types.Identity, error)
	Logout(ctx context.Context)
}

// Deps contiene las dependencias compartidas por los controllers de auth.
type Deps struct {
	Flow   Flow
	Cookie helpers.CookieOptions
	// Now solo para tests
	Now func() time.Time
}

// Controllers agrupa los controllers de /auth/*.
type Controllers struct {
	Login    *LoginController
	Callback *CallbackController
	Session  *SessionController
}

// NewControllers crea todos los controllers de auth.
func NewControllers(d Deps) *Controllers {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Controllers{
		Login:    NewLoginController(d.Flow, d.Now),
		Callback: NewCallbackController(d.Flow, d.Cookie),
		Session:  NewSessionController(d.Flow, d.Cookie),
	}
}
