// Package auth contiene los DTOs de los endpoints /auth/*.
package auth

import "github.com/dropDatabas3/lazyauth/internal/domain/types"

// LoginResponse GET /auth/login
type LoginResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
	Provider         string `json:"provider"`
	ExpiresIn        int64  `json:"expires_in"`
	Message          string `json:"message"`
}

// TokenResponse es el session token emitido en el callback.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CallbackResponse GET /auth/callback
type CallbackResponse struct {
	Message string         `json:"message"`
	User    types.Identity `json:"user"`
	Token   TokenResponse  `json:"token"`
}

// StatusResponse GET /auth/status. User es null si no hay sesión.
type StatusResponse struct {
	Authenticated bool            `json:"authenticated"`
	User          *types.Identity `json:"user"`
}

// MessageResponse para logout y rutas protegidas de ejemplo.
type MessageResponse struct {
	Message string          `json:"message"`
	User    *types.Identity `json:"user,omitempty"`
}
