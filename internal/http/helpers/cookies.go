package helpers

import (
	"net/http"
	"strings"
	"time"
)

// CookieOptions describe la cookie de sesión.
type CookieOptions struct {
	Name     string
	Domain   string
	SameSite string // lax | strict
	Secure   bool
}

func ParseSameSite(s string) http.SameSite {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// BuildCookie arma la cookie HttpOnly con el session token. MaxAge se alinea
// con la expiración del token.
func BuildCookie(o CookieOptions, value string, ttl time.Duration, now time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: ParseSameSite(o.SameSite),
	}
	if strings.TrimSpace(o.Domain) != "" {
		ck.Domain = o.Domain
	}
	if ttl > 0 {
		ck.Expires = now.Add(ttl).UTC()
		ck.MaxAge = int(ttl.Seconds())
	}
	return ck
}

// BuildDeletionCookie expira la cookie de sesión en el navegador (logout).
func BuildDeletionCookie(o CookieOptions) *http.Cookie {
	ck := &http.Cookie{
		Name:     o.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: ParseSameSite(o.SameSite),
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
	if strings.TrimSpace(o.Domain) != "" {
		ck.Domain = o.Domain
	}
	return ck
}
