package helpers

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/lazyauth/internal/domain/types"
	"github.com/dropDatabas3/lazyauth/internal/http/errors"
)

// SessionVerifier verifica un session token (auth.Flow lo implementa).
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (types.Identity, error)
}

// BearerToken devuelve el token de "Authorization: Bearer <t>" o "".
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// SessionCandidates lista los tokens presentes en el request, en orden de
// preferencia: header Authorization y después la cookie.
func SessionCandidates(r *http.Request, cookieName string) []string {
	var out []string
	if t := BearerToken(r); t != "" {
		out = append(out, t)
	}
	if cookieName != "" {
		if ck, err := r.Cookie(cookieName); err == nil && ck.Value != "" && (len(out) == 0 || ck.Value != out[0]) {
			out = append(out, ck.Value)
		}
	}
	return out
}

// Authenticate verifica los candidatos en orden y devuelve el primero válido.
// Un header inválido no bloquea una cookie válida. Sin candidatos devuelve
// ErrTokenMissing; si todos fallan, el error del último.
func Authenticate(r *http.Request, v SessionVerifier, cookieName string) (types.Identity, string, error) {
	cands := SessionCandidates(r, cookieName)
	if len(cands) == 0 {
		return types.Identity{}, "", errors.ErrTokenMissing
	}
	var lastErr error
	for _, tok := range cands {
		id, err := v.Verify(r.Context(), tok)
		if err == nil {
			return id, tok, nil
		}
		lastErr = err
	}
	return types.Identity{}, "", lastErr
}
