// Package jwt emite y verifica los session tokens (JWS compacto, HMAC).
//
// El token es autocontenido: la verificación es una función pura de
// (token, secret, now). No hay tabla de sesiones.
package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/lazyauth/internal/domain/types"
)

// MinSecretBytes is the shortest accepted signing secret.
const MinSecretBytes = 32

// DefaultAlgorithm is used when Options.Algorithm is empty.
const DefaultAlgorithm = "HS256"

var hmacMethods = map[string]*jwtv5.SigningMethodHMAC{
	"HS256": jwtv5.SigningMethodHS256,
	"HS384": jwtv5.SigningMethodHS384,
	"HS512": jwtv5.SigningMethodHS512,
}

// SupportedAlgorithm reports whether alg (case-insensitive) can sign sessions.
func SupportedAlgorithm(alg string) bool {
	_, ok := hmacMethods[strings.ToUpper(strings.TrimSpace(alg))]
	return ok
}

type Options struct {
	Secret    []byte
	Algorithm string
	// Issuer, si no está vacío, se emite como "iss" y se exige al verificar.
	Issuer string
	Now    func() time.Time
}

// SessionToken is an issued session in its wire form plus the values it encodes.
type SessionToken struct {
	Value     string
	ID        string
	Identity  types.Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TTL returns the lifetime encoded in the token.
func (t SessionToken) TTL() time.Duration { return t.ExpiresAt.Sub(t.IssuedAt) }

type sessionClaims struct {
	Provider string `json:"prv"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	jwtv5.RegisteredClaims
}

// SessionIssuer signs and verifies session tokens. It holds no mutable state
// and is safe for concurrent use.
type SessionIssuer struct {
	secret []byte
	method *jwtv5.SigningMethodHMAC
	iss    string
	now    func() time.Time
	parser *jwtv5.Parser
}

// NewSessionIssuer validates opts. A short secret or a non-HMAC algorithm is a
// *types.ConfigurationError.
func NewSessionIssuer(opts Options) (*SessionIssuer, error) {
	if len(opts.Secret) < MinSecretBytes {
		return nil, &types.ConfigurationError{
			Field:  "JWT_SECRET_KEY",
			Reason: fmt.Sprintf("must be at least %d bytes", MinSecretBytes),
		}
	}
	alg := strings.ToUpper(strings.TrimSpace(opts.Algorithm))
	if alg == "" {
		alg = DefaultAlgorithm
	}
	method, ok := hmacMethods[alg]
	if !ok {
		return nil, &types.ConfigurationError{
			Field:  "JWT_ALGORITHM",
			Reason: fmt.Sprintf("unsupported algorithm %q (HS256, HS384, HS512)", opts.Algorithm),
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	popts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{method.Alg()}),
		jwtv5.WithStrictDecoding(),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(opts.Now),
	}
	if opts.Issuer != "" {
		popts = append(popts, jwtv5.WithIssuer(opts.Issuer))
	}

	return &SessionIssuer{
		secret: append([]byte(nil), opts.Secret...),
		method: method,
		iss:    opts.Issuer,
		now:    opts.Now,
		parser: jwtv5.NewParser(popts...),
	}, nil
}

// Algorithm returns the JWS alg in use.
func (s *SessionIssuer) Algorithm() string { return s.method.Alg() }

// Issue signs id with lifetime ttl. Times are whole seconds, so ExpiresAt is
// exactly IssuedAt+ttl as encoded in the token.
func (s *SessionIssuer) Issue(id types.Identity, ttl time.Duration) (SessionToken, error) {
	if !id.Valid() {
		return SessionToken{}, errors.New("session: identity without provider_id")
	}
	ttl = ttl.Truncate(time.Second)
	if ttl <= 0 {
		return SessionToken{}, errors.New("session: ttl must be at least one second")
	}

	iat := s.now().UTC().Truncate(time.Second)
	exp := iat.Add(ttl)
	jti := uuid.NewString()

	claims := sessionClaims{
		Provider: id.ProviderName,
		Email:    id.Email,
		Name:     id.DisplayName,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   id.ProviderID,
			Issuer:    s.iss,
			IssuedAt:  jwtv5.NewNumericDate(iat),
			ExpiresAt: jwtv5.NewNumericDate(exp),
			ID:        jti,
		},
	}

	signed, err := jwtv5.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return SessionToken{}, fmt.Errorf("session: sign: %w", err)
	}

	return SessionToken{
		Value:     signed,
		ID:        jti,
		Identity:  id,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

// Verify checks signature first, then expiry. Any format or signature problem
// is *types.InvalidSignatureError; a well-signed token at or past exp is
// *types.ExpiredTokenError.
func (s *SessionIssuer) Verify(token string) (types.Identity, error) {
	var claims sessionClaims
	_, err := s.parser.ParseWithClaims(token, &claims, s.keyfunc)
	if err != nil {
		// jwt/v5 solo valida claims después de verificar la firma
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			e := &types.ExpiredTokenError{}
			if claims.ExpiresAt != nil {
				e.ExpiredAt = claims.ExpiresAt.Time
			}
			return types.Identity{}, e
		}
		return types.Identity{}, &types.InvalidSignatureError{Err: err}
	}

	id := types.Identity{
		ProviderID:   claims.Subject,
		ProviderName: claims.Provider,
		Email:        claims.Email,
		DisplayName:  claims.Name,
	}
	if !id.Valid() {
		return types.Identity{}, &types.InvalidSignatureError{Err: errors.New("token has no subject")}
	}
	return id, nil
}

func (s *SessionIssuer) keyfunc(t *jwtv5.Token) (any, error) {
	if t.Method == nil || t.Method.Alg() != s.method.Alg() {
		return nil, jwtv5.ErrTokenSignatureInvalid
	}
	return s.secret, nil
}
