// Package auth orquesta el flujo OAuth2: login, callback y verificación.
//
// Flow no guarda estado por request. El único recurso compartido es el
// StateStore; el session token resultante es autocontenido.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/lazyauth/internal/domain/types"
	"github.com/dropDatabas3/lazyauth/internal/jwt"
	"github.com/dropDatabas3/lazyauth/internal/metrics"
	"github.com/dropDatabas3/lazyauth/internal/observability/logger"
	"github.com/dropDatabas3/lazyauth/internal/oauth"
	"github.com/dropDatabas3/lazyauth/internal/providers"
	"github.com/dropDatabas3/lazyauth/internal/state"
	tokens "github.com/dropDatabas3/lazyauth/internal/security/token"
)

var (
	ErrUnknownProvider = errors.New("auth: unknown provider")
	ErrMissingCode     = errors.New("auth: missing authorization code")
)

// ─── dependencias ───

type ProviderLookup interface {
	Get(name string) (*providers.Config, bool)
	Default() (*providers.Config, bool)
}

type StateStore interface {
	IssueFor(provider string) (state.Token, error)
	ConsumeFor(value string) (string, bool)
}

type TokenExchanger interface {
	Exchange(ctx context.Context, code string, p *providers.Config) (types.ProviderProfile, error)
}

type IdentityNormalizer interface {
	Normalize(profile types.ProviderProfile, providerName string) (types.Identity, error)
}

type SessionIssuer interface {
	Issue(id types.Identity, ttl time.Duration) (jwt.SessionToken, error)
	Verify(token string) (types.Identity, error)
}

type Recorder interface {
	LoginStarted(provider string)
	CallbackFinished(result string)
	SessionVerified(result string)
}

type Deps struct {
	Providers  ProviderLookup
	States     StateStore
	Exchanger  TokenExchanger
	Normalizer IdentityNormalizer
	Sessions   SessionIssuer
	SessionTTL time.Duration
	// RetryUnavailable habilita un único reintento cuando el token endpoint no
	// responde (ProviderUnavailableError en la etapa exchange).
	RetryUnavailable bool
	Metrics          Recorder
}

// Flow is safe for concurrent use.
type Flow struct {
	providers  ProviderLookup
	states     StateStore
	exchanger  TokenExchanger
	normalizer IdentityNormalizer
	sessions   SessionIssuer
	ttl        time.Duration
	retry      bool
	rec        Recorder
}

func NewFlow(d Deps) (*Flow, error) {
	switch {
	case d.Providers == nil:
		return nil, errors.New("auth: Providers is required")
	case d.States == nil:
		return nil, errors.New("auth: States is required")
	case d.Exchanger == nil:
		return nil, errors.New("auth: Exchanger is required")
	case d.Normalizer == nil:
		return nil, errors.New("auth: Normalizer is required")
	case d.Sessions == nil:
		return nil, errors.New("auth: Sessions is required")
	case d.SessionTTL < time.Second:
		return nil, errors.New("auth: SessionTTL must be at least one second")
	}
	rec := d.Metrics
	if rec == nil {
		rec = (*metrics.Metrics)(nil)
	}
	return &Flow{
		providers:  d.Providers,
		states:     d.States,
		exchanger:  d.Exchanger,
		normalizer: d.Normalizer,
		sessions:   d.Sessions,
		ttl:        d.SessionTTL,
		retry:      d.RetryUnavailable,
		rec:        rec,
	}, nil
}

// SessionTTL is the lifetime given to issued session tokens.
func (f *Flow) SessionTTL() time.Duration { return f.ttl }

// ─── login ───

type LoginResult struct {
	AuthorizationURL string
	State            string
	Provider         string
	ExpiresAt        time.Time
}

// Login issues a state value and builds the provider authorization URL.
// An empty providerName selects the default provider. No redirect happens
// here; that is up to the transport.
func (f *Flow) Login(ctx context.Context, providerName string) (LoginResult, error) {
	p, err := f.resolve(providerName)
	if err != nil {
		return LoginResult{}, err
	}

	tok, err := f.states.IssueFor(p.Name())
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: issue state: %w", err)
	}
	f.rec.LoginStarted(p.Name())

	logger.From(ctx).Debug("login initiated",
		logger.Layer("auth"),
		logger.Provider(p.Name()),
		logger.StateFP(tokens.Fingerprint(tok.Value)),
	)

	return LoginResult{
		AuthorizationURL: p.AuthorizationURL(tok.Value),
		State:            tok.Value,
		Provider:         p.Name(),
		ExpiresAt:        tok.ExpiresAt,
	}, nil
}

func (f *Flow) resolve(name string) (*providers.Config, error) {
	if name == "" {
		p, ok := f.providers.Default()
		if !ok {
			return nil, fmt.Errorf("%w: none configured", ErrUnknownProvider)
		}
		return p, nil
	}
	p, ok := f.providers.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// ─── callback ───

type CallbackRequest struct {
	Code  string
	State string
}

type CallbackResult struct {
	State    FlowState
	Provider string
	Identity types.Identity
	Session  jwt.SessionToken
	// Err is the originating error when State is Rejected.
	Err error
}

// Callback validates and consumes the state, then exchanges the code,
// normalizes the profile and issues a session. The returned result is never
// nil; on rejection the error is also returned as the second value.
func (f *Flow) Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	log := logger.From(ctx).With(logger.Layer("auth"), logger.Op("Callback"), logger.StateFP(tokens.Fingerprint(req.State)))

	// LoginInitiated -> CallbackReceived solo con un state válido y sin usar.
	if req.State == "" {
		return f.reject(log, metrics.ResultCSRF, &types.CsrfValidationError{Reason: "missing state"})
	}
	providerName, ok := f.states.ConsumeFor(req.State)
	if !ok {
		return f.reject(log, metrics.ResultCSRF, &types.CsrfValidationError{Reason: "unknown, expired or already used state"})
	}
	res := &CallbackResult{State: CallbackReceived}

	p, err := f.resolve(providerName)
	if err != nil {
		return f.reject(log, metrics.ResultError, err)
	}
	res.Provider = p.Name()
	log = log.With(logger.Provider(p.Name()))

	if req.Code == "" {
		return f.reject(log, metrics.ResultExchange, ErrMissingCode)
	}

	profile, err := f.exchanger.Exchange(ctx, req.Code, p)
	if err != nil && f.retryable(ctx, err) {
		log.Info("provider unavailable, retrying once", logger.Err(err))
		profile, err = f.exchanger.Exchange(ctx, req.Code, p)
	}
	if err != nil {
		return f.reject(log, resultFor(err), err)
	}

	id, err := f.normalizer.Normalize(profile, p.Name())
	if err != nil {
		return f.reject(log, metrics.ResultNormalize, err)
	}

	sess, err := f.sessions.Issue(id, f.ttl)
	if err != nil {
		return f.reject(log, metrics.ResultError, fmt.Errorf("auth: issue session: %w", err))
	}

	res.State = Authenticated
	res.Identity = id
	res.Session = sess
	f.rec.CallbackFinished(metrics.ResultSuccess)
	log.Info("authenticated", logger.Subject(id.ProviderID), logger.TokenFP(tokens.Fingerprint(sess.Value)))
	return res, nil
}

func (f *Flow) retryable(ctx context.Context, err error) bool {
	if !f.retry || ctx.Err() != nil {
		return false
	}
	var ue *types.ProviderUnavailableError
	// Reintentar el perfil implicaría volver a canjear un code ya usado.
	return errors.As(err, &ue) && ue.Op == oauth.OpExchange
}

func (f *Flow) reject(log *zap.Logger, result string, err error) (*CallbackResult, error) {
	f.rec.CallbackFinished(result)

	var csrf *types.CsrfValidationError
	if errors.As(err, &csrf) {
		log.Warn("callback rejected", logger.Event("csrf_rejected"), logger.String("reason", csrf.Reason))
	} else {
		log.Warn("callback rejected", logger.String("result", result), logger.Err(err))
	}
	return &CallbackResult{State: Rejected, Err: err}, err
}

func resultFor(err error) string {
	var (
		ee *types.ProviderExchangeError
		pe *types.ProviderProfileError
		ue *types.ProviderUnavailableError
	)
	switch {
	case errors.As(err, &ee):
		return metrics.ResultExchange
	case errors.As(err, &pe):
		return metrics.ResultProfile
	case errors.As(err, &ue):
		return metrics.ResultUnavailable
	default:
		return metrics.ResultError
	}
}

// ─── verify / logout ───

// Verify checks a session token. It does not touch flow state.
func (f *Flow) Verify(ctx context.Context, token string) (types.Identity, error) {
	id, err := f.sessions.Verify(token)
	if err == nil {
		f.rec.SessionVerified(metrics.ResultSuccess)
		return id, nil
	}

	log := logger.From(ctx).With(logger.Layer("auth"), logger.TokenFP(tokens.Fingerprint(token)))
	var ee *types.ExpiredTokenError
	if errors.As(err, &ee) {
		f.rec.SessionVerified(metrics.ResultExpired)
		log.Debug("session expired", logger.Event("session_expired"))
	} else {
		f.rec.SessionVerified(metrics.ResultInvalid)
		log.Warn("session rejected", logger.Event("session_forged"), logger.Err(err))
	}
	return types.Identity{}, err
}

// Logout has no server-side effect: tokens are not stored, so there is
// nothing to revoke. The transport clears the cookie.
func (f *Flow) Logout(ctx context.Context) {
	logger.From(ctx).Debug("logout", logger.Layer("auth"))
}
