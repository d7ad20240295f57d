// Package oauth implementa el TokenExchanger: canje del authorization code
// contra el token endpoint y lectura del perfil en el user-info endpoint.
//
// El componente nunca reintenta. Solo los fallos de transporte se reportan
// como ProviderUnavailableError; decidir un reintento es del llamador.
package oauth

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/lazyauth/internal/domain/types"
	"github.com/dropDatabas3/lazyauth/internal/observability/logger"
	"github.com/dropDatabas3/lazyauth/internal/providers"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxDiagBody is how much of an upstream error body is kept for logs.
	maxDiagBody = 4 << 10
	// maxProfileBody caps the user-info payload read into memory.
	maxProfileBody = 1 << 20

	OpExchange = "exchange"
	OpProfile  = "profile"
)

// Observer receives the latency and outcome of each outbound provider call.
type Observer interface {
	ObserveProviderRequest(op string, d time.Duration, err error)
}

type Options struct {
	// HTTPClient para las llamadas salientes. Nil usa un cliente propio.
	HTTPClient *http.Client
	// Timeout por llamada (token y perfil por separado).
	Timeout  time.Duration
	Observer Observer
}

// Exchanger is stateless and safe for concurrent use.
type Exchanger struct {
	client   *http.Client
	timeout  time.Duration
	observer Observer
}

func NewExchanger(opts Options) *Exchanger {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Exchanger{
		client:   opts.HTTPClient,
		timeout:  opts.Timeout,
		observer: opts.Observer,
	}
}

// Exchange trades code for an access token at p's token endpoint and returns
// the profile served by p's user-info endpoint.
func (e *Exchanger) Exchange(ctx context.Context, code string, p *providers.Config) (types.ProviderProfile, error) {
	if p == nil {
		return types.ProviderProfile{}, errors.New("oauth: nil provider config")
	}
	log := logger.From(ctx).With(logger.Layer("oauth"), logger.Provider(p.Name()))

	accessToken, err := e.exchangeCode(ctx, code, p)
	if err != nil {
		logUpstream(log, OpExchange, err)
		return types.ProviderProfile{}, err
	}

	prof, err := e.fetchProfile(ctx, accessToken, p)
	if err != nil {
		logUpstream(log, OpProfile, err)
		return types.ProviderProfile{}, err
	}
	return prof, nil
}

func (e *Exchanger) exchangeCode(ctx context.Context, code string, p *providers.Config) (tok string, err error) {
	start := time.Now()
	defer func() { e.observe(OpExchange, start, err) }()

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	cctx = context.WithValue(cctx, oauth2.HTTPClient, e.client)

	t, err := p.OAuth2().Exchange(cctx, code)
	if err != nil {
		return "", classifyExchange(err)
	}
	if t.AccessToken == "" {
		return "", &types.ProviderExchangeError{Reason: "response has no access_token"}
	}
	return t.AccessToken, nil
}

func classifyExchange(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		ee := &types.ProviderExchangeError{Body: clip(re.Body), Reason: "token endpoint rejected the code"}
		if re.Response != nil {
			ee.Status = re.Response.StatusCode
		}
		if re.ErrorCode != "" {
			ee.Reason = re.ErrorCode
		}
		return ee
	}
	if isTransport(err) {
		return &types.ProviderUnavailableError{Op: OpExchange, Err: err}
	}
	// respuesta 2xx ilegible o sin access_token
	return &types.ProviderExchangeError{Reason: err.Error()}
}

func (e *Exchanger) fetchProfile(ctx context.Context, accessToken string, p *providers.Config) (prof types.ProviderProfile, err error) {
	start := time.Now()
	defer func() { e.observe(OpProfile, start, err) }()

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, p.UserInfoEndpoint(), nil)
	if err != nil {
		return types.ProviderProfile{}, &types.ProviderProfileError{Reason: "build request: " + err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if isTransport(err) {
			return types.ProviderProfile{}, &types.ProviderUnavailableError{Op: OpProfile, Err: err}
		}
		return types.ProviderProfile{}, &types.ProviderProfileError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBody))
	if err != nil {
		if isTransport(err) {
			return types.ProviderProfile{}, &types.ProviderUnavailableError{Op: OpProfile, Err: err}
		}
		return types.ProviderProfile{}, &types.ProviderProfileError{Status: resp.StatusCode, Reason: "read body: " + err.Error()}
	}

	if resp.StatusCode/100 != 2 {
		return types.ProviderProfile{}, &types.ProviderProfileError{
			Status: resp.StatusCode,
			Body:   clip(body),
			Reason: "user-info endpoint rejected the access token",
		}
	}

	prof, err = types.NewProviderProfile(body)
	if err != nil {
		return types.ProviderProfile{}, &types.ProviderProfileError{Body: clip(body), Reason: "profile is not a JSON object"}
	}
	return prof, nil
}

func (e *Exchanger) observe(op string, start time.Time, err error) {
	if e.observer != nil {
		e.observer.ObserveProviderRequest(op, time.Since(start), err)
	}
}

// isTransport reports dial, DNS, TLS, reset and timeout failures. Every error
// returned by http.Client.Do is a *url.Error, which implements net.Error.
func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func clip(b []byte) string {
	if len(b) > maxDiagBody {
		b = b[:maxDiagBody]
	}
	return strings.ToValidUTF8(string(b), "")
}

func logUpstream(log *zap.Logger, op string, err error) {
	var (
		ee *types.ProviderExchangeError
		pe *types.ProviderProfileError
		ue *types.ProviderUnavailableError
	)
	switch {
	case errors.As(err, &ee):
		log.Warn("provider rejected code exchange", logger.Op(op), logger.UpstreamStatus(ee.Status), logger.UpstreamBody(ee.Body), logger.String("reason", ee.Reason))
	case errors.As(err, &pe):
		log.Warn("provider rejected profile request", logger.Op(op), logger.UpstreamStatus(pe.Status), logger.UpstreamBody(pe.Body), logger.String("reason", pe.Reason))
	case errors.As(err, &ue):
		log.Warn("provider unavailable", logger.Op(op), logger.Err(ue.Err))
	default:
		log.Error("provider call failed", logger.Op(op), logger.Err(err))
	}
}
