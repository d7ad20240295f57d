// Package metrics define las métricas Prometheus del servicio.
//
// Un *Metrics nil es válido: todos los métodos son no-op. Así los componentes
// del flujo se pueden construir sin métricas (tests, CLI verify).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Callback and verification result labels.
const (
	ResultSuccess     = "success"
	ResultCSRF        = "csrf_rejected"
	ResultExchange    = "exchange_failed"
	ResultProfile     = "profile_failed"
	ResultUnavailable = "provider_unavailable"
	ResultNormalize   = "normalization_failed"
	ResultError       = "error"
	ResultInvalid     = "invalid_signature"
	ResultExpired     = "expired"
)

type Metrics struct {
	reg      prometheus.Registerer
	gatherer prometheus.Gatherer

	loginsTotal        *prometheus.CounterVec
	callbacksTotal     *prometheus.CounterVec
	verificationsTotal *prometheus.CounterVec
	providerDuration   *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec
}

// New creates and registers the collectors on reg. A nil reg uses a fresh
// private registry (exposed by Handler).
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		reg:      reg,
		gatherer: reg,

		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lazyauth_logins_total",
			Help: "Logins iniciados por provider",
		}, []string{"provider"}),

		callbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lazyauth_callbacks_total",
			Help: "Callbacks procesados por resultado",
		}, []string{"result"}),

		verificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lazyauth_session_verifications_total",
			Help: "Verificaciones de session token por resultado",
		}, []string{"result"}),

		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lazyauth_provider_request_duration_seconds",
			Help:    "Latencia de las llamadas salientes al provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op", "outcome"}),

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),

		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		httpInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método",
		}, []string{"method"}),
	}

	for _, c := range []prometheus.Collector{
		m.loginsTotal,
		m.callbacksTotal,
		m.verificationsTotal,
		m.providerDuration,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpInflight,
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RegisterStateStore exposes the current number of pending state values.
func (m *Metrics) RegisterStateStore(size func() int) error {
	if m == nil {
		return nil
	}
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "lazyauth_state_store_entries",
		Help: "State values emitidos y aún no consumidos ni expulsados",
	}, func() float64 { return float64(size()) })
	return registerCollector(m.reg, g)
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) LoginStarted(provider string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(provider).Inc()
}

func (m *Metrics) CallbackFinished(result string) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionVerified(result string) {
	if m == nil {
		return
	}
	m.verificationsTotal.WithLabelValues(result).Inc()
}

// ObserveProviderRequest records one outbound call to a provider.
func (m *Metrics) ObserveProviderRequest(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.providerDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

// Middleware instrumenta requests HTTP (contadores, latencia, inflight).
// El label path es el patrón de ruta de chi, resuelto después del handler; lo
// que no matchea ninguna ruta cuenta como "unmatched".
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := methodLabel(r.Method)

		inflight := m.httpInflight.WithLabelValues(method)
		inflight.Inc()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			inflight.Dec()

			pathLabel := routeLabel(r)
			m.httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			m.httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// registerCollector registra el collector ignorando duplicados.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// PathUnmatched is the path label of requests no route matched.
const PathUnmatched = "unmatched"

var knownMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodOptions: {},
	http.MethodConnect: {},
	http.MethodTrace:   {},
}

// methodLabel: cualquier método fuera de los estándar va a "OTHER".
func methodLabel(method string) string {
	if _, ok := knownMethods[method]; ok {
		return method
	}
	return "OTHER"
}

// routeLabel devuelve el patrón registrado ("/auth/login"), nunca el path
// crudo del request.
func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return PathUnmatched
	}
	p := rctx.RoutePattern()
	if p == "" {
		return PathUnmatched
	}
	return p
}
