// Package config carga la configuración del servicio.
//
// Orden: archivo YAML opcional, overrides por variables de entorno, defaults,
// y por último Validate. Cualquier error es *types.ConfigurationError y el
// proceso no debe servir tráfico.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/lazyauth/internal/domain/types"
	"github.com/dropDatabas3/lazyauth/internal/identity"
	"github.com/dropDatabas3/lazyauth/internal/jwt"
	"github.com/dropDatabas3/lazyauth/internal/providers"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env" env:"APP_ENV"`
		LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	} `yaml:"app"`

	Server struct {
		Addr               string        `yaml:"addr" env:"SERVER_ADDR"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
		ReadTimeout        time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout       time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	} `yaml:"server"`

	// OAuth2 es el provider principal, configurable solo con variables de entorno.
	OAuth2 struct {
		Provider         string        `yaml:"provider" env:"OAUTH2_PROVIDER"`
		Preset           string        `yaml:"preset" env:"OAUTH2_PRESET"`
		ClientID         string        `yaml:"client_id" env:"OAUTH2_CLIENT_ID"`
		ClientSecret     string        `yaml:"client_secret" env:"OAUTH2_CLIENT_SECRET"`
		AuthorizationURL string        `yaml:"authorization_url" env:"OAUTH2_AUTHORIZATION_URL"`
		TokenURL         string        `yaml:"token_url" env:"OAUTH2_TOKEN_URL"`
		UserInfoURL      string        `yaml:"user_info_url" env:"OAUTH2_USER_INFO_URL"`
		RedirectURI      string        `yaml:"redirect_uri" env:"OAUTH2_REDIRECT_URI"`
		Scopes           []string      `yaml:"scopes" env:"OAUTH2_SCOPES" envSeparator:","`
		HTTPTimeout      time.Duration `yaml:"http_timeout" env:"PROVIDER_HTTP_TIMEOUT"`
	} `yaml:"oauth2"`

	// Providers adicionales declarados en YAML, por nombre.
	Providers map[string]providers.Settings `yaml:"providers"`

	JWT struct {
		SecretKey         string `yaml:"secret_key" env:"JWT_SECRET_KEY"`
		Algorithm         string `yaml:"algorithm" env:"JWT_ALGORITHM"`
		ExpirationMinutes int    `yaml:"expiration_minutes" env:"JWT_EXPIRATION_MINUTES"`
		Issuer            string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	State struct {
		TTL             time.Duration `yaml:"ttl" env:"STATE_TTL"`
		CleanupInterval time.Duration `yaml:"cleanup_interval" env:"STATE_CLEANUP_INTERVAL"`
	} `yaml:"state"`

	Auth struct {
		CookieName       string `yaml:"cookie_name" env:"AUTH_COOKIE_NAME"`
		CookieSecure     *bool  `yaml:"cookie_secure" env:"AUTH_COOKIE_SECURE"`
		CookieSameSite   string `yaml:"cookie_samesite" env:"AUTH_COOKIE_SAMESITE"`
		CookieDomain     string `yaml:"cookie_domain" env:"AUTH_COOKIE_DOMAIN"`
		RetryUnavailable *bool  `yaml:"retry_unavailable" env:"AUTH_RETRY_UNAVAILABLE"`
	} `yaml:"auth"`

	Rate struct {
		Enabled  bool     `yaml:"enabled" env:"RATE_ENABLED"`
		Backend  string   `yaml:"backend" env:"RATE_BACKEND"` // memory | redis
		Login    RateRule `yaml:"login" envPrefix:"RATE_LOGIN_"`
		Callback RateRule `yaml:"callback" envPrefix:"RATE_CALLBACK_"`

		// Solo detrás de un proxy que reescribe X-Forwarded-For.
		TrustForwardedFor bool `yaml:"trust_forwarded_for" env:"RATE_TRUST_XFF"`
	} `yaml:"rate"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
	} `yaml:"redis"`

	Metrics struct {
		Enabled *bool `yaml:"enabled" env:"METRICS_ENABLED"`
	} `yaml:"metrics"`
}

// RateRule is a fixed-window limit.
type RateRule struct {
	Limit  int           `yaml:"limit" env:"LIMIT"`
	Window time.Duration `yaml:"window" env:"WINDOW"`
}

// Load reads path (optional; "" skips the file), applies environment
// overrides and defaults, then validates.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, &types.ConfigurationError{Field: "config", Reason: "read " + path + ": " + err.Error()}
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, &types.ConfigurationError{Field: "config", Reason: "parse " + path + ": " + err.Error()}
		}
	}

	// Las variables no definidas no pisan lo que vino del YAML.
	if err := env.Parse(&c); err != nil {
		return nil, &types.ConfigurationError{Field: "env", Reason: err.Error()}
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.OAuth2.Provider == "" {
		c.OAuth2.Provider = "oauth2"
		if c.OAuth2.Preset != "" {
			c.OAuth2.Provider = strings.ToLower(c.OAuth2.Preset)
		}
	}
	if len(c.OAuth2.Scopes) == 0 && c.OAuth2.Preset == "" {
		c.OAuth2.Scopes = []string{"openid", "profile", "email"}
	}
	if c.OAuth2.HTTPTimeout == 0 {
		c.OAuth2.HTTPTimeout = 10 * time.Second
	}

	if c.JWT.Algorithm == "" {
		c.JWT.Algorithm = jwt.DefaultAlgorithm
	}
	if c.JWT.ExpirationMinutes == 0 {
		c.JWT.ExpirationMinutes = 30
	}

	if c.State.TTL == 0 {
		c.State.TTL = 10 * time.Minute
	}
	if c.State.CleanupInterval == 0 {
		c.State.CleanupInterval = time.Minute
	}

	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "access_token"
	}
	if c.Auth.CookieSecure == nil {
		c.Auth.CookieSecure = boolPtr(true)
	}
	if c.Auth.CookieSameSite == "" {
		c.Auth.CookieSameSite = "lax"
	}
	if c.Auth.RetryUnavailable == nil {
		c.Auth.RetryUnavailable = boolPtr(true)
	}

	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	c.Rate.Login.defaults(20, time.Minute)
	c.Rate.Callback.defaults(20, time.Minute)
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "lazyauth:rl:"
	}

	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = boolPtr(true)
	}
}

func (r *RateRule) defaults(limit int, window time.Duration) {
	if r.Limit == 0 {
		r.Limit = limit
	}
	if r.Window == 0 {
		r.Window = window
	}
}

func boolPtr(b bool) *bool { return &b }

// MaxExpirationMinutes caps JWT_EXPIRATION_MINUTES (30 days). Sessions cannot be
// revoked, and larger values overflow time.Duration.
const MaxExpirationMinutes = 30 * 24 * 60

// Validate checks the whole configuration. Provider endpoint validation happens
// in BuildProviders, which Validate also runs.
func (c *Config) Validate() error {
	if len(c.JWT.SecretKey) == 0 {
		return &types.ConfigurationError{Field: "JWT_SECRET_KEY", Reason: "is required (generate one with `lazyauth secret`)"}
	}
	if len(c.JWT.SecretKey) < jwt.MinSecretBytes {
		return &types.ConfigurationError{Field: "JWT_SECRET_KEY", Reason: fmt.Sprintf("must be at least %d bytes", jwt.MinSecretBytes)}
	}
	if !jwt.SupportedAlgorithm(c.JWT.Algorithm) {
		return &types.ConfigurationError{Field: "JWT_ALGORITHM", Reason: "must be HS256, HS384 or HS512"}
	}
	if c.JWT.ExpirationMinutes <= 0 {
		return &types.ConfigurationError{Field: "JWT_EXPIRATION_MINUTES", Reason: "must be greater than zero"}
	}
	if c.JWT.ExpirationMinutes > MaxExpirationMinutes {
		return &types.ConfigurationError{Field: "JWT_EXPIRATION_MINUTES", Reason: fmt.Sprintf("must be at most %d", MaxExpirationMinutes)}
	}

	if c.State.TTL <= 0 {
		return &types.ConfigurationError{Field: "STATE_TTL", Reason: "must be positive"}
	}
	if c.OAuth2.HTTPTimeout <= 0 {
		return &types.ConfigurationError{Field: "PROVIDER_HTTP_TIMEOUT", Reason: "must be positive"}
	}

	switch strings.ToLower(c.Auth.CookieSameSite) {
	case "lax", "strict":
	default:
		return &types.ConfigurationError{Field: "AUTH_COOKIE_SAMESITE", Reason: "must be lax or strict"}
	}

	switch c.Rate.Backend {
	case "memory":
	case "redis":
		if c.Rate.Enabled && c.Redis.Addr == "" {
			return &types.ConfigurationError{Field: "REDIS_ADDR", Reason: "is required for the redis rate backend"}
		}
	default:
		return &types.ConfigurationError{Field: "RATE_BACKEND", Reason: "must be memory or redis"}
	}
	for name, r := range map[string]RateRule{"RATE_LOGIN": c.Rate.Login, "RATE_CALLBACK": c.Rate.Callback} {
		if r.Limit < 0 || r.Window < 0 {
			return &types.ConfigurationError{Field: name, Reason: "limit and window must not be negative"}
		}
	}

	if _, _, err := c.BuildProviders(); err != nil {
		return err
	}
	return nil
}

// SessionTTL is JWT_EXPIRATION_MINUTES as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.JWT.ExpirationMinutes) * time.Minute
}

// OAuth2Configured reports whether the environment describes the primary
// provider.
func (c *Config) OAuth2Configured() bool {
	o := c.OAuth2
	return o.ClientID != "" || o.ClientSecret != "" || o.AuthorizationURL != "" || o.TokenURL != "" || o.UserInfoURL != ""
}

// BuildProviders validates every configured provider and returns the registry
// plus the identity field mapping table. The env provider is the default when
// present.
func (c *Config) BuildProviders() (*providers.Registry, map[string]identity.FieldMap, error) {
	reg := providers.NewRegistry()
	fields := make(map[string]identity.FieldMap)

	add := func(name string, s providers.Settings) error {
		p, err := providers.New(name, s)
		if err != nil {
			return err
		}
		if err := reg.Register(p); err != nil {
			return &types.ConfigurationError{Field: "providers." + p.Name(), Reason: "declared more than once"}
		}
		fields[p.Name()] = p.Fields()
		return nil
	}

	if c.OAuth2Configured() {
		o := c.OAuth2
		err := add(o.Provider, providers.Settings{
			Preset:           o.Preset,
			ClientID:         o.ClientID,
			ClientSecret:     o.ClientSecret,
			AuthorizationURL: o.AuthorizationURL,
			TokenURL:         o.TokenURL,
			UserInfoURL:      o.UserInfoURL,
			RedirectURI:      o.RedirectURI,
			Scopes:           o.Scopes,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	names := make([]string, 0, len(c.Providers))
	for n := range c.Providers {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := add(n, c.Providers[n]); err != nil {
			return nil, nil, err
		}
	}

	if reg.Len() == 0 {
		return nil, nil, &types.ConfigurationError{Field: "OAUTH2_CLIENT_ID", Reason: "no OAuth2 provider configured"}
	}
	return reg, fields, nil
}

// IsConfigurationError reports whether err comes from configuration loading.
func IsConfigurationError(err error) bool {
	var ce *types.ConfigurationError
	return errors.As(err, &ce)
}
