// Package providers describe los providers OAuth2 configurados.
//
// Un Config es inmutable después de New: endpoints validados, credenciales del
// cliente, scopes y el mapeo de campos de identidad. Los providers conocidos
// (google, github, microsoft, facebook) son presets de datos, no código.
package providers

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/lazyauth/internal/domain/types"
	"github.com/dropDatabas3/lazyauth/internal/identity"
)

// Settings is the raw, unvalidated description of a provider as it comes from
// configuration.
type Settings struct {
	Preset           string            `yaml:"preset"`
	ClientID         string            `yaml:"client_id"`
	ClientSecret     string            `yaml:"client_secret"`
	AuthorizationURL string            `yaml:"authorization_url"`
	TokenURL         string            `yaml:"token_url"`
	UserInfoURL      string            `yaml:"user_info_url"`
	RedirectURI      string            `yaml:"redirect_uri"`
	Scopes           []string          `yaml:"scopes"`
	Fields           identity.FieldMap `yaml:"fields"`
}

// Config is a validated provider. Zero value is not usable; build with New.
type Config struct {
	name         string
	clientID     string
	clientSecret string
	authURL      string
	tokenURL     string
	userInfoURL  string
	redirectURI  string
	scopes       []string
	fields       identity.FieldMap
}

// New validates s and returns an immutable Config. Failures are
// *types.ConfigurationError naming the offending field.
func New(name string, s Settings) (*Config, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, &types.ConfigurationError{Field: "provider", Reason: "name is required"}
	}

	if s.Preset != "" {
		p, ok := LookupPreset(s.Preset)
		if !ok {
			return nil, &types.ConfigurationError{
				Field:  fieldName(name, "preset"),
				Reason: fmt.Sprintf("unknown preset %q (known: %s)", s.Preset, strings.Join(PresetNames(), ", ")),
			}
		}
		s = p.apply(s)
	}

	if strings.TrimSpace(s.ClientID) == "" {
		return nil, &types.ConfigurationError{Field: fieldName(name, "client_id"), Reason: "must not be empty"}
	}
	if strings.TrimSpace(s.ClientSecret) == "" {
		// nunca el valor, solo el nombre del campo
		return nil, &types.ConfigurationError{Field: fieldName(name, "client_secret"), Reason: "must not be empty"}
	}

	for _, f := range []struct{ key, val string }{
		{"authorization_url", s.AuthorizationURL},
		{"token_url", s.TokenURL},
		{"user_info_url", s.UserInfoURL},
		{"redirect_uri", s.RedirectURI},
	} {
		if err := validateAbsoluteURL(f.val); err != nil {
			return nil, &types.ConfigurationError{Field: fieldName(name, f.key), Reason: err.Error()}
		}
	}

	scopes := make([]string, 0, len(s.Scopes))
	seen := make(map[string]struct{}, len(s.Scopes))
	for _, sc := range s.Scopes {
		sc = strings.TrimSpace(sc)
		if sc == "" {
			continue
		}
		if _, dup := seen[sc]; dup {
			continue
		}
		seen[sc] = struct{}{}
		scopes = append(scopes, sc)
	}

	return &Config{
		name:         name,
		clientID:     strings.TrimSpace(s.ClientID),
		clientSecret: s.ClientSecret,
		authURL:      s.AuthorizationURL,
		tokenURL:     s.TokenURL,
		userInfoURL:  s.UserInfoURL,
		redirectURI:  s.RedirectURI,
		scopes:       scopes,
		fields:       s.Fields.Merge(identity.DefaultFieldMap),
	}, nil
}

func validateAbsoluteURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

func fieldName(provider, key string) string {
	return "providers." + provider + "." + key
}

// ─── accessors ───

func (c *Config) Name() string                  { return c.name }
func (c *Config) ClientID() string              { return c.clientID }
func (c *Config) ClientSecret() string          { return c.clientSecret }
func (c *Config) AuthorizationEndpoint() string { return c.authURL }
func (c *Config) TokenEndpoint() string         { return c.tokenURL }
func (c *Config) UserInfoEndpoint() string      { return c.userInfoURL }
func (c *Config) RedirectURI() string           { return c.redirectURI }
func (c *Config) Fields() identity.FieldMap     { return c.fields }

// Scopes returns a copy of the requested scopes.
func (c *Config) Scopes() []string {
	out := make([]string, len(c.scopes))
	copy(out, c.scopes)
	return out
}

// OAuth2 returns a fresh oauth2.Config for this provider. Credentials travel in
// the request body, which every supported provider accepts.
func (c *Config) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  c.redirectURI,
		Scopes:       c.Scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.authURL,
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizationURL builds the redirect target for a login attempt: client_id,
// redirect_uri, space-joined scope, response_type=code and state.
func (c *Config) AuthorizationURL(state string) string {
	return c.OAuth2().AuthCodeURL(state)
}

// String implements fmt.Stringer without the client secret.
func (c *Config) String() string {
	return fmt.Sprintf("provider{name=%s client_id=%s client_secret=[REDACTED] auth=%s token=%s userinfo=%s redirect=%s scopes=%s}",
		c.name, c.clientID, c.authURL, c.tokenURL, c.userInfoURL, c.redirectURI, strings.Join(c.scopes, " "))
}

// GoString keeps %#v from dumping the secret field.
func (c *Config) GoString() string { return c.String() }
