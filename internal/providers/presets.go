package providers

import (
	"sort"
	"strings"

	"github.com/dropDatabas3/lazyauth/internal/identity"
)

// Preset holds the well-known endpoints, default scopes and identity field map
// of a public provider. Presets only fill what Settings leaves empty.
type Preset struct {
	AuthorizationURL string
	TokenURL         string
	UserInfoURL      string
	Scopes           []string
	Fields           identity.FieldMap
}

var presets = map[string]Preset{
	"google": {
		AuthorizationURL: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:         "https://oauth2.googleapis.com/token",
		UserInfoURL:      "https://openidconnect.googleapis.com/v1/userinfo",
		Scopes:           []string{"openid", "profile", "email"},
		Fields: identity.FieldMap{
			ID:          []string{"sub"},
			Email:       []string{"email"},
			DisplayName: []string{"name"},
		},
	},
	"github": {
		AuthorizationURL: "https://github.com/login/oauth/authorize",
		TokenURL:         "https://github.com/login/oauth/access_token",
		UserInfoURL:      "https://api.github.com/user",
		Scopes:           []string{"read:user", "user:email"},
		Fields: identity.FieldMap{
			ID:          []string{"id", "login"},
			Email:       []string{"email"},
			DisplayName: []string{"name", "login"},
		},
	},
	"microsoft": {
		AuthorizationURL: "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL:         "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		UserInfoURL:      "https://graph.microsoft.com/v1.0/me",
		Scopes:           []string{"openid", "profile", "email", "User.Read"},
		Fields: identity.FieldMap{
			ID:          []string{"id", "sub"},
			Email:       []string{"mail", "userPrincipalName", "email"},
			DisplayName: []string{"displayName", "name"},
		},
	},
	"facebook": {
		AuthorizationURL: "https://www.facebook.com/v19.0/dialog/oauth",
		TokenURL:         "https://graph.facebook.com/v19.0/oauth/access_token",
		UserInfoURL:      "https://graph.facebook.com/me?fields=id,name,email",
		Scopes:           []string{"email", "public_profile"},
		Fields: identity.FieldMap{
			ID:          []string{"id"},
			Email:       []string{"email"},
			DisplayName: []string{"name"},
		},
	},
}

// LookupPreset returns the preset registered under name (case-insensitive).
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// PresetNames lists the known presets, sorted.
func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (p Preset) apply(s Settings) Settings {
	if s.AuthorizationURL == "" {
		s.AuthorizationURL = p.AuthorizationURL
	}
	if s.TokenURL == "" {
		s.TokenURL = p.TokenURL
	}
	if s.UserInfoURL == "" {
		s.UserInfoURL = p.UserInfoURL
	}
	if len(s.Scopes) == 0 {
		s.Scopes = append([]string(nil), p.Scopes...)
	}
	s.Fields = s.Fields.Merge(p.Fields)
	return s
}
