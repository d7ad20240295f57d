// Package types define los tipos de dominio compartidos entre paquetes:
// la identidad canónica, el perfil crudo del provider y la taxonomía de errores.
package types

import "encoding/json"

// Identity is the canonical, provider-agnostic user record derived from a
// provider profile. It is never stored; it is recomputed on every exchange
// and carried inside the session token.
type Identity struct {
	ProviderID   string `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	Email        string `json:"email,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
}

// Valid reports whether the identity carries its only key.
func (i Identity) Valid() bool { return i.ProviderID != "" }

// ProviderProfile is the user-info payload as returned by the provider.
// Raw keeps the exact bytes so field extraction does not depend on how Go
// decodes numbers; Fields is the decoded top-level object.
type ProviderProfile struct {
	Raw    json.RawMessage
	Fields map[string]any
}

// NewProviderProfile decodes a JSON object payload.
func NewProviderProfile(raw []byte) (ProviderProfile, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ProviderProfile{}, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return ProviderProfile{Raw: append(json.RawMessage(nil), raw...), Fields: fields}, nil
}

// ProfileFromMap builds a profile from an already decoded mapping.
func ProfileFromMap(fields map[string]any) ProviderProfile {
	raw, err := json.Marshal(fields)
	if err != nil {
		raw = []byte("{}")
	}
	return ProviderProfile{Raw: raw, Fields: fields}
}
