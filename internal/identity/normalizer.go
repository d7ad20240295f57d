// Package identity maps heterogeneous provider profiles into the canonical
// Identity. Provider differences live in a FieldMap table, not in code, so a
// new provider is a configuration entry.
package identity

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dropDatabas3/lazyauth/internal/domain/types"
)

// maxFieldLen bounds each identity string so the session token stays well
// below cookie size limits whatever the provider returns.
const maxFieldLen = 256

// FieldMap lists, per canonical field, the candidate profile paths in order of
// preference. Paths use gjson syntax ("sub", "data.id", "emails.0.value").
type FieldMap struct {
	ID          []string `yaml:"id" json:"id"`
	Email       []string `yaml:"email" json:"email"`
	DisplayName []string `yaml:"display_name" json:"display_name"`
}

// DefaultFieldMap is used for providers with no explicit entry. It matches the
// usual OAuth2/OIDC shapes.
var DefaultFieldMap = FieldMap{
	ID:          []string{"id", "sub"},
	Email:       []string{"email"},
	DisplayName: []string{"name", "display_name"},
}

// Merge returns m with every empty list filled from fallback.
func (m FieldMap) Merge(fallback FieldMap) FieldMap {
	if len(m.ID) == 0 {
		m.ID = fallback.ID
	}
	if len(m.Email) == 0 {
		m.Email = fallback.Email
	}
	if len(m.DisplayName) == 0 {
		m.DisplayName = fallback.DisplayName
	}
	return m
}

// Normalizer applies the field-mapping table.
type Normalizer struct {
	maps map[string]FieldMap
}

// NewNormalizer builds a normalizer from provider name -> field map. The table
// is copied; later changes to maps have no effect.
func NewNormalizer(maps map[string]FieldMap) *Normalizer {
	n := &Normalizer{maps: make(map[string]FieldMap, len(maps))}
	for name, m := range maps {
		n.maps[strings.ToLower(name)] = m.Merge(DefaultFieldMap)
	}
	return n
}

// FieldMapFor returns the mapping applied to providerName.
func (n *Normalizer) FieldMapFor(providerName string) FieldMap {
	if m, ok := n.maps[strings.ToLower(providerName)]; ok {
		return m
	}
	return DefaultFieldMap
}

// Normalize extracts the canonical identity. A missing id is a hard failure;
// email and display name are best effort.
func (n *Normalizer) Normalize(profile types.ProviderProfile, providerName string) (types.Identity, error) {
	if len(profile.Raw) == 0 || !gjson.ValidBytes(profile.Raw) {
		return types.Identity{}, &types.NormalizationError{Provider: providerName, Reason: "profile is not valid JSON"}
	}
	root := gjson.ParseBytes(profile.Raw)
	if !root.IsObject() {
		return types.Identity{}, &types.NormalizationError{Provider: providerName, Reason: "profile is not a JSON object"}
	}

	fm := n.FieldMapFor(providerName)

	id := firstScalar(root, fm.ID)
	if id == "" {
		return types.Identity{}, &types.NormalizationError{
			Provider: providerName,
			Reason:   "no identity field (" + strings.Join(fm.ID, ", ") + ")",
		}
	}

	return types.Identity{
		ProviderID:   id,
		ProviderName: providerName,
		Email:        firstScalar(root, fm.Email),
		DisplayName:  firstScalar(root, fm.DisplayName),
	}, nil
}

// firstScalar returns the first path resolving to a non-blank string or number.
// Objects, arrays, booleans and null are skipped.
func firstScalar(root gjson.Result, paths []string) string {
	for _, p := range paths {
		r := root.Get(p)
		if r.Type != gjson.String && r.Type != gjson.Number {
			continue
		}
		// Number: Raw keeps large integer ids exact (no float64 round trip).
		v := r.Str
		if r.Type == gjson.Number {
			v = r.Raw
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		return truncate(v)
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxFieldLen {
		return s
	}
	// cut on a rune boundary
	cut := maxFieldLen
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
