package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/lazyauth/internal/domain/types"
)

func profile(t *testing.T, raw string) types.ProviderProfile {
	t.Helper()
	p, err := types.NewProviderProfile([]byte(raw))
	require.NoError(t, err)
	return p
}

func googleMap() map[string]FieldMap {
	return map[string]FieldMap{
		"google": {ID: []string{"sub"}, Email: []string{"email"}, DisplayName: []string{"name"}},
	}
}

func TestNormalize_GoogleProfile(t *testing.T) {
	n := NewNormalizer(googleMap())

	id, err := n.Normalize(profile(t, `{"sub":"123","email":"a@b.com"}`), "google")
	require.NoError(t, err)
	require.Equal(t, types.Identity{ProviderID: "123", ProviderName: "google", Email: "a@b.com"}, id)
	require.Empty(t, id.DisplayName)
}

func TestNormalize_DefaultMapForUnknownProvider(t *testing.T) {
	n := NewNormalizer(nil)

	id, err := n.Normalize(profile(t, `{"sub":"abc","name":"Ada","email":"ada@x.io"}`), "custom")
	require.NoError(t, err)
	require.Equal(t, "abc", id.ProviderID)
	require.Equal(t, "Ada", id.DisplayName)
	require.Equal(t, "custom", id.ProviderName)

	// "id" has priority over "sub"
	id, err = n.Normalize(profile(t, `{"id":"first","sub":"second"}`), "custom")
	require.NoError(t, err)
	require.Equal(t, "first", id.ProviderID)
}

func TestNormalize_NumericIDKeptExact(t *testing.T) {
	n := NewNormalizer(map[string]FieldMap{"github": {ID: []string{"id"}, DisplayName: []string{"name", "login"}}})

	id, err := n.Normalize(profile(t, `{"id":9007199254740993,"login":"octo"}`), "github")
	require.NoError(t, err)
	require.Equal(t, "9007199254740993", id.ProviderID)
	require.Equal(t, "octo", id.DisplayName)
}

func TestNormalize_NestedPath(t *testing.T) {
	n := NewNormalizer(map[string]FieldMap{"acme": {ID: []string{"data.user.uid"}}})

	id, err := n.Normalize(profile(t, `{"data":{"user":{"uid":"u-1"}}}`), "acme")
	require.NoError(t, err)
	require.Equal(t, "u-1", id.ProviderID)
}

func TestNormalize_MissingIdentity(t *testing.T) {
	n := NewNormalizer(googleMap())

	cases := map[string]string{
		"absent":     `{"email":"a@b.com"}`,
		"null":       `{"sub":null}`,
		"empty":      `{"sub":""}`,
		"whitespace": `{"sub":"   "}`,
		"object":     `{"sub":{"v":"1"}}`,
		"array":      `{"sub":["1"]}`,
		"bool":       `{"sub":true}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := n.Normalize(profile(t, raw), "google")
			var ne *types.NormalizationError
			require.True(t, errors.As(err, &ne), "got %v", err)
			require.Equal(t, "google", ne.Provider)
		})
	}
}

func TestNormalize_NotAnObject(t *testing.T) {
	n := NewNormalizer(nil)
	_, err := n.Normalize(types.ProviderProfile{Raw: []byte(`["x"]`)}, "p")
	var ne *types.NormalizationError
	require.ErrorAs(t, err, &ne)

	_, err = n.Normalize(types.ProviderProfile{}, "p")
	require.ErrorAs(t, err, &ne)
}

func TestNormalize_TruncatesLongFields(t *testing.T) {
	n := NewNormalizer(nil)
	long := strings.Repeat("é", 300) // 600 bytes

	id, err := n.Normalize(types.ProfileFromMap(map[string]any{"id": "x", "name": long}), "p")
	require.NoError(t, err)
	require.LessOrEqual(t, len(id.DisplayName), maxFieldLen)
	require.True(t, strings.HasPrefix(long, id.DisplayName))
	require.Equal(t, 128, len([]rune(id.DisplayName)))
}

func TestFieldMapFor_CaseInsensitiveAndMerged(t *testing.T) {
	n := NewNormalizer(map[string]FieldMap{"GitHub": {ID: []string{"id"}}})

	fm := n.FieldMapFor("github")
	require.Equal(t, []string{"id"}, fm.ID)
	require.Equal(t, DefaultFieldMap.Email, fm.Email)
	require.Equal(t, DefaultFieldMap, n.FieldMapFor("other"))
}
