package tokens

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateOpaqueToken_EntropyAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		tok, err := GenerateOpaqueToken(32)
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(tok)
		require.NoError(t, err)
		require.Len(t, raw, 32)

		_, dup := seen[tok]
		require.False(t, dup, "duplicate token %q", tok)
		seen[tok] = struct{}{}
	}
}

func TestFingerprint(t *testing.T) {
	require.Equal(t, "", Fingerprint(""))
	fp := Fingerprint("state-value")
	require.Len(t, fp, 12)
	require.Equal(t, fp, Fingerprint("state-value"))
	require.NotEqual(t, fp, Fingerprint("state-valuf"))
}
