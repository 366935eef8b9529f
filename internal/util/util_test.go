package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomTokenLengthAndUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := RandomToken(32)
		require.NoError(t, err)
		assert.Len(t, tok, 43) // 32 bytes -> 43 unpadded base64url chars
		assert.False(t, seen[tok], "tokens must not repeat")
		seen[tok] = true
	}
}

func TestNormalizeFoldsCompatibilityForms(t *testing.T) {
	// U+FB01 (LATIN SMALL LIGATURE FI) decomposes to "fi" under NFKD.
	assert.Equal(t, "fi", Normalize("ﬁ"))
	assert.Equal(t, "plain", Normalize("plain"))
}
