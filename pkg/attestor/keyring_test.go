package attestor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSeedSpec(t *testing.T) {
	kr, err := FromSeedSpec("ed25519:k1:alpha;ed25519:k2:beta", "k2")
	require.NoError(t, err)
	assert.Equal(t, "k2", kr.ActiveKid())
	assert.Len(t, kr.PublicKeys(), 2)
}

func TestFromSeedSpecDefaultsToFirstKid(t *testing.T) {
	kr, err := FromSeedSpec("ed25519:k1:alpha;ed25519:k2:beta", "")
	require.NoError(t, err)
	assert.Equal(t, "k1", kr.ActiveKid())
}

func TestFromSeedSpecErrors(t *testing.T) {
	cases := []struct {
		name, spec, active string
	}{
		{"empty spec", "", ""},
		{"malformed entry", "ed25519-k1-alpha", ""},
		{"unsupported alg", "rsa:k1:alpha", ""},
		{"duplicate kid", "ed25519:k1:alpha;ed25519:k1:beta", ""},
		{"unknown active kid", "ed25519:k1:alpha", "missing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromSeedSpec(tc.spec, tc.active)
			assert.Error(t, err)
		})
	}
}

func TestSeedDerivationIsDeterministic(t *testing.T) {
	a, err := FromSeedSpec("ed25519:k1:alpha", "")
	require.NoError(t, err)
	b, err := FromSeedSpec("ed25519:k1:alpha", "")
	require.NoError(t, err)
	assert.Equal(t, a.PublicKeys(), b.PublicKeys())

	c, err := FromSeedSpec("ed25519:k1:different", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKeys(), c.PublicKeys())
}

func TestPublicKeyLookup(t *testing.T) {
	kr, err := FromSeedSpec("ed25519:k1:alpha", "")
	require.NoError(t, err)

	pub, ok := kr.PublicKey("k1")
	assert.True(t, ok)
	assert.NotEmpty(t, pub)

	_, ok = kr.PublicKey("nope")
	assert.False(t, ok)
}
