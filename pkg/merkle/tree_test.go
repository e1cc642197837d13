package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixed vectors. The wire format hashes ASCII hex strings, so these must
// never change: external verifiers recompute the same roots.
func TestRootFixedVectors(t *testing.T) {
	cases := []struct {
		name   string
		leaves []string
		want   string
	}{
		{
			name:   "single leaf is its own root",
			leaves: []string{"a"},
			want:   "ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb",
		},
		{
			name:   "pair",
			leaves: []string{"a", "b"},
			want:   "62af5c3cb8da3e4f25061e829ebeea5c7513c54949115b1acc225930a90154da",
		},
		{
			name:   "odd count duplicates the last leaf hash",
			leaves: []string{"a", "b", "c"},
			want:   "0bdf27bf7ec894ca7cadfe491ec1a3ece840f117989e8c5e9bd7086467bf6c38",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Root(tc.leaves))
		})
	}
}

func TestRootEmpty(t *testing.T) {
	assert.Equal(t, "", Root(nil))
	assert.Nil(t, Build(nil))
}

func TestRootOrderSensitive(t *testing.T) {
	assert.NotEqual(t, Root([]string{"a", "b"}), Root([]string{"b", "a"}))
}

func TestOddDuplicationMatchesExplicitPair(t *testing.T) {
	// [a, b, c] must equal [a, b, c, c] by construction.
	assert.Equal(t, Root([]string{"a", "b", "c"}), Root([]string{"a", "b", "c", "c"}))
}

func TestInclusionProofs(t *testing.T) {
	leaves := []string{"p1", "p2", "p3", "p4", "p5"}
	tree := Build(leaves)
	require.NotNil(t, tree)

	for i, leaf := range leaves {
		proof, err := tree.Prove(i, leaf)
		require.NoError(t, err)
		assert.True(t, VerifyInclusion(proof, tree.Root), "leaf %d", i)
	}
}

func TestInclusionProofRejectsTamper(t *testing.T) {
	tree := Build([]string{"p1", "p2", "p3"})
	proof, err := tree.Prove(1, "p2")
	require.NoError(t, err)

	proof.ProofID = "p9"
	assert.False(t, VerifyInclusion(proof, tree.Root))
}

func TestInclusionProofWrongRoot(t *testing.T) {
	tree := Build([]string{"p1", "p2"})
	proof, err := tree.Prove(0, "p1")
	require.NoError(t, err)
	assert.False(t, VerifyInclusion(proof, Root([]string{"x"})))
}

func TestProveOutOfRange(t *testing.T) {
	tree := Build([]string{"p1"})
	_, err := tree.Prove(5, "p1")
	assert.Error(t, err)
}
