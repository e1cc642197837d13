package anchor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicconel11/contramind-pilot/pkg/attestor"
	"github.com/cicconel11/contramind-pilot/pkg/contracts"
	"github.com/cicconel11/contramind-pilot/pkg/ledger"
	"github.com/cicconel11/contramind-pilot/pkg/merkle"
)

func testSigner(t *testing.T) *attestor.Service {
	t.Helper()
	kr, err := attestor.FromSeedSpec("ed25519:anchor-key:worker-test-seed", "")
	require.NoError(t, err)
	return attestor.NewService(kr, nil)
}

func commitRows(t *testing.T, store *ledger.MemoryStore, n int, prefix string) []string {
	t.Helper()
	proofIDs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		proofID := prefix + string(rune('a'+i))
		_, err := store.Commit(context.Background(), contracts.LedgerRow{
			ProofID:  proofID,
			KernelID: "cm.kernel.v1",
			Bundle:   []byte(`{}`),
		}, "", nil)
		require.NoError(t, err)
		proofIDs = append(proofIDs, proofID)
	}
	return proofIDs
}

func TestRunOnceEmptyLedger(t *testing.T) {
	w := New(ledger.NewMemoryStore(), testSigner(t), 0, 0, nil)
	anchored, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, anchored)
}

func TestRunOnceAnchorsAllRows(t *testing.T) {
	store := ledger.NewMemoryStore()
	proofIDs := commitRows(t, store, 5, "p-")
	w := New(store, testSigner(t), 0, 0, nil)

	anchored, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, anchored)
	assert.Equal(t, int64(1), anchored.FromID)
	assert.Equal(t, int64(5), anchored.ToID)
	assert.Equal(t, merkle.Root(proofIDs), anchored.MerkleRoot)
	assert.Equal(t, "anchor-key", anchored.Kid)
	assert.NotEmpty(t, anchored.Signature)
}

func TestRunOnceResumesAfterLastAnchor(t *testing.T) {
	store := ledger.NewMemoryStore()
	commitRows(t, store, 3, "x-")
	w := New(store, testSigner(t), 0, 0, nil)

	first, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)

	// Nothing new: the worker stays quiet.
	again, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, again)

	more := commitRows(t, store, 2, "y-")
	second, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ToID+1, second.FromID)
	assert.Equal(t, int64(5), second.ToID)
	assert.Equal(t, merkle.Root(more), second.MerkleRoot)
}

func TestAnchorsCoverLedgerContiguously(t *testing.T) {
	store := ledger.NewMemoryStore()
	w := New(store, testSigner(t), 0, 2, nil)
	commitRows(t, store, 7, "c-")

	for {
		anchored, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		if anchored == nil {
			break
		}
	}

	anchors, err := store.Anchors(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, anchors)
	assert.Equal(t, int64(1), anchors[0].FromID)
	for i := 1; i < len(anchors); i++ {
		assert.Equal(t, anchors[i-1].ToID+1, anchors[i].FromID, "anchors must be contiguous")
	}
	max, err := store.MaxID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, max, anchors[len(anchors)-1].ToID)
}

func TestAnchorBundleSignatureVerifies(t *testing.T) {
	store := ledger.NewMemoryStore()
	proofIDs := commitRows(t, store, 2, "s-")
	signer := testSigner(t)
	w := New(store, signer, 0, 0, nil)

	anchored, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, anchored)

	bundle := contracts.AnchorBundle{
		Type:       "anchor",
		FromID:     anchored.FromID,
		ToID:       anchored.ToID,
		MerkleRoot: merkle.Root(proofIDs),
	}
	res, err := signer.VerifyBundle(context.Background(), bundle, anchored.Signature, anchored.Kid)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}
