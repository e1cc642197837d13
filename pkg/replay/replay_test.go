package replay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicconel11/contramind-pilot/pkg/canonicalize"
	"github.com/cicconel11/contramind-pilot/pkg/contracts"
	"github.com/cicconel11/contramind-pilot/pkg/ledger"
	"github.com/cicconel11/contramind-pilot/pkg/params"
)

func commitDecision(t *testing.T, store *ledger.MemoryStore, proofID string, bundle contracts.Bundle) {
	t.Helper()
	raw, err := canonicalize.JCS(bundle)
	require.NoError(t, err)
	_, err = store.Commit(context.Background(), contracts.LedgerRow{
		ProofID:  proofID,
		KernelID: bundle.KernelID,
		Bundle:   raw,
	}, "", nil)
	require.NoError(t, err)
}

func passBundle(amount float64, country string) contracts.Bundle {
	return contracts.Bundle{
		TS:          "2025-09-01T12:00:00Z", // Monday
		Decision:    contracts.DecisionPass,
		Obligations: []string{},
		KernelID:    "cm.kernel.v1",
		ParamHash:   "recorded-hash",
		Inputs:      contracts.BundleInputs{Amount: amount, Country: country, Recent: 0},
	}
}

func TestRunNoDriftWhenParamsUnchanged(t *testing.T) {
	store := ledger.NewMemoryStore()
	pstore, err := params.NewMemoryStore(nil, nil)
	require.NoError(t, err)

	commitDecision(t, store, "p1", passBundle(100, "US"))
	commitDecision(t, store, "p2", passBundle(200, "DE"))

	report, err := New(store, pstore, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Zero(t, report.Drift)
	assert.Empty(t, report.Rows)
}

func TestRunReportsDriftAfterAllowlistChange(t *testing.T) {
	store := ledger.NewMemoryStore()
	pstore, err := params.NewMemoryStore(nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	commitDecision(t, store, "p1", passBundle(100, "US"))
	commitDecision(t, store, "p2", passBundle(100, "DE"))

	_, err = pstore.SetAllowlist(ctx, "DE", "remove")
	require.NoError(t, err)

	report, err := New(store, pstore, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Equal(t, 1, report.Drift)

	row := report.Rows[0]
	assert.Equal(t, "p2", row.ProofID)
	assert.Equal(t, contracts.DecisionPass, row.Recorded)
	assert.Equal(t, contracts.DecisionHoldHuman, row.Now)
	assert.Len(t, row.DigestHex, 64)
}

func TestRunTransientVerdictIsNotDrift(t *testing.T) {
	// Lowering amount_max turns a recorded PASS into NEED_ONE_BIT today. The
	// recorded decision already went through one-bit resolution, so either
	// resolved outcome is consistent with it.
	store := ledger.NewMemoryStore()
	pstore, err := params.NewMemoryStore(nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	commitDecision(t, store, "p1", passBundle(2000, "US"))
	_, err = pstore.SetThreshold(ctx, params.ThresholdAmountMax, 500)
	require.NoError(t, err)

	report, err := New(store, pstore, nil).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Drift)
}

func TestRunCorruptBundleFails(t *testing.T) {
	store := ledger.NewMemoryStore()
	pstore, err := params.NewMemoryStore(nil, nil)
	require.NoError(t, err)

	_, err = store.Commit(context.Background(), contracts.LedgerRow{
		ProofID: "p1",
		Bundle:  []byte("not-json"),
	}, "", nil)
	require.NoError(t, err)

	_, err = New(store, pstore, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestRunEmptyLedger(t *testing.T) {
	pstore, err := params.NewMemoryStore(nil, nil)
	require.NoError(t, err)
	report, err := New(ledger.NewMemoryStore(), pstore, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
}
