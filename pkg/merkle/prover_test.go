package merkle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antevus/ledger/pkg/audit"
	"github.com/antevus/ledger/pkg/chain"
	"github.com/antevus/ledger/pkg/crypto"
	"github.com/antevus/ledger/pkg/store"
)

var proverMasterKey = []byte("0123456789abcdef0123456789abcdef")

func newProverFixture(t *testing.T, n int) (*Prover, *store.MemoryStore, crypto.Signer) {
	t.Helper()

	eventSigner, err := crypto.NewDerivedSigner(proverMasterKey, crypto.PurposeEventSigning)
	require.NoError(t, err)
	exportSigner, err := crypto.NewDerivedSigner(proverMasterKey, crypto.PurposeExportSigning)
	require.NoError(t, err)

	st := store.NewMemoryStore()
	engine, err := chain.NewEngine(context.Background(), st, eventSigner)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := engine.Append(context.Background(),
			audit.Actor{ID: "user-1", Role: "scientist"},
			audit.EventDataAccess,
			chain.Details{ResourceType: "dataset", ResourceID: "ds-1", Success: true})
		require.NoError(t, err)
	}

	prover := NewProver(st, chain.NewVerifier(st, eventSigner), exportSigner)
	return prover, st, exportSigner
}

func TestProver_ExportCleanRange(t *testing.T) {
	prover, _, exportSigner := newProverFixture(t, 7)

	export, err := prover.ExportWithProof(context.Background(), 0, -1)
	require.NoError(t, err)

	assert.Len(t, export.Events, 7)
	assert.Equal(t, 7, export.Proof.LeafCount)
	assert.Equal(t, int64(0), export.Proof.StartSequence)
	assert.Equal(t, int64(6), export.Proof.EndSequence)
	assert.True(t, export.Proof.ChainValid)
	assert.NotEmpty(t, export.Proof.MerkleRoot)
	assert.False(t, export.Proof.GeneratedAt.IsZero())

	require.NoError(t, VerifyExportProof(export, exportSigner))
}

func TestProver_ExportSubrange(t *testing.T) {
	prover, st, exportSigner := newProverFixture(t, 10)

	export, err := prover.ExportWithProof(context.Background(), 3, 6)
	require.NoError(t, err)

	assert.Len(t, export.Events, 4)
	assert.True(t, export.Proof.ChainValid)
	require.NoError(t, VerifyExportProof(export, exportSigner))

	// The subrange root covers exactly the stored hashes of [3, 6].
	events, err := st.Query(context.Background(), 3, 6)
	require.NoError(t, err)
	want, err := ComputeRoot([]string{events[0].Hash, events[1].Hash, events[2].Hash, events[3].Hash})
	require.NoError(t, err)
	assert.Equal(t, want, export.Proof.MerkleRoot)
}

func TestProver_EmptyLedger(t *testing.T) {
	eventSigner, err := crypto.NewDerivedSigner(proverMasterKey, crypto.PurposeEventSigning)
	require.NoError(t, err)
	exportSigner, err := crypto.NewDerivedSigner(proverMasterKey, crypto.PurposeExportSigning)
	require.NoError(t, err)

	st := store.NewMemoryStore()
	prover := NewProver(st, chain.NewVerifier(st, eventSigner), exportSigner)

	_, err = prover.ExportWithProof(context.Background(), 0, -1)
	assert.ErrorIs(t, err, ErrEmptyRange)
}

func TestProver_TamperedRangeStillExports(t *testing.T) {
	prover, st, exportSigner := newProverFixture(t, 5)

	events := st.Snapshot()
	events[2].EventType = audit.EventDataDelete
	tampered := store.NewMemoryStoreFrom(events)

	eventSigner, err := crypto.NewDerivedSigner(proverMasterKey, crypto.PurposeEventSigning)
	require.NoError(t, err)
	prover = NewProver(tampered, chain.NewVerifier(tampered, eventSigner), exportSigner)

	export, err := prover.ExportWithProof(context.Background(), 0, -1)
	require.NoError(t, err)

	assert.False(t, export.Proof.ChainValid)
	assert.Equal(t, []string{events[2].ID}, export.Verification.TamperedEventIDs)

	// The proof still verifies: it attests to what storage holds now.
	require.NoError(t, VerifyExportProof(export, exportSigner))
}

func TestVerifyExportProof_DetectsEventSubstitution(t *testing.T) {
	prover, _, exportSigner := newProverFixture(t, 4)

	export, err := prover.ExportWithProof(context.Background(), 0, -1)
	require.NoError(t, err)

	export.Events[1].Hash = export.Events[2].Hash
	assert.Error(t, VerifyExportProof(export, exportSigner))
}

func TestVerifyExportProof_DetectsWrongSigner(t *testing.T) {
	prover, _, _ := newProverFixture(t, 4)

	export, err := prover.ExportWithProof(context.Background(), 0, -1)
	require.NoError(t, err)

	otherSigner, err := crypto.NewHMACSigner([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	assert.Error(t, VerifyExportProof(export, otherSigner))
}

func TestVerifyExportProof_DetectsRangeReplay(t *testing.T) {
	prover, _, exportSigner := newProverFixture(t, 8)

	export, err := prover.ExportWithProof(context.Background(), 0, 3)
	require.NoError(t, err)

	// Shifting the claimed range breaks the signature even when events and
	// root are untouched.
	export.Proof.StartSequence = 4
	export.Proof.EndSequence = 7
	assert.Error(t, VerifyExportProof(export, exportSigner))
}

func TestProver_ProofTimestampUsesClock(t *testing.T) {
	prover, _, _ := newProverFixture(t, 2)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prover.clock = func() time.Time { return fixed }

	export, err := prover.ExportWithProof(context.Background(), 0, -1)
	require.NoError(t, err)
	assert.Equal(t, fixed, export.Proof.GeneratedAt)
}
