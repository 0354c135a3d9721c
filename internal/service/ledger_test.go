package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/models"
)

func TestLedgerRecord(t *testing.T) {
	store := newTestStore(t)
	seedAssociation(t, store, "assoc-1", "alice", "bob")
	ledgers := NewLedgerService(store, NewAssociationLocks())
	ctx := context.Background()

	c := &models.Contribution{
		ID:            "contrib-1",
		AssociationID: "assoc-1",
		PayoutID:      "payout-1",
		MemberID:      "bob",
		Cycle:         1,
		Amount:        decimal.NewFromInt(10000),
		Status:        models.ContributionReceived,
	}
	require.NoError(t, ledgers.Record(ctx, models.NewContributionTx(c, "admin")))

	ledger, err := ledgers.GetLedger(ctx, "assoc-1")
	require.NoError(t, err)
	assert.True(t, ledger.TotalContributed.Equal(decimal.NewFromInt(10000)))

	txs, err := ledgers.ListTransactions(ctx, "assoc-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TxContribution, txs[0].Type)
	assert.NotEmpty(t, txs[0].ID)

	t.Run("unknown association", func(t *testing.T) {
		c := *c
		c.AssociationID = "nope"
		err := ledgers.Record(ctx, models.NewContributionTx(&c, "admin"))
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("invalid transaction", func(t *testing.T) {
		tx := models.NewContributionTx(c, "admin")
		tx.Amount = decimal.NewFromInt(-5)
		err := ledgers.Record(ctx, tx)
		assert.ErrorIs(t, err, errs.ErrValidation)
	})
}

func TestReconcileAll(t *testing.T) {
	store := newTestStore(t)
	seedAssociation(t, store, "assoc-1", "alice", "bob")
	seedAssociation(t, store, "assoc-2", "dora", "eve")
	ledgers := NewLedgerService(store, NewAssociationLocks())
	ctx := context.Background()

	c := &models.Contribution{
		ID:            "contrib-1",
		AssociationID: "assoc-1",
		PayoutID:      "payout-1",
		MemberID:      "bob",
		Cycle:         1,
		Amount:        decimal.NewFromInt(10000),
		Status:        models.ContributionReceived,
	}
	require.NoError(t, ledgers.Record(ctx, models.NewContributionTx(c, "admin")))

	// A redistribution with no refusals behind it makes assoc-2 unreconcilable.
	ghost := models.NewRedistributionTx("assoc-2", "dora", decimal.NewFromInt(5000), "admin")
	require.NoError(t, store.AppendTransaction(ctx, ghost))

	reports, err := ledgers.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	byID := map[string]ReconcileReport{}
	for _, r := range reports {
		byID[r.AssociationID] = r
	}
	assert.NoError(t, byID["assoc-1"].Err)
	assert.False(t, byID["assoc-1"].Drift)
	assert.ErrorIs(t, byID["assoc-2"].Err, errs.ErrConsistency)
}

func TestConcurrentRecordAndReconcile(t *testing.T) {
	store := newTestStore(t)
	seedAssociation(t, store, "assoc-1", "alice", "bob")
	locks := NewAssociationLocks()
	rotation := NewRotationService(store, locks)
	contributions := NewContributionService(store, locks)
	ledgers := NewLedgerService(store, locks)
	ctx := context.Background()

	payout, err := rotation.AssignManual(ctx, "assoc-1", "alice", models.AssignManual, "", "admin")
	require.NoError(t, err)

	// Writers record contributions while reconcilers rebuild the aggregates
	// of the same association; the lock table must keep them from
	// interleaving.
	const writers = 8
	const perWriter = 5
	var wg sync.WaitGroup
	errCh := make(chan error, writers*2)
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				c := &models.Contribution{
					AssociationID: "assoc-1",
					PayoutID:      payout.ID,
					MemberID:      "bob",
					Amount:        decimal.NewFromInt(1000),
				}
				if err := contributions.Record(ctx, c, "admin"); err != nil {
					errCh <- err
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := ledgers.Reconcile(ctx, "assoc-1"); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	want := decimal.NewFromInt(writers * perWriter * 1000)
	ledger, err := ledgers.GetLedger(ctx, "assoc-1")
	require.NoError(t, err)
	assert.True(t, ledger.TotalContributed.Equal(want),
		"TotalContributed = %v, want %v", ledger.TotalContributed, want)

	got, err := store.GetPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountReceived.Equal(want),
		"AmountReceived = %v, want %v", got.AmountReceived, want)

	result, err := ledgers.Reconcile(ctx, "assoc-1")
	require.NoError(t, err)
	assert.False(t, result.Drift, "before %+v after %+v", result.Before, result.After)
}

func TestReconcileUnknownAssociation(t *testing.T) {
	store := newTestStore(t)
	ledgers := NewLedgerService(store, NewAssociationLocks())

	_, err := ledgers.Reconcile(context.Background(), "nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
