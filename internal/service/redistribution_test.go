package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/models"
	"github.com/mkadio/tontine/internal/storage/sqlite"
)

// refuseFundedPayout assigns a payout to beneficiary, funds it with the given
// amount and marks it refused, leaving that amount in the refusal pool.
func refuseFundedPayout(t *testing.T, store *sqlite.SQLiteStore, rotation *RotationService, associationID, beneficiary, contributor string, amount int64) *models.Payout {
	t.Helper()
	ctx := context.Background()
	payout, err := rotation.AssignManual(ctx, associationID, beneficiary, models.AssignManual, "", "admin")
	require.NoError(t, err)
	fundPayout(t, store, payout, contributor, amount)
	refused, err := rotation.MarkRefused(ctx, payout.ID, "declined", "admin")
	require.NoError(t, err)
	return refused
}

func TestRedistribute(t *testing.T) {
	store := newTestStore(t)
	seedAssociation(t, store, "assoc-1", "alice", "bob", "carol")
	rotation := newRotation(store)
	redistribution := NewRedistributionService(store, NewAssociationLocks())
	ctx := context.Background()

	refuseFundedPayout(t, store, rotation, "assoc-1", "alice", "bob", 30000)

	t.Run("overdraw leaves the ledger unchanged", func(t *testing.T) {
		err := redistribution.Redistribute(ctx, "assoc-1", []Allocation{
			{MemberID: "bob", Amount: decimal.NewFromInt(40000)},
		}, "admin")
		assert.ErrorIs(t, err, errs.ErrInsufficientFunds)

		ledger, err := store.GetLedger(ctx, "assoc-1")
		require.NoError(t, err)
		assert.True(t, ledger.RefusalBalance.Equal(decimal.NewFromInt(30000)),
			"RefusalBalance = %v", ledger.RefusalBalance)
		assert.False(t, ledger.Redistributed)
	})

	t.Run("splits the pool across members", func(t *testing.T) {
		err := redistribution.Redistribute(ctx, "assoc-1", []Allocation{
			{MemberID: "bob", Amount: decimal.NewFromInt(20000)},
			{MemberID: "carol", Amount: decimal.NewFromInt(10000)},
		}, "admin")
		require.NoError(t, err)

		ledger, err := store.GetLedger(ctx, "assoc-1")
		require.NoError(t, err)
		assert.True(t, ledger.Redistributed)
		assert.True(t, ledger.RefusalBalance.IsZero(), "RefusalBalance = %v", ledger.RefusalBalance)
		assert.False(t, ledger.RedistributedAt.IsZero())
	})

	t.Run("runs at most once per association", func(t *testing.T) {
		err := redistribution.Redistribute(ctx, "assoc-1", []Allocation{
			{MemberID: "bob", Amount: decimal.NewFromInt(1)},
		}, "admin")
		assert.ErrorIs(t, err, errs.ErrConflict)
	})
}

func TestRedistributeValidation(t *testing.T) {
	store := newTestStore(t)
	seedAssociation(t, store, "assoc-1", "alice", "bob")
	redistribution := NewRedistributionService(store, NewAssociationLocks())
	ctx := context.Background()

	t.Run("empty allocation list", func(t *testing.T) {
		err := redistribution.Redistribute(ctx, "assoc-1", nil, "admin")
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("non-positive allocation", func(t *testing.T) {
		err := redistribution.Redistribute(ctx, "assoc-1", []Allocation{
			{MemberID: "bob", Amount: decimal.Zero},
		}, "admin")
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("unknown association", func(t *testing.T) {
		err := redistribution.Redistribute(ctx, "nope", []Allocation{
			{MemberID: "bob", Amount: decimal.NewFromInt(1)},
		}, "admin")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("empty pool", func(t *testing.T) {
		err := redistribution.Redistribute(ctx, "assoc-1", []Allocation{
			{MemberID: "bob", Amount: decimal.NewFromInt(1)},
		}, "admin")
		assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	})
}
