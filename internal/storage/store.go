// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"time"

	"github.com/mkadio/tontine/internal/models"
)

// ReconcileResult reports one reconciliation run: the cached aggregates
// before, the recomputed aggregates after, and whether they differed.
type ReconcileResult struct {
	Before *models.Ledger
	After  *models.Ledger
	Drift  bool
}

// Store defines the persistence operations the engine needs. Each method is
// atomic: multi-record writes happen inside a single database transaction,
// so a failure never leaves partial state. This abstraction allows swapping
// storage backends without changing the service layer.
type Store interface {
	// GetAssociation retrieves an association with its member roster.
	// Association records are reference data owned by external CRUD layers.
	GetAssociation(ctx context.Context, associationID string) (*models.Association, error)

	// ListAssociationIDs returns the IDs of all known associations, for
	// batch reconciliation.
	ListAssociationIDs(ctx context.Context) ([]string, error)

	// NextSequence allocates the next sequence number from the
	// per-(association, cycle) monotonic counter. Allocated numbers are
	// never reused, so a failed assignment leaves a gap rather than a
	// renumbering.
	NextSequence(ctx context.Context, associationID string, cycle int) (int, error)

	// CreatePayout persists a new payout with its preallocated sequence
	// number, assigning its ID.
	CreatePayout(ctx context.Context, payout *models.Payout) error

	// GetPayout retrieves a payout by ID.
	GetPayout(ctx context.Context, payoutID string) (*models.Payout, error)

	// ListPayouts returns all payouts of an association ordered by cycle
	// then sequence.
	ListPayouts(ctx context.Context, associationID string) ([]*models.Payout, error)

	// MemberHasPayout reports whether the member already has a payout in
	// the association, over its whole lifetime.
	MemberHasPayout(ctx context.Context, associationID, memberID string) (bool, error)

	// ApplyPayoutTransition persists a payout's new state and appends the
	// accompanying ledger transactions, updating the cached aggregates, all
	// in one database transaction.
	ApplyPayoutTransition(ctx context.Context, payout *models.Payout, txs []*models.Transaction) error

	// DeletePayout removes a payout. Only the service layer's state checks
	// make this legal; the store additionally refuses when received
	// contributions reference the payout.
	DeletePayout(ctx context.Context, payoutID string) error

	// CreateContribution persists a contribution, recomputes the tied
	// payout's AmountReceived from the sum over received contributions, and
	// — when ledgerTx is non-nil — appends it to the ledger, atomically.
	CreateContribution(ctx context.Context, c *models.Contribution, ledgerTx *models.Transaction) error

	// GetContribution retrieves a contribution by ID.
	GetContribution(ctx context.Context, contributionID string) (*models.Contribution, error)

	// UpdateContribution rewrites a contribution, recomputes the payout's
	// AmountReceived and re-reconciles the association's ledger in the same
	// transaction. Edits bypass the append-only record path, so the ledger
	// projection is rebuilt rather than patched.
	UpdateContribution(ctx context.Context, c *models.Contribution) error

	// DeleteContribution removes a contribution with the same recompute and
	// re-reconcile behavior as UpdateContribution.
	DeleteContribution(ctx context.Context, contributionID string) error

	// ListContributionsByPayout returns all contributions tied to a payout.
	ListContributionsByPayout(ctx context.Context, payoutID string) ([]*models.Contribution, error)

	// GetLedger retrieves the association's ledger aggregates, creating an
	// empty ledger row on first access.
	GetLedger(ctx context.Context, associationID string) (*models.Ledger, error)

	// ListTransactions returns the association's ledger entries in append
	// order.
	ListTransactions(ctx context.Context, associationID string) ([]*models.Transaction, error)

	// AppendTransaction appends one ledger entry and folds it into the
	// cached aggregates, atomically. The incremental path of record;
	// Reconcile remains the canonical correction mechanism.
	AppendTransaction(ctx context.Context, t *models.Transaction) error

	// Reconcile recomputes the ledger aggregates strictly from source
	// records inside one transaction. Idempotent: the result is independent
	// of whatever was cached.
	Reconcile(ctx context.Context, associationID string) (*ReconcileResult, error)

	// Redistribute appends the allocation transactions, debits the refusal
	// pool and sets the one-shot flag, atomically. Fails when the flag is
	// already set or the pool is insufficient.
	Redistribute(ctx context.Context, associationID string, txs []*models.Transaction, performedAt time.Time) error

	// GetObligation retrieves a member's recurring-obligation targets.
	GetObligation(ctx context.Context, memberID string, kind models.ObligationKind) (*models.RecurringObligation, error)

	// PutObligation creates or replaces a member's obligation targets.
	PutObligation(ctx context.Context, o *models.RecurringObligation) error

	// CreateObligationPayment persists a payment. At most one payment may
	// exist per (member, kind, year, period); duplicates fail with a
	// conflict error.
	CreateObligationPayment(ctx context.Context, p *models.ObligationPayment) error

	// ListObligationPayments returns a member's payments for a kind and
	// year, ordered by period.
	ListObligationPayments(ctx context.Context, memberID string, kind models.ObligationKind, year int) ([]*models.ObligationPayment, error)

	// Close releases any resources held by the store.
	Close() error
}
