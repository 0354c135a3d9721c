package service

import (
	"context"
	"log/slog"

	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/metrics"
	"github.com/mkadio/tontine/internal/models"
	"github.com/mkadio/tontine/internal/storage"
)

// LedgerService owns the append-only transaction log and the derived
// aggregates. Record is the incremental path; Reconcile is the canonical
// correction mechanism, rebuilding every aggregate from source records.
type LedgerService struct {
	store storage.Store
	locks *AssociationLocks
}

// NewLedgerService creates a LedgerService with the given storage backend
// and lock table.
func NewLedgerService(store storage.Store, locks *AssociationLocks) *LedgerService {
	return &LedgerService{store: store, locks: locks}
}

// Record appends one transaction and updates the cached aggregates. Meant
// for manual adjustments by external callers; the rotation and contribution
// services emit their transactions through their own atomic operations.
func (s *LedgerService) Record(ctx context.Context, t *models.Transaction) error {
	if err := t.Validate(); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid ledger transaction", err)
	}

	defer s.locks.Lock(t.AssociationID)()

	if _, err := s.store.GetAssociation(ctx, t.AssociationID); err != nil {
		return err
	}
	if err := s.store.AppendTransaction(ctx, t); err != nil {
		return err
	}
	metrics.TransactionsAppended.WithLabelValues(string(t.Type)).Inc()
	return nil
}

// GetLedger returns the association's current ledger aggregates.
func (s *LedgerService) GetLedger(ctx context.Context, associationID string) (*models.Ledger, error) {
	if _, err := s.store.GetAssociation(ctx, associationID); err != nil {
		return nil, err
	}
	return s.store.GetLedger(ctx, associationID)
}

// ListTransactions returns the association's ledger entries in append order.
func (s *LedgerService) ListTransactions(ctx context.Context, associationID string) ([]*models.Transaction, error) {
	if _, err := s.store.GetAssociation(ctx, associationID); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, associationID)
}

// Reconcile rebuilds the association's aggregates strictly from source
// records. Idempotent; safe to call at any time.
func (s *LedgerService) Reconcile(ctx context.Context, associationID string) (*storage.ReconcileResult, error) {
	defer s.locks.Lock(associationID)()

	if _, err := s.store.GetAssociation(ctx, associationID); err != nil {
		return nil, err
	}

	result, err := s.store.Reconcile(ctx, associationID)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	if result.Drift {
		metrics.ReconcileRuns.WithLabelValues("drift").Inc()
		slog.Warn("ledger drift corrected",
			"association_id", associationID,
			"total_contributed", result.After.TotalContributed,
			"total_distributed", result.After.TotalDistributed,
			"total_refused", result.After.TotalRefused,
			"refusal_balance", result.After.RefusalBalance,
		)
	} else {
		metrics.ReconcileRuns.WithLabelValues("clean").Inc()
	}
	return result, nil
}

// ReconcileReport is the outcome of one association in a batch run.
type ReconcileReport struct {
	AssociationID string
	Drift         bool
	Err           error
}

// ReconcileAll reconciles every association, each in its own transaction. A
// failing association is logged and skipped so the rest of the batch
// completes.
func (s *LedgerService) ReconcileAll(ctx context.Context) ([]ReconcileReport, error) {
	ids, err := s.store.ListAssociationIDs(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]ReconcileReport, 0, len(ids))
	for _, id := range ids {
		result, err := s.Reconcile(ctx, id)
		if err != nil {
			slog.Error("reconciliation failed, skipping association",
				"association_id", id, "error", err)
			reports = append(reports, ReconcileReport{AssociationID: id, Err: err})
			continue
		}
		reports = append(reports, ReconcileReport{AssociationID: id, Drift: result.Drift})
	}
	return reports, nil
}
