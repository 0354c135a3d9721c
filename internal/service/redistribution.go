package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/metrics"
	"github.com/mkadio/tontine/internal/models"
	"github.com/mkadio/tontine/internal/storage"
)

// Allocation is one member's share of a redistribution.
type Allocation struct {
	MemberID string
	Amount   decimal.Decimal
}

// RedistributionService performs the one-shot reallocation of the refusal
// pool accumulated from refused payouts.
type RedistributionService struct {
	store storage.Store
	locks *AssociationLocks
	now   func() time.Time
}

// NewRedistributionService creates a RedistributionService with the given
// storage backend and lock table.
func NewRedistributionService(store storage.Store, locks *AssociationLocks) *RedistributionService {
	return &RedistributionService{store: store, locks: locks, now: time.Now}
}

// Redistribute allocates the refusal balance across members. One-shot per
// association and atomic: either every allocation is recorded or none are.
func (s *RedistributionService) Redistribute(ctx context.Context, associationID string, allocations []Allocation, actorID string) error {
	if len(allocations) == 0 {
		return errs.Validationf("at least one allocation is required")
	}
	for _, a := range allocations {
		if a.MemberID == "" {
			return errs.Validationf("allocation missing member")
		}
		if !a.Amount.IsPositive() {
			return errs.Validationf("allocation amount for member %s must be positive, got %s", a.MemberID, a.Amount)
		}
	}

	defer s.locks.Lock(associationID)()

	if _, err := s.store.GetAssociation(ctx, associationID); err != nil {
		return err
	}
	ledger, err := s.store.GetLedger(ctx, associationID)
	if err != nil {
		return err
	}
	if ledger.Redistributed {
		return errs.Conflictf("association %s already redistributed on %s",
			associationID, ledger.RedistributedAt.Format("2006-01-02"))
	}
	if !ledger.RefusalBalance.IsPositive() {
		return errs.InsufficientFundsf("association %s has no refusal balance to redistribute", associationID)
	}

	total := decimal.Zero
	txs := make([]*models.Transaction, 0, len(allocations))
	for _, a := range allocations {
		total = total.Add(a.Amount)
		txs = append(txs, models.NewRedistributionTx(associationID, a.MemberID, a.Amount, actorID))
	}
	if total.GreaterThan(ledger.RefusalBalance) {
		return errs.InsufficientFundsf("allocations total %s exceeds refusal balance %s",
			total, ledger.RefusalBalance)
	}

	if err := s.store.Redistribute(ctx, associationID, txs, s.now()); err != nil {
		return err
	}

	metrics.Redistributions.Inc()
	for range txs {
		metrics.TransactionsAppended.WithLabelValues(string(models.TxRedistribution)).Inc()
	}
	slog.Info("refusal pool redistributed",
		"association_id", associationID,
		"allocations", len(allocations),
		"total", total,
	)
	return nil
}
