package service

import (
	"context"
	"log/slog"

	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/metrics"
	"github.com/mkadio/tontine/internal/models"
	"github.com/mkadio/tontine/internal/storage"
)

// ContributionService records and edits contributions. Every write
// recomputes the tied payout's AmountReceived from the sum over received
// contributions; edits and deletes additionally re-reconcile the ledger
// because they bypass the append-only record path.
type ContributionService struct {
	store storage.Store
	locks *AssociationLocks
}

// NewContributionService creates a ContributionService with the given
// storage backend and lock table.
func NewContributionService(store storage.Store, locks *AssociationLocks) *ContributionService {
	return &ContributionService{store: store, locks: locks}
}

func (s *ContributionService) validate(c *models.Contribution) error {
	if c.AssociationID == "" || c.PayoutID == "" || c.MemberID == "" {
		return errs.Validationf("contribution requires association, payout and member references")
	}
	if !c.Amount.IsPositive() {
		return errs.Validationf("contribution amount must be positive, got %s", c.Amount)
	}
	if c.Status == "" {
		c.Status = models.ContributionReceived
	}
	if c.Status != models.ContributionReceived && c.Status != models.ContributionPending {
		return errs.Validationf("unknown contribution status %q", c.Status)
	}
	return nil
}

// Record creates a contribution. A received contribution emits a
// contribution ledger transaction in the same storage transaction.
func (s *ContributionService) Record(ctx context.Context, c *models.Contribution, actorID string) error {
	if err := s.validate(c); err != nil {
		return err
	}

	defer s.locks.Lock(c.AssociationID)()

	if _, err := s.store.GetAssociation(ctx, c.AssociationID); err != nil {
		return err
	}
	payout, err := s.store.GetPayout(ctx, c.PayoutID)
	if err != nil {
		return err
	}
	if payout.AssociationID != c.AssociationID {
		return errs.Validationf("payout %s belongs to association %s, not %s",
			c.PayoutID, payout.AssociationID, c.AssociationID)
	}
	if c.Cycle == 0 {
		c.Cycle = payout.Cycle
	}

	var ledgerTx *models.Transaction
	if c.Status == models.ContributionReceived {
		ledgerTx = models.NewContributionTx(c, actorID)
	}
	if err := s.store.CreateContribution(ctx, c, ledgerTx); err != nil {
		return err
	}

	if ledgerTx != nil {
		metrics.TransactionsAppended.WithLabelValues(string(models.TxContribution)).Inc()
	}
	slog.Info("contribution recorded",
		"association_id", c.AssociationID,
		"payout_id", c.PayoutID,
		"member_id", c.MemberID,
		"amount", c.Amount,
		"status", c.Status,
	)
	return nil
}

// Update rewrites a contribution. The payout amount recompute and the
// ledger re-reconciliation happen in the same storage transaction.
func (s *ContributionService) Update(ctx context.Context, c *models.Contribution) error {
	if c.ID == "" {
		return errs.Validationf("contribution id is required")
	}
	if err := s.validate(c); err != nil {
		return err
	}

	old, err := s.store.GetContribution(ctx, c.ID)
	if err != nil {
		return err
	}
	if c.AssociationID != old.AssociationID {
		return errs.Validationf("contribution %s cannot move to another association", c.ID)
	}

	defer s.locks.Lock(old.AssociationID)()

	return s.store.UpdateContribution(ctx, c)
}

// Delete removes a contribution with the same recompute and re-reconcile
// behavior as Update.
func (s *ContributionService) Delete(ctx context.Context, contributionID string) error {
	old, err := s.store.GetContribution(ctx, contributionID)
	if err != nil {
		return err
	}

	defer s.locks.Lock(old.AssociationID)()

	return s.store.DeleteContribution(ctx, contributionID)
}

// ListByPayout returns all contributions tied to a payout.
func (s *ContributionService) ListByPayout(ctx context.Context, payoutID string) ([]*models.Contribution, error) {
	if _, err := s.store.GetPayout(ctx, payoutID); err != nil {
		return nil, err
	}
	return s.store.ListContributionsByPayout(ctx, payoutID)
}
