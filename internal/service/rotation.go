// Package service implements the engine's operations on top of
// storage.Store: payout rotation, ledger recording and reconciliation,
// refusal-pool redistribution, contribution recording and recurring
// obligations.
package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/mkadio/tontine/internal/calculator"
	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/metrics"
	"github.com/mkadio/tontine/internal/models"
	"github.com/mkadio/tontine/internal/storage"
)

// RotationService runs the payout ("tour") lifecycle: beneficiary
// assignment, the assigned/paid/refused state machine, and deletion.
type RotationService struct {
	store storage.Store
	locks *AssociationLocks

	// now and intN are injectable for deterministic tests.
	now  func() time.Time
	intN func(n int) int
}

// NewRotationService creates a RotationService with the given storage
// backend and lock table.
func NewRotationService(store storage.Store, locks *AssociationLocks) *RotationService {
	return &RotationService{
		store: store,
		locks: locks,
		now:   time.Now,
		intN:  rand.IntN,
	}
}

// eligibleMembers returns the active roster members who do not yet have a
// payout in the association, in roster order.
func (s *RotationService) eligibleMembers(a *models.Association, payouts []*models.Payout) []string {
	taken := make(map[string]bool, len(payouts))
	for _, p := range payouts {
		taken[p.BeneficiaryID] = true
	}
	var eligible []string
	for _, id := range a.ActiveMemberIDs() {
		if !taken[id] {
			eligible = append(eligible, id)
		}
	}
	return eligible
}

func (s *RotationService) assign(ctx context.Context, a *models.Association, beneficiaryID string, mode models.AssignmentMode, notes, actorID string) (*models.Payout, error) {
	seq, err := s.store.NextSequence(ctx, a.ID, a.CurrentCycle)
	if err != nil {
		return nil, err
	}
	expected, err := calculator.ExpectedReceiptDate(a.StartDate, a.Frequency, a.MeetingWeekday, seq, s.now())
	if err != nil {
		return nil, err
	}

	payout := &models.Payout{
		AssociationID: a.ID,
		Cycle:         a.CurrentCycle,
		Sequence:      seq,
		BeneficiaryID: beneficiaryID,
		Mode:          mode,
		AssignedAt:    s.now(),
		ExpectedDate:  expected,
		Status:        models.PayoutAssigned,
		Notes:         notes,
	}
	if err := s.store.CreatePayout(ctx, payout); err != nil {
		return nil, err
	}

	metrics.PayoutAssignments.WithLabelValues(string(mode)).Inc()
	slog.Info("payout assigned",
		"association_id", a.ID,
		"beneficiary_id", beneficiaryID,
		"cycle", payout.Cycle,
		"sequence", payout.Sequence,
		"mode", mode,
		"expected_date", expected.Format("2006-01-02"),
		"actor_id", actorID,
	)
	return payout, nil
}

// AssignRandom draws a beneficiary uniformly at random among the active
// members who do not yet have a payout in the association.
func (s *RotationService) AssignRandom(ctx context.Context, associationID, actorID string) (*models.Payout, error) {
	defer s.locks.Lock(associationID)()

	a, err := s.store.GetAssociation(ctx, associationID)
	if err != nil {
		return nil, err
	}
	payouts, err := s.store.ListPayouts(ctx, associationID)
	if err != nil {
		return nil, err
	}

	eligible := s.eligibleMembers(a, payouts)
	if len(eligible) == 0 {
		return nil, errs.Conflictf("association %s has no eligible member left for a draw", associationID)
	}

	beneficiary := eligible[s.intN(len(eligible))]
	return s.assign(ctx, a, beneficiary, models.AssignRandomDraw, "", actorID)
}

// AssignManual assigns an explicit beneficiary with the given mode.
func (s *RotationService) AssignManual(ctx context.Context, associationID, memberID string, mode models.AssignmentMode, notes, actorID string) (*models.Payout, error) {
	if !mode.Valid() {
		return nil, errs.Validationf("unknown assignment mode %q", mode)
	}

	defer s.locks.Lock(associationID)()

	a, err := s.store.GetAssociation(ctx, associationID)
	if err != nil {
		return nil, err
	}

	active := false
	for _, m := range a.Members {
		if m.MemberID == memberID && m.Active {
			active = true
			break
		}
	}
	if !active {
		return nil, errs.Validationf("member %s is not an active member of association %s", memberID, associationID)
	}

	has, err := s.store.MemberHasPayout(ctx, associationID, memberID)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, errs.Conflictf("member %s already has a payout in association %s", memberID, associationID)
	}

	return s.assign(ctx, a, memberID, mode, notes, actorID)
}

// transition loads the payout under the association lock and applies the
// state change plus its ledger transactions atomically.
func (s *RotationService) transition(ctx context.Context, payoutID string, apply func(p *models.Payout) ([]*models.Transaction, error)) (*models.Payout, error) {
	// First read resolves the association so the lock can be taken; the
	// payout is re-read under the lock.
	peek, err := s.store.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	defer s.locks.Lock(peek.AssociationID)()

	p, err := s.store.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	txs, err := apply(p)
	if err != nil {
		return nil, err
	}
	if err := s.store.ApplyPayoutTransition(ctx, p, txs); err != nil {
		return nil, err
	}
	for _, t := range txs {
		metrics.TransactionsAppended.WithLabelValues(string(t.Type)).Inc()
	}
	return p, nil
}

// MarkPaid marks an assigned payout as paid on the given date and records
// the payout_payment ledger transaction for its received amount.
func (s *RotationService) MarkPaid(ctx context.Context, payoutID string, date time.Time, actorID string) (*models.Payout, error) {
	if date.IsZero() {
		date = s.now()
	}
	return s.transition(ctx, payoutID, func(p *models.Payout) ([]*models.Transaction, error) {
		if p.Status != models.PayoutAssigned {
			return nil, errs.Validationf("payout %s is %s; only assigned payouts can be marked paid", p.ID, p.Status)
		}
		p.Status = models.PayoutPaid
		p.PaidAt = date
		return []*models.Transaction{models.NewPayoutPaymentTx(p, actorID)}, nil
	})
}

// MarkRefused marks an assigned payout as refused, recording the refusal
// reason and moving its received amount into the refusal pool.
func (s *RotationService) MarkRefused(ctx context.Context, payoutID, reason, actorID string) (*models.Payout, error) {
	return s.transition(ctx, payoutID, func(p *models.Payout) ([]*models.Transaction, error) {
		if p.Status != models.PayoutAssigned {
			return nil, errs.Validationf("payout %s is %s; only assigned payouts can be refused", p.ID, p.Status)
		}
		p.Status = models.PayoutRefused
		if reason != "" {
			p.Notes = reason
		}
		return []*models.Transaction{models.NewPayoutRefusalTx(p, actorID)}, nil
	})
}

// ReverseRefusal undoes a refusal: the member changed their mind. The payout
// returns to assigned or goes straight to paid; an adjustment transaction
// reverses the refusal and, for paid, a payout_payment transaction follows.
func (s *RotationService) ReverseRefusal(ctx context.Context, payoutID string, newStatus models.PayoutStatus, actorID string) (*models.Payout, error) {
	if newStatus != models.PayoutAssigned && newStatus != models.PayoutPaid {
		return nil, errs.Validationf("refusal can only be reversed to assigned or paid, not %q", newStatus)
	}
	return s.transition(ctx, payoutID, func(p *models.Payout) ([]*models.Transaction, error) {
		if p.Status != models.PayoutRefused {
			return nil, errs.Validationf("payout %s is %s; only refused payouts can be reversed", p.ID, p.Status)
		}
		txs := []*models.Transaction{models.NewRefusalReversalTx(p, actorID)}
		p.Status = newStatus
		if newStatus == models.PayoutPaid {
			p.PaidAt = s.now()
			txs = append(txs, models.NewPayoutPaymentTx(p, actorID))
		} else {
			p.PaidAt = time.Time{}
		}
		return txs, nil
	})
}

// Delete removes an assigned payout. Paid and refused payouts must go
// through ReverseRefusal or reconciliation first.
func (s *RotationService) Delete(ctx context.Context, payoutID string) error {
	peek, err := s.store.GetPayout(ctx, payoutID)
	if err != nil {
		return err
	}
	defer s.locks.Lock(peek.AssociationID)()

	p, err := s.store.GetPayout(ctx, payoutID)
	if err != nil {
		return err
	}
	if p.Status != models.PayoutAssigned {
		return errs.Validationf("payout %s is %s; only assigned payouts can be deleted", p.ID, p.Status)
	}
	return s.store.DeletePayout(ctx, payoutID)
}
