package service

import (
	"context"

	"github.com/mkadio/tontine/internal/calculator"
	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/models"
	"github.com/mkadio/tontine/internal/storage"
)

// ObligationService tracks recurring obligations (solidarity dues,
// membership-card subscriptions) and computes arrears against their targets.
// The same algorithm serves every obligation kind.
type ObligationService struct {
	store storage.Store
}

// NewObligationService creates an ObligationService with the given storage
// backend.
func NewObligationService(store storage.Store) *ObligationService {
	return &ObligationService{store: store}
}

// SetTargets creates or replaces a member's obligation targets.
func (s *ObligationService) SetTargets(ctx context.Context, o *models.RecurringObligation) error {
	if o.MemberID == "" {
		return errs.Validationf("obligation requires a member reference")
	}
	if !o.Kind.Valid() {
		return errs.Validationf("unknown obligation kind %q", o.Kind)
	}
	if !o.MonthlyTarget.IsPositive() {
		return errs.Validationf("monthly target must be positive, got %s", o.MonthlyTarget)
	}
	return s.store.PutObligation(ctx, o)
}

// RecordPayment registers one obligation payment. A period can only be paid
// once per (member, kind, year).
func (s *ObligationService) RecordPayment(ctx context.Context, p *models.ObligationPayment) error {
	if p.MemberID == "" {
		return errs.Validationf("payment requires a member reference")
	}
	if !p.Kind.Valid() {
		return errs.Validationf("unknown obligation kind %q", p.Kind)
	}
	if !p.Amount.IsPositive() {
		return errs.Validationf("payment amount must be positive, got %s", p.Amount)
	}
	switch p.Frequency {
	case models.PayMonthly:
		if p.Period < 1 || p.Period > 12 {
			return errs.Validationf("monthly payment period must be in 1..12, got %d", p.Period)
		}
	case models.PayQuarterly:
		if p.Period < 1 || p.Period > 4 {
			return errs.Validationf("quarterly payment period must be in 1..4, got %d", p.Period)
		}
	case models.PayAnnual:
		if p.Period != 0 {
			return errs.Validationf("annual payment takes no period, got %d", p.Period)
		}
	default:
		return errs.Validationf("unknown payment frequency %q", p.Frequency)
	}

	// The obligation must exist so arrears have targets to compute against.
	if _, err := s.store.GetObligation(ctx, p.MemberID, p.Kind); err != nil {
		return err
	}
	return s.store.CreateObligationPayment(ctx, p)
}

// ComputeArrears runs the shared debt algorithm for a member's obligation in
// the given year, as of currentMonth.
func (s *ObligationService) ComputeArrears(ctx context.Context, memberID string, kind models.ObligationKind, year, currentMonth int) (*calculator.ArrearsResult, error) {
	obligation, err := s.store.GetObligation(ctx, memberID, kind)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListObligationPayments(ctx, memberID, kind, year)
	if err != nil {
		return nil, err
	}

	return calculator.ComputeArrears(calculator.ArrearsInput{
		MonthlyTarget: obligation.MonthlyTarget,
		AnnualTarget:  obligation.EffectiveAnnualTarget(),
		Payments:      payments,
		CurrentMonth:  currentMonth,
	})
}
