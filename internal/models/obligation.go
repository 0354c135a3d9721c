package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ObligationKind identifies a recurring-due scheme.
type ObligationKind string

const (
	ObligationSolidarity     ObligationKind = "solidarity"
	ObligationMembershipCard ObligationKind = "membership_card"
)

// Valid reports whether k is a known obligation kind.
func (k ObligationKind) Valid() bool {
	return k == ObligationSolidarity || k == ObligationMembershipCard
}

// PaymentFrequency is the cadence a single obligation payment was made at.
type PaymentFrequency string

const (
	PayMonthly   PaymentFrequency = "monthly"
	PayQuarterly PaymentFrequency = "quarterly"
	PayAnnual    PaymentFrequency = "annual"
)

// RecurringObligation is a member's periodic due (solidarity dues or
// membership-card subscription) with its target amounts per cadence.
type RecurringObligation struct {
	// MemberID is the owning member.
	MemberID string

	// Kind is the obligation scheme.
	Kind ObligationKind

	// MonthlyTarget is the expected amount per month.
	MonthlyTarget decimal.Decimal

	// QuarterlyTarget is the expected amount per quarter.
	QuarterlyTarget decimal.Decimal

	// AnnualTarget is the expected amount per year. When zero it defaults
	// to MonthlyTarget × 12.
	AnnualTarget decimal.Decimal
}

// EffectiveAnnualTarget returns AnnualTarget, defaulting to
// MonthlyTarget × 12 when unset.
func (o *RecurringObligation) EffectiveAnnualTarget() decimal.Decimal {
	if o.AnnualTarget.IsZero() {
		return o.MonthlyTarget.Mul(decimal.NewFromInt(12))
	}
	return o.AnnualTarget
}

// ObligationPayment is one payment against a recurring obligation. At most
// one payment may exist per (member, kind, year, period): a period cannot be
// paid twice.
type ObligationPayment struct {
	// ID is the unique identifier (UUID format).
	ID string

	// MemberID is the paying member.
	MemberID string

	// Kind is the obligation scheme this payment belongs to.
	Kind ObligationKind

	// Year is the calendar year the payment applies to.
	Year int

	// Frequency is the cadence used for this payment.
	Frequency PaymentFrequency

	// Period is the month (1-12) for monthly payments, the quarter (1-4)
	// for quarterly payments, and 0 for annual payments.
	Period int

	// Amount is the amount paid.
	Amount decimal.Decimal

	// PaidAt is the payment date.
	PaidAt time.Time
}

// CoveredMonths returns the calendar months (1-12) this payment nominally
// covers: its month for monthly, the 3 months of its quarter for quarterly,
// all 12 for annual.
func (p *ObligationPayment) CoveredMonths() []int {
	switch p.Frequency {
	case PayMonthly:
		if p.Period >= 1 && p.Period <= 12 {
			return []int{p.Period}
		}
	case PayQuarterly:
		if p.Period >= 1 && p.Period <= 4 {
			first := (p.Period-1)*3 + 1
			return []int{first, first + 1, first + 2}
		}
	case PayAnnual:
		months := make([]int, 12)
		for i := range months {
			months[i] = i + 1
		}
		return months
	}
	return nil
}
