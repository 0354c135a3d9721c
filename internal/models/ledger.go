package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType discriminates ledger transaction kinds.
type TransactionType string

const (
	TxContribution   TransactionType = "contribution"
	TxPayoutPayment  TransactionType = "payout_payment"
	TxPayoutRefusal  TransactionType = "payout_refusal"
	TxRedistribution TransactionType = "redistribution"
	TxAdjustment     TransactionType = "adjustment"
)

// Transaction is one immutable entry in an association's ledger. Each kind
// carries only the references that apply to it; use the New*Tx constructors
// so the invariants hold.
type Transaction struct {
	// ID is the unique identifier (UUID format).
	ID string

	// AssociationID is the owning association.
	AssociationID string

	// Type is the transaction kind.
	Type TransactionType

	// Amount is signed: positive for money entering a pool (contribution,
	// payout_payment, payout_refusal), negative for money leaving it
	// (redistribution, refusal-reversing adjustment).
	Amount decimal.Decimal

	// ContributionID references the contribution (contribution kind only).
	ContributionID string

	// PayoutID references the payout (payment, refusal, adjustment kinds).
	PayoutID string

	// MemberID references the member (contribution, redistribution kinds).
	MemberID string

	// CreatedAt is when the transaction was appended.
	CreatedAt time.Time

	// ActorID is the user who triggered the operation.
	ActorID string
}

// NewContributionTx records a received contribution entering the pool.
func NewContributionTx(c *Contribution, actorID string) *Transaction {
	return &Transaction{
		AssociationID:  c.AssociationID,
		Type:           TxContribution,
		Amount:         c.Amount,
		ContributionID: c.ID,
		PayoutID:       c.PayoutID,
		MemberID:       c.MemberID,
		ActorID:        actorID,
	}
}

// NewPayoutPaymentTx records a payout being disbursed to its beneficiary.
func NewPayoutPaymentTx(p *Payout, actorID string) *Transaction {
	return &Transaction{
		AssociationID: p.AssociationID,
		Type:          TxPayoutPayment,
		Amount:        p.AmountReceived,
		PayoutID:      p.ID,
		MemberID:      p.BeneficiaryID,
		ActorID:       actorID,
	}
}

// NewPayoutRefusalTx records a refused payout moving its funds into the
// refusal pool.
func NewPayoutRefusalTx(p *Payout, actorID string) *Transaction {
	return &Transaction{
		AssociationID: p.AssociationID,
		Type:          TxPayoutRefusal,
		Amount:        p.AmountReceived,
		PayoutID:      p.ID,
		MemberID:      p.BeneficiaryID,
		ActorID:       actorID,
	}
}

// NewRefusalReversalTx records a refusal being undone: the negated refused
// amount leaves the refusal pool again.
func NewRefusalReversalTx(p *Payout, actorID string) *Transaction {
	return &Transaction{
		AssociationID: p.AssociationID,
		Type:          TxAdjustment,
		Amount:        p.AmountReceived.Neg(),
		PayoutID:      p.ID,
		MemberID:      p.BeneficiaryID,
		ActorID:       actorID,
	}
}

// NewRedistributionTx records one allocation of the refusal pool to a member.
// The signed amount is negative: money leaves the pool.
func NewRedistributionTx(associationID, memberID string, amount decimal.Decimal, actorID string) *Transaction {
	return &Transaction{
		AssociationID: associationID,
		Type:          TxRedistribution,
		Amount:        amount.Neg(),
		MemberID:      memberID,
		ActorID:       actorID,
	}
}

// Validate checks the per-kind field invariants.
func (t *Transaction) Validate() error {
	if t.AssociationID == "" {
		return fmt.Errorf("transaction missing association")
	}
	switch t.Type {
	case TxContribution:
		if t.ContributionID == "" || t.Amount.IsNegative() {
			return fmt.Errorf("contribution transaction requires a contribution reference and a non-negative amount")
		}
	case TxPayoutPayment, TxPayoutRefusal:
		if t.PayoutID == "" || t.Amount.IsNegative() {
			return fmt.Errorf("%s transaction requires a payout reference and a non-negative amount", t.Type)
		}
	case TxAdjustment:
		if t.PayoutID == "" {
			return fmt.Errorf("adjustment transaction requires a payout reference")
		}
	case TxRedistribution:
		if t.MemberID == "" || t.Amount.IsPositive() {
			return fmt.Errorf("redistribution transaction requires a member reference and a non-positive amount")
		}
	default:
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}
	return nil
}

// Ledger is the per-association derived record of money flow. It is a
// projection over Contributions and Payouts: every field is rebuildable via
// Recompute, so the cached values are never the sole source of truth.
type Ledger struct {
	AssociationID string

	// Cumulative totals.
	TotalContributed   decimal.Decimal
	TotalDistributed   decimal.Decimal
	TotalRefused       decimal.Decimal // net of reversals
	TotalRedistributed decimal.Decimal

	// Derived balances. RefusalBalance is the one canonical spendable pool;
	// ContributionBalance tracks the contributed-minus-distributed view for
	// reporting.
	ContributionBalance decimal.Decimal
	RefusalBalance      decimal.Decimal
	TotalBalance        decimal.Decimal

	// One-shot redistribution marker.
	Redistributed   bool
	RedistributedAt time.Time
}

// Apply folds one transaction into the cached aggregates (the incremental
// path used by record). Reconcile remains the canonical correction mechanism.
func (l *Ledger) Apply(t *Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	switch t.Type {
	case TxContribution:
		l.TotalContributed = l.TotalContributed.Add(t.Amount)
	case TxPayoutPayment:
		l.TotalDistributed = l.TotalDistributed.Add(t.Amount)
	case TxPayoutRefusal:
		l.TotalRefused = l.TotalRefused.Add(t.Amount)
	case TxAdjustment:
		// Refusal reversals carry a negated amount.
		l.TotalRefused = l.TotalRefused.Add(t.Amount)
	case TxRedistribution:
		l.TotalRedistributed = l.TotalRedistributed.Add(t.Amount.Abs())
	}
	l.deriveBalances()
	return nil
}

// Recompute rebuilds every aggregate strictly from sums over source records,
// discarding whatever was cached. Idempotent by construction.
func (l *Ledger) Recompute(totalContributed, totalDistributed, totalRefused, totalRedistributed decimal.Decimal) {
	l.TotalContributed = totalContributed
	l.TotalDistributed = totalDistributed
	l.TotalRefused = totalRefused
	l.TotalRedistributed = totalRedistributed
	l.deriveBalances()
}

func (l *Ledger) deriveBalances() {
	l.ContributionBalance = l.TotalContributed.Sub(l.TotalDistributed)
	l.RefusalBalance = l.TotalRefused.Sub(l.TotalRedistributed)
	l.TotalBalance = l.ContributionBalance.Add(l.RefusalBalance)
}

// Equal reports whether the two ledgers carry identical aggregates and
// redistribution state. Used by reconciliation to detect drift.
func (l *Ledger) Equal(o *Ledger) bool {
	return l.AssociationID == o.AssociationID &&
		l.TotalContributed.Equal(o.TotalContributed) &&
		l.TotalDistributed.Equal(o.TotalDistributed) &&
		l.TotalRefused.Equal(o.TotalRefused) &&
		l.TotalRedistributed.Equal(o.TotalRedistributed) &&
		l.ContributionBalance.Equal(o.ContributionBalance) &&
		l.RefusalBalance.Equal(o.RefusalBalance) &&
		l.TotalBalance.Equal(o.TotalBalance) &&
		l.Redistributed == o.Redistributed
}
