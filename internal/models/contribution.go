package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContributionStatus marks whether the money has actually arrived.
type ContributionStatus string

const (
	ContributionReceived ContributionStatus = "received"
	ContributionPending  ContributionStatus = "pending"
)

// Contribution is a member's payment toward a specific payout. Contributions
// with status "received" are the source of truth for money entering the
// system: Payout.AmountReceived and the ledger's TotalContributed are both
// sums over them.
type Contribution struct {
	// ID is the unique identifier (UUID format).
	ID string

	// AssociationID is the owning association.
	AssociationID string

	// PayoutID is the payout this contribution funds.
	PayoutID string

	// MemberID is the contributing member.
	MemberID string

	// Cycle is the cycle number the contribution belongs to.
	Cycle int

	// Amount is the contributed amount.
	Amount decimal.Decimal

	// PaidAt is the payment date.
	PaidAt time.Time

	// Method is the payment method (cash, mobile money, transfer...).
	// Free text owned by the caller.
	Method string

	// Status is received or pending. Only received contributions count
	// toward balances.
	Status ContributionStatus
}
