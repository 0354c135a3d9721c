package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutStatus is the lifecycle state of a payout.
type PayoutStatus string

const (
	PayoutAssigned PayoutStatus = "assigned"
	PayoutPaid     PayoutStatus = "paid"
	PayoutRefused  PayoutStatus = "refused"
	PayoutPending  PayoutStatus = "pending"
)

// AssignmentMode records how the beneficiary was selected.
type AssignmentMode string

const (
	AssignRandomDraw   AssignmentMode = "random_draw"
	AssignManual       AssignmentMode = "manual"
	AssignAlphabetical AssignmentMode = "alphabetical"
	AssignUrgent       AssignmentMode = "urgent"
)

// Valid reports whether m is a known assignment mode.
func (m AssignmentMode) Valid() bool {
	switch m {
	case AssignRandomDraw, AssignManual, AssignAlphabetical, AssignUrgent:
		return true
	}
	return false
}

// Payout represents one tour: the scheduled disbursement to a single
// beneficiary within a cycle. A member receives at most one payout per
// association over its lifetime.
type Payout struct {
	// ID is the unique identifier (UUID format).
	ID string

	// AssociationID is the owning association.
	AssociationID string

	// Cycle is the cycle number this payout belongs to.
	Cycle int

	// Sequence is the 1-based position within the cycle. Assigned once from
	// the per-(association, cycle) counter and never renumbered.
	Sequence int

	// BeneficiaryID is the member receiving this payout.
	BeneficiaryID string

	// Mode records how the beneficiary was selected.
	Mode AssignmentMode

	// AssignedAt is when the beneficiary was assigned.
	AssignedAt time.Time

	// ExpectedDate is the scheduled receipt date computed from the
	// association's start date, frequency and this payout's sequence.
	ExpectedDate time.Time

	// AmountReceived is the sum of received contributions tied to this
	// payout. Derived: recomputed on every contribution write, never
	// patched incrementally.
	AmountReceived decimal.Decimal

	// Status is the state-machine state.
	Status PayoutStatus

	// PaidAt is when the payout was marked paid (zero otherwise).
	PaidAt time.Time

	// Notes is free text (refusal reason, manual-assignment context).
	Notes string
}

// CanTransitionTo reports whether the state machine permits moving from the
// payout's current status to target. Permitted transitions:
//
//	assigned → paid | refused
//	refused  → assigned | paid
func (p *Payout) CanTransitionTo(target PayoutStatus) bool {
	switch p.Status {
	case PayoutAssigned:
		return target == PayoutPaid || target == PayoutRefused
	case PayoutRefused:
		return target == PayoutAssigned || target == PayoutPaid
	}
	return false
}
