package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the payout cadence of an association.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// PeriodDays returns the day offset of one period for day-based frequencies.
// Monthly frequency advances by calendar months, not days; callers must
// branch on FrequencyMonthly before using this.
func (f Frequency) PeriodDays() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 15
	default:
		return 0
	}
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// AssociationStatus is the lifecycle status of an association.
type AssociationStatus string

const (
	AssociationPlanned   AssociationStatus = "planned"
	AssociationActive    AssociationStatus = "active"
	AssociationFinished  AssociationStatus = "finished"
	AssociationSuspended AssociationStatus = "suspended"
)

// Association represents one tontine: a rotating savings group with a fixed
// contribution amount and payout frequency. Associations are created and
// edited by external CRUD layers; the engine treats the configuration as
// read-only.
type Association struct {
	// ID is the unique identifier (UUID format).
	ID string

	// Name is the display name of the association.
	Name string

	// ContributionAmount is the fixed amount each member contributes per
	// payout.
	ContributionAmount decimal.Decimal

	// Frequency is the payout cadence (weekly, biweekly, monthly).
	Frequency Frequency

	// StartDate anchors payout scheduling: sequence 1 receives this date.
	StartDate time.Time

	// MeetingWeekday is the weekday monthly payouts snap to (first
	// occurrence in the target month). Defaults to Sunday.
	MeetingWeekday time.Weekday

	// CurrentCycle is the cycle number currently in progress (1-based).
	CurrentCycle int

	// Status is the lifecycle status.
	Status AssociationStatus

	// Members is the roster. Order is not significant.
	Members []AssociationMember
}

// AssociationMember is one roster entry.
type AssociationMember struct {
	// MemberID references the externally owned member record.
	MemberID string

	// Active marks whether the member currently participates in draws.
	Active bool

	// JoinedAt is when the member joined the association.
	JoinedAt time.Time
}

// ActiveMemberIDs returns the IDs of roster members marked active.
func (a *Association) ActiveMemberIDs() []string {
	var ids []string
	for _, m := range a.Members {
		if m.Active {
			ids = append(ids, m.MemberID)
		}
	}
	return ids
}
