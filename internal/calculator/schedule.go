// Package calculator holds the engine's pure algorithms: payout-date
// scheduling and the arrears computation. No storage access, fully
// deterministic given the inputs.
package calculator

import (
	"time"

	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/models"
)

// ExpectedReceiptDate computes the scheduled receipt date for the payout at
// the given 1-based sequence position.
//
// Sequence 1 receives the association's start date verbatim, or now when the
// start date already passed. Later sequences advance from the start date by
// (sequence-1) period units: 7 days for weekly, 15 for biweekly, whole
// calendar months for monthly. Monthly results are snapped forward to the
// first occurrence of the association's meeting weekday in the target month,
// so every meeting in a cycle lands on the same weekday.
func ExpectedReceiptDate(startDate time.Time, freq models.Frequency, meetingWeekday time.Weekday, sequence int, now time.Time) (time.Time, error) {
	if sequence < 1 {
		return time.Time{}, errs.Validationf("sequence must be >= 1, got %d", sequence)
	}
	if !freq.Valid() {
		return time.Time{}, errs.Validationf("unknown frequency %q", freq)
	}

	if sequence == 1 {
		if startDate.Before(now) {
			return now, nil
		}
		return startDate, nil
	}

	switch freq {
	case models.FrequencyMonthly:
		// Month arithmetic anchored to the first of the month: AddDate on a
		// day-29..31 start normalizes into the following month and would skip
		// one meeting.
		target := time.Date(startDate.Year(), startDate.Month()+time.Month(sequence-1), 1,
			0, 0, 0, 0, startDate.Location())
		return firstWeekdayOfMonth(target.Year(), target.Month(), meetingWeekday, startDate.Location()), nil
	default:
		return startDate.AddDate(0, 0, freq.PeriodDays()*(sequence-1)), nil
	}
}

// firstWeekdayOfMonth returns the first occurrence of weekday in the given
// month, at midnight in loc.
func firstWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset)
}
