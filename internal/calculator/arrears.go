package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/models"
)

// ArrearsStatus is the overall standing against the annual target.
type ArrearsStatus string

const (
	StatusCurrent ArrearsStatus = "current"
	StatusArrears ArrearsStatus = "arrears"
)

// ArrearsInput parameterizes one arrears computation. The same algorithm
// serves every obligation kind; only the targets and payments differ.
type ArrearsInput struct {
	MonthlyTarget decimal.Decimal
	AnnualTarget  decimal.Decimal // defaults to MonthlyTarget × 12 when zero
	Payments      []*models.ObligationPayment
	CurrentMonth  int // 1-12
}

// ArrearsResult carries both bookkeeping views: which months were nominally
// covered by payments (coverage view) and how many whole months the money
// actually paid for (amount view). The two diverge when payment amounts do
// not match targets, and callers rely on both.
type ArrearsResult struct {
	Status          ArrearsStatus
	TotalPaid       decimal.Decimal
	AmountRemaining decimal.Decimal

	// Coverage view.
	CoveredMonths   []int // union of months the payments nominally cover
	UncoveredMonths []int // {1..currentMonth} minus CoveredMonths

	// Amount view.
	EffectiveMonthsPaid int // ⌊TotalPaid / MonthlyTarget⌋

	// MonthsInArrears is the final answer: the coverage view's uncovered
	// months, or — when every month up to currentMonth is nominally covered
	// yet the money falls short — the amount view override
	// {EffectiveMonthsPaid+1 .. 12}.
	MonthsInArrears []int
	AmountOverride  bool
}

// ComputeArrears runs the shared periodic-obligation debt algorithm.
func ComputeArrears(in ArrearsInput) (*ArrearsResult, error) {
	if in.CurrentMonth < 1 || in.CurrentMonth > 12 {
		return nil, errs.Validationf("current month must be in 1..12, got %d", in.CurrentMonth)
	}
	if !in.MonthlyTarget.IsPositive() {
		return nil, errs.Validationf("monthly target must be positive, got %s", in.MonthlyTarget)
	}
	annualTarget := in.AnnualTarget
	if annualTarget.IsZero() {
		annualTarget = in.MonthlyTarget.Mul(decimal.NewFromInt(12))
	}

	covered := make(map[int]bool)
	totalPaid := decimal.Zero
	for _, p := range in.Payments {
		for _, m := range p.CoveredMonths() {
			covered[m] = true
		}
		totalPaid = totalPaid.Add(p.Amount)
	}

	res := &ArrearsResult{
		TotalPaid:           totalPaid,
		CoveredMonths:       sortedMonths(covered, 12),
		EffectiveMonthsPaid: int(totalPaid.Div(in.MonthlyTarget).Floor().IntPart()),
	}
	for m := 1; m <= in.CurrentMonth; m++ {
		if !covered[m] {
			res.UncoveredMonths = append(res.UncoveredMonths, m)
		}
	}

	remaining := annualTarget.Sub(totalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	res.AmountRemaining = remaining

	if totalPaid.GreaterThanOrEqual(annualTarget) {
		res.Status = StatusCurrent
		return res, nil
	}
	res.Status = StatusArrears

	if len(res.UncoveredMonths) == 0 {
		// Every month up to currentMonth is nominally covered, yet the money
		// falls short of the annual target: the member effectively stopped
		// paying after the months their cumulative amount covers.
		res.AmountOverride = true
		for m := res.EffectiveMonthsPaid + 1; m <= 12; m++ {
			res.MonthsInArrears = append(res.MonthsInArrears, m)
		}
		return res, nil
	}

	res.MonthsInArrears = append([]int(nil), res.UncoveredMonths...)
	return res, nil
}

func sortedMonths(set map[int]bool, max int) []int {
	var months []int
	for m := 1; m <= max; m++ {
		if set[m] {
			months = append(months, m)
		}
	}
	return months
}
