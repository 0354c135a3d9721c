package calculator

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mkadio/tontine/internal/models"
)

func monthly(month int, amount int64) *models.ObligationPayment {
	return &models.ObligationPayment{
		Frequency: models.PayMonthly,
		Period:    month,
		Amount:    decimal.NewFromInt(amount),
	}
}

func quarterly(quarter int, amount int64) *models.ObligationPayment {
	return &models.ObligationPayment{
		Frequency: models.PayQuarterly,
		Period:    quarter,
		Amount:    decimal.NewFromInt(amount),
	}
}

func annual(amount int64) *models.ObligationPayment {
	return &models.ObligationPayment{
		Frequency: models.PayAnnual,
		Amount:    decimal.NewFromInt(amount),
	}
}

func TestComputeArrears(t *testing.T) {
	tests := []struct {
		name          string
		input         ArrearsInput
		wantErr       bool
		wantStatus    ArrearsStatus
		wantMonths    []int
		wantRemaining int64
		wantOverride  bool
	}{
		{
			name: "two monthly payments leave a gap",
			input: ArrearsInput{
				MonthlyTarget: decimal.NewFromInt(5000),
				AnnualTarget:  decimal.NewFromInt(60000),
				Payments:      []*models.ObligationPayment{monthly(1, 5000), monthly(2, 5000)},
				CurrentMonth:  5,
			},
			wantStatus:    StatusArrears,
			wantMonths:    []int{3, 4, 5},
			wantRemaining: 50000,
		},
		{
			name: "underpaid annual payment triggers amount override",
			input: ArrearsInput{
				MonthlyTarget: decimal.NewFromInt(5000),
				AnnualTarget:  decimal.NewFromInt(60000),
				Payments:      []*models.ObligationPayment{annual(40000)},
				CurrentMonth:  5,
			},
			wantStatus:    StatusArrears,
			wantMonths:    []int{9, 10, 11, 12},
			wantRemaining: 20000,
			wantOverride:  true,
		},
		{
			name: "full annual payment is current",
			input: ArrearsInput{
				MonthlyTarget: decimal.NewFromInt(5000),
				AnnualTarget:  decimal.NewFromInt(60000),
				Payments:      []*models.ObligationPayment{annual(60000)},
				CurrentMonth:  8,
			},
			wantStatus:    StatusCurrent,
			wantRemaining: 0,
		},
		{
			name: "quarterly payment covers three months",
			input: ArrearsInput{
				MonthlyTarget: decimal.NewFromInt(5000),
				AnnualTarget:  decimal.NewFromInt(60000),
				Payments:      []*models.ObligationPayment{quarterly(1, 15000)},
				CurrentMonth:  4,
			},
			wantStatus:    StatusArrears,
			wantMonths:    []int{4},
			wantRemaining: 45000,
		},
		{
			name: "annual target defaults to twelve times monthly",
			input: ArrearsInput{
				MonthlyTarget: decimal.NewFromInt(5000),
				Payments:      []*models.ObligationPayment{monthly(1, 5000)},
				CurrentMonth:  2,
			},
			wantStatus:    StatusArrears,
			wantMonths:    []int{2},
			wantRemaining: 55000,
		},
		{
			name: "no payments at all",
			input: ArrearsInput{
				MonthlyTarget: decimal.NewFromInt(5000),
				AnnualTarget:  decimal.NewFromInt(60000),
				CurrentMonth:  3,
			},
			wantStatus:    StatusArrears,
			wantMonths:    []int{1, 2, 3},
			wantRemaining: 60000,
		},
		{
			name: "overpayment never yields negative remaining",
			input: ArrearsInput{
				MonthlyTarget: decimal.NewFromInt(5000),
				AnnualTarget:  decimal.NewFromInt(60000),
				Payments:      []*models.ObligationPayment{annual(70000)},
				CurrentMonth:  6,
			},
			wantStatus:    StatusCurrent,
			wantRemaining: 0,
		},
		{
			name: "current month out of range",
			input: ArrearsInput{
				MonthlyTarget: decimal.NewFromInt(5000),
				CurrentMonth:  13,
			},
			wantErr: true,
		},
		{
			name: "monthly target must be positive",
			input: ArrearsInput{
				MonthlyTarget: decimal.Zero,
				CurrentMonth:  5,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeArrears(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ComputeArrears() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", got.Status, tt.wantStatus)
			}
			if !reflect.DeepEqual(got.MonthsInArrears, tt.wantMonths) {
				t.Errorf("MonthsInArrears = %v, want %v", got.MonthsInArrears, tt.wantMonths)
			}
			if !got.AmountRemaining.Equal(decimal.NewFromInt(tt.wantRemaining)) {
				t.Errorf("AmountRemaining = %v, want %v", got.AmountRemaining, tt.wantRemaining)
			}
			if got.AmountOverride != tt.wantOverride {
				t.Errorf("AmountOverride = %v, want %v", got.AmountOverride, tt.wantOverride)
			}
		})
	}
}

func TestComputeArrearsBothViews(t *testing.T) {
	// An underpaid annual payment: the coverage view says every month is
	// covered, the amount view says the money ran out after month 8. Both
	// must be reported.
	got, err := ComputeArrears(ArrearsInput{
		MonthlyTarget: decimal.NewFromInt(5000),
		AnnualTarget:  decimal.NewFromInt(60000),
		Payments:      []*models.ObligationPayment{annual(40000)},
		CurrentMonth:  5,
	})
	if err != nil {
		t.Fatalf("ComputeArrears() error = %v", err)
	}

	if len(got.CoveredMonths) != 12 {
		t.Errorf("CoveredMonths = %v, want all 12 months", got.CoveredMonths)
	}
	if len(got.UncoveredMonths) != 0 {
		t.Errorf("UncoveredMonths = %v, want none", got.UncoveredMonths)
	}
	if got.EffectiveMonthsPaid != 8 {
		t.Errorf("EffectiveMonthsPaid = %d, want 8", got.EffectiveMonthsPaid)
	}
	if !got.TotalPaid.Equal(decimal.NewFromInt(40000)) {
		t.Errorf("TotalPaid = %v, want 40000", got.TotalPaid)
	}
}
