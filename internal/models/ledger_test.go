package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestLedgerApply(t *testing.T) {
	l := &Ledger{AssociationID: "assoc-1"}

	contribution := &Contribution{
		ID: "c1", AssociationID: "assoc-1", PayoutID: "p1", MemberID: "m1",
		Amount: dec(30000),
	}
	if err := l.Apply(NewContributionTx(contribution, "admin")); err != nil {
		t.Fatalf("Apply(contribution) failed: %v", err)
	}
	if !l.TotalContributed.Equal(dec(30000)) {
		t.Errorf("TotalContributed = %v, want 30000", l.TotalContributed)
	}
	if !l.ContributionBalance.Equal(dec(30000)) {
		t.Errorf("ContributionBalance = %v, want 30000", l.ContributionBalance)
	}

	payout := &Payout{
		ID: "p1", AssociationID: "assoc-1", BeneficiaryID: "m1",
		AmountReceived: dec(30000), Status: PayoutRefused,
	}
	if err := l.Apply(NewPayoutRefusalTx(payout, "admin")); err != nil {
		t.Fatalf("Apply(refusal) failed: %v", err)
	}
	if !l.RefusalBalance.Equal(dec(30000)) {
		t.Errorf("RefusalBalance = %v, want 30000", l.RefusalBalance)
	}

	if err := l.Apply(NewRefusalReversalTx(payout, "admin")); err != nil {
		t.Fatalf("Apply(reversal) failed: %v", err)
	}
	if !l.RefusalBalance.Equal(dec(0)) {
		t.Errorf("RefusalBalance after reversal = %v, want 0", l.RefusalBalance)
	}

	if err := l.Apply(NewPayoutPaymentTx(payout, "admin")); err != nil {
		t.Fatalf("Apply(payment) failed: %v", err)
	}
	if !l.TotalDistributed.Equal(dec(30000)) {
		t.Errorf("TotalDistributed = %v, want 30000", l.TotalDistributed)
	}

	// The balance identity holds after every operation.
	if !l.TotalBalance.Equal(l.ContributionBalance.Add(l.RefusalBalance)) {
		t.Errorf("TotalBalance = %v, want ContributionBalance + RefusalBalance = %v",
			l.TotalBalance, l.ContributionBalance.Add(l.RefusalBalance))
	}
}

func TestLedgerRecomputeMatchesIncremental(t *testing.T) {
	incremental := &Ledger{AssociationID: "assoc-1"}
	c := &Contribution{ID: "c1", AssociationID: "assoc-1", PayoutID: "p1", MemberID: "m1", Amount: dec(10000)}
	p := &Payout{ID: "p2", AssociationID: "assoc-1", BeneficiaryID: "m2", AmountReceived: dec(10000)}

	for _, tx := range []*Transaction{
		NewContributionTx(c, ""),
		NewPayoutRefusalTx(p, ""),
		NewRedistributionTx("assoc-1", "m3", dec(4000), ""),
	} {
		if err := incremental.Apply(tx); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
	}

	recomputed := &Ledger{AssociationID: "assoc-1"}
	recomputed.Recompute(dec(10000), dec(0), dec(10000), dec(4000))

	if !incremental.Equal(recomputed) {
		t.Errorf("incremental %+v != recomputed %+v", incremental, recomputed)
	}
	if !recomputed.RefusalBalance.Equal(dec(6000)) {
		t.Errorf("RefusalBalance = %v, want 6000", recomputed.RefusalBalance)
	}
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		tx      *Transaction
		wantErr bool
	}{
		{
			name: "valid contribution",
			tx: &Transaction{
				AssociationID: "a", Type: TxContribution,
				Amount: dec(100), ContributionID: "c",
			},
		},
		{
			name:    "contribution without reference",
			tx:      &Transaction{AssociationID: "a", Type: TxContribution, Amount: dec(100)},
			wantErr: true,
		},
		{
			name:    "redistribution with positive amount",
			tx:      &Transaction{AssociationID: "a", Type: TxRedistribution, MemberID: "m", Amount: dec(100)},
			wantErr: true,
		},
		{
			name:    "missing association",
			tx:      &Transaction{Type: TxContribution, ContributionID: "c", Amount: dec(100)},
			wantErr: true,
		},
		{
			name:    "unknown type",
			tx:      &Transaction{AssociationID: "a", Type: "refund", Amount: dec(100)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tx.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
