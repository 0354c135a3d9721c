package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/models"
)

// GetObligation retrieves a member's recurring-obligation targets.
func (s *SQLiteStore) GetObligation(ctx context.Context, memberID string, kind models.ObligationKind) (*models.RecurringObligation, error) {
	o := &models.RecurringObligation{}
	var k string
	err := s.db.QueryRowContext(ctx,
		`SELECT member_id, kind, monthly_target, quarterly_target, annual_target
		 FROM obligations WHERE member_id = ? AND kind = ?`,
		memberID, string(kind),
	).Scan(&o.MemberID, &k, &o.MonthlyTarget, &o.QuarterlyTarget, &o.AnnualTarget)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("obligation %s for member %s not found", kind, memberID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get obligation: %w", err)
	}
	o.Kind = models.ObligationKind(k)
	return o, nil
}

// PutObligation creates or replaces a member's obligation targets.
func (s *SQLiteStore) PutObligation(ctx context.Context, o *models.RecurringObligation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO obligations (member_id, kind, monthly_target, quarterly_target, annual_target)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(member_id, kind) DO UPDATE SET
		   monthly_target = excluded.monthly_target,
		   quarterly_target = excluded.quarterly_target,
		   annual_target = excluded.annual_target`,
		o.MemberID, string(o.Kind), o.MonthlyTarget, o.QuarterlyTarget, o.AnnualTarget,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert obligation: %w", err)
	}
	return nil
}

// CreateObligationPayment persists a payment. The (member, kind, year,
// period) uniqueness is enforced by the schema: a period cannot be paid
// twice.
func (s *SQLiteStore) CreateObligationPayment(ctx context.Context, p *models.ObligationPayment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO obligation_payments (id, member_id, kind, year, frequency, period, amount, paid_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.MemberID, string(p.Kind), p.Year, string(p.Frequency), p.Period, p.Amount, p.PaidAt.Unix(),
	)
	if isUniqueViolation(err) {
		return errs.Conflictf("member %s already paid %s period %d/%d", p.MemberID, p.Kind, p.Period, p.Year)
	}
	if err != nil {
		return fmt.Errorf("failed to insert obligation payment: %w", err)
	}
	return nil
}

// ListObligationPayments returns a member's payments for a kind and year,
// ordered by period.
func (s *SQLiteStore) ListObligationPayments(ctx context.Context, memberID string, kind models.ObligationKind, year int) ([]*models.ObligationPayment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, member_id, kind, year, frequency, period, amount, paid_at
		 FROM obligation_payments WHERE member_id = ? AND kind = ? AND year = ? ORDER BY period`,
		memberID, string(kind), year,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list obligation payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.ObligationPayment
	for rows.Next() {
		p := &models.ObligationPayment{}
		var k, freq string
		var paidAt int64
		if err := rows.Scan(&p.ID, &p.MemberID, &k, &p.Year, &freq, &p.Period, &p.Amount, &paidAt); err != nil {
			return nil, fmt.Errorf("failed to scan obligation payment: %w", err)
		}
		p.Kind = models.ObligationKind(k)
		p.Frequency = models.PaymentFrequency(freq)
		p.PaidAt = time.Unix(paidAt, 0)
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate obligation payments: %w", err)
	}
	return payments, nil
}
