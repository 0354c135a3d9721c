package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/models"
)

// NextSequence allocates the next sequence number for the (association,
// cycle) pair from its counter row. The upsert is atomic, so sequences stay
// monotonic under concurrent assignment; a number allocated for an
// assignment that later fails is simply skipped, never reused.
func (s *SQLiteStore) NextSequence(ctx context.Context, associationID string, cycle int) (int, error) {
	var seq int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO payout_counters (association_id, cycle, next_seq) VALUES (?, ?, 1)
		 ON CONFLICT(association_id, cycle) DO UPDATE SET next_seq = next_seq + 1
		 RETURNING next_seq`,
		associationID, cycle,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to bump payout counter: %w", err)
	}
	return seq, nil
}

// CreatePayout persists a new payout with its preallocated sequence number.
func (s *SQLiteStore) CreatePayout(ctx context.Context, payout *models.Payout) error {
	if payout.ID == "" {
		payout.ID = uuid.New().String()
	}
	if payout.AssignedAt.IsZero() {
		payout.AssignedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var notes interface{}
	if payout.Notes != "" {
		notes = payout.Notes
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO payouts (id, association_id, cycle, sequence, beneficiary_id, mode, assigned_at, expected_date, amount_received, status, paid_at, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payout.ID, payout.AssociationID, payout.Cycle, payout.Sequence,
		payout.BeneficiaryID, string(payout.Mode), payout.AssignedAt.Unix(),
		payout.ExpectedDate.Unix(), payout.AmountReceived, string(payout.Status),
		nullUnix(payout.PaidAt), notes,
	)
	if isUniqueViolation(err) {
		return errs.Conflictf("member %s already has a payout in association %s", payout.BeneficiaryID, payout.AssociationID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert payout: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanPayout(row interface {
	Scan(dest ...interface{}) error
}) (*models.Payout, error) {
	p := &models.Payout{}
	var mode, status string
	var assignedAt, expectedDate int64
	var paidAt sql.NullInt64
	var notes sql.NullString

	err := row.Scan(&p.ID, &p.AssociationID, &p.Cycle, &p.Sequence, &p.BeneficiaryID,
		&mode, &assignedAt, &expectedDate, &p.AmountReceived, &status, &paidAt, &notes)
	if err != nil {
		return nil, err
	}
	p.Mode = models.AssignmentMode(mode)
	p.Status = models.PayoutStatus(status)
	p.AssignedAt = time.Unix(assignedAt, 0)
	p.ExpectedDate = time.Unix(expectedDate, 0)
	p.PaidAt = unixOrZero(paidAt)
	if notes.Valid {
		p.Notes = notes.String
	}
	return p, nil
}

const payoutColumns = "id, association_id, cycle, sequence, beneficiary_id, mode, assigned_at, expected_date, amount_received, status, paid_at, notes"

// GetPayout retrieves a payout by ID.
func (s *SQLiteStore) GetPayout(ctx context.Context, payoutID string) (*models.Payout, error) {
	p, err := scanPayout(s.db.QueryRowContext(ctx,
		"SELECT "+payoutColumns+" FROM payouts WHERE id = ?", payoutID))
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("payout %s not found", payoutID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, nil
}

// ListPayouts returns all payouts of an association ordered by cycle then
// sequence.
func (s *SQLiteStore) ListPayouts(ctx context.Context, associationID string) ([]*models.Payout, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+payoutColumns+" FROM payouts WHERE association_id = ? ORDER BY cycle, sequence",
		associationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payouts: %w", err)
	}
	return payouts, nil
}

// MemberHasPayout reports whether the member already has a payout in the
// association.
func (s *SQLiteStore) MemberHasPayout(ctx context.Context, associationID, memberID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM payouts WHERE association_id = ? AND beneficiary_id = ? LIMIT 1",
		associationID, memberID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check payout existence: %w", err)
	}
	return true, nil
}

// ApplyPayoutTransition persists the payout's new state and appends the
// accompanying ledger transactions in one database transaction.
func (s *SQLiteStore) ApplyPayoutTransition(ctx context.Context, payout *models.Payout, txs []*models.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var notes interface{}
	if payout.Notes != "" {
		notes = payout.Notes
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE payouts SET status = ?, paid_at = ?, notes = ? WHERE id = ?",
		string(payout.Status), nullUnix(payout.PaidAt), notes, payout.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payout: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFoundf("payout %s not found", payout.ID)
	}

	if len(txs) > 0 {
		ledger, err := loadLedgerTx(ctx, tx, payout.AssociationID)
		if err != nil {
			return err
		}
		for _, t := range txs {
			if err := appendTransactionTx(ctx, tx, t); err != nil {
				return err
			}
			if err := ledger.Apply(t); err != nil {
				return errs.Wrap(errs.KindValidation, "invalid ledger transaction", err)
			}
		}
		// A refusal reversal after the refused funds were redistributed would
		// overdraw the pool; the transition is rejected and the whole
		// database transaction rolls back.
		if ledger.RefusalBalance.IsNegative() {
			return errs.Conflictf(
				"association %s refusal pool cannot absorb the adjustment: balance would be %s",
				payout.AssociationID, ledger.RefusalBalance)
		}
		if err := saveLedgerTx(ctx, tx, ledger); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeletePayout removes a payout. It refuses when received contributions
// still reference the payout: those are source-of-truth money records and
// must be moved or removed first.
func (s *SQLiteStore) DeletePayout(ctx context.Context, payoutID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contributions WHERE payout_id = ? AND status = ?",
		payoutID, string(models.ContributionReceived),
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count contributions: %w", err)
	}
	if count > 0 {
		return errs.Conflictf("payout %s has %d received contributions; remove or reassign them first", payoutID, count)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM payouts WHERE id = ?", payoutID)
	if err != nil {
		return fmt.Errorf("failed to delete payout: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFoundf("payout %s not found", payoutID)
	}

	// The sequence counter is left untouched: sequence numbers are
	// append-only and never reused.

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// setPayoutAmountTx recomputes the payout's AmountReceived as the sum over
// its received contributions, inside the given transaction.
func setPayoutAmountTx(ctx context.Context, tx *sql.Tx, payoutID string) (decimal.Decimal, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT amount FROM contributions WHERE payout_id = ? AND status = ?",
		payoutID, string(models.ContributionReceived),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load contribution amounts: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan contribution amount: %w", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to iterate contribution amounts: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE payouts SET amount_received = ? WHERE id = ?", total, payoutID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update payout amount: %w", err)
	}
	return total, nil
}
