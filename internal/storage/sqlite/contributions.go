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

const contributionColumns = "id, association_id, payout_id, member_id, cycle, amount, paid_at, method, status"

// CreateContribution persists a contribution, recomputes the tied payout's
// AmountReceived and, when ledgerTx is non-nil, appends it to the ledger.
// All in one database transaction.
func (s *SQLiteStore) CreateContribution(ctx context.Context, c *models.Contribution, ledgerTx *models.Transaction) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.PaidAt.IsZero() {
		c.PaidAt = time.Now()
	}
	// The caller may have built the ledger transaction before the ID existed.
	if ledgerTx != nil && ledgerTx.ContributionID == "" {
		ledgerTx.ContributionID = c.ID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO contributions ("+contributionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		c.ID, c.AssociationID, c.PayoutID, c.MemberID, c.Cycle,
		c.Amount, c.PaidAt.Unix(), c.Method, string(c.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert contribution: %w", err)
	}

	if _, err := setPayoutAmountTx(ctx, tx, c.PayoutID); err != nil {
		return err
	}

	if ledgerTx != nil {
		ledger, err := loadLedgerTx(ctx, tx, c.AssociationID)
		if err != nil {
			return err
		}
		if err := appendTransactionTx(ctx, tx, ledgerTx); err != nil {
			return err
		}
		if err := ledger.Apply(ledgerTx); err != nil {
			return errs.Wrap(errs.KindValidation, "invalid ledger transaction", err)
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

func scanContribution(row interface {
	Scan(dest ...interface{}) error
}) (*models.Contribution, error) {
	c := &models.Contribution{}
	var status string
	var paidAt int64
	err := row.Scan(&c.ID, &c.AssociationID, &c.PayoutID, &c.MemberID, &c.Cycle,
		&c.Amount, &paidAt, &c.Method, &status)
	if err != nil {
		return nil, err
	}
	c.Status = models.ContributionStatus(status)
	c.PaidAt = time.Unix(paidAt, 0)
	return c, nil
}

// GetContribution retrieves a contribution by ID.
func (s *SQLiteStore) GetContribution(ctx context.Context, contributionID string) (*models.Contribution, error) {
	c, err := scanContribution(s.db.QueryRowContext(ctx,
		"SELECT "+contributionColumns+" FROM contributions WHERE id = ?", contributionID))
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("contribution %s not found", contributionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contribution: %w", err)
	}
	return c, nil
}

// UpdateContribution rewrites a contribution, recomputes the affected
// payouts' AmountReceived and re-reconciles the association's ledger, all in
// one transaction. Historical ledger entries are never rewritten; the
// projection is rebuilt instead.
func (s *SQLiteStore) UpdateContribution(ctx context.Context, c *models.Contribution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	old, err := scanContribution(tx.QueryRowContext(ctx,
		"SELECT "+contributionColumns+" FROM contributions WHERE id = ?", c.ID))
	if err == sql.ErrNoRows {
		return errs.NotFoundf("contribution %s not found", c.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to get contribution: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE contributions SET payout_id = ?, member_id = ?, cycle = ?, amount = ?, paid_at = ?, method = ?, status = ?
		 WHERE id = ?`,
		c.PayoutID, c.MemberID, c.Cycle, c.Amount, c.PaidAt.Unix(), c.Method, string(c.Status), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contribution: %w", err)
	}

	if _, err := setPayoutAmountTx(ctx, tx, c.PayoutID); err != nil {
		return err
	}
	if old.PayoutID != c.PayoutID {
		if _, err := setPayoutAmountTx(ctx, tx, old.PayoutID); err != nil {
			return err
		}
	}

	if _, err := reconcileTx(ctx, tx, old.AssociationID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteContribution removes a contribution, recomputes the payout's
// AmountReceived and re-reconciles the ledger in one transaction.
func (s *SQLiteStore) DeleteContribution(ctx context.Context, contributionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	old, err := scanContribution(tx.QueryRowContext(ctx,
		"SELECT "+contributionColumns+" FROM contributions WHERE id = ?", contributionID))
	if err == sql.ErrNoRows {
		return errs.NotFoundf("contribution %s not found", contributionID)
	}
	if err != nil {
		return fmt.Errorf("failed to get contribution: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM contributions WHERE id = ?", contributionID); err != nil {
		return fmt.Errorf("failed to delete contribution: %w", err)
	}

	if _, err := setPayoutAmountTx(ctx, tx, old.PayoutID); err != nil {
		return err
	}
	if _, err := reconcileTx(ctx, tx, old.AssociationID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListContributionsByPayout returns all contributions tied to a payout.
func (s *SQLiteStore) ListContributionsByPayout(ctx context.Context, payoutID string) ([]*models.Contribution, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+contributionColumns+" FROM contributions WHERE payout_id = ? ORDER BY paid_at",
		payoutID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	defer rows.Close()

	var contributions []*models.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributions: %w", err)
	}
	return contributions, nil
}
