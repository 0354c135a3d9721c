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
	"github.com/mkadio/tontine/internal/storage"
)

// loadLedgerTx reads the association's ledger row inside tx, creating an
// empty one on first access.
func loadLedgerTx(ctx context.Context, tx *sql.Tx, associationID string) (*models.Ledger, error) {
	l := &models.Ledger{AssociationID: associationID}
	var redistributedAt sql.NullInt64

	err := tx.QueryRowContext(ctx,
		`SELECT total_contributed, total_distributed, total_refused, total_redistributed,
		        contribution_balance, refusal_balance, total_balance, redistributed, redistributed_at
		 FROM ledgers WHERE association_id = ?`,
		associationID,
	).Scan(&l.TotalContributed, &l.TotalDistributed, &l.TotalRefused, &l.TotalRedistributed,
		&l.ContributionBalance, &l.RefusalBalance, &l.TotalBalance, &l.Redistributed, &redistributedAt)
	if err == sql.ErrNoRows {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO ledgers (association_id) VALUES (?)", associationID); err != nil {
			return nil, fmt.Errorf("failed to create ledger: %w", err)
		}
		return &models.Ledger{AssociationID: associationID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	l.RedistributedAt = unixOrZero(redistributedAt)
	return l, nil
}

// saveLedgerTx writes the ledger aggregates back inside tx.
func saveLedgerTx(ctx context.Context, tx *sql.Tx, l *models.Ledger) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE ledgers SET total_contributed = ?, total_distributed = ?, total_refused = ?,
		        total_redistributed = ?, contribution_balance = ?, refusal_balance = ?,
		        total_balance = ?, redistributed = ?, redistributed_at = ?
		 WHERE association_id = ?`,
		l.TotalContributed, l.TotalDistributed, l.TotalRefused, l.TotalRedistributed,
		l.ContributionBalance, l.RefusalBalance, l.TotalBalance, l.Redistributed,
		nullUnix(l.RedistributedAt), l.AssociationID,
	)
	if err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

// appendTransactionTx inserts one immutable ledger entry inside tx,
// assigning its ID and timestamp when unset.
func appendTransactionTx(ctx context.Context, tx *sql.Tx, t *models.Transaction) error {
	if err := t.Validate(); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid ledger transaction", err)
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	nullable := func(s string) interface{} {
		if s == "" {
			return nil
		}
		return s
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, association_id, type, amount, contribution_id, payout_id, member_id, created_at, actor_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AssociationID, string(t.Type), t.Amount,
		nullable(t.ContributionID), nullable(t.PayoutID), nullable(t.MemberID),
		t.CreatedAt.Unix(), t.ActorID,
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// GetLedger retrieves the association's ledger, creating an empty one on
// first access.
func (s *SQLiteStore) GetLedger(ctx context.Context, associationID string) (*models.Ledger, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := loadLedgerTx(ctx, tx, associationID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return l, nil
}

// ListTransactions returns the association's ledger entries in append order.
func (s *SQLiteStore) ListTransactions(ctx context.Context, associationID string) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, association_id, type, amount, contribution_id, payout_id, member_id, created_at, actor_id
		 FROM transactions WHERE association_id = ? ORDER BY seq`,
		associationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		var typ string
		var contributionID, payoutID, memberID sql.NullString
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.AssociationID, &typ, &t.Amount,
			&contributionID, &payoutID, &memberID, &createdAt, &t.ActorID); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Type = models.TransactionType(typ)
		t.ContributionID = contributionID.String
		t.PayoutID = payoutID.String
		t.MemberID = memberID.String
		t.CreatedAt = time.Unix(createdAt, 0)
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// AppendTransaction appends one ledger entry and folds it into the cached
// aggregates in a single database transaction.
func (s *SQLiteStore) AppendTransaction(ctx context.Context, t *models.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ledger, err := loadLedgerTx(ctx, tx, t.AssociationID)
	if err != nil {
		return err
	}
	if err := appendTransactionTx(ctx, tx, t); err != nil {
		return err
	}
	if err := ledger.Apply(t); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid ledger transaction", err)
	}
	if err := saveLedgerTx(ctx, tx, ledger); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// sumDecimalTx sums a TEXT decimal column in Go, avoiding SQL float
// arithmetic.
func sumDecimalTx(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (decimal.Decimal, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query amounts: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to iterate amounts: %w", err)
	}
	return total, nil
}

// reconcileTx rebuilds the association's ledger aggregates strictly from
// source records, inside the given transaction. The cached values are read
// only to report drift; the recomputation ignores them.
func reconcileTx(ctx context.Context, tx *sql.Tx, associationID string) (*storage.ReconcileResult, error) {
	before, err := loadLedgerTx(ctx, tx, associationID)
	if err != nil {
		return nil, err
	}

	totalContributed, err := sumDecimalTx(ctx, tx,
		"SELECT amount FROM contributions WHERE association_id = ? AND status = ?",
		associationID, string(models.ContributionReceived))
	if err != nil {
		return nil, err
	}
	totalDistributed, err := sumDecimalTx(ctx, tx,
		"SELECT amount_received FROM payouts WHERE association_id = ? AND status = ?",
		associationID, string(models.PayoutPaid))
	if err != nil {
		return nil, err
	}
	totalRefused, err := sumDecimalTx(ctx, tx,
		"SELECT amount_received FROM payouts WHERE association_id = ? AND status = ?",
		associationID, string(models.PayoutRefused))
	if err != nil {
		return nil, err
	}
	redistributed, err := sumDecimalTx(ctx, tx,
		"SELECT amount FROM transactions WHERE association_id = ? AND type = ?",
		associationID, string(models.TxRedistribution))
	if err != nil {
		return nil, err
	}
	totalRedistributed := redistributed.Abs()

	after := &models.Ledger{
		AssociationID:   associationID,
		Redistributed:   before.Redistributed,
		RedistributedAt: before.RedistributedAt,
	}
	after.Recompute(totalContributed, totalDistributed, totalRefused, totalRedistributed)

	if after.RefusalBalance.IsNegative() {
		return nil, errs.Consistencyf(
			"association %s: redistributed total %s exceeds refused total %s",
			associationID, totalRedistributed, totalRefused)
	}

	if err := saveLedgerTx(ctx, tx, after); err != nil {
		return nil, err
	}

	return &storage.ReconcileResult{
		Before: before,
		After:  after,
		Drift:  !before.Equal(after),
	}, nil
}

// Reconcile recomputes the ledger aggregates from source records in one
// transaction. Safe to call at any time; running it twice in a row yields
// identical aggregates.
func (s *SQLiteStore) Reconcile(ctx context.Context, associationID string) (*storage.ReconcileResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := reconcileTx(ctx, tx, associationID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// Redistribute appends the allocation transactions, debits the refusal pool
// and sets the one-shot flag atomically. Either every allocation is recorded
// or none are.
func (s *SQLiteStore) Redistribute(ctx context.Context, associationID string, txs []*models.Transaction, performedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ledger, err := loadLedgerTx(ctx, tx, associationID)
	if err != nil {
		return err
	}
	if ledger.Redistributed {
		return errs.Conflictf("association %s already redistributed on %s",
			associationID, ledger.RedistributedAt.Format("2006-01-02"))
	}

	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount.Abs())
	}
	if total.GreaterThan(ledger.RefusalBalance) {
		return errs.InsufficientFundsf("allocations total %s exceeds refusal balance %s",
			total, ledger.RefusalBalance)
	}

	for _, t := range txs {
		if err := appendTransactionTx(ctx, tx, t); err != nil {
			return err
		}
		if err := ledger.Apply(t); err != nil {
			return errs.Wrap(errs.KindValidation, "invalid redistribution transaction", err)
		}
	}
	ledger.Redistributed = true
	ledger.RedistributedAt = performedAt

	if err := saveLedgerTx(ctx, tx, ledger); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
