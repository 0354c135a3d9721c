// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mkadio/tontine/internal/errs"
	"github.com/mkadio/tontine/internal/models"
	"github.com/mkadio/tontine/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer connection keeps SQLite's locking out of the way; the
	// service layer already serializes writes per association.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// unixOrZero converts a nullable Unix-seconds column to a time.Time.
func unixOrZero(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0)
}

// nullUnix converts a time.Time to a nullable Unix-seconds column value.
func nullUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// PutAssociation creates or replaces an association and its roster. This is
// the ingestion point for the external CRUD layer that owns association
// records; the engine itself only reads them.
func (s *SQLiteStore) PutAssociation(ctx context.Context, a *models.Association) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO associations (id, name, contribution_amount, frequency, start_date, meeting_weekday, current_cycle, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   contribution_amount = excluded.contribution_amount,
		   frequency = excluded.frequency,
		   start_date = excluded.start_date,
		   meeting_weekday = excluded.meeting_weekday,
		   current_cycle = excluded.current_cycle,
		   status = excluded.status`,
		a.ID, a.Name, a.ContributionAmount, string(a.Frequency), a.StartDate.Unix(),
		int(a.MeetingWeekday), a.CurrentCycle, string(a.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert association: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM association_members WHERE association_id = ?", a.ID); err != nil {
		return fmt.Errorf("failed to clear roster: %w", err)
	}
	for _, m := range a.Members {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO association_members (association_id, member_id, active, joined_at) VALUES (?, ?, ?, ?)",
			a.ID, m.MemberID, m.Active, m.JoinedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert roster member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAssociation retrieves an association with its member roster.
func (s *SQLiteStore) GetAssociation(ctx context.Context, associationID string) (*models.Association, error) {
	a := &models.Association{}
	var frequency, status string
	var startDate int64
	var weekday int

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, contribution_amount, frequency, start_date, meeting_weekday, current_cycle, status
		 FROM associations WHERE id = ?`,
		associationID,
	).Scan(&a.ID, &a.Name, &a.ContributionAmount, &frequency, &startDate, &weekday, &a.CurrentCycle, &status)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("association %s not found", associationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get association: %w", err)
	}
	a.Frequency = models.Frequency(frequency)
	a.Status = models.AssociationStatus(status)
	a.StartDate = time.Unix(startDate, 0)
	a.MeetingWeekday = time.Weekday(weekday)

	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id, active, joined_at FROM association_members WHERE association_id = ? ORDER BY member_id",
		associationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.AssociationMember
		var joined int64
		if err := rows.Scan(&m.MemberID, &m.Active, &joined); err != nil {
			return nil, fmt.Errorf("failed to scan roster member: %w", err)
		}
		m.JoinedAt = time.Unix(joined, 0)
		a.Members = append(a.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roster: %w", err)
	}

	return a, nil
}

// ListAssociationIDs returns the IDs of all known associations.
func (s *SQLiteStore) ListAssociationIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM associations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list associations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan association id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate associations: %w", err)
	}
	return ids, nil
}
