package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
//
// Money columns are TEXT holding exact decimal strings; sums are computed in
// Go with shopspring/decimal, never with SQL float arithmetic. Dates are
// Unix seconds.
const schema = `
CREATE TABLE IF NOT EXISTS associations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    contribution_amount TEXT NOT NULL,
    frequency TEXT NOT NULL,
    start_date INTEGER NOT NULL,
    meeting_weekday INTEGER NOT NULL DEFAULT 0,
    current_cycle INTEGER NOT NULL DEFAULT 1,
    status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS association_members (
    association_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    joined_at INTEGER NOT NULL,
    PRIMARY KEY (association_id, member_id),
    FOREIGN KEY (association_id) REFERENCES associations(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payouts (
    id TEXT PRIMARY KEY,
    association_id TEXT NOT NULL,
    cycle INTEGER NOT NULL,
    sequence INTEGER NOT NULL,
    beneficiary_id TEXT NOT NULL,
    mode TEXT NOT NULL,
    assigned_at INTEGER NOT NULL,
    expected_date INTEGER NOT NULL,
    amount_received TEXT NOT NULL DEFAULT '0',
    status TEXT NOT NULL,
    paid_at INTEGER,
    notes TEXT,
    UNIQUE (association_id, beneficiary_id),
    UNIQUE (association_id, cycle, sequence),
    FOREIGN KEY (association_id) REFERENCES associations(id)
);

CREATE TABLE IF NOT EXISTS payout_counters (
    association_id TEXT NOT NULL,
    cycle INTEGER NOT NULL,
    next_seq INTEGER NOT NULL,
    PRIMARY KEY (association_id, cycle)
);

CREATE TABLE IF NOT EXISTS contributions (
    id TEXT PRIMARY KEY,
    association_id TEXT NOT NULL,
    payout_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    cycle INTEGER NOT NULL,
    amount TEXT NOT NULL,
    paid_at INTEGER NOT NULL,
    method TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    FOREIGN KEY (association_id) REFERENCES associations(id),
    FOREIGN KEY (payout_id) REFERENCES payouts(id)
);

CREATE TABLE IF NOT EXISTS ledgers (
    association_id TEXT PRIMARY KEY,
    total_contributed TEXT NOT NULL DEFAULT '0',
    total_distributed TEXT NOT NULL DEFAULT '0',
    total_refused TEXT NOT NULL DEFAULT '0',
    total_redistributed TEXT NOT NULL DEFAULT '0',
    contribution_balance TEXT NOT NULL DEFAULT '0',
    refusal_balance TEXT NOT NULL DEFAULT '0',
    total_balance TEXT NOT NULL DEFAULT '0',
    redistributed INTEGER NOT NULL DEFAULT 0,
    redistributed_at INTEGER
);

CREATE TABLE IF NOT EXISTS transactions (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    association_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount TEXT NOT NULL,
    contribution_id TEXT,
    payout_id TEXT,
    member_id TEXT,
    created_at INTEGER NOT NULL,
    actor_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS obligations (
    member_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    monthly_target TEXT NOT NULL,
    quarterly_target TEXT NOT NULL DEFAULT '0',
    annual_target TEXT NOT NULL DEFAULT '0',
    PRIMARY KEY (member_id, kind)
);

CREATE TABLE IF NOT EXISTS obligation_payments (
    id TEXT PRIMARY KEY,
    member_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    year INTEGER NOT NULL,
    frequency TEXT NOT NULL,
    period INTEGER NOT NULL,
    amount TEXT NOT NULL,
    paid_at INTEGER NOT NULL,
    UNIQUE (member_id, kind, year, period)
);

CREATE INDEX IF NOT EXISTS idx_payouts_association ON payouts(association_id);
CREATE INDEX IF NOT EXISTS idx_contributions_payout ON contributions(payout_id);
CREATE INDEX IF NOT EXISTS idx_contributions_association ON contributions(association_id);
CREATE INDEX IF NOT EXISTS idx_transactions_association ON transactions(association_id);
CREATE INDEX IF NOT EXISTS idx_obligation_payments_member ON obligation_payments(member_id, kind, year);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
