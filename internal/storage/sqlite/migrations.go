package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Amounts are stored as TEXT (decimal strings), dates as unix seconds (UTC).
const schema = `
CREATE TABLE IF NOT EXISTS payments (
    id TEXT PRIMARY KEY,
    academy_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    description TEXT NOT NULL,
    due_date INTEGER NOT NULL,
    paid_date INTEGER,
    status TEXT NOT NULL,
    method TEXT NOT NULL DEFAULT '',
    pix_qr_code TEXT,
    pix_key TEXT,
    pix_expires_at INTEGER,
    transaction_id TEXT NOT NULL DEFAULT '',
    authorization_code TEXT NOT NULL DEFAULT '',
    cancellation_reason TEXT NOT NULL DEFAULT '',
    is_recurring INTEGER NOT NULL DEFAULT 0,
    recurring_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_academy_status_due ON payments(academy_id, status, due_date);
CREATE INDEX IF NOT EXISTS idx_payments_academy_student ON payments(academy_id, student_id);
CREATE INDEX IF NOT EXISTS idx_payments_academy_recurring ON payments(academy_id, recurring_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
