// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/pbtavares/gympay/internal/models"
	"github.com/pbtavares/gympay/internal/storage"
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
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Serialize writers; SQLite allows only one at a time anyway
	db.SetMaxOpenConns(1)

	// Run migrations
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

// CreatePayment persists a new payment record.
func (s *SQLiteStore) CreatePayment(ctx context.Context, academyID string, p *models.PaymentRecord) error {
	if academyID == "" {
		return fmt.Errorf("academy id is required")
	}

	// Generate ID and timestamps if not set
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	p.AcademyID = academyID
	if p.Status == "" {
		p.Status = models.StatusPending
	}

	var paidDate interface{}
	if p.PaidDate != nil {
		paidDate = p.PaidDate.Unix()
	}

	var pixQR, pixKey interface{}
	var pixExpires interface{}
	if p.PixData != nil {
		pixQR = p.PixData.QRCode
		pixKey = p.PixData.PixKey
		pixExpires = p.PixData.ExpiresAt.Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (
			id, academy_id, student_id, amount, description, due_date, paid_date,
			status, method, pix_qr_code, pix_key, pix_expires_at,
			transaction_id, authorization_code, cancellation_reason,
			is_recurring, recurring_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AcademyID, p.StudentID, p.Amount.String(), p.Description,
		p.DueDate.Unix(), paidDate,
		string(p.Status), string(p.Method), pixQR, pixKey, pixExpires,
		p.TransactionID, p.AuthorizationCode, p.CancellationReason,
		boolToInt(p.IsRecurring), p.RecurringID,
		p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	return nil
}

// GetPayment retrieves a payment by ID within the academy namespace.
func (s *SQLiteStore) GetPayment(ctx context.Context, academyID, id string) (*models.PaymentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` FROM payments WHERE academy_id = ? AND id = ?`,
		academyID, id,
	)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// QueryPayments returns all matching payments ordered by due date.
func (s *SQLiteStore) QueryPayments(ctx context.Context, academyID string, q storage.PaymentQuery) ([]*models.PaymentRecord, error) {
	where := []string{"academy_id = ?"}
	args := []interface{}{academyID}

	if q.StudentID != "" {
		where = append(where, "student_id = ?")
		args = append(args, q.StudentID)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if !q.DueBefore.IsZero() {
		where = append(where, "due_date < ?")
		args = append(args, q.DueBefore.Unix())
	}
	if !q.From.IsZero() {
		where = append(where, "due_date >= ?")
		args = append(args, q.From.Unix())
	}
	if !q.To.IsZero() {
		where = append(where, "due_date <= ?")
		args = append(args, q.To.Unix())
	}
	if q.RecurringID != "" {
		where = append(where, "recurring_id = ?")
		args = append(args, q.RecurringID)
	}

	rows, err := s.db.QueryContext(ctx,
		selectColumns+" FROM payments WHERE "+strings.Join(where, " AND ")+" ORDER BY due_date ASC, id ASC",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	return payments, nil
}

// UpdatePayment applies a partial update to one record.
func (s *SQLiteStore) UpdatePayment(ctx context.Context, academyID, id string, u storage.PaymentUpdate) error {
	set, args := buildSet(u)
	args = append(args, academyID, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE payments SET "+set+" WHERE academy_id = ? AND id = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdatePaymentIfStatus applies the update only when the record's current
// status is one of allowedPrev. The status check happens in the UPDATE's
// WHERE clause, so the guard holds even under concurrent writers.
func (s *SQLiteStore) UpdatePaymentIfStatus(ctx context.Context, academyID, id string, allowedPrev []models.Status, u storage.PaymentUpdate) (bool, error) {
	if len(allowedPrev) == 0 {
		return false, fmt.Errorf("at least one allowed prior status is required")
	}

	set, args := buildSet(u)
	args = append(args, academyID, id)

	placeholders := make([]string, len(allowedPrev))
	for i, st := range allowedPrev {
		placeholders[i] = "?"
		args = append(args, string(st))
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE payments SET "+set+
			" WHERE academy_id = ? AND id = ? AND status IN ("+strings.Join(placeholders, ", ")+")",
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// Distinguish "guard failed" from "no such record".
	var exists int
	err = s.db.QueryRowContext(ctx,
		"SELECT 1 FROM payments WHERE academy_id = ? AND id = ?", academyID, id,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, storage.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to check payment existence: %w", err)
	}
	return false, nil
}

const selectColumns = `SELECT id, academy_id, student_id, amount, description, due_date, paid_date,
	status, method, pix_qr_code, pix_key, pix_expires_at,
	transaction_id, authorization_code, cancellation_reason,
	is_recurring, recurring_id, created_at, updated_at`

// buildSet renders the SET clause for a partial update. updated_at is always
// refreshed.
func buildSet(u storage.PaymentUpdate) (string, []interface{}) {
	set := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC().Unix()}

	if u.Status != nil {
		set = append(set, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.PaidDate != nil {
		set = append(set, "paid_date = ?")
		args = append(args, u.PaidDate.Unix())
	}
	if u.Method != nil {
		set = append(set, "method = ?")
		args = append(args, string(*u.Method))
	}
	if u.TransactionID != nil {
		set = append(set, "transaction_id = ?")
		args = append(args, *u.TransactionID)
	}
	if u.AuthorizationCode != nil {
		set = append(set, "authorization_code = ?")
		args = append(args, *u.AuthorizationCode)
	}
	if u.CancellationReason != nil {
		set = append(set, "cancellation_reason = ?")
		args = append(args, *u.CancellationReason)
	}
	if u.Amount != nil {
		set = append(set, "amount = ?")
		args = append(args, u.Amount.String())
	}
	if u.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *u.Description)
	}

	return strings.Join(set, ", "), args
}

// scanner abstracts *sql.Row and *sql.Rows for scanPayment.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(sc scanner) (*models.PaymentRecord, error) {
	var (
		p          models.PaymentRecord
		amount     string
		dueDate    int64
		paidDate   sql.NullInt64
		status     string
		method     string
		pixQR      sql.NullString
		pixKey     sql.NullString
		pixExpires sql.NullInt64
		recurring  int
		createdAt  int64
		updatedAt  int64
	)

	err := sc.Scan(
		&p.ID, &p.AcademyID, &p.StudentID, &amount, &p.Description,
		&dueDate, &paidDate, &status, &method,
		&pixQR, &pixKey, &pixExpires,
		&p.TransactionID, &p.AuthorizationCode, &p.CancellationReason,
		&recurring, &p.RecurringID, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	p.DueDate = time.Unix(dueDate, 0).UTC()
	if paidDate.Valid {
		t := time.Unix(paidDate.Int64, 0).UTC()
		p.PaidDate = &t
	}
	p.Status = models.Status(status)
	p.Method = models.Method(method)
	if pixQR.Valid || pixKey.Valid {
		p.PixData = &models.PixData{
			QRCode: pixQR.String,
			PixKey: pixKey.String,
		}
		if pixExpires.Valid {
			p.PixData.ExpiresAt = time.Unix(pixExpires.Int64, 0).UTC()
		}
	}
	p.IsRecurring = recurring != 0
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
