package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/adesina/coopledger/pkg/models"
	"github.com/google/uuid"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested plan does not exist.
var ErrNotFound = fmt.Errorf("plan not found")

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	slog.Info("database connection established and schema initialized")
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		member_key TEXT NOT NULL,
		property_title TEXT NOT NULL,
		price TEXT NOT NULL,
		total_paid TEXT NOT NULL DEFAULT '0',
		principal TEXT NOT NULL,
		annual_rate_percent TEXT NOT NULL DEFAULT '0',
		tenure_months INTEGER NOT NULL,
		start_date DATETIME NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		timestamp DATETIME,
		FOREIGN KEY(plan_id) REFERENCES plans(id)
	);
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		direction TEXT NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_at DATETIME,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(plan_id) REFERENCES plans(id)
	);
	CREATE TABLE IF NOT EXISTS schedule_approvals (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		approved INTEGER NOT NULL DEFAULT 0,
		approved_at DATETIME,
		FOREIGN KEY(plan_id) REFERENCES plans(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreatePlan inserts a new payment plan into the database.
func (s *SQLiteStore) CreatePlan(plan *models.PaymentPlan) error {
	_, err := s.db.Exec(
		`INSERT INTO plans (id, member_key, property_title, price, total_paid, principal, annual_rate_percent, tenure_months, start_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID.String(), plan.MemberKey, plan.PropertyTitle, plan.Price, plan.TotalPaid, plan.Principal, plan.AnnualRatePercent, plan.TenureMonths, plan.StartDate, plan.Status, plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan by its ID.
func (s *SQLiteStore) GetPlan(id uuid.UUID) (*models.PaymentPlan, error) {
	row := s.db.QueryRow(`SELECT id, member_key, property_title, price, total_paid, principal, annual_rate_percent, tenure_months, start_date, status, created_at, updated_at FROM plans WHERE id = ?`, id.String())
	plan, err := scanPlan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

// UpdatePlan updates an existing plan in the database.
func (s *SQLiteStore) UpdatePlan(plan *models.PaymentPlan) error {
	result, err := s.db.Exec(
		`UPDATE plans SET member_key = ?, property_title = ?, price = ?, total_paid = ?, principal = ?, annual_rate_percent = ?, tenure_months = ?, start_date = ?, status = ?, updated_at = ? WHERE id = ?`,
		plan.MemberKey, plan.PropertyTitle, plan.Price, plan.TotalPaid, plan.Principal, plan.AnnualRatePercent, plan.TenureMonths, plan.StartDate, plan.Status, plan.UpdatedAt, plan.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePlan removes a plan and its records from the database within a transaction.
func (s *SQLiteStore) DeletePlan(id uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"payments", "ledger_entries", "schedule_approvals"} {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE plan_id = ?", table), id.String()); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	result, err := tx.Exec(`DELETE FROM plans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// GetAllPlans retrieves all plans.
func (s *SQLiteStore) GetAllPlans() ([]*models.PaymentPlan, error) {
	rows, err := s.db.Query(`SELECT id, member_key, property_title, price, total_paid, principal, annual_rate_percent, tenure_months, start_date, status, created_at, updated_at FROM plans`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all plans: %w", err)
	}
	defer rows.Close()

	return scanPlans(rows)
}

// GetPlansForMember retrieves all plans belonging to a member.
func (s *SQLiteStore) GetPlansForMember(memberKey string) ([]*models.PaymentPlan, error) {
	rows, err := s.db.Query(`SELECT id, member_key, property_title, price, total_paid, principal, annual_rate_percent, tenure_months, start_date, status, created_at, updated_at FROM plans WHERE member_key = ?`, memberKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get plans for member %s: %w", memberKey, err)
	}
	defer rows.Close()

	return scanPlans(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*models.PaymentPlan, error) {
	var plan models.PaymentPlan
	var idStr string
	var start, created, updated time.Time
	err := row.Scan(&idStr, &plan.MemberKey, &plan.PropertyTitle, &plan.Price, &plan.TotalPaid, &plan.Principal, &plan.AnnualRatePercent, &plan.TenureMonths, &start, &plan.Status, &created, &updated)
	if err != nil {
		return nil, err
	}
	plan.ID = uuid.MustParse(idStr)
	plan.StartDate = start
	plan.CreatedAt = created
	plan.UpdatedAt = updated
	return &plan, nil
}

func scanPlans(rows *sql.Rows) ([]*models.PaymentPlan, error) {
	var plans []*models.PaymentPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return plans, nil
}

// CreatePayment inserts a new payment record into the database.
func (s *SQLiteStore) CreatePayment(payment *models.PaymentRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO payments (id, plan_id, amount, method, status, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		payment.ID.String(), payment.PlanID.String(), payment.Amount, payment.Method, payment.Status, payment.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPaymentsForPlan retrieves all payment records for a given plan ID.
func (s *SQLiteStore) GetPaymentsForPlan(planID uuid.UUID) ([]*models.PaymentRecord, error) {
	rows, err := s.db.Query(`SELECT id, plan_id, amount, method, status, timestamp FROM payments WHERE plan_id = ? ORDER BY timestamp ASC`, planID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for plan %s: %w", planID, err)
	}
	defer rows.Close()

	var payments []*models.PaymentRecord
	for rows.Next() {
		var payment models.PaymentRecord
		var idStr, planIDStr string
		var ts sql.NullTime
		if err := rows.Scan(&idStr, &planIDStr, &payment.Amount, &payment.Method, &payment.Status, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payment.ID = uuid.MustParse(idStr)
		payment.PlanID = uuid.MustParse(planIDStr)
		if ts.Valid {
			payment.Timestamp = &ts.Time
		}
		payments = append(payments, &payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for plan payments: %w", err)
	}
	return payments, nil
}

// CreateLedgerEntry inserts a new ledger entry into the database.
func (s *SQLiteStore) CreateLedgerEntry(entry *models.LedgerEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO ledger_entries (id, plan_id, amount, direction, source, status, paid_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.PlanID.String(), entry.Amount, entry.Direction, entry.Source, entry.Status, entry.PaidAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

// GetLedgerEntriesForPlan retrieves all ledger entries for a given plan ID.
func (s *SQLiteStore) GetLedgerEntriesForPlan(planID uuid.UUID) ([]*models.LedgerEntry, error) {
	rows, err := s.db.Query(`SELECT id, plan_id, amount, direction, source, status, paid_at, created_at FROM ledger_entries WHERE plan_id = ? ORDER BY created_at ASC`, planID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries for plan %s: %w", planID, err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		var idStr, planIDStr string
		var paidAt sql.NullTime
		var created time.Time
		if err := rows.Scan(&idStr, &planIDStr, &entry.Amount, &entry.Direction, &entry.Source, &entry.Status, &paidAt, &created); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry row: %w", err)
		}
		entry.ID = uuid.MustParse(idStr)
		entry.PlanID = uuid.MustParse(planIDStr)
		if paidAt.Valid {
			entry.PaidAt = &paidAt.Time
		}
		entry.CreatedAt = created
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for plan ledger entries: %w", err)
	}
	return entries, nil
}

// CreateScheduleApproval inserts a new schedule approval into the database.
func (s *SQLiteStore) CreateScheduleApproval(approval *models.ScheduleApproval) error {
	_, err := s.db.Exec(
		`INSERT INTO schedule_approvals (id, plan_id, kind, approved, approved_at)
		VALUES (?, ?, ?, ?, ?)`,
		approval.ID.String(), approval.PlanID.String(), approval.Kind, approval.Approved, approval.ApprovedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule approval: %w", err)
	}
	return nil
}

// GetScheduleApprovalsForPlan retrieves all schedule approvals for a given plan ID.
func (s *SQLiteStore) GetScheduleApprovalsForPlan(planID uuid.UUID) ([]*models.ScheduleApproval, error) {
	rows, err := s.db.Query(`SELECT id, plan_id, kind, approved, approved_at FROM schedule_approvals WHERE plan_id = ?`, planID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule approvals for plan %s: %w", planID, err)
	}
	defer rows.Close()

	var approvals []*models.ScheduleApproval
	for rows.Next() {
		var approval models.ScheduleApproval
		var idStr, planIDStr string
		var approvedAt sql.NullTime
		if err := rows.Scan(&idStr, &planIDStr, &approval.Kind, &approval.Approved, &approvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan schedule approval row: %w", err)
		}
		approval.ID = uuid.MustParse(idStr)
		approval.PlanID = uuid.MustParse(planIDStr)
		if approvedAt.Valid {
			approval.ApprovedAt = &approvedAt.Time
		}
		approvals = append(approvals, &approval)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for schedule approvals: %w", err)
	}
	return approvals, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
