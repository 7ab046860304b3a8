// Package storage provides the SQLite-backed ledger store: the single
// shared mutable resource of the reporting core. Every mutation goes
// through one transaction that commits or rolls back as a unit.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loanoffice/internal/core"

	_ "modernc.org/sqlite"
)

// Ledger is the query/command surface the reporting services consume.
type Ledger interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreditsByUser(ctx context.Context, userID int64) ([]core.Credit, error)
	PaymentsByCredit(ctx context.Context, creditID int64) ([]core.Payment, error)
	SumCreditsIssued(ctx context.Context, from, before time.Time) (int, core.Money, error)
	SumPaymentsByCategory(ctx context.Context, categoryID int64, from, before time.Time) (int, core.Money, error)
	PlansByPeriod(ctx context.Context, period time.Time) ([]core.Plan, error)
	PlanForPeriod(ctx context.Context, period time.Time, categoryID int64) (*core.Plan, error)
	InsertPlans(ctx context.Context, plans []core.Plan) error
	UsersWithOpenCredits(ctx context.Context) ([]core.User, error)
}

// LedgerStore implements Ledger on SQLite.
type LedgerStore struct {
	db *sql.DB
}

var _ Ledger = (*LedgerStore)(nil)

// NewLedgerStore opens (or creates) the database at dbPath and runs the
// embedded migrations.
func NewLedgerStore(dbPath string) (*LedgerStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows a single writer. One pooled connection makes
	// concurrent callers queue on the pool instead of failing with
	// SQLITE_BUSY; the busy timeout covers the rare cross-connection
	// collision (migrations open their own connection).
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &LedgerStore{db: db}, nil
}

func (s *LedgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ListCategories returns the reference table. Roles are assigned by the
// category resolver, not stored.
func (s *LedgerStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM dictionary ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreditsByUser returns every credit owned by the user, open and closed.
func (s *LedgerStore) CreditsByUser(ctx context.Context, userID int64) ([]core.Credit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, issuance_date, return_date, actual_return_date, body_cents, percent_cents
		 FROM credits WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("credits by user: %w", err)
	}
	defer rows.Close()

	var credits []core.Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// PaymentsByCredit returns the credit's payments ordered by payment date.
func (s *LedgerStore) PaymentsByCredit(ctx context.Context, creditID int64) ([]core.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, credit_id, payment_date, amount_cents, category_id
		 FROM payments WHERE credit_id = ? ORDER BY payment_date, id`, creditID)
	if err != nil {
		return nil, fmt.Errorf("payments by credit: %w", err)
	}
	defer rows.Close()

	var payments []core.Payment
	for rows.Next() {
		var p core.Payment
		var date string
		if err := rows.Scan(&p.ID, &p.CreditID, &date, &p.Amount.Cents, &p.CategoryID); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Date, err = parseDate(date)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SumCreditsIssued counts and sums credit principal for credits issued in
// [from, before).
func (s *LedgerStore) SumCreditsIssued(ctx context.Context, from, before time.Time) (int, core.Money, error) {
	var count int
	var cents sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(body_cents) FROM credits
		 WHERE issuance_date >= ? AND issuance_date < ?`,
		dateString(from), dateString(before)).Scan(&count, &cents)
	if err != nil {
		return 0, core.Money{}, fmt.Errorf("sum credits issued: %w", err)
	}
	return count, core.Money{Cents: cents.Int64}, nil
}

// SumPaymentsByCategory counts and sums payments of one category in
// [from, before), joined through credits.
func (s *LedgerStore) SumPaymentsByCategory(ctx context.Context, categoryID int64, from, before time.Time) (int, core.Money, error) {
	var count int
	var cents sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(p.amount_cents)
		 FROM payments p JOIN credits c ON p.credit_id = c.id
		 WHERE p.category_id = ? AND p.payment_date >= ? AND p.payment_date < ?`,
		categoryID, dateString(from), dateString(before)).Scan(&count, &cents)
	if err != nil {
		return 0, core.Money{}, fmt.Errorf("sum payments by category: %w", err)
	}
	return count, core.Money{Cents: cents.Int64}, nil
}

// PlansByPeriod returns every plan for the given first-of-month period.
func (s *LedgerStore) PlansByPeriod(ctx context.Context, period time.Time) ([]core.Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, period, amount_cents, category_id FROM plans WHERE period = ? ORDER BY category_id`,
		dateString(period))
	if err != nil {
		return nil, fmt.Errorf("plans by period: %w", err)
	}
	defer rows.Close()

	var plans []core.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// PlanForPeriod returns the plan for (period, category), or nil when none
// exists.
func (s *LedgerStore) PlanForPeriod(ctx context.Context, period time.Time, categoryID int64) (*core.Plan, error) {
	var p core.Plan
	var periodStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, period, amount_cents, category_id FROM plans WHERE period = ? AND category_id = ?`,
		dateString(period), categoryID).Scan(&p.ID, &periodStr, &p.Amount.Cents, &p.CategoryID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("plan for period: %w", err)
	}
	p.Period, err = parseDate(periodStr)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertPlans writes the batch in one transaction: either every plan is
// persisted or none is. A unique-constraint conflict on (period, category)
// surfaces as core.ErrDuplicatePlan and rolls the whole batch back.
func (s *LedgerStore) InsertPlans(ctx context.Context, plans []core.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range plans {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO plans (period, amount_cents, category_id) VALUES (?, ?, ?)`,
			dateString(p.Period), p.Amount.Cents, p.CategoryID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert plan %s/%d: %w", dateString(p.Period), p.CategoryID, core.ErrDuplicatePlan)
			}
			return fmt.Errorf("insert plan: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plans: %w", err)
	}

	slog.InfoContext(ctx, "Plans persisted", "count", len(plans))
	return nil
}

// UsersWithOpenCredits returns every distinct user owning at least one
// credit with no actual return date.
func (s *LedgerStore) UsersWithOpenCredits(ctx context.Context) ([]core.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT u.id, u.login, u.registration_date
		 FROM users u JOIN credits c ON c.user_id = u.id
		 WHERE c.actual_return_date IS NULL
		 ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("users with open credits: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		var reg string
		if err := rows.Scan(&u.ID, &u.Login, &reg); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.RegistrationDate, err = parseDate(reg)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Reference-data writes, used by the seed loader and tests. Mutating users,
// credits and payments is otherwise outside the reporting core.

func (s *LedgerStore) InsertCategory(ctx context.Context, c core.Category) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO dictionary (id, name) VALUES (?, ?)`, c.ID, c.Name)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *LedgerStore) InsertUser(ctx context.Context, u core.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, login, registration_date) VALUES (?, ?, ?)`,
		u.ID, u.Login, dateString(u.RegistrationDate))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *LedgerStore) InsertCredit(ctx context.Context, c core.Credit) error {
	var actual any
	if c.ActualReturnDate != nil {
		actual = dateString(*c.ActualReturnDate)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credits (id, user_id, issuance_date, return_date, actual_return_date, body_cents, percent_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, dateString(c.IssuanceDate), dateString(c.ReturnDate), actual, c.Body.Cents, c.Percent.Cents)
	if err != nil {
		return fmt.Errorf("insert credit: %w", err)
	}
	return nil
}

func (s *LedgerStore) InsertPayment(ctx context.Context, p core.Payment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, credit_id, payment_date, amount_cents, category_id) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.CreditID, dateString(p.Date), p.Amount.Cents, p.CategoryID)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredit(r rowScanner) (core.Credit, error) {
	var c core.Credit
	var issuance, ret string
	var actual sql.NullString
	if err := r.Scan(&c.ID, &c.UserID, &issuance, &ret, &actual, &c.Body.Cents, &c.Percent.Cents); err != nil {
		return core.Credit{}, fmt.Errorf("scan credit: %w", err)
	}
	var err error
	if c.IssuanceDate, err = parseDate(issuance); err != nil {
		return core.Credit{}, err
	}
	if c.ReturnDate, err = parseDate(ret); err != nil {
		return core.Credit{}, err
	}
	if actual.Valid {
		d, err := parseDate(actual.String)
		if err != nil {
			return core.Credit{}, err
		}
		c.ActualReturnDate = &d
	}
	return c, nil
}

func scanPlan(r rowScanner) (core.Plan, error) {
	var p core.Plan
	var period string
	if err := r.Scan(&p.ID, &period, &p.Amount.Cents, &p.CategoryID); err != nil {
		return core.Plan{}, fmt.Errorf("scan plan: %w", err)
	}
	var err error
	if p.Period, err = parseDate(period); err != nil {
		return core.Plan{}, err
	}
	return p, nil
}

// Dates are stored as ISO strings so lexicographic comparison in SQL
// matches chronological order.
func dateString(t time.Time) string {
	return t.Format(core.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return t, nil
}

// modernc.org/sqlite reports constraint violations through the error text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
