package core

import (
	"errors"
	"time"
)

// DateLayout is the canonical date format used for storage and reports.
const DateLayout = "2006-01-02"

// LedgerDateLayout is the date format used in tab-delimited ledger files.
const LedgerDateLayout = "02.01.2006"

type (
	// Category is immutable reference data classifying payments and plans.
	Category struct {
		ID   int64
		Name string
		Role CategoryRole
	}

	// User owns credits. Account management is out of scope; the reporting
	// core only reads users.
	User struct {
		ID               int64
		Login            string
		RegistrationDate time.Time
	}

	// Credit is a loan. It stays open until ActualReturnDate is set, which
	// happens exactly once; credits are never deleted.
	Credit struct {
		ID               int64
		UserID           int64
		IssuanceDate     time.Time
		ReturnDate       time.Time
		ActualReturnDate *time.Time
		Body             Money
		Percent          Money
	}

	// Payment is an append-only repayment row classified by category.
	Payment struct {
		ID         int64
		CreditID   int64
		Date       time.Time
		Amount     Money
		CategoryID int64
	}

	// Plan is a target amount for one category in one calendar month.
	// Period is always the first day of the month, and at most one plan
	// exists per (period, category) pair.
	Plan struct {
		ID         int64
		Period     time.Time
		Amount     Money
		CategoryID int64
	}
)

// CategoryRole classifies a category by its reporting semantics. Roles are
// derived once from canonical category names when the reference table is
// loaded, instead of string-matching in every computation.
type CategoryRole int

const (
	RoleOther CategoryRole = iota
	RoleIssuance
	RoleCollection
	RolePrincipal
	RoleInterest
)

func (r CategoryRole) String() string {
	switch r {
	case RoleIssuance:
		return "issuance"
	case RoleCollection:
		return "collection"
	case RolePrincipal:
		return "principal"
	case RoleInterest:
		return "interest"
	default:
		return "other"
	}
}

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	// ErrDuplicatePlan signals an insert conflicting with the unique
	// (period, category) constraint on plans.
	ErrDuplicatePlan = errors.New("plan already exists for period and category")
)

// Closed reports whether the credit has been repaid and closed.
func (c Credit) Closed() bool {
	return c.ActualReturnDate != nil
}

// MonthStart returns the first day of t's calendar month, truncated to
// midnight UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextMonth returns the first day of the month after period. December rolls
// over to January of the following year.
func NextMonth(period time.Time) time.Time {
	return MonthStart(period).AddDate(0, 1, 0)
}

// IsMonthStart reports whether t falls on the first day of a month.
func IsMonthStart(t time.Time) bool {
	return t.Day() == 1
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysOverdue returns the number of whole days today is past the deadline,
// or zero when the deadline has not passed. Both arguments are truncated to
// their date part first.
func DaysOverdue(deadline, today time.Time) int {
	d := DayStart(today).Sub(DayStart(deadline))
	if d <= 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
