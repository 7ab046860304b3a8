package core

import "time"

// Report records returned to callers. One explicit type per report shape;
// the transport layer serializes them as-is.

// CategoryPerformance is the plan-vs-actual figure for one category in one
// period window.
type CategoryPerformance struct {
	Category    string  `json:"category"`
	Planned     float64 `json:"planned"`
	Actual      float64 `json:"actual"`
	Difference  float64 `json:"difference"`
	Performance float64 `json:"performance_percentage"`
}

// MonthSummary is one month's issuance/collection figures inside a year
// summary.
type MonthSummary struct {
	Month int `json:"month"`

	IssuedCount     int     `json:"issued_count"`
	IssuedAmount    float64 `json:"issued_amount"`
	PlannedIssuance float64 `json:"planned_issuance"`
	IssuancePerf    float64 `json:"issuance_performance_percentage"`
	IssuanceShare   float64 `json:"issuance_share_percentage"`

	PaymentCount      int     `json:"payment_count"`
	PaymentAmount     float64 `json:"payment_amount"`
	PlannedCollection float64 `json:"planned_collection"`
	CollectionPerf    float64 `json:"collection_performance_percentage"`
	PaymentShare      float64 `json:"payment_share_percentage"`
}

// YearSummary is the 12-month rollup. The yearly totals are the exact sums
// of the monthly figures, never a separate aggregate query.
type YearSummary struct {
	Year   int            `json:"year"`
	Months []MonthSummary `json:"months"`

	TotalIssuedCount       int     `json:"total_issued_count"`
	TotalIssuedAmount      float64 `json:"total_issued_amount"`
	TotalPlannedIssuance   float64 `json:"total_planned_issuance"`
	IssuancePerf           float64 `json:"issuance_performance_percentage"`
	TotalPaymentCount      int     `json:"total_payment_count"`
	TotalPaymentAmount     float64 `json:"total_payment_amount"`
	TotalPlannedCollection float64 `json:"total_planned_collection"`
	CollectionPerf         float64 `json:"collection_performance_percentage"`
}

// CreditPayment is one payment row inside a credit projection, with its
// category resolved to a name.
type CreditPayment struct {
	Date     time.Time `json:"date"`
	Amount   float64   `json:"sum"`
	Category string    `json:"type"`
}

// ClosedLoan is the projection variant for a repaid credit. Overdue days
// never appear here.
type ClosedLoan struct {
	RepaymentDate   time.Time `json:"repayment_date"`
	LoanAmount      float64   `json:"loan_amount"`
	AccruedInterest float64   `json:"accrued_interest"`
	PaymentAmount   float64   `json:"payment_amount"`
}

// OpenLoan is the projection variant for a credit that is still open.
type OpenLoan struct {
	RepaymentDeadline time.Time `json:"repayment_deadline"`
	OverdueDays       int       `json:"overdue_days"`
	LoanAmount        float64   `json:"loan_amount"`
	AccruedInterest   float64   `json:"accrued_interest"`
	BodyPayments      float64   `json:"body_payments"`
	InterestPayments  float64   `json:"interest_payments"`
}

// UserCredit is the per-credit projection. Exactly one of Closed/Open is
// set, matching the IsClosed flag.
type UserCredit struct {
	CreditID     int64           `json:"credit_id"`
	IssuanceDate time.Time       `json:"issuance_date"`
	IsClosed     bool            `json:"is_closed"`
	Closed       *ClosedLoan     `json:"closed,omitempty"`
	Open         *OpenLoan       `json:"open,omitempty"`
	Payments     []CreditPayment `json:"payments"`
}

// UserOpenLoans lists a user's currently open credits. Users with only
// closed credits are filtered out entirely.
type UserOpenLoans struct {
	UserID           int64        `json:"user_id"`
	Login            string       `json:"login"`
	RegistrationDate time.Time    `json:"registration_date"`
	OpenLoans        []UserCredit `json:"open_loans"`
}

// RowError is one rejected row of a bulk import, numbered to match the
// source file (row 2 is the first data row).
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult is the outcome of a bulk plan import. A batch with any row
// error commits nothing.
type ImportResult struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Errors  []RowError `json:"errors,omitempty"`
}
