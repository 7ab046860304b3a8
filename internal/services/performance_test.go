package services

import (
	"context"
	"math"
	"reflect"
	"testing"

	"loanoffice/internal/core"
)

func TestPlansPerformanceZeroPlanned(t *testing.T) {
	store, resolver := newTestLedger(t)
	ctx := context.Background()

	mustInsertUser(t, store, core.User{ID: 1, Login: "ivan", RegistrationDate: date(2023, 1, 1)})
	mustInsertCredit(t, store, core.Credit{ID: 1, UserID: 1, IssuanceDate: date(2024, 2, 5),
		ReturnDate: date(2024, 8, 5), Body: core.Money{Cents: 100000}, Percent: core.Money{Cents: 10000}})
	mustInsertPayment(t, store, core.Payment{ID: 1, CreditID: 1, Date: date(2024, 2, 10),
		Amount: core.Money{Cents: 5000}, CategoryID: 2})
	mustInsertPlan(t, store, core.Plan{Period: date(2024, 2, 1), Amount: core.Money{Cents: 0}, CategoryID: 2})

	report, err := NewPerformanceService(store, resolver).PlansPerformance(ctx, date(2024, 2, 15))
	if err != nil {
		t.Fatalf("plans performance: %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("expected 1 record, got %d", len(report))
	}
	if report[0].Performance != 0 {
		t.Fatalf("zero planned must yield 0%%, got %v", report[0].Performance)
	}
	if report[0].Actual != 50 {
		t.Fatalf("expected actual 50.00, got %v", report[0].Actual)
	}
}

func TestPlansPerformanceRoles(t *testing.T) {
	store, resolver := newTestLedger(t)
	ctx := context.Background()

	mustInsertUser(t, store, core.User{ID: 1, Login: "ivan", RegistrationDate: date(2023, 1, 1)})
	// Two credits inside the window, one on the asOf boundary (inclusive),
	// one after it.
	mustInsertCredit(t, store, core.Credit{ID: 1, UserID: 1, IssuanceDate: date(2024, 2, 3),
		ReturnDate: date(2024, 8, 1), Body: core.Money{Cents: 200000}, Percent: core.Money{Cents: 20000}})
	mustInsertCredit(t, store, core.Credit{ID: 2, UserID: 1, IssuanceDate: date(2024, 2, 15),
		ReturnDate: date(2024, 8, 1), Body: core.Money{Cents: 300000}, Percent: core.Money{Cents: 30000}})
	mustInsertCredit(t, store, core.Credit{ID: 3, UserID: 1, IssuanceDate: date(2024, 2, 16),
		ReturnDate: date(2024, 8, 1), Body: core.Money{Cents: 700000}, Percent: core.Money{Cents: 70000}})

	// Collection payment in window plus a fee payment for the generic
	// fallback category.
	mustInsertPayment(t, store, core.Payment{ID: 1, CreditID: 1, Date: date(2024, 2, 10),
		Amount: core.Money{Cents: 40000}, CategoryID: 2})
	mustInsertPayment(t, store, core.Payment{ID: 2, CreditID: 1, Date: date(2024, 2, 12),
		Amount: core.Money{Cents: 1500}, CategoryID: 5})

	plans := []core.Plan{
		{Period: date(2024, 2, 1), Amount: core.Money{Cents: 1000000}, CategoryID: 1},
		{Period: date(2024, 2, 1), Amount: core.Money{Cents: 80000}, CategoryID: 2},
		{Period: date(2024, 2, 1), Amount: core.Money{Cents: 3000}, CategoryID: 5},
	}
	for _, p := range plans {
		mustInsertPlan(t, store, p)
	}

	report, err := NewPerformanceService(store, resolver).PlansPerformance(ctx, date(2024, 2, 15))
	if err != nil {
		t.Fatalf("plans performance: %v", err)
	}
	if len(report) != 3 {
		t.Fatalf("expected 3 records, got %d", len(report))
	}

	byCategory := map[string]core.CategoryPerformance{}
	for _, r := range report {
		byCategory[r.Category] = r
	}

	issuance := byCategory["видача"]
	if issuance.Actual != 5000 { // credits 1 and 2, not 3
		t.Fatalf("issuance actual expected 5000.00, got %v", issuance.Actual)
	}
	if issuance.Performance != 50 {
		t.Fatalf("issuance performance expected 50, got %v", issuance.Performance)
	}
	if issuance.Difference != -5000 {
		t.Fatalf("issuance difference expected -5000.00, got %v", issuance.Difference)
	}

	collection := byCategory["збір"]
	if collection.Actual != 400 || collection.Performance != 50 {
		t.Fatalf("unexpected collection figures: %+v", collection)
	}

	fee := byCategory["комісія"]
	if fee.Actual != 15 || fee.Performance != 50 {
		t.Fatalf("generic category must fall back to payment sums: %+v", fee)
	}
}

func TestPlansPerformanceIdempotent(t *testing.T) {
	store, resolver := newTestLedger(t)
	ctx := context.Background()

	mustInsertUser(t, store, core.User{ID: 1, Login: "ivan", RegistrationDate: date(2023, 1, 1)})
	mustInsertCredit(t, store, core.Credit{ID: 1, UserID: 1, IssuanceDate: date(2024, 2, 5),
		ReturnDate: date(2024, 8, 5), Body: core.Money{Cents: 100000}, Percent: core.Money{Cents: 10000}})
	mustInsertPlan(t, store, core.Plan{Period: date(2024, 2, 1), Amount: core.Money{Cents: 50000}, CategoryID: 1})

	svc := NewPerformanceService(store, resolver)
	first, err := svc.PlansPerformance(ctx, date(2024, 2, 20))
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.PlansPerformance(ctx, date(2024, 2, 20))
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same date against unchanged data must be identical:\n%+v\n%+v", first, second)
	}
}

func TestPlansPerformanceEmptyPeriod(t *testing.T) {
	store, resolver := newTestLedger(t)

	report, err := NewPerformanceService(store, resolver).PlansPerformance(context.Background(), date(2031, 7, 15))
	if err != nil {
		t.Fatalf("plans performance: %v", err)
	}
	if len(report) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestYearSummaryTotalsMatchMonths(t *testing.T) {
	store, resolver := newTestLedger(t)
	ctx := context.Background()

	mustInsertUser(t, store, core.User{ID: 1, Login: "ivan", RegistrationDate: date(2023, 1, 1)})

	// Credits around the year boundaries, including New Year's Eve.
	credits := []core.Credit{
		{ID: 1, UserID: 1, IssuanceDate: date(2023, 12, 31), ReturnDate: date(2024, 6, 1), Body: core.Money{Cents: 11111}, Percent: core.Money{Cents: 1111}},
		{ID: 2, UserID: 1, IssuanceDate: date(2024, 1, 1), ReturnDate: date(2024, 7, 1), Body: core.Money{Cents: 100000}, Percent: core.Money{Cents: 10000}},
		{ID: 3, UserID: 1, IssuanceDate: date(2024, 6, 15), ReturnDate: date(2024, 12, 15), Body: core.Money{Cents: 200000}, Percent: core.Money{Cents: 20000}},
		{ID: 4, UserID: 1, IssuanceDate: date(2024, 12, 31), ReturnDate: date(2025, 6, 30), Body: core.Money{Cents: 400000}, Percent: core.Money{Cents: 40000}},
		{ID: 5, UserID: 1, IssuanceDate: date(2025, 1, 1), ReturnDate: date(2025, 7, 1), Body: core.Money{Cents: 33333}, Percent: core.Money{Cents: 3333}},
	}
	for _, c := range credits {
		mustInsertCredit(t, store, c)
	}

	payments := []core.Payment{
		{ID: 1, CreditID: 2, Date: date(2024, 1, 20), Amount: core.Money{Cents: 30000}, CategoryID: 2},
		{ID: 2, CreditID: 2, Date: date(2024, 12, 31), Amount: core.Money{Cents: 50000}, CategoryID: 2},
		{ID: 3, CreditID: 3, Date: date(2025, 1, 1), Amount: core.Money{Cents: 77777}, CategoryID: 2},
		// Non-collection payments never enter the year summary.
		{ID: 4, CreditID: 2, Date: date(2024, 5, 5), Amount: core.Money{Cents: 999}, CategoryID: 5},
	}
	for _, p := range payments {
		mustInsertPayment(t, store, p)
	}

	mustInsertPlan(t, store, core.Plan{Period: date(2024, 1, 1), Amount: core.Money{Cents: 100000}, CategoryID: 1})
	mustInsertPlan(t, store, core.Plan{Period: date(2024, 1, 1), Amount: core.Money{Cents: 60000}, CategoryID: 2})

	summary, err := NewPerformanceService(store, resolver).YearSummary(ctx, 2024)
	if err != nil {
		t.Fatalf("year summary: %v", err)
	}
	if len(summary.Months) != 12 {
		t.Fatalf("expected 12 months, got %d", len(summary.Months))
	}

	// Yearly totals must equal the sum of monthly figures.
	var issued, paid float64
	var issuedCount, paymentCount int
	for _, m := range summary.Months {
		issued += m.IssuedAmount
		paid += m.PaymentAmount
		issuedCount += m.IssuedCount
		paymentCount += m.PaymentCount
	}
	if math.Abs(summary.TotalIssuedAmount-issued) > 1e-9 {
		t.Fatalf("total issued %v != monthly sum %v", summary.TotalIssuedAmount, issued)
	}
	if math.Abs(summary.TotalPaymentAmount-paid) > 1e-9 {
		t.Fatalf("total paid %v != monthly sum %v", summary.TotalPaymentAmount, paid)
	}
	if summary.TotalIssuedCount != issuedCount || summary.TotalPaymentCount != paymentCount {
		t.Fatalf("count totals do not match monthly sums")
	}

	// 2023-12-31 and 2025-01-01 must stay outside the year.
	if summary.TotalIssuedAmount != 7000 { // credits 2, 3, 4
		t.Fatalf("expected yearly issuance 7000.00, got %v", summary.TotalIssuedAmount)
	}
	if summary.TotalPaymentAmount != 800 { // payments 1 and 2 only
		t.Fatalf("expected yearly payments 800.00, got %v", summary.TotalPaymentAmount)
	}
	if summary.Months[11].IssuedAmount != 4000 {
		t.Fatalf("December must include the 31st, got %v", summary.Months[11].IssuedAmount)
	}

	jan := summary.Months[0]
	if jan.IssuancePerf != 100 {
		t.Fatalf("January issuance performance expected 100, got %v", jan.IssuancePerf)
	}
	if jan.CollectionPerf != 50 {
		t.Fatalf("January collection performance expected 50, got %v", jan.CollectionPerf)
	}

	// Shares are computed against the yearly totals.
	wantJanShare := 100000.0 / 700000.0 * 100
	if math.Abs(jan.IssuanceShare-wantJanShare) > 1e-9 {
		t.Fatalf("January issuance share expected %v, got %v", wantJanShare, jan.IssuanceShare)
	}

	// Months without plans report zero performance, never an error.
	if summary.Months[5].IssuancePerf != 0 {
		t.Fatalf("plan-less month must report 0%%, got %v", summary.Months[5].IssuancePerf)
	}
}

func TestYearSummaryWithoutRoleCategories(t *testing.T) {
	store, resolver := newBareLedger(t)

	summary, err := NewPerformanceService(store, resolver).YearSummary(context.Background(), 2024)
	if err != nil {
		t.Fatalf("year summary must degrade gracefully: %v", err)
	}
	if summary.TotalPaymentAmount != 0 || summary.TotalIssuedAmount != 0 {
		t.Fatalf("expected zero figures, got %+v", summary)
	}
}
