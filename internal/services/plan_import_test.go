package services

import (
	"context"
	"strings"
	"testing"

	"loanoffice/internal/core"
)

func TestUploadPlansSuccess(t *testing.T) {
	store, resolver := newTestLedger(t)
	ctx := context.Background()

	file := "period\tsum\tcategory_id\n" +
		"01.02.2024\t5000\t2\n"

	result := NewImportService(store, resolver, nil).UploadPlans(ctx, strings.NewReader(file))
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no row errors, got %+v", result.Errors)
	}

	plan, err := store.PlanForPeriod(ctx, date(2024, 2, 1), 2)
	if err != nil {
		t.Fatalf("plan for period: %v", err)
	}
	if plan == nil || plan.Amount.Cents != 500000 {
		t.Fatalf("expected persisted plan of 5000.00, got %+v", plan)
	}
}

func TestUploadPlansAtomicity(t *testing.T) {
	store, resolver := newTestLedger(t)
	ctx := context.Background()

	// Row 3 has a mid-month period; the valid row 2 must not be persisted.
	file := "period\tsum\tcategory_id\n" +
		"01.02.2024\t5000\t2\n" +
		"15.02.2024\t7000\t1\n"

	result := NewImportService(store, resolver, nil).UploadPlans(ctx, strings.NewReader(file))
	if result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 3 {
		t.Fatalf("expected one error on row 3, got %+v", result.Errors)
	}

	plan, err := store.PlanForPeriod(ctx, date(2024, 2, 1), 2)
	if err != nil {
		t.Fatalf("plan for period: %v", err)
	}
	if plan != nil {
		t.Fatalf("no plan may be persisted from a rejected batch, got %+v", plan)
	}
}

func TestUploadPlansMissingColumnIsStructural(t *testing.T) {
	store, resolver := newTestLedger(t)

	file := "period\tsum\n01.02.2024\t5000\n"
	result := NewImportService(store, resolver, nil).UploadPlans(context.Background(), strings.NewReader(file))
	if result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("structural failure must carry no row errors, got %+v", result.Errors)
	}
	if !strings.Contains(result.Message, "missing required columns") {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestUploadPlansRowErrors(t *testing.T) {
	store, resolver := newTestLedger(t)
	ctx := context.Background()

	mustInsertPlan(t, store, core.Plan{Period: date(2024, 3, 1), Amount: core.Money{Cents: 100}, CategoryID: 2})

	file := "period\tsum\tcategory_id\n" +
		"31.02.2024\t5000\t2\n" + // invalid calendar date
		"01.03.2024\t5000\t99\n" + // unknown category
		"01.04.2024\tabc\t2\n" + // unparseable amount
		"01.03.2024\t5000\t2\n" + // collides with persisted plan
		"01.05.2024\t5000\t2\n" + // valid
		"01.05.2024\t6000\t2\n" // intra-batch duplicate

	result := NewImportService(store, resolver, nil).UploadPlans(ctx, strings.NewReader(file))
	if result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}

	wantRows := []int{2, 3, 4, 5, 7}
	if len(result.Errors) != len(wantRows) {
		t.Fatalf("expected %d errors, got %+v", len(wantRows), result.Errors)
	}
	for i, want := range wantRows {
		if result.Errors[i].Row != want {
			t.Fatalf("error %d expected row %d, got %d (%s)", i, want, result.Errors[i].Row, result.Errors[i].Message)
		}
	}

	// The valid row 6 must not be persisted either.
	plan, err := store.PlanForPeriod(ctx, date(2024, 5, 1), 2)
	if err != nil {
		t.Fatalf("plan for period: %v", err)
	}
	if plan != nil {
		t.Fatalf("rejected batch leaked a plan: %+v", plan)
	}
}

func TestUploadPlansZeroAmountIsValid(t *testing.T) {
	store, resolver := newTestLedger(t)
	ctx := context.Background()

	file := "period\tsum\tcategory_id\n01.06.2024\t0\t2\n"
	result := NewImportService(store, resolver, nil).UploadPlans(ctx, strings.NewReader(file))
	if !result.Success {
		t.Fatalf("explicit zero must be valid, got %+v", result)
	}

	plan, err := store.PlanForPeriod(ctx, date(2024, 6, 1), 2)
	if err != nil {
		t.Fatalf("plan for period: %v", err)
	}
	if plan == nil || plan.Amount.Cents != 0 {
		t.Fatalf("expected zero-amount plan, got %+v", plan)
	}
}

func TestUploadPlansFromSheet(t *testing.T) {
	store, resolver := newTestLedger(t)
	ctx := context.Background()

	values := [][]any{
		{"plan month", "plan category name", "amount"},
		{"01.02.2024", "збір", "5000"},
		{"2024-02-01", "видача", "12000.50"},
	}

	result := NewImportService(store, resolver, nil).UploadPlansFromSheet(ctx, values)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	plan, err := store.PlanForPeriod(ctx, date(2024, 2, 1), 1)
	if err != nil {
		t.Fatalf("plan for period: %v", err)
	}
	if plan == nil || plan.Amount.Cents != 1200050 {
		t.Fatalf("expected issuance plan 12000.50, got %+v", plan)
	}
}

func TestUploadPlansFromSheetRowErrors(t *testing.T) {
	store, resolver := newTestLedger(t)
	ctx := context.Background()

	values := [][]any{
		{"plan month", "plan category name", "amount"},
		{"01.02.2024", "невідома", "5000"}, // unknown category name
		{"01.03.2024", "збір", "NaN"},      // missing-value sentinel
		{"01.04.2024", "збір", "5000"},     // valid
	}

	result := NewImportService(store, resolver, nil).UploadPlansFromSheet(ctx, values)
	if result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
	if len(result.Errors) != 2 || result.Errors[0].Row != 2 || result.Errors[1].Row != 3 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}

	plan, err := store.PlanForPeriod(ctx, date(2024, 4, 1), 2)
	if err != nil {
		t.Fatalf("plan for period: %v", err)
	}
	if plan != nil {
		t.Fatalf("rejected sheet batch leaked a plan: %+v", plan)
	}
}

func TestUploadPlansFromSheetMissingHeader(t *testing.T) {
	store, resolver := newTestLedger(t)

	values := [][]any{
		{"month", "category", "amount"},
		{"01.02.2024", "збір", "5000"},
	}
	result := NewImportService(store, resolver, nil).UploadPlansFromSheet(context.Background(), values)
	if result.Success || len(result.Errors) != 0 {
		t.Fatalf("expected structural failure, got %+v", result)
	}
}

func TestInsertCurrentMonthPlans(t *testing.T) {
	store, resolver := newTestLedger(t)
	ctx := context.Background()

	mustInsertUser(t, store, core.User{ID: 1, Login: "ivan", RegistrationDate: date(2023, 1, 1)})
	mustInsertCredit(t, store, core.Credit{ID: 1, UserID: 1, IssuanceDate: date(2024, 1, 5),
		ReturnDate: date(2024, 7, 5), Body: core.Money{Cents: 100000}, Percent: core.Money{Cents: 10000}})
	// Previous-month collection actuals: 1000 cents.
	mustInsertPayment(t, store, core.Payment{ID: 1, CreditID: 1, Date: date(2024, 1, 20),
		Amount: core.Money{Cents: 1000}, CategoryID: 2})

	// Category 1 already has a February plan and must be skipped.
	mustInsertPlan(t, store, core.Plan{Period: date(2024, 2, 1), Amount: core.Money{Cents: 777}, CategoryID: 1})

	svc := NewImportService(store, resolver, nil)
	if err := svc.InsertCurrentMonthPlans(ctx, date(2024, 2, 10)); err != nil {
		t.Fatalf("insert current month plans: %v", err)
	}

	existing, err := store.PlanForPeriod(ctx, date(2024, 2, 1), 1)
	if err != nil {
		t.Fatalf("plan for period: %v", err)
	}
	if existing == nil || existing.Amount.Cents != 777 {
		t.Fatalf("existing plan must not be overwritten, got %+v", existing)
	}

	collection, err := store.PlanForPeriod(ctx, date(2024, 2, 1), 2)
	if err != nil {
		t.Fatalf("plan for period: %v", err)
	}
	if collection == nil || collection.Amount.Cents != 1100 {
		t.Fatalf("expected previous actuals plus 10%%, got %+v", collection)
	}

	// Idempotent on a second run: everything already has a plan.
	if err := svc.InsertCurrentMonthPlans(ctx, date(2024, 2, 10)); err != nil {
		t.Fatalf("second run must not fail: %v", err)
	}
}
