package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"loanoffice/internal/category"
	"loanoffice/internal/core"
	"loanoffice/internal/storage"
)

// Shared fixture: a real store in a temp directory with the canonical
// reference data loaded.
func newTestLedger(t *testing.T) (*storage.LedgerStore, *category.Resolver) {
	t.Helper()
	store, err := storage.NewLedgerStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	categories := []core.Category{
		{ID: 1, Name: "видача"},
		{ID: 2, Name: "збір"},
		{ID: 3, Name: "тіло"},
		{ID: 4, Name: "відсотки"},
		{ID: 5, Name: "комісія"},
	}
	for _, c := range categories {
		if err := store.InsertCategory(ctx, c); err != nil {
			t.Fatalf("insert category: %v", err)
		}
	}
	return store, category.NewResolver(store)
}

// newBareLedger is the same fixture with an empty reference table, for
// exercising graceful degradation when role-bearing categories are absent.
func newBareLedger(t *testing.T) (*storage.LedgerStore, *category.Resolver) {
	t.Helper()
	store, err := storage.NewLedgerStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, category.NewResolver(store)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustInsertUser(t *testing.T, store *storage.LedgerStore, u core.User) {
	t.Helper()
	if err := store.InsertUser(context.Background(), u); err != nil {
		t.Fatalf("insert user: %v", err)
	}
}

func mustInsertCredit(t *testing.T, store *storage.LedgerStore, c core.Credit) {
	t.Helper()
	if err := store.InsertCredit(context.Background(), c); err != nil {
		t.Fatalf("insert credit: %v", err)
	}
}

func mustInsertPayment(t *testing.T, store *storage.LedgerStore, p core.Payment) {
	t.Helper()
	if err := store.InsertPayment(context.Background(), p); err != nil {
		t.Fatalf("insert payment: %v", err)
	}
}

func mustInsertPlan(t *testing.T, store *storage.LedgerStore, p core.Plan) {
	t.Helper()
	if err := store.InsertPlans(context.Background(), []core.Plan{p}); err != nil {
		t.Fatalf("insert plan: %v", err)
	}
}
