package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"loanoffice/internal/core"
)

// LoadSeedDir loads the five tab-delimited ledger files (dictionary.csv,
// users.csv, credits.csv, payments.csv, plans.csv) from dir into an empty
// store. Files that do not reference each other load concurrently; files
// carrying foreign keys wait for their parents.
func LoadSeedDir(ctx context.Context, store *LedgerStore, dir string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loadSeedFile(gctx, store, dir, "dictionary.csv", seedCategory) })
	g.Go(func() error { return loadSeedFile(gctx, store, dir, "users.csv", seedUser) })
	if err := g.Wait(); err != nil {
		return err
	}

	if err := loadSeedFile(ctx, store, dir, "credits.csv", seedCredit); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error { return loadSeedFile(gctx, store, dir, "payments.csv", seedPayment) })
	g.Go(func() error { return loadSeedFile(gctx, store, dir, "plans.csv", seedPlan) })
	return g.Wait()
}

type seedInsert func(ctx context.Context, store *LedgerStore, row map[string]string) error

func loadSeedFile(ctx context.Context, store *LedgerStore, dir, name string, insert seedInsert) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("open seed file %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", name, err)
	}

	count := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s row: %w", name, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		if err := insert(ctx, store, row); err != nil {
			return fmt.Errorf("%s row %d: %w", name, count+2, err)
		}
		count++
	}

	slog.InfoContext(ctx, "Seed file loaded", "file", name, "rows", count)
	return nil
}

func seedCategory(ctx context.Context, store *LedgerStore, row map[string]string) error {
	id, err := strconv.ParseInt(row["id"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse id: %w", err)
	}
	return store.InsertCategory(ctx, core.Category{ID: id, Name: row["name"]})
}

func seedUser(ctx context.Context, store *LedgerStore, row map[string]string) error {
	id, err := strconv.ParseInt(row["id"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse id: %w", err)
	}
	reg, err := parseLedgerDate(row["registration_date"])
	if err != nil {
		return err
	}
	return store.InsertUser(ctx, core.User{ID: id, Login: row["login"], RegistrationDate: reg})
}

func seedCredit(ctx context.Context, store *LedgerStore, row map[string]string) error {
	id, err := strconv.ParseInt(row["id"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse id: %w", err)
	}
	userID, err := strconv.ParseInt(row["user_id"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse user_id: %w", err)
	}
	issuance, err := parseLedgerDate(row["issuance_date"])
	if err != nil {
		return err
	}
	ret, err := parseLedgerDate(row["return_date"])
	if err != nil {
		return err
	}
	var actual *time.Time
	if row["actual_return_date"] != "" {
		d, err := parseLedgerDate(row["actual_return_date"])
		if err != nil {
			return err
		}
		actual = &d
	}
	body, err := core.ParseMoney(row["body"])
	if err != nil {
		return fmt.Errorf("parse body %q: %w", row["body"], err)
	}
	percent, err := core.ParseMoney(row["percent"])
	if err != nil {
		return fmt.Errorf("parse percent %q: %w", row["percent"], err)
	}
	return store.InsertCredit(ctx, core.Credit{
		ID:               id,
		UserID:           userID,
		IssuanceDate:     issuance,
		ReturnDate:       ret,
		ActualReturnDate: actual,
		Body:             body,
		Percent:          percent,
	})
}

func seedPayment(ctx context.Context, store *LedgerStore, row map[string]string) error {
	id, err := strconv.ParseInt(row["id"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse id: %w", err)
	}
	creditID, err := strconv.ParseInt(row["credit_id"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse credit_id: %w", err)
	}
	typeID, err := strconv.ParseInt(row["type_id"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse type_id: %w", err)
	}
	date, err := parseLedgerDate(row["payment_date"])
	if err != nil {
		return err
	}
	amount, err := core.ParseMoney(row["sum"])
	if err != nil {
		return fmt.Errorf("parse sum %q: %w", row["sum"], err)
	}
	return store.InsertPayment(ctx, core.Payment{
		ID:         id,
		CreditID:   creditID,
		Date:       date,
		Amount:     amount,
		CategoryID: typeID,
	})
}

func seedPlan(ctx context.Context, store *LedgerStore, row map[string]string) error {
	categoryID, err := strconv.ParseInt(row["category_id"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse category_id: %w", err)
	}
	period, err := parseLedgerDate(row["period"])
	if err != nil {
		return err
	}
	amount, err := core.ParseMoney(row["sum"])
	if err != nil {
		return fmt.Errorf("parse sum %q: %w", row["sum"], err)
	}
	return store.InsertPlans(ctx, []core.Plan{{Period: period, Amount: amount, CategoryID: categoryID}})
}

func parseLedgerDate(s string) (time.Time, error) {
	t, err := time.Parse(core.LedgerDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
