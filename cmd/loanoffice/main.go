package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"loanoffice/internal/amqp"
	"loanoffice/internal/category"
	"loanoffice/internal/cli"
	"loanoffice/internal/config"
	"loanoffice/internal/core"
	"loanoffice/internal/log"
	"loanoffice/internal/services"
	gsheet "loanoffice/internal/sheets/google"
	"loanoffice/internal/storage"
)

const usage = `Usage: loanoffice <command> [args]

Commands:
  performance  [YYYY-MM-DD]   plan performance for the month of the given date (default today)
  year-summary <year>         twelve month issuance and collection rollup
  user-credits <user-id>      credit projections for one user
  open-loans                  users that currently have an open loan
  import       <file>         import plans from a tab-delimited file
  import-sheet                import plans from the configured spreadsheet
  insert-plans                create missing plans for the current month
  seed         <dir>          load ledger seed files into the database
`

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	store := cli.InitStore(logger, cfg.SQLiteDBPath)
	defer store.Close()

	app := &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		resolver: category.NewResolver(store),
	}

	ctx := context.Background()
	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    *storage.LedgerStore
	resolver *category.Resolver
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "performance":
		return a.performance(ctx, args)
	case "year-summary":
		return a.yearSummary(ctx, args)
	case "user-credits":
		return a.userCredits(ctx, args)
	case "open-loans":
		return a.openLoans(ctx)
	case "import":
		return a.importFile(ctx, args)
	case "import-sheet":
		return a.importSheet(ctx)
	case "insert-plans":
		return a.insertPlans(ctx)
	case "seed":
		return a.seed(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) performance(ctx context.Context, args []string) error {
	asOf := time.Now().UTC()
	if len(args) > 0 {
		parsed, err := time.Parse(core.DateLayout, args[0])
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", args[0], err)
		}
		asOf = parsed
	}

	svc := services.NewPerformanceService(a.store, a.resolver)
	report, err := svc.PlansPerformance(ctx, asOf)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func (a *app) yearSummary(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("year-summary requires a year argument")
	}
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid year %q: %w", args[0], err)
	}

	svc := services.NewPerformanceService(a.store, a.resolver)
	summary, err := svc.YearSummary(ctx, year)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func (a *app) userCredits(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("user-credits requires a user id argument")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", args[0], err)
	}

	svc := services.NewLoanService(a.store, a.resolver)
	credits, err := svc.UserCredits(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "no credits found for user %d\n", userID)
			os.Exit(1)
		}
		return err
	}
	return printJSON(credits)
}

func (a *app) openLoans(ctx context.Context) error {
	svc := services.NewLoanService(a.store, a.resolver)
	users, err := svc.UsersWithOpenLoans(ctx)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "no users with open loans")
			os.Exit(1)
		}
		return err
	}
	return printJSON(users)
}

func (a *app) importFile(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("import requires a file argument")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	result := a.importService(ctx).UploadPlans(ctx, f)
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

func (a *app) importSheet(ctx context.Context) error {
	if a.cfg.GoogleSpreadsheetID == "" {
		return errors.New("import-sheet requires GOOGLE_SPREADSHEET_ID to be configured")
	}
	client, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("sheets client: %w", err)
	}
	rows, err := client.ReadPlanRows(ctx)
	if err != nil {
		return fmt.Errorf("read plan rows: %w", err)
	}

	result := a.importService(ctx).UploadPlansFromSheet(ctx, rows)
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

func (a *app) insertPlans(ctx context.Context) error {
	return a.importService(ctx).InsertCurrentMonthPlans(ctx, time.Now().UTC())
}

func (a *app) seed(ctx context.Context, args []string) error {
	dir := a.cfg.SeedDir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("seed requires a directory argument or SEED_DIR")
	}
	if err := storage.LoadSeedDir(ctx, a.store, dir); err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	a.logger.Info("Seed loaded", "dir", dir)
	return nil
}

// importService builds the plan importer with an AMQP publisher when one is
// configured; imports stay local otherwise.
func (a *app) importService(ctx context.Context) *services.ImportService {
	var events *amqp.Client
	if a.cfg.AMQPURL != "" {
		client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
		if err != nil {
			a.logger.WarnContext(ctx, "AMQP unavailable, importing without events", "error", err)
		} else {
			events = client
		}
	}
	return services.NewImportService(a.store, a.resolver, events)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
