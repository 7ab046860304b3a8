package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"loanoffice/internal/amqp"
	"loanoffice/internal/category"
	"loanoffice/internal/core"
	"loanoffice/internal/storage"
)

// Tab-delimited upload columns.
const (
	colPeriod     = "period"
	colSum        = "sum"
	colCategoryID = "category_id"
)

// Spreadsheet upload columns.
const (
	colPlanMonth    = "plan month"
	colCategoryName = "plan category name"
	colAmount       = "amount"
)

// ImportService runs bulk plan uploads through parse, validate-all, then
// commit-all-or-reject-all. No partial batch ever reaches the store.
type ImportService struct {
	store      storage.Ledger
	categories *category.Resolver
	events     *amqp.Client
}

// NewImportService wires the importer. events may be nil; imports then
// commit without publishing.
func NewImportService(store storage.Ledger, categories *category.Resolver, events *amqp.Client) *ImportService {
	return &ImportService{store: store, categories: categories, events: events}
}

// planRow is one parsed upload row. Rows that failed parsing never become
// planRows; they go straight into the error list.
type planRow struct {
	line       int
	period     time.Time
	categoryID int64
	amount     core.Money
}

// UploadPlans imports a tab-delimited plan file. The header must carry the
// period, sum and category_id columns; a header failure aborts the whole
// batch with a single structural message and no row detail. Row errors
// accumulate independently and reject the batch wholesale.
func (s *ImportService) UploadPlans(ctx context.Context, r io.Reader) core.ImportResult {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return structuralFailure("cannot read file header")
	}
	idxPeriod := headerIndex(header, colPeriod)
	idxSum := headerIndex(header, colSum)
	idxCategory := headerIndex(header, colCategoryID)
	if idxPeriod == -1 || idxSum == -1 || idxCategory == -1 {
		return structuralFailure(fmt.Sprintf(
			"missing required columns: file must contain %q, %q and %q", colPeriod, colSum, colCategoryID))
	}

	records, err := reader.ReadAll()
	if err != nil {
		return structuralFailure("cannot parse file contents")
	}

	cats, err := s.categories.Load(ctx)
	if err != nil {
		return s.internalFailure(ctx, err)
	}

	var rows []planRow
	var rowErrs []core.RowError
	for i, record := range records {
		line := i + 2 // 1-based, header is row 1
		row := planRow{line: line}
		ok := true

		row.period, err = parsePeriod(cell(record, idxPeriod))
		if err != nil {
			rowErrs = append(rowErrs, core.RowError{Row: line, Message: err.Error()})
			ok = false
		}

		id, err := strconv.ParseInt(strings.TrimSpace(cell(record, idxCategory)), 10, 64)
		if err != nil {
			rowErrs = append(rowErrs, core.RowError{Row: line, Message: fmt.Sprintf("invalid category id %q", cell(record, idxCategory))})
			ok = false
		} else if _, known := cats.All()[id]; !known {
			rowErrs = append(rowErrs, core.RowError{Row: line, Message: fmt.Sprintf("category %d does not exist", id)})
			ok = false
		} else {
			row.categoryID = id
		}

		row.amount, err = core.ParseMoney(cell(record, idxSum))
		if err != nil {
			rowErrs = append(rowErrs, core.RowError{Row: line, Message: fmt.Sprintf("invalid amount %q", cell(record, idxSum))})
			ok = false
		}

		if ok {
			rows = append(rows, row)
		}
	}

	return s.validateAndCommit(ctx, rows, rowErrs)
}

// UploadPlansFromSheet imports plans from a spreadsheet values matrix as
// returned by the Sheets API. The first row must carry the "plan month",
// "plan category name" and "amount" headers; categories are matched by
// exact name.
func (s *ImportService) UploadPlansFromSheet(ctx context.Context, values [][]any) core.ImportResult {
	if len(values) == 0 {
		return structuralFailure("spreadsheet is empty")
	}
	header := toStrings(values[0])
	idxMonth := headerIndex(header, colPlanMonth)
	idxName := headerIndex(header, colCategoryName)
	idxAmount := headerIndex(header, colAmount)
	if idxMonth == -1 || idxName == -1 || idxAmount == -1 {
		return structuralFailure(fmt.Sprintf(
			"missing required columns: sheet must contain %q, %q and %q", colPlanMonth, colCategoryName, colAmount))
	}

	cats, err := s.categories.Load(ctx)
	if err != nil {
		return s.internalFailure(ctx, err)
	}

	var rows []planRow
	var rowErrs []core.RowError
	for i := 1; i < len(values); i++ {
		line := i + 1 // matrix index 1 is sheet row 2
		record := toStrings(values[i])
		row := planRow{line: line}
		ok := true

		row.period, err = parsePeriod(cell(record, idxMonth))
		if err != nil {
			rowErrs = append(rowErrs, core.RowError{Row: line, Message: err.Error()})
			ok = false
		}

		name := strings.TrimSpace(cell(record, idxName))
		if id, known := cats.IDByName(name); known {
			row.categoryID = id
		} else {
			rowErrs = append(rowErrs, core.RowError{Row: line, Message: fmt.Sprintf("category %q does not exist", name)})
			ok = false
		}

		row.amount, err = core.ParseMoney(cell(record, idxAmount))
		if err != nil {
			rowErrs = append(rowErrs, core.RowError{Row: line, Message: fmt.Sprintf("invalid amount %q", cell(record, idxAmount))})
			ok = false
		}

		if ok {
			rows = append(rows, row)
		}
	}

	return s.validateAndCommit(ctx, rows, rowErrs)
}

// validateAndCommit runs the cross-row checks, then either rejects the
// whole batch or writes every row in one transaction.
func (s *ImportService) validateAndCommit(ctx context.Context, rows []planRow, rowErrs []core.RowError) core.ImportResult {
	seen := make(map[string]bool, len(rows))
	var plans []core.Plan
	for _, row := range rows {
		key := row.period.Format(core.DateLayout) + "/" + strconv.FormatInt(row.categoryID, 10)
		if seen[key] {
			rowErrs = append(rowErrs, core.RowError{Row: row.line,
				Message: fmt.Sprintf("duplicate row for period %s and category %d within this file",
					row.period.Format(core.DateLayout), row.categoryID)})
			continue
		}
		seen[key] = true

		existing, err := s.store.PlanForPeriod(ctx, row.period, row.categoryID)
		if err != nil {
			return s.internalFailure(ctx, err)
		}
		if existing != nil {
			rowErrs = append(rowErrs, core.RowError{Row: row.line,
				Message: fmt.Sprintf("plan already exists for period %s and category %d",
					row.period.Format(core.DateLayout), row.categoryID)})
			continue
		}

		plans = append(plans, core.Plan{Period: row.period, Amount: row.amount, CategoryID: row.categoryID})
	}

	if len(rowErrs) > 0 {
		sort.Slice(rowErrs, func(i, j int) bool { return rowErrs[i].Row < rowErrs[j].Row })
		return core.ImportResult{
			Success: false,
			Message: "validation failed, nothing was imported",
			Errors:  rowErrs,
		}
	}
	if len(plans) == 0 {
		return structuralFailure("file contains no data rows")
	}

	if err := s.store.InsertPlans(ctx, plans); err != nil {
		if errors.Is(err, core.ErrDuplicatePlan) {
			// A concurrent import won the race between the pre-check and
			// the commit; the unique constraint kept the batch out.
			return core.ImportResult{
				Success: false,
				Message: "a plan for one of the periods was created concurrently, nothing was imported",
			}
		}
		return s.internalFailure(ctx, err)
	}

	s.publishImported(ctx, plans)

	return core.ImportResult{
		Success: true,
		Message: fmt.Sprintf("imported %d plans", len(plans)),
	}
}

// InsertCurrentMonthPlans creates this month's plan for every category that
// does not have one yet, targeting the previous month's payment actuals
// plus ten percent. Existing (period, category) plans are left untouched.
func (s *ImportService) InsertCurrentMonthPlans(ctx context.Context, today time.Time) error {
	period := core.MonthStart(today)
	previous := period.AddDate(0, -1, 0)

	cats, err := s.categories.Load(ctx)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(cats.All()))
	for id := range cats.All() {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var plans []core.Plan
	for _, id := range ids {
		existing, err := s.store.PlanForPeriod(ctx, period, id)
		if err != nil {
			return fmt.Errorf("check existing plan: %w", err)
		}
		if existing != nil {
			continue
		}

		_, previousSum, err := s.store.SumPaymentsByCategory(ctx, id, previous, period)
		if err != nil {
			return fmt.Errorf("previous month actuals for category %d: %w", id, err)
		}

		plans = append(plans, core.Plan{
			Period:     period,
			Amount:     core.Money{Cents: previousSum.Cents * 11 / 10},
			CategoryID: id,
		})
	}
	if len(plans) == 0 {
		return nil
	}

	if err := s.store.InsertPlans(ctx, plans); err != nil {
		return fmt.Errorf("insert current month plans: %w", err)
	}
	slog.InfoContext(ctx, "Current month plans created",
		"period", period.Format(core.DateLayout), "count", len(plans))
	return nil
}

func (s *ImportService) publishImported(ctx context.Context, plans []core.Plan) {
	if s.events == nil {
		return
	}

	periodSet := make(map[string]bool)
	var periods []string
	for _, p := range plans {
		key := p.Period.Format(core.DateLayout)
		if !periodSet[key] {
			periodSet[key] = true
			periods = append(periods, key)
		}
	}
	sort.Strings(periods)

	if err := s.events.PublishPlansImported(ctx, amqp.NewPlansImportedMessage(periods, len(plans))); err != nil {
		// Plans are committed either way; export catches up on the next run.
		slog.ErrorContext(ctx, "Failed to publish plans imported event", "error", err)
	}
}

// internalFailure classifies unexpected faults (store unavailability, I/O)
// as a generic non-success result: logged, never crashing the caller,
// never silently swallowed.
func (s *ImportService) internalFailure(ctx context.Context, err error) core.ImportResult {
	slog.ErrorContext(ctx, "Plan import failed", "error", err)
	return core.ImportResult{Success: false, Message: "import failed due to an internal error"}
}

func structuralFailure(message string) core.ImportResult {
	return core.ImportResult{Success: false, Message: message}
}

// parsePeriod accepts DD.MM.YYYY (tab-delimited files) and YYYY-MM-DD
// (spreadsheet date cells) and requires the first day of a month.
func parsePeriod(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(core.LedgerDateLayout, s)
	if err != nil {
		t, err = time.Parse(core.DateLayout, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period %q", s)
	}
	if !core.IsMonthStart(t) {
		return time.Time{}, fmt.Errorf("period %s is not the first day of a month", s)
	}
	return t, nil
}

func headerIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func toStrings(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}
