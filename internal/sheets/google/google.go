package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"loanoffice/internal/core"
	ports "loanoffice/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client reads plan uploads from and writes month reports to a single
// spreadsheet. Sheet names come from the environment so the back office can
// repoint the export without a redeploy.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	plansSheet    string
	reportBase    string
}

// Ensure interface conformance
var (
	_ ports.PlanRowsReader = (*Client)(nil)
	_ ports.ReportWriter   = (*Client)(nil)
)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service account credentials via
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional sheet names: GOOGLE_PLANS_SHEET_NAME (default "Plans"),
// GOOGLE_REPORT_SHEET_NAME (default "Report").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	plansSheet := strings.TrimSpace(os.Getenv("GOOGLE_PLANS_SHEET_NAME"))
	if plansSheet == "" {
		plansSheet = "Plans"
	}
	reportBase := strings.TrimSpace(os.Getenv("GOOGLE_REPORT_SHEET_NAME"))
	if reportBase == "" {
		reportBase = "Report"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		plansSheet:    plansSheet,
		reportBase:    reportBase,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ReadPlanRows returns the full plan sheet, header included, as the raw
// values matrix the Sheets API hands back.
func (c *Client) ReadPlanRows(ctx context.Context) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:C", c.plansSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// WriteMonthReport replaces the report sheet's contents for the given month
// with the plan-vs-actual figures. The previous export is cleared first so a
// shrinking report never leaves stale rows behind.
func (c *Client) WriteMonthReport(ctx context.Context, year int, month int, report []core.CategoryPerformance) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("invalid month: %d", month)
	}

	sheetName := c.reportSheetName(year)
	clearRng := fmt.Sprintf("%s!A:F", sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRng, err)
	}

	values := [][]any{
		{"period", "category", "planned", "actual", "difference", "performance %"},
	}
	period := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format(core.DateLayout)
	for _, row := range report {
		values = append(values, []any{
			period, row.Category, row.Planned, row.Actual, row.Difference, row.Performance,
		})
	}

	writeRng := fmt.Sprintf("%s!A1:F%d", sheetName, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", writeRng, err)
	}
	return nil
}

// reportSheetName returns "<year> <base>" unless the base already carries a
// year prefix.
func (c *Client) reportSheetName(year int) string {
	base := strings.TrimSpace(c.reportBase)
	if len(base) >= 5 && base[4] == ' ' && isYear(base[:4]) {
		return base
	}
	return fmt.Sprintf("%d %s", year, base)
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s >= "1900" && s <= "2999"
}
