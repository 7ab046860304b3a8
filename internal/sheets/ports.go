package sheets

import (
	"context"

	"loanoffice/internal/core"
)

// Ports for the spreadsheet adapters.
type (
	// PlanRowsReader returns the raw plan sheet as a values matrix,
	// header row included. Parsing and validation belong to the import
	// service, not the adapter.
	PlanRowsReader interface {
		ReadPlanRows(ctx context.Context) ([][]any, error)
	}

	// ReportWriter publishes a finished month report to the reporting
	// spreadsheet, replacing whatever the previous export wrote there.
	ReportWriter interface {
		WriteMonthReport(ctx context.Context, year int, month int, report []core.CategoryPerformance) error
	}
)
