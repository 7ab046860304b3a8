package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loanoffice/internal/amqp"
	"loanoffice/internal/core"
	"loanoffice/internal/services"
	"loanoffice/internal/sheets"
)

// ExportWorker pushes finished month reports to the reporting spreadsheet.
// It reacts to plan import events and also re-exports on a timer so a lost
// message never leaves the sheet stale for more than one interval.
type ExportWorker struct {
	performance *services.PerformanceService
	writer      sheets.ReportWriter
	now         func() time.Time
}

func NewExportWorker(performance *services.PerformanceService, writer sheets.ReportWriter) *ExportWorker {
	return &ExportWorker{
		performance: performance,
		writer:      writer,
		now:         time.Now,
	}
}

// HandlePlansImported re-exports every period named by an import event.
func (w *ExportWorker) HandlePlansImported(ctx context.Context, msg *amqp.PlansImportedMessage) error {
	slog.InfoContext(ctx, "Processing plans imported event",
		"periods", msg.Periods,
		"count", msg.Count)

	for _, p := range msg.Periods {
		period, err := time.Parse(core.DateLayout, p)
		if err != nil {
			// Malformed periods are dropped, not requeued; redelivery
			// cannot make them parse.
			slog.ErrorContext(ctx, "Skipping malformed period in event", "period", p, "error", err)
			continue
		}
		if err := w.ExportMonth(ctx, period.Year(), int(period.Month())); err != nil {
			return fmt.Errorf("export %s: %w", p, err)
		}
	}
	return nil
}

// ExportMonth computes the plan performance report for one month and writes
// it to the spreadsheet. Past months are reported over the whole month;
// the current month is cut off at today.
func (w *ExportWorker) ExportMonth(ctx context.Context, year int, month int) error {
	period := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)

	asOf := core.NextMonth(period).AddDate(0, 0, -1)
	if today := core.DayStart(w.now().UTC()); today.Before(asOf) {
		asOf = today
	}
	if asOf.Before(period) {
		return fmt.Errorf("month %d-%02d has not started yet", year, month)
	}

	report, err := w.performance.PlansPerformance(ctx, asOf)
	if err != nil {
		return fmt.Errorf("compute performance: %w", err)
	}

	if err := w.writer.WriteMonthReport(ctx, year, month, report); err != nil {
		return fmt.Errorf("write month report: %w", err)
	}

	slog.InfoContext(ctx, "Month report exported",
		"year", year,
		"month", month,
		"categories", len(report))
	return nil
}

// RunPeriodicExport re-exports the current month on every tick until the
// context ends. The first export happens immediately.
func (w *ExportWorker) RunPeriodicExport(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		now := w.now().UTC()
		if err := w.ExportMonth(ctx, now.Year(), int(now.Month())); err != nil {
			slog.ErrorContext(ctx, "Periodic export failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
