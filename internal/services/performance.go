// Package services contains the reporting core: the performance
// aggregator, the loan status projector, and the bulk plan importer. Each
// operation is request-scoped and holds no state across calls; the ledger
// store is the only shared resource.
package services

import (
	"context"
	"fmt"
	"time"

	"loanoffice/internal/category"
	"loanoffice/internal/core"
	"loanoffice/internal/storage"
)

// PerformanceService computes plan-vs-actual figures and the yearly
// issuance/collection rollup.
type PerformanceService struct {
	store      storage.Ledger
	categories *category.Resolver
}

func NewPerformanceService(store storage.Ledger, categories *category.Resolver) *PerformanceService {
	return &PerformanceService{store: store, categories: categories}
}

// PlansPerformance returns one record per plan of the month enclosing asOf.
// Actuals cover [month start, asOf] inclusive: an issuance-role plan sums
// credit principal issued in the window, every other plan sums its
// category's payments. A period without plans yields an empty report, not
// an error.
func (s *PerformanceService) PlansPerformance(ctx context.Context, asOf time.Time) ([]core.CategoryPerformance, error) {
	period := core.MonthStart(asOf)
	plans, err := s.store.PlansByPeriod(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	if len(plans) == 0 {
		return []core.CategoryPerformance{}, nil
	}

	cats, err := s.categories.Load(ctx)
	if err != nil {
		return nil, err
	}

	before := core.DayStart(asOf).AddDate(0, 0, 1)
	report := make([]core.CategoryPerformance, 0, len(plans))
	for _, plan := range plans {
		var actual core.Money
		switch cats.RoleOf(plan.CategoryID) {
		case core.RoleIssuance:
			_, actual, err = s.store.SumCreditsIssued(ctx, period, before)
		default:
			// Collection and every unclassified category: sum of the
			// category's payments in the window.
			_, actual, err = s.store.SumPaymentsByCategory(ctx, plan.CategoryID, period, before)
		}
		if err != nil {
			return nil, fmt.Errorf("actual for category %d: %w", plan.CategoryID, err)
		}

		report = append(report, core.CategoryPerformance{
			Category:    cats.NameByID(plan.CategoryID),
			Planned:     plan.Amount.Units(),
			Actual:      actual.Units(),
			Difference:  actual.Sub(plan.Amount).Units(),
			Performance: core.Percentage(actual, plan.Amount),
		})
	}
	return report, nil
}

// YearSummary rolls the twelve months of a year up for the issuance and
// collection categories. The yearly totals are the sums of the monthly
// cent amounts, so they match the months exactly; December's window rolls
// into January of the following year. Missing issuance/collection
// categories or plans degrade to zero figures.
func (s *PerformanceService) YearSummary(ctx context.Context, year int) (core.YearSummary, error) {
	cats, err := s.categories.Load(ctx)
	if err != nil {
		return core.YearSummary{}, err
	}
	issuanceID, hasIssuance := cats.IDByRole(core.RoleIssuance)
	collectionID, hasCollection := cats.IDByRole(core.RoleCollection)

	summary := core.YearSummary{Year: year, Months: make([]core.MonthSummary, 0, 12)}
	var (
		issuedAmounts  [12]core.Money
		paymentAmounts [12]core.Money

		totalIssued     core.Money
		totalPaid       core.Money
		totalPlanIssued core.Money
		totalPlanPaid   core.Money
	)

	for month := 1; month <= 12; month++ {
		period := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		next := core.NextMonth(period)

		issuedCount, issuedAmount, err := s.store.SumCreditsIssued(ctx, period, next)
		if err != nil {
			return core.YearSummary{}, fmt.Errorf("month %d issuance: %w", month, err)
		}

		var paymentCount int
		var paymentAmount core.Money
		if hasCollection {
			paymentCount, paymentAmount, err = s.store.SumPaymentsByCategory(ctx, collectionID, period, next)
			if err != nil {
				return core.YearSummary{}, fmt.Errorf("month %d collection: %w", month, err)
			}
		}

		var plannedIssuance, plannedCollection core.Money
		if hasIssuance {
			if plan, err := s.store.PlanForPeriod(ctx, period, issuanceID); err != nil {
				return core.YearSummary{}, fmt.Errorf("month %d issuance plan: %w", month, err)
			} else if plan != nil {
				plannedIssuance = plan.Amount
			}
		}
		if hasCollection {
			if plan, err := s.store.PlanForPeriod(ctx, period, collectionID); err != nil {
				return core.YearSummary{}, fmt.Errorf("month %d collection plan: %w", month, err)
			} else if plan != nil {
				plannedCollection = plan.Amount
			}
		}

		issuedAmounts[month-1] = issuedAmount
		paymentAmounts[month-1] = paymentAmount
		totalIssued = totalIssued.Add(issuedAmount)
		totalPaid = totalPaid.Add(paymentAmount)
		totalPlanIssued = totalPlanIssued.Add(plannedIssuance)
		totalPlanPaid = totalPlanPaid.Add(plannedCollection)

		summary.Months = append(summary.Months, core.MonthSummary{
			Month:             month,
			IssuedCount:       issuedCount,
			IssuedAmount:      issuedAmount.Units(),
			PlannedIssuance:   plannedIssuance.Units(),
			IssuancePerf:      core.Percentage(issuedAmount, plannedIssuance),
			PaymentCount:      paymentCount,
			PaymentAmount:     paymentAmount.Units(),
			PlannedCollection: plannedCollection.Units(),
			CollectionPerf:    core.Percentage(paymentAmount, plannedCollection),
		})
		summary.TotalIssuedCount += issuedCount
		summary.TotalPaymentCount += paymentCount
	}

	// Shares need the yearly totals, so they come in a second pass.
	for i := range summary.Months {
		summary.Months[i].IssuanceShare = core.Percentage(issuedAmounts[i], totalIssued)
		summary.Months[i].PaymentShare = core.Percentage(paymentAmounts[i], totalPaid)
	}

	summary.TotalIssuedAmount = totalIssued.Units()
	summary.TotalPaymentAmount = totalPaid.Units()
	summary.TotalPlannedIssuance = totalPlanIssued.Units()
	summary.TotalPlannedCollection = totalPlanPaid.Units()
	summary.IssuancePerf = core.Percentage(totalIssued, totalPlanIssued)
	summary.CollectionPerf = core.Percentage(totalPaid, totalPlanPaid)
	return summary, nil
}
