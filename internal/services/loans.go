package services

import (
	"context"
	"fmt"
	"time"

	"loanoffice/internal/category"
	"loanoffice/internal/core"
	"loanoffice/internal/storage"
)

// LoanService projects per-credit open/closed views and the open-loan user
// listing.
type LoanService struct {
	store      storage.Ledger
	categories *category.Resolver

	// now is swappable so overdue computations can be pinned in tests.
	now func() time.Time
}

func NewLoanService(store storage.Ledger, categories *category.Resolver) *LoanService {
	return &LoanService{store: store, categories: categories, now: time.Now}
}

// UserCredits projects every credit owned by the user together with its
// payment history. A user without credits is a not-found condition, not a
// fault.
func (s *LoanService) UserCredits(ctx context.Context, userID int64) ([]core.UserCredit, error) {
	credits, err := s.store.CreditsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load credits: %w", err)
	}
	if len(credits) == 0 {
		return nil, fmt.Errorf("credits for user %d: %w", userID, core.ErrNotFound)
	}

	cats, err := s.categories.Load(ctx)
	if err != nil {
		return nil, err
	}
	principalID, hasPrincipal := cats.IDByRole(core.RolePrincipal)
	interestID, hasInterest := cats.IDByRole(core.RoleInterest)
	today := s.now()

	projections := make([]core.UserCredit, 0, len(credits))
	for _, credit := range credits {
		payments, err := s.store.PaymentsByCredit(ctx, credit.ID)
		if err != nil {
			return nil, fmt.Errorf("payments for credit %d: %w", credit.ID, err)
		}

		var total, body, interest core.Money
		history := make([]core.CreditPayment, 0, len(payments))
		for _, p := range payments {
			total = total.Add(p.Amount)
			if hasPrincipal && p.CategoryID == principalID {
				body = body.Add(p.Amount)
			}
			if hasInterest && p.CategoryID == interestID {
				interest = interest.Add(p.Amount)
			}
			history = append(history, core.CreditPayment{
				Date:     p.Date,
				Amount:   p.Amount.Units(),
				Category: cats.NameByID(p.CategoryID),
			})
		}

		projection := core.UserCredit{
			CreditID:     credit.ID,
			IssuanceDate: credit.IssuanceDate,
			IsClosed:     credit.Closed(),
			Payments:     history,
		}
		if credit.Closed() {
			projection.Closed = &core.ClosedLoan{
				RepaymentDate:   core.DayStart(*credit.ActualReturnDate),
				LoanAmount:      credit.Body.Units(),
				AccruedInterest: credit.Percent.Units(),
				PaymentAmount:   total.Units(),
			}
		} else {
			projection.Open = &core.OpenLoan{
				RepaymentDeadline: core.DayStart(credit.ReturnDate),
				OverdueDays:       core.DaysOverdue(credit.ReturnDate, today),
				LoanAmount:        credit.Body.Units(),
				AccruedInterest:   credit.Percent.Units(),
				BodyPayments:      body.Units(),
				InterestPayments:  interest.Units(),
			}
		}
		projections = append(projections, projection)
	}
	return projections, nil
}

// UsersWithOpenLoans lists every user holding at least one open credit,
// each with only their open credits projected. Users whose credits are all
// closed do not appear.
func (s *LoanService) UsersWithOpenLoans(ctx context.Context) ([]core.UserOpenLoans, error) {
	users, err := s.store.UsersWithOpenCredits(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("users with open loans: %w", core.ErrNotFound)
	}

	report := make([]core.UserOpenLoans, 0, len(users))
	for _, user := range users {
		credits, err := s.UserCredits(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("project user %d: %w", user.ID, err)
		}

		open := make([]core.UserCredit, 0, len(credits))
		for _, c := range credits {
			if !c.IsClosed {
				open = append(open, c)
			}
		}
		if len(open) == 0 {
			continue
		}
		report = append(report, core.UserOpenLoans{
			UserID:           user.ID,
			Login:            user.Login,
			RegistrationDate: user.RegistrationDate,
			OpenLoans:        open,
		})
	}
	if len(report) == 0 {
		return nil, fmt.Errorf("users with open loans: %w", core.ErrNotFound)
	}
	return report, nil
}
