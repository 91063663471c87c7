package loan

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"credit-engine/internal/pkg/apperrors"
)

const (
	MinTenureMonths = 1
	MaxTenureMonths = 360
)

// MaxInterestRate bounds requested annual rates, in percent.
var MaxInterestRate = decimal.NewFromInt(50)

type Loan struct {
	LoanID           int64
	CustomerID       int64
	LoanAmount       decimal.Decimal
	TenureMonths     int
	InterestRate     decimal.Decimal
	MonthlyRepayment decimal.Decimal
	EMIsPaidOnTime   int
	StartDate        time.Time
	EndDate          time.Time
	CreatedAt        time.Time
}

// NewLoan builds an originated loan starting today. The end date is
// approximated as tenure x 30 days from the start date.
func NewLoan(customerID int64, amount decimal.Decimal, tenureMonths int, interestRate, monthlyRepayment decimal.Decimal, startDate time.Time) (*Loan, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer ID must be positive", apperrors.ErrInvalidArgument)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: loan amount must be positive", apperrors.ErrInvalidArgument)
	}
	if tenureMonths < MinTenureMonths {
		return nil, fmt.Errorf("%w: tenure must be at least one month", apperrors.ErrInvalidArgument)
	}
	if startDate.IsZero() {
		startDate = DateOnly(time.Now())
	}

	return &Loan{
		CustomerID:       customerID,
		LoanAmount:       amount,
		TenureMonths:     tenureMonths,
		InterestRate:     interestRate,
		MonthlyRepayment: monthlyRepayment,
		EMIsPaidOnTime:   0,
		StartDate:        startDate,
		EndDate:          startDate.AddDate(0, 0, tenureMonths*30),
	}, nil
}

// ActiveOn reports whether the loan is still running on the given date,
// meaning its end date is that date or later.
func (l *Loan) ActiveOn(today time.Time) bool {
	return !l.EndDate.Before(DateOnly(today))
}

// RepaymentsLeft returns the number of monthly repayments remaining,
// derived from whole calendar months elapsed since the start date and
// clamped to zero once the end date has passed.
func (l *Loan) RepaymentsLeft(today time.Time) int {
	today = DateOnly(today)
	if !today.Before(l.EndDate) {
		return 0
	}

	monthsPassed := (today.Year()-l.StartDate.Year())*12 + int(today.Month()) - int(l.StartDate.Month())
	if left := l.TenureMonths - monthsPassed; left > 0 {
		return left
	}
	return 0
}

// DateOnly strips the time-of-day component, keeping calendar comparisons
// stable regardless of when during the day a request arrives.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
