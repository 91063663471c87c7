package loan

import (
	"fmt"

	"github.com/shopspring/decimal"

	"credit-engine/internal/pkg/apperrors"
)

var (
	one     = decimal.NewFromInt(1)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// MonthlyInstallment computes the amortized EMI for a loan:
//
//	EMI = P * r * (1+r)^n / ((1+r)^n - 1)
//
// with r the monthly rate (annual percent / 100 / 12) and n the tenure in
// months. A zero rate degenerates to principal / tenure. The result is
// quantized to two decimal places, rounding halves up. Numeric failure is
// reported through the error; callers substitute zero and must not treat
// that zero as a free loan.
func MonthlyInstallment(principal, annualRatePercent decimal.Decimal, tenureMonths int) (emi decimal.Decimal, err error) {
	defer func() {
		if p := recover(); p != nil {
			emi = decimal.Zero
			err = fmt.Errorf("%w: installment calculation: %v", apperrors.ErrScoringDegraded, p)
		}
	}()

	if tenureMonths <= 0 {
		return decimal.Zero, fmt.Errorf("%w: tenure must be positive", apperrors.ErrInvalidArgument)
	}
	if principal.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: principal cannot be negative", apperrors.ErrInvalidArgument)
	}

	n := decimal.NewFromInt(int64(tenureMonths))
	monthlyRate := annualRatePercent.Div(hundred).Div(twelve)

	if monthlyRate.IsZero() {
		return principal.Div(n).Round(2), nil
	}

	power := one.Add(monthlyRate).Pow(n)
	denominator := power.Sub(one)
	if denominator.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: degenerate amortization denominator", apperrors.ErrScoringDegraded)
	}

	emi = principal.Mul(monthlyRate).Mul(power).Div(denominator)
	return emi.Round(2), nil
}
