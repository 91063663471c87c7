package loan

import "github.com/shopspring/decimal"

// Rate floors enforced per credit-score band, annual percent.
var (
	rateFloorModerate = decimal.RequireFromString("12.0")
	rateFloorHigh     = decimal.RequireFromString("16.0")
)

// Affordability caps total monthly EMIs at half the monthly salary.
var affordabilityRatio = decimal.RequireFromString("0.5")

// CorrectRate maps a credit score and requested annual rate to the rate the
// loan may actually be originated at. approved=false is a hard decline: a
// score of 10 or below produces no rate at all.
func CorrectRate(score int, requestedRate decimal.Decimal) (corrected decimal.Decimal, approved bool) {
	switch {
	case score > 50:
		return requestedRate, true
	case score > 30:
		return decimal.Max(requestedRate, rateFloorModerate), true
	case score > 10:
		return decimal.Max(requestedRate, rateFloorHigh), true
	default:
		return decimal.Decimal{}, false
	}
}

// Affordable reports whether the customer can take on a new installment:
// the sum of monthly repayments on currently-active loans plus the new
// installment must not exceed half the monthly salary. The boundary is
// inclusive.
func Affordable(monthlySalary, newInstallment decimal.Decimal, activeLoans []*Loan) bool {
	total := newInstallment
	for _, l := range activeLoans {
		total = total.Add(l.MonthlyRepayment)
	}
	threshold := monthlySalary.Mul(affordabilityRatio)
	return total.LessThanOrEqual(threshold)
}
