package customer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"credit-engine/internal/pkg/apperrors"
)

const (
	MinAge = 18
	MaxAge = 100
)

// limitSalaryMultiple and limitRoundingUnit define the approved credit
// limit: 36x the monthly salary, rounded half-up to the nearest lakh.
var (
	limitSalaryMultiple = decimal.NewFromInt(36)
	limitRoundingUnit   = decimal.NewFromInt(100_000)
)

type Customer struct {
	CustomerID    int64
	FirstName     string
	LastName      string
	Age           int
	PhoneNumber   string
	MonthlySalary decimal.Decimal
	ApprovedLimit decimal.Decimal
	CurrentDebt   decimal.Decimal
	CreatedAt     time.Time
}

func NewCustomer(firstName, lastName string, age int, phoneNumber string, monthlySalary decimal.Decimal) (*Customer, error) {
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", apperrors.ErrValidation)
	}
	if age < MinAge || age > MaxAge {
		return nil, apperrors.NewValidationError("age", fmt.Sprintf("must be between %d and %d", MinAge, MaxAge))
	}
	if phoneNumber == "" {
		return nil, apperrors.NewValidationError("phone_number", "cannot be empty")
	}
	if monthlySalary.IsNegative() {
		return nil, apperrors.NewValidationError("monthly_income", "cannot be negative")
	}

	return &Customer{
		FirstName:     firstName,
		LastName:      lastName,
		Age:           age,
		PhoneNumber:   phoneNumber,
		MonthlySalary: monthlySalary,
		ApprovedLimit: ApprovedLimitFromSalary(monthlySalary),
		CurrentDebt:   decimal.Zero,
	}, nil
}

// ApprovedLimitFromSalary computes 36x the monthly salary rounded to the
// nearest multiple of 100,000. Decimal.Round rounds halves away from zero,
// which is half-up for the non-negative salaries allowed here.
func ApprovedLimitFromSalary(monthlySalary decimal.Decimal) decimal.Decimal {
	limit := limitSalaryMultiple.Mul(monthlySalary)
	return limit.Div(limitRoundingUnit).Round(0).Mul(limitRoundingUnit)
}

func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}
