package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"credit-engine/internal/domain/loan"
)

type LoanEligibilityRequest struct {
	CustomerID   int64           `json:"customer_id"`
	LoanAmount   decimal.Decimal `json:"loan_amount"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	Tenure       int             `json:"tenure"`
}

// Validate rejects only structurally unusable payloads; range checks
// (limit, rate band, tenure bounds) belong to the service so they can be
// accumulated into a single validation error.
func (r *LoanEligibilityRequest) Validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("customer_id must be positive")
	}
	return nil
}

func (r *LoanEligibilityRequest) ToServiceRequest() loan.EligibilityRequest {
	return loan.EligibilityRequest{
		CustomerID:   r.CustomerID,
		LoanAmount:   r.LoanAmount,
		InterestRate: r.InterestRate,
		TenureMonths: r.Tenure,
	}
}

type LoanEligibilityResponse struct {
	CustomerID            int64           `json:"customer_id"`
	Approval              bool            `json:"approval"`
	InterestRate          decimal.Decimal `json:"interest_rate"`
	CorrectedInterestRate decimal.Decimal `json:"corrected_interest_rate"`
	Tenure                int             `json:"tenure"`
	MonthlyInstallment    decimal.Decimal `json:"monthly_installment"`
}

func NewLoanEligibilityResponse(result *loan.EligibilityResult) LoanEligibilityResponse {
	return LoanEligibilityResponse{
		CustomerID:            result.CustomerID,
		Approval:              result.Approved,
		InterestRate:          result.InterestRate,
		CorrectedInterestRate: result.CorrectedInterestRate,
		Tenure:                result.TenureMonths,
		MonthlyInstallment:    result.MonthlyInstallment,
	}
}

type LoanCreationResponse struct {
	LoanID             *int64          `json:"loan_id"`
	CustomerID         int64           `json:"customer_id"`
	LoanApproved       bool            `json:"loan_approved"`
	Message            string          `json:"message"`
	MonthlyInstallment decimal.Decimal `json:"monthly_installment"`
}

func NewLoanCreationResponse(result *loan.OriginationResult) LoanCreationResponse {
	return LoanCreationResponse{
		LoanID:             result.LoanID,
		CustomerID:         result.CustomerID,
		LoanApproved:       result.Approved,
		Message:            result.Message,
		MonthlyInstallment: result.MonthlyInstallment,
	}
}

type LoanCustomerSummary struct {
	CustomerID  int64  `json:"customer_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Age         int    `json:"age"`
}

type LoanDetailResponse struct {
	LoanID           int64               `json:"loan_id"`
	Customer         LoanCustomerSummary `json:"customer"`
	LoanAmount       decimal.Decimal     `json:"loan_amount"`
	InterestRate     decimal.Decimal     `json:"interest_rate"`
	MonthlyRepayment decimal.Decimal     `json:"monthly_repayment"`
	Tenure           int                 `json:"tenure"`
}

func NewLoanDetailResponse(detail *loan.LoanDetail) LoanDetailResponse {
	return LoanDetailResponse{
		LoanID: detail.Loan.LoanID,
		Customer: LoanCustomerSummary{
			CustomerID:  detail.Customer.CustomerID,
			FirstName:   detail.Customer.FirstName,
			LastName:    detail.Customer.LastName,
			PhoneNumber: detail.Customer.PhoneNumber,
			Age:         detail.Customer.Age,
		},
		LoanAmount:       detail.Loan.LoanAmount,
		InterestRate:     detail.Loan.InterestRate,
		MonthlyRepayment: detail.Loan.MonthlyRepayment,
		Tenure:           detail.Loan.TenureMonths,
	}
}

type CustomerLoanResponse struct {
	LoanID           int64           `json:"loan_id"`
	LoanAmount       decimal.Decimal `json:"loan_amount"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	MonthlyRepayment decimal.Decimal `json:"monthly_repayment"`
	RepaymentsLeft   int             `json:"repayments_left"`
}

func NewCustomerLoanResponses(loans []*loan.Loan, today time.Time) []CustomerLoanResponse {
	resp := make([]CustomerLoanResponse, len(loans))
	for i, l := range loans {
		resp[i] = CustomerLoanResponse{
			LoanID:           l.LoanID,
			LoanAmount:       l.LoanAmount,
			InterestRate:     l.InterestRate,
			MonthlyRepayment: l.MonthlyRepayment,
			RepaymentsLeft:   l.RepaymentsLeft(today),
		}
	}
	return resp
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}
