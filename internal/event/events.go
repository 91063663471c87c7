package event

import "time"

type CustomerEventPayload struct {
	CustomerID    int64  `json:"customerId"`
	Name          string `json:"name"`
	Age           int    `json:"age"`
	PhoneNumber   string `json:"phoneNumber"`
	MonthlySalary string `json:"monthlySalary"`
	ApprovedLimit string `json:"approvedLimit"`
}

type CustomerRegisteredEvent struct {
	EventID   string               `json:"eventId"`
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

type LoanEventPayload struct {
	LoanID             int64  `json:"loanId"`
	CustomerID         int64  `json:"customerId"`
	LoanAmount         string `json:"loanAmount"`
	InterestRate       string `json:"interestRate"`
	TenureMonths       int    `json:"tenureMonths"`
	MonthlyInstallment string `json:"monthlyInstallment"`
	StartDate          string `json:"startDate"`
	EndDate            string `json:"endDate"`
}

type LoanCreatedEvent struct {
	EventID   string           `json:"eventId"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   LoanEventPayload `json:"payload"`
}
