package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
)

// Decision messages returned to callers. A decline is a normal result,
// never an error.
const (
	MsgApproved         = "Loan approved successfully"
	MsgLowCreditScore   = "Loan not approved due to low credit score"
	MsgEMIThreshold     = "Loan not approved: EMIs exceed 50% of monthly salary"
	MsgInstallmentError = "Loan not approved: monthly installment could not be computed"
)

type EligibilityRequest struct {
	CustomerID   int64
	LoanAmount   decimal.Decimal
	InterestRate decimal.Decimal
	TenureMonths int
}

type EligibilityResult struct {
	CustomerID            int64
	Approved              bool
	InterestRate          decimal.Decimal
	CorrectedInterestRate decimal.Decimal
	TenureMonths          int
	MonthlyInstallment    decimal.Decimal
}

type OriginationResult struct {
	LoanID             *int64
	CustomerID         int64
	Approved           bool
	Message            string
	MonthlyInstallment decimal.Decimal
}

// LoanDetail pairs a loan with its owning customer.
type LoanDetail struct {
	Loan     *Loan
	Customer *customer.Customer
}

type LoanService interface {
	// CheckEligibility runs the full decision flow without persisting
	// anything. It is read-only and safe to run concurrently.
	CheckEligibility(ctx context.Context, req EligibilityRequest) (*EligibilityResult, error)

	// CreateLoan runs the same decision flow and, on approval, materializes
	// the loan inside a transaction holding the customer row lock.
	CreateLoan(ctx context.Context, req EligibilityRequest) (*OriginationResult, error)

	GetLoan(ctx context.Context, loanID int64) (*LoanDetail, error)

	GetCustomerActiveLoans(ctx context.Context, customerID int64) ([]*Loan, error)
}

type loanServiceImpl struct {
	repo            Repository
	customerService customer.CustomerService
	scorer          *Scorer
	pub             event.EventPublisher
	logger          *slog.Logger
}

func NewLoanService(r Repository, cs customer.CustomerService, scorer *Scorer, pub event.EventPublisher, logger *slog.Logger) LoanService {
	if r == nil || cs == nil || scorer == nil || logger == nil {
		panic("loan service dependencies cannot be nil")
	}
	if pub == nil {
		pub = event.NoopEventPublisher{}
	}
	return &loanServiceImpl{repo: r, customerService: cs, scorer: scorer, pub: pub, logger: logger.With(slog.String("component", "loanService"))}
}

func (s *loanServiceImpl) CheckEligibility(ctx context.Context, req EligibilityRequest) (*EligibilityResult, error) {
	logCtx := s.logger.With(slog.Int64("customerID", req.CustomerID))
	logCtx.InfoContext(ctx, "Checking loan eligibility")

	cust, err := s.loadCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(cust, req); err != nil {
		logCtx.WarnContext(ctx, "Eligibility request failed validation", slog.Any("error", err))
		return nil, err
	}

	loans, err := s.repo.FindByCustomerID(ctx, req.CustomerID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to load loan history", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to load loan history: %v", apperrors.ErrInternalServer, err)
	}

	d := s.evaluate(ctx, cust, loans, req, time.Now())
	monitoring.RecordDecision("check", d.outcome)

	return &EligibilityResult{
		CustomerID:            req.CustomerID,
		Approved:              d.approved,
		InterestRate:          req.InterestRate,
		CorrectedInterestRate: d.effectiveRate,
		TenureMonths:          req.TenureMonths,
		MonthlyInstallment:    d.installment,
	}, nil
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, req EligibilityRequest) (result *OriginationResult, err error) {
	logCtx := s.logger.With(slog.Int64("customerID", req.CustomerID))
	logCtx.InfoContext(ctx, "Processing loan origination")

	cust, err := s.loadCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(cust, req); err != nil {
		logCtx.WarnContext(ctx, "Origination request failed validation", slog.Any("error", err))
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to begin origination transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	// Holding the customer row lock across read-score-persist prevents two
	// concurrent requests from both passing the affordability gate.
	if err = s.repo.LockCustomerForOrigination(ctx, tx, req.CustomerID); err != nil {
		logCtx.ErrorContext(ctx, "Failed to lock customer for origination", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not lock customer: %v", apperrors.ErrInternalServer, err)
	}

	loans, err := s.repo.FindByCustomerInTx(ctx, tx, req.CustomerID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to load loan history", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to load loan history: %v", apperrors.ErrInternalServer, err)
	}

	today := time.Now()
	d := s.evaluate(ctx, cust, loans, req, today)
	monitoring.RecordDecision("create", d.outcome)

	if !d.approved {
		_ = s.repo.RollbackTx(ctx, tx)
		logCtx.InfoContext(ctx, "Loan declined", slog.String("reason", d.message))
		return &OriginationResult{
			CustomerID:         req.CustomerID,
			Approved:           false,
			Message:            d.message,
			MonthlyInstallment: d.installment,
		}, nil
	}

	newLoan, err := NewLoan(req.CustomerID, req.LoanAmount, req.TenureMonths, d.effectiveRate, d.installment, DateOnly(today))
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to build loan object", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create loan object: %w", err)
	}

	created, err := s.repo.CreateLoanInTx(ctx, tx, newLoan)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to persist loan", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to save loan: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		logCtx.ErrorContext(ctx, "Failed to commit origination transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	s.publishLoanCreated(ctx, created)
	logCtx.InfoContext(ctx, "Loan created successfully", slog.Int64("loanID", created.LoanID))

	return &OriginationResult{
		LoanID:             &created.LoanID,
		CustomerID:         req.CustomerID,
		Approved:           true,
		Message:            MsgApproved,
		MonthlyInstallment: d.installment,
	}, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*LoanDetail, error) {
	s.logger.InfoContext(ctx, "Getting loan details", slog.Int64("loanID", loanID))

	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Loan not found", slog.Int64("loanID", loanID))
			return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.ErrorContext(ctx, "Failed to get loan", slog.Int64("loanID", loanID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}

	cust, err := s.customerService.GetCustomer(ctx, l.CustomerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load loan owner", slog.Int64("loanID", loanID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to load owner of loan %d: %w", loanID, err)
	}

	return &LoanDetail{Loan: l, Customer: cust}, nil
}

func (s *loanServiceImpl) GetCustomerActiveLoans(ctx context.Context, customerID int64) ([]*Loan, error) {
	s.logger.InfoContext(ctx, "Getting active loans for customer", slog.Int64("customerID", customerID))

	if _, err := s.loadCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	loans, err := s.repo.FindActiveByCustomerID(ctx, customerID, DateOnly(time.Now()))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load active loans", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to load active loans: %v", apperrors.ErrInternalServer, err)
	}
	return loans, nil
}

func (s *loanServiceImpl) loadCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	cust, err := s.customerService.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrNotFound, customerID)
		}
		return nil, fmt.Errorf("failed to verify customer: %w", err)
	}
	return cust, nil
}

// decision is the outcome of one pass through the eligibility state flow.
type decision struct {
	approved      bool
	message       string
	outcome       string
	effectiveRate decimal.Decimal
	installment   decimal.Decimal
}

// evaluate runs score -> rate correction -> installment -> affordability.
// The installment is computed even for hard declines so the caller can echo
// it, but the affordability gate is skipped in that case.
func (s *loanServiceImpl) evaluate(ctx context.Context, cust *customer.Customer, loans []*Loan, req EligibilityRequest, now time.Time) decision {
	today := DateOnly(now)

	score := s.scorer.Score(ctx, cust, loans, today)

	correctedRate, rateApproved := CorrectRate(score.Value, req.InterestRate)
	effectiveRate := correctedRate
	if !rateApproved {
		// Hard declines carry no corrected rate; echo the requested one.
		effectiveRate = req.InterestRate
	}

	installment, instErr := MonthlyInstallment(req.LoanAmount, effectiveRate, req.TenureMonths)
	if instErr != nil {
		s.logger.ErrorContext(ctx, "Installment computation degraded to zero",
			slog.Int64("customerID", cust.CustomerID), slog.Any("error", instErr))
		monitoring.RecordScoringDegraded()
		installment = decimal.Zero
	}

	switch {
	case !rateApproved:
		return decision{message: MsgLowCreditScore, outcome: "declined_low_score", effectiveRate: effectiveRate, installment: installment}
	case instErr != nil:
		return decision{message: MsgInstallmentError, outcome: "declined_degraded", effectiveRate: effectiveRate, installment: installment}
	case !Affordable(cust.MonthlySalary, installment, filterActive(loans, today)):
		return decision{message: MsgEMIThreshold, outcome: "declined_emi", effectiveRate: effectiveRate, installment: installment}
	default:
		return decision{approved: true, message: MsgApproved, outcome: "approved", effectiveRate: effectiveRate, installment: installment}
	}
}

func filterActive(loans []*Loan, today time.Time) []*Loan {
	active := make([]*Loan, 0, len(loans))
	for _, l := range loans {
		if l.ActiveOn(today) {
			active = append(active, l)
		}
	}
	return active
}

// validateRequest accumulates field errors rather than failing on the
// first one. The customer is already loaded by this point.
func validateRequest(cust *customer.Customer, req EligibilityRequest) error {
	var errs []error

	if !req.LoanAmount.IsPositive() {
		errs = append(errs, apperrors.NewValidationError("loan_amount", "must be positive"))
	} else if req.LoanAmount.GreaterThan(cust.ApprovedLimit) {
		errs = append(errs, apperrors.NewValidationError("loan_amount",
			fmt.Sprintf("exceeds approved limit of %s", cust.ApprovedLimit.StringFixed(2))))
	}

	if req.InterestRate.IsNegative() || req.InterestRate.GreaterThan(MaxInterestRate) {
		errs = append(errs, apperrors.NewValidationError("interest_rate", "must be between 0% and 50%"))
	}

	if req.TenureMonths < MinTenureMonths || req.TenureMonths > MaxTenureMonths {
		errs = append(errs, apperrors.NewValidationError("tenure", "must be between 1 and 360 months"))
	}

	return apperrors.JoinValidationErrors(errs)
}

func (s *loanServiceImpl) publishLoanCreated(ctx context.Context, l *Loan) {
	createdEvent := event.LoanCreatedEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now(),
		Payload: event.LoanEventPayload{
			LoanID:             l.LoanID,
			CustomerID:         l.CustomerID,
			LoanAmount:         l.LoanAmount.StringFixed(2),
			InterestRate:       l.InterestRate.String(),
			TenureMonths:       l.TenureMonths,
			MonthlyInstallment: l.MonthlyRepayment.StringFixed(2),
			StartDate:          l.StartDate.Format(time.DateOnly),
			EndDate:            l.EndDate.Format(time.DateOnly),
		},
	}
	if err := s.pub.PublishLoanCreated(ctx, createdEvent); err != nil {
		s.logger.ErrorContext(ctx, "Loan created, but FAILED to publish creation event", slog.Any("error", err))
	}
}
