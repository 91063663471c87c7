package loan

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/infrastructure/monitoring"
)

const (
	// NewCustomerScore is the neutral default for customers with no loan
	// history at all.
	NewCustomerScore = 50

	maxScore = 100
	minScore = 0
)

var (
	paymentHistoryWeight = decimal.NewFromInt(35)
	daysPerYear          = decimal.RequireFromString("365.25")
)

// ScoreResult carries the credit score together with a degradation marker
// so callers can tell a computed zero apart from a recovered failure.
type ScoreResult struct {
	Value    int
	Degraded bool
}

// Scorer computes a 0-100 creditworthiness score from a customer's loan
// history. It never returns an error: any internal failure degrades to a
// zero score recorded in diagnostics.
type Scorer struct {
	logger *slog.Logger
}

func NewScorer(logger *slog.Logger) *Scorer {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Scorer{logger: logger.With(slog.String("component", "Scorer"))}
}

func (s *Scorer) Score(ctx context.Context, cust *customer.Customer, loans []*Loan, today time.Time) (result ScoreResult) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.ErrorContext(ctx, "Credit score computation failed, degrading to zero", slog.Any("panic", p))
			monitoring.RecordScoringDegraded()
			result = ScoreResult{Value: 0, Degraded: true}
		}
	}()

	if cust == nil {
		s.logger.ErrorContext(ctx, "Credit score requested for nil customer, degrading to zero")
		monitoring.RecordScoringDegraded()
		return ScoreResult{Value: 0, Degraded: true}
	}

	logCtx := s.logger.With(slog.Int64("customerID", cust.CustomerID))

	if len(loans) == 0 {
		logCtx.InfoContext(ctx, "New customer, default score", slog.Int("score", NewCustomerScore))
		monitoring.RecordCreditScore(NewCustomerScore)
		return ScoreResult{Value: NewCustomerScore}
	}

	today = DateOnly(today)
	score := decimal.Zero

	score = score.Add(paymentHistoryScore(loans))
	activeAmount := activeLoanAmount(loans, today)
	score = score.Add(decimal.NewFromInt(int64(utilizationScore(activeAmount, cust.ApprovedLimit))))
	score = score.Add(decimal.NewFromInt(int64(historyLengthScore(loans, today))))
	score = score.Add(decimal.NewFromInt(int64(recentActivityScore(loans, today.Year()))))
	score = score.Add(decimal.NewFromInt(int64(diversityScore(len(loans)))))

	final := int(score.IntPart())
	if final > maxScore {
		final = maxScore
	}
	if final < minScore {
		final = minScore
	}

	// A customer whose active exposure exceeds the approved limit scores
	// zero no matter what the components add up to.
	if activeAmount.GreaterThan(cust.ApprovedLimit) {
		logCtx.WarnContext(ctx, "Score overridden to 0: active debt exceeds approved limit",
			slog.String("active_debt", activeAmount.StringFixed(2)),
			slog.String("approved_limit", cust.ApprovedLimit.StringFixed(2)))
		final = 0
	}

	logCtx.InfoContext(ctx, "Credit score computed", slog.Int("score", final))
	monitoring.RecordCreditScore(final)
	return ScoreResult{Value: final}
}

// paymentHistoryScore weighs on-time EMIs against total EMIs due, worth up
// to 35 points. Zero total tenure contributes nothing.
func paymentHistoryScore(loans []*Loan) decimal.Decimal {
	totalDue := 0
	totalOnTime := 0
	for _, l := range loans {
		totalDue += l.TenureMonths
		totalOnTime += l.EMIsPaidOnTime
	}
	if totalDue <= 0 {
		return decimal.Zero
	}
	ratio := decimal.NewFromInt(int64(totalOnTime)).Div(decimal.NewFromInt(int64(totalDue)))
	return ratio.Mul(paymentHistoryWeight)
}

func activeLoanAmount(loans []*Loan, today time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, l := range loans {
		if l.ActiveOn(today) {
			total = total.Add(l.LoanAmount)
		}
	}
	return total
}

// utilizationScore buckets active exposure over the approved limit, worth
// up to 30 points. A zero limit contributes nothing.
func utilizationScore(activeAmount, approvedLimit decimal.Decimal) int {
	if !approvedLimit.IsPositive() {
		return 0
	}
	ratio := activeAmount.Div(approvedLimit)
	switch {
	case ratio.LessThanOrEqual(decimal.RequireFromString("0.3")):
		return 30
	case ratio.LessThanOrEqual(decimal.RequireFromString("0.5")):
		return 20
	case ratio.LessThanOrEqual(decimal.RequireFromString("0.7")):
		return 15
	case ratio.LessThanOrEqual(one):
		return 10
	default:
		return 0
	}
}

// historyLengthScore buckets the age in years of the oldest loan, worth up
// to 15 points.
func historyLengthScore(loans []*Loan, today time.Time) int {
	earliest := loans[0].StartDate
	for _, l := range loans[1:] {
		if l.StartDate.Before(earliest) {
			earliest = l.StartDate
		}
	}

	days := int64(today.Sub(DateOnly(earliest)).Hours() / 24)
	ageYears := decimal.NewFromInt(days).Div(daysPerYear)
	switch {
	case ageYears.GreaterThanOrEqual(decimal.NewFromInt(7)):
		return 15
	case ageYears.GreaterThanOrEqual(decimal.NewFromInt(5)):
		return 12
	case ageYears.GreaterThanOrEqual(decimal.NewFromInt(3)):
		return 10
	case ageYears.GreaterThanOrEqual(one):
		return 7
	default:
		return 3
	}
}

// recentActivityScore buckets the number of loans started in the current
// calendar year, worth up to 10 points. No recent borrowing scores best.
func recentActivityScore(loans []*Loan, currentYear int) int {
	count := 0
	for _, l := range loans {
		if l.StartDate.Year() == currentYear {
			count++
		}
	}
	switch {
	case count == 0:
		return 10
	case count <= 2:
		return 8
	case count <= 4:
		return 5
	default:
		return 2
	}
}

// diversityScore buckets the total loan count, worth up to 10 points.
func diversityScore(count int) int {
	switch {
	case count >= 2 && count <= 5:
		return 10
	case count == 1:
		return 7
	case count >= 6 && count <= 10:
		return 5
	default:
		return 2
	}
}
