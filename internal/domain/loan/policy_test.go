package loan

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCorrectRate_Bands(t *testing.T) {
	tests := []struct {
		name         string
		score        int
		requested    string
		wantRate     string
		wantApproved bool
	}{
		{"High score keeps requested rate", 51, "8.5", "8.5", true},
		{"High score keeps zero rate", 75, "0", "0", true},
		{"Score 50 floors at 12", 50, "8.5", "12", true},
		{"Score 50 keeps higher rate", 50, "14", "14", true},
		{"Score 31 floors at 12", 31, "11.99", "12", true},
		{"Score 30 floors at 16", 30, "12", "16", true},
		{"Score 30 keeps higher rate", 30, "18", "18", true},
		{"Score 11 floors at 16", 11, "0", "16", true},
		// A decline carries no corrected rate; the service layer echoes the
		// requested rate back to the caller.
		{"Score 10 declines", 10, "20", "0", false},
		{"Zero score declines", 0, "20", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, approved := CorrectRate(tt.score, decimal.RequireFromString(tt.requested))
			assert.Equal(t, tt.wantApproved, approved)
			assert.True(t, rate.Equal(decimal.RequireFromString(tt.wantRate)),
				"expected rate %s, got %s", tt.wantRate, rate)
		})
	}
}

func TestAffordable(t *testing.T) {
	salary := decimal.NewFromInt(50_000)
	today := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	active := func(installment string) *Loan {
		return &Loan{
			LoanAmount:       decimal.NewFromInt(100_000),
			TenureMonths:     12,
			MonthlyRepayment: decimal.RequireFromString(installment),
			StartDate:        today.AddDate(0, -2, 0),
			EndDate:          today.AddDate(0, 10, 0),
		}
	}

	t.Run("No existing loans within half salary", func(t *testing.T) {
		assert.True(t, Affordable(salary, decimal.NewFromInt(20_000), nil))
	})

	t.Run("Exactly half salary is affordable", func(t *testing.T) {
		assert.True(t, Affordable(salary, decimal.NewFromInt(10_000), []*Loan{active("15000")}))
	})

	t.Run("A rupee over half salary is not", func(t *testing.T) {
		assert.False(t, Affordable(salary, decimal.RequireFromString("10000.01"), []*Loan{active("15000")}))
	})

	t.Run("Existing EMIs alone can exhaust the budget", func(t *testing.T) {
		assert.False(t, Affordable(salary, decimal.NewFromInt(1), []*Loan{active("13000"), active("13000")}))
	})
}
