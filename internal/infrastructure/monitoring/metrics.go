package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	DecisionsTotal      *prometheus.CounterVec
	CreditScoreComputed prometheus.Histogram
	ScoringDegraded     prometheus.Counter
	CustomersRegistered prometheus.Counter
	RowsIngested        *prometheus.CounterVec
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		DecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_engine_loan_decisions_total",
				Help: "Total number of loan decisions by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		CreditScoreComputed: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_engine_credit_score",
				Help:    "Distribution of computed credit scores.",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
		ScoringDegraded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_scoring_degraded_total",
				Help: "Total number of scoring or installment computations that degraded to a safe default.",
			},
		),
		CustomersRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_customers_registered_total",
				Help: "Total number of customers successfully registered.",
			},
		),
		RowsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_engine_rows_ingested_total",
				Help: "Total number of spreadsheet rows ingested, by entity and status.",
			},
			[]string{"entity", "status"},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordDecision(mode, outcome string) {
	Business.DecisionsTotal.WithLabelValues(mode, outcome).Inc()
}

func RecordCreditScore(score int) {
	Business.CreditScoreComputed.Observe(float64(score))
}

func RecordScoringDegraded() {
	Business.ScoringDegraded.Inc()
}

func RecordCustomerRegistered() {
	Business.CustomersRegistered.Inc()
}

func RecordIngestedRow(entity, status string) {
	Business.RowsIngested.WithLabelValues(entity, status).Inc()
}
