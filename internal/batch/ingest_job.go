package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	customerDataFile = "customer_data.xlsx"
	loanDataFile     = "loan_data.xlsx"
)

// Date layouts seen in exported spreadsheets. excelize renders date cells
// with the workbook's display format, so several shapes must be accepted.
var spreadsheetDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/2006",
	"1/2/06",
}

// SpreadsheetIngestionJob loads the historical customer and loan books from
// Excel workbooks into the database. Rows keep their spreadsheet-assigned IDs
// and rows whose ID already exists are skipped, so reruns are harmless.
type SpreadsheetIngestionJob struct {
	customerRepo customer.CustomerRepository
	loanRepo     loan.Repository
	dataDir      string
	logger       *slog.Logger
}

func NewSpreadsheetIngestionJob(
	customerRepo customer.CustomerRepository,
	loanRepo loan.Repository,
	dataDir string,
	logger *slog.Logger,
) *SpreadsheetIngestionJob {
	if customerRepo == nil || loanRepo == nil || logger == nil {
		panic("SpreadsheetIngestionJob dependencies cannot be nil")
	}
	if dataDir == "" {
		panic("SpreadsheetIngestionJob data directory cannot be empty")
	}
	return &SpreadsheetIngestionJob{
		customerRepo: customerRepo,
		loanRepo:     loanRepo,
		dataDir:      dataDir,
		logger:       logger.With("job", "SpreadsheetIngestion"),
	}
}

// Run ingests customers first so that loan rows referencing them land on
// existing customer IDs.
func (j *SpreadsheetIngestionJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting spreadsheet ingestion job.", slog.String("data_dir", j.dataDir))

	custStats, custErr := j.ingestCustomers(ctx)
	if custErr != nil {
		j.logger.ErrorContext(ctx, "Customer ingestion failed, skipping loan ingestion.", slog.Any("error", custErr))
		return fmt.Errorf("cannot run job, customer ingestion failed: %w", custErr)
	}

	loanStats, loanErr := j.ingestLoans(ctx)
	if loanErr != nil {
		j.logger.ErrorContext(ctx, "Loan ingestion failed.", slog.Any("error", loanErr))
		return fmt.Errorf("cannot run job, loan ingestion failed: %w", loanErr)
	}

	errorCount := custStats.errors + loanStats.errors
	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("customers_inserted", custStats.inserted),
		slog.Int("customers_skipped", custStats.skipped),
		slog.Int("loans_inserted", loanStats.inserted),
		slog.Int("loans_skipped", loanStats.skipped),
		slog.Int("errors_encountered", errorCount),
	)
	if errorCount > 0 {
		summaryLog.WarnContext(ctx, "Spreadsheet ingestion job finished with errors.")
		return fmt.Errorf("job completed with %d errors", errorCount)
	}
	summaryLog.InfoContext(ctx, "Spreadsheet ingestion job finished successfully.")
	return nil
}

type ingestStats struct {
	inserted int
	skipped  int
	errors   int
}

func (j *SpreadsheetIngestionJob) ingestCustomers(ctx context.Context) (ingestStats, error) {
	var stats ingestStats

	rows, err := j.readSheet(customerDataFile)
	if err != nil {
		return stats, err
	}
	j.logger.InfoContext(ctx, "Read customer workbook.", slog.Int("rows", len(rows)))

	for i, row := range rows {
		rowNum := i + 2 // 1-based, after the header row

		cust, parseErr := parseCustomerRow(row)
		if parseErr != nil {
			j.logger.WarnContext(ctx, "Skipping malformed customer row.",
				slog.Int("row", rowNum), slog.Any("error", parseErr))
			monitoring.RecordIngestedRow("customer", "error")
			stats.errors++
			continue
		}

		inserted, insErr := j.customerRepo.InsertWithID(ctx, cust)
		if insErr != nil {
			j.logger.ErrorContext(ctx, "Failed to insert customer row.",
				slog.Int("row", rowNum), slog.Int64("customerID", cust.CustomerID), slog.Any("error", insErr))
			monitoring.RecordIngestedRow("customer", "error")
			stats.errors++
			continue
		}
		if inserted {
			monitoring.RecordIngestedRow("customer", "inserted")
			stats.inserted++
		} else {
			monitoring.RecordIngestedRow("customer", "skipped")
			stats.skipped++
		}
	}
	return stats, nil
}

func (j *SpreadsheetIngestionJob) ingestLoans(ctx context.Context) (ingestStats, error) {
	var stats ingestStats

	rows, err := j.readSheet(loanDataFile)
	if err != nil {
		return stats, err
	}
	j.logger.InfoContext(ctx, "Read loan workbook.", slog.Int("rows", len(rows)))

	for i, row := range rows {
		rowNum := i + 2

		ln, parseErr := parseLoanRow(row)
		if parseErr != nil {
			j.logger.WarnContext(ctx, "Skipping malformed loan row.",
				slog.Int("row", rowNum), slog.Any("error", parseErr))
			monitoring.RecordIngestedRow("loan", "error")
			stats.errors++
			continue
		}

		inserted, insErr := j.loanRepo.InsertWithID(ctx, ln)
		if insErr != nil {
			j.logger.ErrorContext(ctx, "Failed to insert loan row.",
				slog.Int("row", rowNum), slog.Int64("loanID", ln.LoanID), slog.Any("error", insErr))
			monitoring.RecordIngestedRow("loan", "error")
			stats.errors++
			continue
		}
		if inserted {
			monitoring.RecordIngestedRow("loan", "inserted")
			stats.inserted++
		} else {
			monitoring.RecordIngestedRow("loan", "skipped")
			stats.skipped++
		}
	}
	return stats, nil
}

// readSheet returns the data rows of the workbook's first sheet, without the
// header row.
func (j *SpreadsheetIngestionJob) readSheet(fileName string) ([][]string, error) {
	path := filepath.Join(j.dataDir, fileName)
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheets[0], path, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

// Customer workbook columns, in order:
// customer_id, first_name, last_name, age, phone_number, monthly_salary,
// approved_limit, current_debt. The current_debt column is optional and
// defaults to zero.
func parseCustomerRow(row []string) (*customer.Customer, error) {
	if len(row) < 7 {
		return nil, fmt.Errorf("expected at least 7 columns, got %d", len(row))
	}

	customerID, err := parseCellInt64(row[0], "customer_id")
	if err != nil {
		return nil, err
	}
	age, err := parseCellInt(row[3], "age")
	if err != nil {
		return nil, err
	}
	monthlySalary, err := parseCellDecimal(row[5], "monthly_salary")
	if err != nil {
		return nil, err
	}
	approvedLimit, err := parseCellDecimal(row[6], "approved_limit")
	if err != nil {
		return nil, err
	}
	currentDebt := decimal.Zero
	if len(row) > 7 && strings.TrimSpace(row[7]) != "" {
		currentDebt, err = parseCellDecimal(row[7], "current_debt")
		if err != nil {
			return nil, err
		}
	}

	firstName := strings.TrimSpace(row[1])
	lastName := strings.TrimSpace(row[2])
	phoneNumber := strings.TrimSpace(row[4])
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("first_name and last_name cannot be empty")
	}
	if phoneNumber == "" {
		return nil, fmt.Errorf("phone_number cannot be empty")
	}

	return &customer.Customer{
		CustomerID:    customerID,
		FirstName:     firstName,
		LastName:      lastName,
		Age:           age,
		PhoneNumber:   phoneNumber,
		MonthlySalary: monthlySalary,
		ApprovedLimit: approvedLimit,
		CurrentDebt:   currentDebt,
	}, nil
}

// Loan workbook columns, in order:
// customer_id, loan_id, loan_amount, tenure, interest_rate,
// monthly_repayment, emis_paid_on_time, start_date, end_date.
func parseLoanRow(row []string) (*loan.Loan, error) {
	if len(row) < 9 {
		return nil, fmt.Errorf("expected at least 9 columns, got %d", len(row))
	}

	customerID, err := parseCellInt64(row[0], "customer_id")
	if err != nil {
		return nil, err
	}
	loanID, err := parseCellInt64(row[1], "loan_id")
	if err != nil {
		return nil, err
	}
	loanAmount, err := parseCellDecimal(row[2], "loan_amount")
	if err != nil {
		return nil, err
	}
	tenure, err := parseCellInt(row[3], "tenure")
	if err != nil {
		return nil, err
	}
	interestRate, err := parseCellDecimal(row[4], "interest_rate")
	if err != nil {
		return nil, err
	}
	monthlyRepayment, err := parseCellDecimal(row[5], "monthly_repayment")
	if err != nil {
		return nil, err
	}
	emisPaidOnTime, err := parseCellInt(row[6], "emis_paid_on_time")
	if err != nil {
		return nil, err
	}
	startDate, err := parseCellDate(row[7], "start_date")
	if err != nil {
		return nil, err
	}
	endDate, err := parseCellDate(row[8], "end_date")
	if err != nil {
		return nil, err
	}

	return &loan.Loan{
		LoanID:           loanID,
		CustomerID:       customerID,
		LoanAmount:       loanAmount,
		TenureMonths:     tenure,
		InterestRate:     interestRate,
		MonthlyRepayment: monthlyRepayment,
		EMIsPaidOnTime:   emisPaidOnTime,
		StartDate:        startDate,
		EndDate:          endDate,
	}, nil
}

func parseCellInt64(cell, column string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", column, cell, err)
	}
	return value, nil
}

func parseCellInt(cell, column string) (int, error) {
	value, err := parseCellInt64(cell, column)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}

func parseCellDecimal(cell, column string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(cell))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", column, cell, err)
	}
	return value, nil
}

func parseCellDate(cell, column string) (time.Time, error) {
	trimmed := strings.TrimSpace(cell)
	for _, layout := range spreadsheetDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q: unrecognized date format", column, cell)
}
