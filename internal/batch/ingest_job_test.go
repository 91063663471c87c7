package batch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, nil))

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	args := m.Called(ctx, cust)
	return args.Error(0)
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	cust, _ := args.Get(0).(*customer.Customer)
	return cust, args.Error(1)
}

func (m *MockCustomerRepository) FindByPhoneNumber(ctx context.Context, phoneNumber string) (*customer.Customer, error) {
	args := m.Called(ctx, phoneNumber)
	cust, _ := args.Get(0).(*customer.Customer)
	return cust, args.Error(1)
}

func (m *MockCustomerRepository) InsertWithID(ctx context.Context, cust *customer.Customer) (bool, error) {
	args := m.Called(ctx, cust)
	return args.Bool(0), args.Error(1)
}

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	ln, _ := args.Get(0).(*loan.Loan)
	return ln, args.Error(1)
}

func (m *MockLoanRepository) FindByCustomerID(ctx context.Context, customerID int64) ([]*loan.Loan, error) {
	args := m.Called(ctx, customerID)
	loans, _ := args.Get(0).([]*loan.Loan)
	return loans, args.Error(1)
}

func (m *MockLoanRepository) FindActiveByCustomerID(ctx context.Context, customerID int64, asOf time.Time) ([]*loan.Loan, error) {
	args := m.Called(ctx, customerID, asOf)
	loans, _ := args.Get(0).([]*loan.Loan)
	return loans, args.Error(1)
}

func (m *MockLoanRepository) LockCustomerForOrigination(ctx context.Context, tx pgx.Tx, customerID int64) error {
	args := m.Called(ctx, tx, customerID)
	return args.Error(0)
}

func (m *MockLoanRepository) FindByCustomerInTx(ctx context.Context, tx pgx.Tx, customerID int64) ([]*loan.Loan, error) {
	args := m.Called(ctx, tx, customerID)
	loans, _ := args.Get(0).([]*loan.Loan)
	return loans, args.Error(1)
}

func (m *MockLoanRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *loan.Loan) (*loan.Loan, error) {
	args := m.Called(ctx, tx, newLoan)
	ln, _ := args.Get(0).(*loan.Loan)
	return ln, args.Error(1)
}

func (m *MockLoanRepository) InsertWithID(ctx context.Context, newLoan *loan.Loan) (bool, error) {
	args := m.Called(ctx, newLoan)
	return args.Bool(0), args.Error(1)
}

func (m *MockLoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	tx, _ := args.Get(0).(pgx.Tx)
	return tx, args.Error(1)
}

func (m *MockLoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockLoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func writeWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	workbook := excelize.NewFile()
	defer workbook.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, workbook.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, workbook.SaveAs(path))
}

var (
	customerHeader = []interface{}{
		"customer_id", "first_name", "last_name", "age", "phone_number",
		"monthly_salary", "approved_limit", "current_debt",
	}
	loanHeader = []interface{}{
		"customer_id", "loan_id", "loan_amount", "tenure", "interest_rate",
		"monthly_repayment", "emis_paid_on_time", "start_date", "end_date",
	}
)

func writeCustomerWorkbook(t *testing.T, dir string, dataRows ...[]interface{}) {
	t.Helper()
	writeWorkbook(t, filepath.Join(dir, customerDataFile), append([][]interface{}{customerHeader}, dataRows...))
}

func writeLoanWorkbook(t *testing.T, dir string, dataRows ...[]interface{}) {
	t.Helper()
	writeWorkbook(t, filepath.Join(dir, loanDataFile), append([][]interface{}{loanHeader}, dataRows...))
}

func TestRun_IngestsCustomersAndLoans(t *testing.T) {
	dir := t.TempDir()
	writeCustomerWorkbook(t, dir,
		[]interface{}{"1", "Aarav", "Sharma", "32", "9876543210", "50000", "1800000", "0"},
		[]interface{}{"2", "Diya", "Patel", "28", "9876500000", "75000", "2700000", "125000"},
	)
	writeLoanWorkbook(t, dir,
		[]interface{}{"1", "101", "100000", "12", "10.5", "8815.09", "11", "2023-05-01", "2024-04-26"},
	)

	customerRepo := new(MockCustomerRepository)
	loanRepo := new(MockLoanRepository)
	customerRepo.On("InsertWithID", mock.Anything, mock.MatchedBy(func(c *customer.Customer) bool {
		return c.CustomerID == 1 && c.FirstName == "Aarav" && c.MonthlySalary.Equal(decimal.NewFromInt(50000))
	})).Return(true, nil).Once()
	customerRepo.On("InsertWithID", mock.Anything, mock.MatchedBy(func(c *customer.Customer) bool {
		return c.CustomerID == 2 && c.CurrentDebt.Equal(decimal.NewFromInt(125000))
	})).Return(false, nil).Once() // already present, rerun skips it
	loanRepo.On("InsertWithID", mock.Anything, mock.MatchedBy(func(l *loan.Loan) bool {
		return l.LoanID == 101 && l.CustomerID == 1 && l.EMIsPaidOnTime == 11 &&
			l.StartDate.Equal(time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)) &&
			l.EndDate.Equal(time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC))
	})).Return(true, nil).Once()

	job := NewSpreadsheetIngestionJob(customerRepo, loanRepo, dir, testLogger)
	err := job.Run(context.Background())

	require.NoError(t, err)
	customerRepo.AssertExpectations(t)
	loanRepo.AssertExpectations(t)
}

func TestRun_MalformedRowsAreCountedAsErrors(t *testing.T) {
	dir := t.TempDir()
	writeCustomerWorkbook(t, dir,
		[]interface{}{"1", "Aarav", "Sharma", "32", "9876543210", "50000", "1800000", "0"},
		[]interface{}{"not-a-number", "Bad", "Row", "30", "9876500001", "40000", "1400000", "0"},
	)
	writeLoanWorkbook(t, dir,
		[]interface{}{"1", "101", "100000", "12", "10.5", "8815.09", "11", "05/45/2023", "2024-04-26"},
	)

	customerRepo := new(MockCustomerRepository)
	loanRepo := new(MockLoanRepository)
	customerRepo.On("InsertWithID", mock.Anything, mock.Anything).Return(true, nil).Once()

	job := NewSpreadsheetIngestionJob(customerRepo, loanRepo, dir, testLogger)
	err := job.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors")
	customerRepo.AssertExpectations(t)
	loanRepo.AssertNotCalled(t, "InsertWithID", mock.Anything, mock.Anything)
}

func TestRun_InsertFailureKeepsProcessingRemainingRows(t *testing.T) {
	dir := t.TempDir()
	writeCustomerWorkbook(t, dir,
		[]interface{}{"1", "Aarav", "Sharma", "32", "9876543210", "50000", "1800000", "0"},
		[]interface{}{"2", "Diya", "Patel", "28", "9876500000", "75000", "2700000", "0"},
	)
	writeLoanWorkbook(t, dir)

	customerRepo := new(MockCustomerRepository)
	loanRepo := new(MockLoanRepository)
	customerRepo.On("InsertWithID", mock.Anything, mock.MatchedBy(func(c *customer.Customer) bool {
		return c.CustomerID == 1
	})).Return(false, assert.AnError).Once()
	customerRepo.On("InsertWithID", mock.Anything, mock.MatchedBy(func(c *customer.Customer) bool {
		return c.CustomerID == 2
	})).Return(true, nil).Once()

	job := NewSpreadsheetIngestionJob(customerRepo, loanRepo, dir, testLogger)
	err := job.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 errors")
	customerRepo.AssertExpectations(t)
}

func TestRun_MissingCustomerWorkbookAbortsBeforeLoans(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	loanRepo := new(MockLoanRepository)

	job := NewSpreadsheetIngestionJob(customerRepo, loanRepo, t.TempDir(), testLogger)
	err := job.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer ingestion failed")
	loanRepo.AssertNotCalled(t, "InsertWithID", mock.Anything, mock.Anything)
}

func TestNewSpreadsheetIngestionJob_PanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() {
		NewSpreadsheetIngestionJob(nil, new(MockLoanRepository), "data", testLogger)
	})
	assert.Panics(t, func() {
		NewSpreadsheetIngestionJob(new(MockCustomerRepository), new(MockLoanRepository), "", testLogger)
	})
}

func TestParseCustomerRow(t *testing.T) {
	t.Run("DebtColumnDefaultsToZero", func(t *testing.T) {
		cust, err := parseCustomerRow([]string{"7", "Ishaan", "Verma", "41", "9812345678", "60000", "2200000"})
		require.NoError(t, err)
		assert.Equal(t, int64(7), cust.CustomerID)
		assert.True(t, cust.CurrentDebt.IsZero())
	})

	t.Run("TooFewColumns", func(t *testing.T) {
		_, err := parseCustomerRow([]string{"7", "Ishaan", "Verma"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "columns")
	})

	t.Run("BlankName", func(t *testing.T) {
		_, err := parseCustomerRow([]string{"7", " ", "Verma", "41", "9812345678", "60000", "2200000"})
		require.Error(t, err)
	})
}

func TestParseCellDate(t *testing.T) {
	want := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, cell := range []string{"2023-05-01", "05-01-23", "5/1/2023", "5/1/23"} {
		got, err := parseCellDate(cell, "start_date")
		require.NoError(t, err, cell)
		assert.True(t, got.Equal(want), cell)
	}

	_, err := parseCellDate("May Day", "start_date")
	require.Error(t, err)
}
