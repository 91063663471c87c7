package postgres

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-engine/internal/domain/customer"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

const pgxmockExpectationsNotMetMsg = "pgxmock expectations were not met"

func testCustomer() *customer.Customer {
	return &customer.Customer{
		CustomerID:    1,
		FirstName:     "John",
		LastName:      "Doe",
		Age:           35,
		PhoneNumber:   "9876543210",
		MonthlySalary: decimal.NewFromInt(50_000),
		ApprovedLimit: decimal.NewFromInt(1_800_000),
		CurrentDebt:   decimal.Zero,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func setupCustomerRepo(t *testing.T) (context.Context, *CustomerRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	ctx := context.Background()
	repo := NewCustomerRepository(mockPool, logger)

	return ctx, repo, mockPool
}

func customerRows(cust *customer.Customer) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"customer_id", "first_name", "last_name", "age", "phone_number", "monthly_salary", "approved_limit", "current_debt", "created_at"}).
		AddRow(cust.CustomerID, cust.FirstName, cust.LastName, cust.Age, cust.PhoneNumber,
			cust.MonthlySalary.String(), cust.ApprovedLimit.String(), cust.CurrentDebt.String(), cust.CreatedAt)
}

func TestCreateCustomerWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	cust := testCustomer()
	cust.CustomerID = 0

	mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO customers")).WithArgs(
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlySalary,
		cust.ApprovedLimit,
		cust.CurrentDebt,
	).WillReturnRows(pgxmock.NewRows([]string{"customer_id", "created_at"}).
		AddRow(int64(1), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	err := repo.Save(ctx, cust)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), cust.CustomerID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateCustomerWhenPhoneNumberTaken(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	cust := testCustomer()
	cust.CustomerID = 0

	mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO customers")).WithArgs(
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlySalary,
		cust.ApprovedLimit,
		cust.CurrentDebt,
	).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "customers_phone_number_key"})

	err := repo.Save(ctx, cust)
	assert.ErrorIs(t, err, customer.ErrPhoneNumberInUse)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestSaveExistingCustomerWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	cust := testCustomer()

	mockPool.ExpectExec(regexp.QuoteMeta("UPDATE customers")).WithArgs(
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlySalary,
		cust.ApprovedLimit,
		cust.CurrentDebt,
		cust.CustomerID,
	).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Save(ctx, cust)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindCustomerByIDReturnOne(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	cust := testCustomer()

	mockPool.ExpectQuery(regexp.QuoteMeta("FROM customers")).
		WithArgs(cust.CustomerID).
		WillReturnRows(customerRows(cust))

	found, err := repo.FindByID(ctx, cust.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, cust.CustomerID, found.CustomerID)
	assert.Equal(t, "John Doe", found.FullName())
	assert.True(t, found.ApprovedLimit.Equal(cust.ApprovedLimit))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindCustomerByIDReturnNone(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta("FROM customers")).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	found, err := repo.FindByID(ctx, 404)
	assert.ErrorIs(t, err, customer.ErrNotFound)
	assert.Nil(t, found)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindCustomerByPhoneNumberReturnOne(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	cust := testCustomer()

	mockPool.ExpectQuery(regexp.QuoteMeta("WHERE phone_number = $1")).
		WithArgs(cust.PhoneNumber).
		WillReturnRows(customerRows(cust))

	found, err := repo.FindByPhoneNumber(ctx, cust.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, cust.CustomerID, found.CustomerID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindCustomerByPhoneNumberReturnNone(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta("WHERE phone_number = $1")).
		WithArgs("0000000000").
		WillReturnError(pgx.ErrNoRows)

	found, err := repo.FindByPhoneNumber(ctx, "0000000000")
	assert.ErrorIs(t, err, customer.ErrNotFound)
	assert.Nil(t, found)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestInsertCustomerWithIDInsertsNewRow(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	cust := testCustomer()

	mockPool.ExpectExec(regexp.QuoteMeta("ON CONFLICT (customer_id) DO NOTHING")).WithArgs(
		cust.CustomerID,
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlySalary,
		cust.ApprovedLimit,
		cust.CurrentDebt,
	).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := repo.InsertWithID(ctx, cust)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestInsertCustomerWithIDSkipsExistingRow(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	cust := testCustomer()

	mockPool.ExpectExec(regexp.QuoteMeta("ON CONFLICT (customer_id) DO NOTHING")).WithArgs(
		cust.CustomerID,
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlySalary,
		cust.ApprovedLimit,
		cust.CurrentDebt,
	).WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := repo.InsertWithID(ctx, cust)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
