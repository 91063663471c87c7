package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var _ loan.Repository = (*LoanRepository)(nil)

var errMsgFormat = "%w: %w"

const loanColumns = `loan_id, customer_id, loan_amount, tenure_months, interest_rate, monthly_repayment, emis_paid_on_time, start_date, end_date, created_at`

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Commit(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE loan_id = $1`
	status := "success"
	startTime := time.Now()

	var l loan.Loan
	err := r.db.QueryRow(ctx, query, loanID).Scan(
		&l.LoanID, &l.CustomerID, &l.LoanAmount, &l.TenureMonths,
		&l.InterestRate, &l.MonthlyRepayment, &l.EMIsPaidOnTime,
		&l.StartDate, &l.EndDate, &l.CreatedAt,
	)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &l, nil
}

func (r *LoanRepository) FindByCustomerID(ctx context.Context, customerID int64) ([]*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE customer_id = $1
        ORDER BY loan_id ASC`

	status := "success"
	startTime := time.Now()
	loans, err := r.queryLoans(ctx, r.db.Query, query, customerID)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("FindByCustomerID", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans for customer", "customer_id", customerID, "error", err)
		return nil, err
	}
	return loans, nil
}

func (r *LoanRepository) FindActiveByCustomerID(ctx context.Context, customerID int64, asOf time.Time) ([]*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE customer_id = $1 AND end_date >= $2
        ORDER BY loan_id ASC`

	status := "success"
	startTime := time.Now()
	loans, err := r.queryLoans(ctx, r.db.Query, query, customerID, asOf)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("FindActiveByCustomerID", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query active loans for customer", "customer_id", customerID, "error", err)
		return nil, err
	}
	return loans, nil
}

func (r *LoanRepository) LockCustomerForOrigination(ctx context.Context, tx pgx.Tx, customerID int64) error {
	// The customer row lock is the serialization point for concurrent
	// originations: both would otherwise read the same loan history and
	// both pass the EMI budget check.
	query := `SELECT customer_id FROM customers WHERE customer_id = $1 FOR UPDATE`

	var id int64
	err := tx.QueryRow(ctx, query, customerID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer to lock not found", "customer_id", customerID)
			return apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to lock customer row", "customer_id", customerID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) FindByCustomerInTx(ctx context.Context, tx pgx.Tx, customerID int64) ([]*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE customer_id = $1
        ORDER BY loan_id ASC`

	loans, err := r.queryLoans(ctx, tx.Query, query, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans for customer in tx", "customer_id", customerID, "error", err)
		return nil, err
	}
	return loans, nil
}

func (r *LoanRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *loan.Loan) (*loan.Loan, error) {
	query := `
        INSERT INTO loans (customer_id, loan_amount, tenure_months, interest_rate, monthly_repayment, emis_paid_on_time, start_date, end_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
        RETURNING ` + loanColumns

	var created loan.Loan
	err := tx.QueryRow(ctx, query,
		newLoan.CustomerID, newLoan.LoanAmount, newLoan.TenureMonths,
		newLoan.InterestRate, newLoan.MonthlyRepayment, newLoan.EMIsPaidOnTime,
		newLoan.StartDate, newLoan.EndDate,
	).Scan(
		&created.LoanID, &created.CustomerID, &created.LoanAmount, &created.TenureMonths,
		&created.InterestRate, &created.MonthlyRepayment, &created.EMIsPaidOnTime,
		&created.StartDate, &created.EndDate, &created.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "customer_id", newLoan.CustomerID, "error", err)
		return nil, translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", created.LoanID, "customer_id", created.CustomerID)
	return &created, nil
}

func (r *LoanRepository) InsertWithID(ctx context.Context, newLoan *loan.Loan) (bool, error) {
	query := `
        INSERT INTO loans (loan_id, customer_id, loan_amount, tenure_months, interest_rate, monthly_repayment, emis_paid_on_time, start_date, end_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        ON CONFLICT (loan_id) DO NOTHING`

	cmdTag, err := r.db.Exec(ctx, query,
		newLoan.LoanID, newLoan.CustomerID, newLoan.LoanAmount, newLoan.TenureMonths,
		newLoan.InterestRate, newLoan.MonthlyRepayment, newLoan.EMIsPaidOnTime,
		newLoan.StartDate, newLoan.EndDate,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan with pre-assigned ID", "loan_id", newLoan.LoanID, "error", err)
		return false, translateDBError(err, r.logger)
	}
	return cmdTag.RowsAffected() == 1, nil
}

type queryFunc func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)

func (r *LoanRepository) queryLoans(ctx context.Context, query queryFunc, sql string, args ...any) ([]*loan.Loan, error) {
	rows, err := query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]*loan.Loan, 0)
	for rows.Next() {
		var l loan.Loan
		err := rows.Scan(
			&l.LoanID, &l.CustomerID, &l.LoanAmount, &l.TenureMonths,
			&l.InterestRate, &l.MonthlyRepayment, &l.EMIsPaidOnTime,
			&l.StartDate, &l.EndDate, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan loan row: %w", apperrors.ErrDatabase, err)
		}
		loans = append(loans, &l)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating loan rows: %w", apperrors.ErrDatabase, err)
	}
	return loans, nil
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {

		if pgErr.Code == "23505" {
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		}

		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
