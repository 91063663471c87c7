package loan

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	FindByCustomerID(ctx context.Context, customerID int64) ([]*Loan, error)

	// FindActiveByCustomerID returns the customer's loans whose end date is
	// asOf or later.
	FindActiveByCustomerID(ctx context.Context, customerID int64, asOf time.Time) ([]*Loan, error)

	// LockCustomerForOrigination takes an exclusive row lock on the customer
	// inside tx, serializing concurrent originations for the same customer
	// across the read-score-persist window.
	LockCustomerForOrigination(ctx context.Context, tx pgx.Tx, customerID int64) error

	FindByCustomerInTx(ctx context.Context, tx pgx.Tx, customerID int64) ([]*Loan, error)

	CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *Loan) (*Loan, error)

	// InsertWithID inserts a loan keeping its pre-assigned ID, skipping rows
	// whose ID already exists. Used by spreadsheet ingestion only.
	InsertWithID(ctx context.Context, newLoan *Loan) (inserted bool, err error)

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
