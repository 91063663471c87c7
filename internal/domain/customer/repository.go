package customer

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("customer not found")

	ErrPhoneNumberInUse = errors.New("phone number already in use")
)

type CustomerRepository interface {
	// Save inserts the customer and fills in CustomerID and CreatedAt.
	Save(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	FindByPhoneNumber(ctx context.Context, phoneNumber string) (*Customer, error)

	// InsertWithID inserts a customer keeping its pre-assigned ID, skipping
	// rows whose ID already exists. Used by spreadsheet ingestion only.
	InsertWithID(ctx context.Context, customer *Customer) (inserted bool, err error)
}
