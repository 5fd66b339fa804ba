package storage

import (
	"context"
	"errors"

	"libraryloans/internal/models"
)

// ErrNotFound is returned when a lookup or a conditional update matches no row
var ErrNotFound = errors.New("record not found")

// Querier defines the record-level operations shared by a store and its transactions
type Querier interface {
	// Book operations
	CreateBook(ctx context.Context, book models.Book) (int64, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	ListAvailableBooks(ctx context.Context) ([]models.Book, error)
	GetBook(ctx context.Context, id int64) (models.Book, error)
	GetBookByName(ctx context.Context, name string) (models.Book, error)

	// LockAvailableBookByName returns one available book with the given name and
	// holds a row lock on it until the surrounding transaction ends
	LockAvailableBookByName(ctx context.Context, name string) (models.Book, error)

	// SetBookStatus moves a book to status. If expect is not empty the update only
	// applies while the book still has that status. ErrNotFound means no row matched.
	SetBookStatus(ctx context.Context, id int64, expect, status models.BookStatus) error

	// Customer operations
	CreateCustomer(ctx context.Context, customer models.Customer) (int64, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	GetCustomerByName(ctx context.Context, name string) (models.Customer, error)

	// Loan operations
	CreateLoan(ctx context.Context, loan models.Loan) (int64, error)
	ListLoans(ctx context.Context) ([]models.Loan, error)
	GetLoan(ctx context.Context, id int64) (models.Loan, error)

	// LockLoan returns the loan row without resolved names and locks it
	LockLoan(ctx context.Context, id int64) (models.Loan, error)

	// UpdateLoan overwrites references, dates and status of an existing loan
	UpdateLoan(ctx context.Context, loan models.Loan) error
	DeleteLoan(ctx context.Context, id int64) error
}

// TxFunc runs inside a transaction. Returning an error rolls the transaction back.
type TxFunc func(ctx context.Context, q Querier) error

// Storage defines the interface for data storage operations
type Storage interface {
	Querier

	// InTx runs fn with a transaction-scoped Querier. The transaction commits only
	// if fn returns nil; errors and panics roll it back.
	InTx(ctx context.Context, fn TxFunc) error

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
