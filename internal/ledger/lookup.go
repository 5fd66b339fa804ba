package ledger

import (
	"context"

	"libraryloans/internal/models"
)

// Catalog and directory lookups. They never mutate the store.

// ListBooks returns every book in the catalog with its status
func (l *Ledger) ListBooks(ctx context.Context) ([]models.Book, error) {
	books, err := l.store.ListBooks(ctx)
	return books, classify(err)
}

// ListAvailableBooks returns the books that can be lent out right now
func (l *Ledger) ListAvailableBooks(ctx context.Context) ([]models.Book, error) {
	books, err := l.store.ListAvailableBooks(ctx)
	return books, classify(err)
}

func (l *Ledger) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	customers, err := l.store.ListCustomers(ctx)
	return customers, classify(err)
}

func (l *Ledger) ListLoans(ctx context.Context) ([]models.Loan, error) {
	loans, err := l.store.ListLoans(ctx)
	return loans, classify(err)
}

func (l *Ledger) GetBookByName(ctx context.Context, name string) (models.Book, error) {
	book, err := l.store.GetBookByName(ctx, name)
	return book, classify(notFoundAs(err, ErrBookNotFound))
}

func (l *Ledger) GetCustomerByName(ctx context.Context, name string) (models.Customer, error) {
	customer, err := l.store.GetCustomerByName(ctx, name)
	return customer, classify(notFoundAs(err, ErrCustomerNotFound))
}

func (l *Ledger) GetLoan(ctx context.Context, id int64) (models.Loan, error) {
	loan, err := l.store.GetLoan(ctx, id)
	return loan, classify(notFoundAs(err, ErrLoanNotFound))
}
