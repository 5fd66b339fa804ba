package stubs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"libraryloans/internal/models"
	"libraryloans/internal/storage"
)

// view implements storage.Querier over one dataset without locking.
// The caller owns synchronization.
type view struct {
	db *MockDB
	d  *dataset
}

func (v *view) CreateBook(ctx context.Context, book models.Book) (int64, error) {
	if err := v.db.fault("CreateBook"); err != nil {
		return 0, err
	}
	if book.Status == "" {
		book.Status = models.BookAvailable
	}
	v.d.nextBookID++
	book.ID = v.d.nextBookID
	v.d.books[book.ID] = book
	return book.ID, nil
}

func (v *view) sortedBooks(keep func(models.Book) bool) []models.Book {
	books := make([]models.Book, 0, len(v.d.books))
	for _, book := range v.d.books {
		if keep(book) {
			books = append(books, book)
		}
	}

	// Sort by name, then id
	sort.Slice(books, func(i, j int) bool {
		if books[i].Name != books[j].Name {
			return books[i].Name < books[j].Name
		}
		return books[i].ID < books[j].ID
	})
	return books
}

func (v *view) ListBooks(ctx context.Context) ([]models.Book, error) {
	if err := v.db.fault("ListBooks"); err != nil {
		return nil, err
	}
	return v.sortedBooks(func(models.Book) bool { return true }), nil
}

func (v *view) ListAvailableBooks(ctx context.Context) ([]models.Book, error) {
	if err := v.db.fault("ListAvailableBooks"); err != nil {
		return nil, err
	}
	return v.sortedBooks(models.Book.Available), nil
}

func (v *view) GetBook(ctx context.Context, id int64) (models.Book, error) {
	if err := v.db.fault("GetBook"); err != nil {
		return models.Book{}, err
	}
	book, ok := v.d.books[id]
	if !ok {
		return models.Book{}, storage.ErrNotFound
	}
	return book, nil
}

// GetBookByName prefers an available copy, then the lowest id
func (v *view) GetBookByName(ctx context.Context, name string) (models.Book, error) {
	if err := v.db.fault("GetBookByName"); err != nil {
		return models.Book{}, err
	}
	var found *models.Book
	for _, book := range v.sortedBooks(func(b models.Book) bool { return b.Name == name }) {
		if book.Available() {
			return book, nil
		}
		if found == nil {
			found = &book
		}
	}
	if found == nil {
		return models.Book{}, storage.ErrNotFound
	}
	return *found, nil
}

func (v *view) LockAvailableBookByName(ctx context.Context, name string) (models.Book, error) {
	if err := v.db.fault("LockAvailableBookByName"); err != nil {
		return models.Book{}, err
	}
	for _, book := range v.sortedBooks(models.Book.Available) {
		if book.Name == name {
			return book, nil
		}
	}
	return models.Book{}, storage.ErrNotFound
}

func (v *view) SetBookStatus(ctx context.Context, id int64, expect, status models.BookStatus) error {
	if err := v.db.fault("SetBookStatus"); err != nil {
		return err
	}
	book, ok := v.d.books[id]
	if !ok || (expect != "" && book.Status != expect) {
		return storage.ErrNotFound
	}
	book.Status = status
	v.d.books[id] = book
	return nil
}

func (v *view) CreateCustomer(ctx context.Context, customer models.Customer) (int64, error) {
	if err := v.db.fault("CreateCustomer"); err != nil {
		return 0, err
	}
	v.d.nextCustomerID++
	customer.ID = v.d.nextCustomerID
	v.d.customers[customer.ID] = customer
	return customer.ID, nil
}

func (v *view) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	if err := v.db.fault("ListCustomers"); err != nil {
		return nil, err
	}
	customers := make([]models.Customer, 0, len(v.d.customers))
	for _, c := range v.d.customers {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool {
		if customers[i].Name != customers[j].Name {
			return customers[i].Name < customers[j].Name
		}
		return customers[i].ID < customers[j].ID
	})
	return customers, nil
}

func (v *view) GetCustomerByName(ctx context.Context, name string) (models.Customer, error) {
	if err := v.db.fault("GetCustomerByName"); err != nil {
		return models.Customer{}, err
	}
	var found *models.Customer
	for id, c := range v.d.customers {
		if c.Name == name && (found == nil || id < found.ID) {
			c := c
			found = &c
		}
	}
	if found == nil {
		return models.Customer{}, storage.ErrNotFound
	}
	return *found, nil
}

func (v *view) CreateLoan(ctx context.Context, loan models.Loan) (int64, error) {
	if err := v.db.fault("CreateLoan"); err != nil {
		return 0, err
	}
	if _, ok := v.d.books[loan.BookID]; !ok {
		return 0, fmt.Errorf("loan references missing book %d", loan.BookID)
	}
	if _, ok := v.d.customers[loan.CustomerID]; !ok {
		return 0, fmt.Errorf("loan references missing customer %d", loan.CustomerID)
	}
	v.d.nextLoanID++
	loan.ID = v.d.nextLoanID
	loan.CustomerName, loan.BookName = "", ""
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = time.Now().UTC()
	}
	v.d.loans[loan.ID] = loan
	return loan.ID, nil
}

// resolve fills the display names from the referenced rows
func (v *view) resolve(loan models.Loan) models.Loan {
	loan.CustomerName = v.d.customers[loan.CustomerID].Name
	loan.BookName = v.d.books[loan.BookID].Name
	return loan
}

func (v *view) ListLoans(ctx context.Context) ([]models.Loan, error) {
	if err := v.db.fault("ListLoans"); err != nil {
		return nil, err
	}
	loans := make([]models.Loan, 0, len(v.d.loans))
	for _, loan := range v.d.loans {
		loans = append(loans, v.resolve(loan))
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].ID < loans[j].ID })
	return loans, nil
}

func (v *view) GetLoan(ctx context.Context, id int64) (models.Loan, error) {
	if err := v.db.fault("GetLoan"); err != nil {
		return models.Loan{}, err
	}
	loan, ok := v.d.loans[id]
	if !ok {
		return models.Loan{}, storage.ErrNotFound
	}
	return v.resolve(loan), nil
}

func (v *view) LockLoan(ctx context.Context, id int64) (models.Loan, error) {
	if err := v.db.fault("LockLoan"); err != nil {
		return models.Loan{}, err
	}
	loan, ok := v.d.loans[id]
	if !ok {
		return models.Loan{}, storage.ErrNotFound
	}
	return loan, nil
}

func (v *view) UpdateLoan(ctx context.Context, loan models.Loan) error {
	if err := v.db.fault("UpdateLoan"); err != nil {
		return err
	}
	current, ok := v.d.loans[loan.ID]
	if !ok {
		return storage.ErrNotFound
	}
	current.CustomerID = loan.CustomerID
	current.BookID = loan.BookID
	current.LoanDate = loan.LoanDate
	current.ReturnDate = loan.ReturnDate
	current.Status = loan.Status
	v.d.loans[loan.ID] = current
	return nil
}

func (v *view) DeleteLoan(ctx context.Context, id int64) error {
	if err := v.db.fault("DeleteLoan"); err != nil {
		return err
	}
	if _, ok := v.d.loans[id]; !ok {
		return storage.ErrNotFound
	}
	delete(v.d.loans, id)
	return nil
}
