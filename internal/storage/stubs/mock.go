package stubs

import (
	"context"
	"fmt"
	"sync"

	"libraryloans/internal/models"
	"libraryloans/internal/storage"
)

// dataset is one consistent snapshot of all tables
type dataset struct {
	books     map[int64]models.Book
	customers map[int64]models.Customer
	loans     map[int64]models.Loan

	nextBookID     int64
	nextCustomerID int64
	nextLoanID     int64
}

func newDataset() *dataset {
	return &dataset{
		books:     make(map[int64]models.Book),
		customers: make(map[int64]models.Customer),
		loans:     make(map[int64]models.Loan),
	}
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		books:          make(map[int64]models.Book, len(d.books)),
		customers:      make(map[int64]models.Customer, len(d.customers)),
		loans:          make(map[int64]models.Loan, len(d.loans)),
		nextBookID:     d.nextBookID,
		nextCustomerID: d.nextCustomerID,
		nextLoanID:     d.nextLoanID,
	}
	for id, b := range d.books {
		c.books[id] = b
	}
	for id, cu := range d.customers {
		c.customers[id] = cu
	}
	for id, l := range d.loans {
		c.loans[id] = l
	}
	return c
}

// MockDB is an in-memory implementation of the Storage interface for testing.
// Transactions work on a private copy of the data that replaces the shared
// copy on commit, so a failed transaction leaves nothing behind.
type MockDB struct {
	mu   sync.RWMutex
	data *dataset

	// txMu serializes transactions, standing in for row locks
	txMu sync.Mutex

	faultsMu sync.Mutex
	faults   map[string]error
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		data:   newDataset(),
		faults: make(map[string]error),
	}
}

// Initialize seeds the demo catalog and customers
func (m *MockDB) Initialize(ctx context.Context) error {
	return storage.Seed(ctx, m)
}

// FailOn makes every following call of the named Querier method return err.
// Pass a nil err to clear the fault.
func (m *MockDB) FailOn(method string, err error) {
	m.faultsMu.Lock()
	defer m.faultsMu.Unlock()

	if err == nil {
		delete(m.faults, method)
		return
	}
	m.faults[method] = err
}

func (m *MockDB) fault(method string) error {
	m.faultsMu.Lock()
	defer m.faultsMu.Unlock()
	return m.faults[method]
}

// InTx runs fn against a copy of the data and publishes the copy only on success
func (m *MockDB) InTx(ctx context.Context, fn storage.TxFunc) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	work := m.data.clone()
	m.mu.RUnlock()

	if err := fn(ctx, &view{db: m, d: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if err := m.fault("Commit"); err != nil {
		return err
	}

	m.mu.Lock()
	m.data = work
	m.mu.Unlock()
	return nil
}

// read runs fn against the shared data under a read lock
func (m *MockDB) read(fn func(v *view) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&view{db: m, d: m.data})
}

// write runs a single statement as its own transaction
func (m *MockDB) write(ctx context.Context, fn func(v *view) error) error {
	return m.InTx(ctx, func(_ context.Context, q storage.Querier) error {
		return fn(q.(*view))
	})
}

// CreateBook adds a book, defaulting its status to available
func (m *MockDB) CreateBook(ctx context.Context, book models.Book) (id int64, err error) {
	err = m.write(ctx, func(v *view) error {
		id, err = v.CreateBook(ctx, book)
		return err
	})
	return id, err
}

// ListBooks returns all books sorted by name
func (m *MockDB) ListBooks(ctx context.Context) (books []models.Book, err error) {
	err = m.read(func(v *view) error {
		books, err = v.ListBooks(ctx)
		return err
	})
	return books, err
}

// ListAvailableBooks returns the books that can be lent out
func (m *MockDB) ListAvailableBooks(ctx context.Context) (books []models.Book, err error) {
	err = m.read(func(v *view) error {
		books, err = v.ListAvailableBooks(ctx)
		return err
	})
	return books, err
}

func (m *MockDB) GetBook(ctx context.Context, id int64) (book models.Book, err error) {
	err = m.read(func(v *view) error {
		book, err = v.GetBook(ctx, id)
		return err
	})
	return book, err
}

func (m *MockDB) GetBookByName(ctx context.Context, name string) (book models.Book, err error) {
	err = m.read(func(v *view) error {
		book, err = v.GetBookByName(ctx, name)
		return err
	})
	return book, err
}

func (m *MockDB) LockAvailableBookByName(ctx context.Context, name string) (book models.Book, err error) {
	err = m.read(func(v *view) error {
		book, err = v.LockAvailableBookByName(ctx, name)
		return err
	})
	return book, err
}

func (m *MockDB) SetBookStatus(ctx context.Context, id int64, expect, status models.BookStatus) error {
	return m.write(ctx, func(v *view) error {
		return v.SetBookStatus(ctx, id, expect, status)
	})
}

func (m *MockDB) CreateCustomer(ctx context.Context, customer models.Customer) (id int64, err error) {
	err = m.write(ctx, func(v *view) error {
		id, err = v.CreateCustomer(ctx, customer)
		return err
	})
	return id, err
}

// ListCustomers returns all customers sorted by name
func (m *MockDB) ListCustomers(ctx context.Context) (customers []models.Customer, err error) {
	err = m.read(func(v *view) error {
		customers, err = v.ListCustomers(ctx)
		return err
	})
	return customers, err
}

func (m *MockDB) GetCustomerByName(ctx context.Context, name string) (customer models.Customer, err error) {
	err = m.read(func(v *view) error {
		customer, err = v.GetCustomerByName(ctx, name)
		return err
	})
	return customer, err
}

func (m *MockDB) CreateLoan(ctx context.Context, loan models.Loan) (id int64, err error) {
	err = m.write(ctx, func(v *view) error {
		id, err = v.CreateLoan(ctx, loan)
		return err
	})
	return id, err
}

// ListLoans returns all loans sorted by id
func (m *MockDB) ListLoans(ctx context.Context) (loans []models.Loan, err error) {
	err = m.read(func(v *view) error {
		loans, err = v.ListLoans(ctx)
		return err
	})
	return loans, err
}

func (m *MockDB) GetLoan(ctx context.Context, id int64) (loan models.Loan, err error) {
	err = m.read(func(v *view) error {
		loan, err = v.GetLoan(ctx, id)
		return err
	})
	return loan, err
}

func (m *MockDB) LockLoan(ctx context.Context, id int64) (loan models.Loan, err error) {
	err = m.read(func(v *view) error {
		loan, err = v.LockLoan(ctx, id)
		return err
	})
	return loan, err
}

func (m *MockDB) UpdateLoan(ctx context.Context, loan models.Loan) error {
	return m.write(ctx, func(v *view) error {
		return v.UpdateLoan(ctx, loan)
	})
}

func (m *MockDB) DeleteLoan(ctx context.Context, id int64) error {
	return m.write(ctx, func(v *view) error {
		return v.DeleteLoan(ctx, id)
	})
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}

var _ storage.Storage = (*MockDB)(nil)
