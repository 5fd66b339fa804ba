package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"libraryloans/internal/models"
	"libraryloans/internal/notify"
	"libraryloans/internal/storage/stubs"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []notify.Kind
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

var (
	day1 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
)

// setupLedger creates a ledger over an empty mock store with one customer "Alice"
func setupLedger(t *testing.T) (*Ledger, *stubs.MockDB, *recorder) {
	t.Helper()

	db := stubs.NewMockDB()
	_, err := db.CreateCustomer(context.Background(), models.Customer{Name: "Alice", City: "Warsaw", Age: 30})
	require.NoError(t, err)

	rec := &recorder{}
	return New(db, rec, zap.NewNop()), db, rec
}

func addBook(t *testing.T, db *stubs.MockDB, name string) int64 {
	t.Helper()
	id, err := db.CreateBook(context.Background(), models.Book{Name: name, Author: "Frank Herbert"})
	require.NoError(t, err)
	return id
}

func loanInput(book string) LoanInput {
	return LoanInput{CustomerName: "Alice", BookName: book, LoanDate: day1, ReturnDate: day2}
}

// snapshot captures everything a failed operation must leave untouched
type snapshot struct {
	books []models.Book
	loans []models.Loan
}

func takeSnapshot(t *testing.T, db *stubs.MockDB) snapshot {
	t.Helper()
	ctx := context.Background()
	books, err := db.ListBooks(ctx)
	require.NoError(t, err)
	loans, err := db.ListLoans(ctx)
	require.NoError(t, err)
	return snapshot{books: books, loans: loans}
}

func TestLedger_CreateLoan(t *testing.T) {
	l, db, rec := setupLedger(t)
	ctx := context.Background()
	bookID := addBook(t, db, "Dune")

	loan, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)

	assert.NotZero(t, loan.ID)
	assert.Equal(t, models.LoanActive, loan.Status)
	assert.Equal(t, "Alice", loan.CustomerName)
	assert.Equal(t, "Dune", loan.BookName)
	assert.Equal(t, bookID, loan.BookID)

	// The book row survives but is no longer lendable
	available, err := l.ListAvailableBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)

	book, err := db.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, models.BookOnLoan, book.Status)
	assert.Equal(t, "Frank Herbert", book.Author)

	loans, err := l.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, loan.ID, loans[0].ID)

	assert.Equal(t, []notify.Kind{notify.LoanCreated}, rec.kinds())
}

func TestLedger_CreateLoanTakesOneCopy(t *testing.T) {
	l, db, _ := setupLedger(t)
	ctx := context.Background()
	addBook(t, db, "Dune")
	addBook(t, db, "Dune")

	_, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)

	available, err := l.ListAvailableBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 1)
}

func TestLedger_CreateLoanRejected(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, l *Ledger, db *stubs.MockDB)
		input   LoanInput
		wantErr error
	}{
		{
			name:    "unknown book",
			input:   loanInput("Missing"),
			wantErr: ErrBookUnavailable,
		},
		{
			name: "book already on loan",
			prepare: func(t *testing.T, l *Ledger, db *stubs.MockDB) {
				_, err := l.CreateLoan(context.Background(), loanInput("Dune"))
				require.NoError(t, err)
			},
			input:   loanInput("Dune"),
			wantErr: ErrBookUnavailable,
		},
		{
			name:    "unknown customer",
			input:   LoanInput{CustomerName: "Mallory", BookName: "Dune", LoanDate: day1, ReturnDate: day2},
			wantErr: ErrCustomerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, db, rec := setupLedger(t)
			addBook(t, db, "Dune")
			if tt.prepare != nil {
				tt.prepare(t, l, db)
			}
			before := takeSnapshot(t, db)
			notified := len(rec.kinds())

			_, err := l.CreateLoan(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, errors.Is(err, ErrPersistence))

			assert.Equal(t, before, takeSnapshot(t, db))
			assert.Len(t, rec.kinds(), notified)
		})
	}
}

func TestLedger_CreateLoanValidation(t *testing.T) {
	l, db, _ := setupLedger(t)
	addBook(t, db, "Dune")

	_, err := l.CreateLoan(context.Background(), LoanInput{BookName: "Dune", LoanDate: day2, ReturnDate: day1})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "required", ve.Fields["customer_name"])
	assert.Equal(t, "before loan_date", ve.Fields["return_date"])
}

func TestLedger_CreateLoanRollsBackOnStoreFailure(t *testing.T) {
	l, db, rec := setupLedger(t)
	addBook(t, db, "Dune")
	before := takeSnapshot(t, db)

	// The book is already marked on loan when the insert fails
	db.FailOn("CreateLoan", errors.New("disk full"))

	_, err := l.CreateLoan(context.Background(), loanInput("Dune"))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, before, takeSnapshot(t, db))
	assert.Empty(t, rec.kinds())
}

func TestLedger_CreateLoanConcurrentLastCopy(t *testing.T) {
	l, db, _ := setupLedger(t)
	addBook(t, db, "Dune")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.CreateLoan(context.Background(), loanInput("Dune"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, ErrBookUnavailable) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)

	loans, err := l.ListLoans(context.Background())
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}

func TestLedger_EndLoan(t *testing.T) {
	l, db, rec := setupLedger(t)
	ctx := context.Background()
	bookID := addBook(t, db, "Dune")

	loan, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)

	ended, err := l.EndLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanEnded, ended.Status)
	assert.Equal(t, "Dune", ended.BookName)

	book, err := db.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, models.BookAvailable, book.Status)

	available, err := l.ListAvailableBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 1)

	assert.Equal(t, []notify.Kind{notify.LoanCreated, notify.LoanEnded}, rec.kinds())
}

func TestLedger_EndLoanAlreadyEnded(t *testing.T) {
	l, db, _ := setupLedger(t)
	ctx := context.Background()
	addBook(t, db, "Dune")

	loan, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)
	_, err = l.EndLoan(ctx, loan.ID)
	require.NoError(t, err)

	// Lend the returned copy again so a second end would be visible
	_, err = l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)
	before := takeSnapshot(t, db)

	_, err = l.EndLoan(ctx, loan.ID)
	assert.ErrorIs(t, err, ErrLoanAlreadyEnded)
	assert.Equal(t, before, takeSnapshot(t, db))
}

func TestLedger_EndLoanNotFound(t *testing.T) {
	l, _, _ := setupLedger(t)

	_, err := l.EndLoan(context.Background(), 999)
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestLedger_EndLoanIsAtomic(t *testing.T) {
	l, db, rec := setupLedger(t)
	ctx := context.Background()
	addBook(t, db, "Dune")

	loan, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)
	before := takeSnapshot(t, db)

	// Fail between the loan update and the book update
	db.FailOn("SetBookStatus", errors.New("connection reset"))

	_, err = l.EndLoan(ctx, loan.ID)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, before, takeSnapshot(t, db))

	stored, err := db.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, stored.Status)
	assert.Equal(t, []notify.Kind{notify.LoanCreated}, rec.kinds())

	// Once the fault clears the same loan can be ended
	db.FailOn("SetBookStatus", nil)
	_, err = l.EndLoan(ctx, loan.ID)
	assert.NoError(t, err)
}

func TestLedger_EndLoanCommitFailure(t *testing.T) {
	l, db, _ := setupLedger(t)
	ctx := context.Background()
	addBook(t, db, "Dune")

	loan, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)
	before := takeSnapshot(t, db)

	db.FailOn("Commit", errors.New("commit failed"))
	defer db.FailOn("Commit", nil)

	_, err = l.EndLoan(ctx, loan.ID)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, before, takeSnapshot(t, db))
}

func TestLedger_EditLoan(t *testing.T) {
	l, db, rec := setupLedger(t)
	ctx := context.Background()
	duneID := addBook(t, db, "Dune")
	hobbitID := addBook(t, db, "The Hobbit")
	_, err := db.CreateCustomer(ctx, models.Customer{Name: "Bob"})
	require.NoError(t, err)

	loan, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)

	newReturn := day2.AddDate(0, 0, 7)
	edited, err := l.EditLoan(ctx, loan.ID, LoanInput{
		CustomerName: "Bob",
		BookName:     "The Hobbit",
		LoanDate:     day1,
		ReturnDate:   newReturn,
	})
	require.NoError(t, err)

	assert.Equal(t, loan.ID, edited.ID)
	assert.Equal(t, "Bob", edited.CustomerName)
	assert.Equal(t, "The Hobbit", edited.BookName)
	assert.Equal(t, hobbitID, edited.BookID)
	assert.Equal(t, newReturn, edited.ReturnDate)
	assert.Equal(t, models.LoanActive, edited.Status)

	// Availability is deliberately not rebalanced by an edit
	dune, err := db.GetBook(ctx, duneID)
	require.NoError(t, err)
	assert.Equal(t, models.BookOnLoan, dune.Status)
	hobbit, err := db.GetBook(ctx, hobbitID)
	require.NoError(t, err)
	assert.Equal(t, models.BookAvailable, hobbit.Status)

	assert.Equal(t, []notify.Kind{notify.LoanCreated}, rec.kinds())
}

// An edit onto a lent book leaves two active loans on it; ending one of them frees the book
func TestLedger_EditThenEndOnSharedBook(t *testing.T) {
	l, db, _ := setupLedger(t)
	ctx := context.Background()
	duneID := addBook(t, db, "Dune")
	sapiensID := addBook(t, db, "Sapiens")

	first, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)
	second, err := l.CreateLoan(ctx, loanInput("Sapiens"))
	require.NoError(t, err)

	_, err = l.EditLoan(ctx, second.ID, loanInput("Dune"))
	require.NoError(t, err)

	_, err = l.EndLoan(ctx, second.ID)
	require.NoError(t, err)

	dune, err := db.GetBook(ctx, duneID)
	require.NoError(t, err)
	assert.Equal(t, models.BookAvailable, dune.Status)

	stillActive, err := l.GetLoan(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, stillActive.Status)
	assert.Equal(t, duneID, stillActive.BookID)

	// Nothing references Sapiens any more, yet it stays on loan
	sapiens, err := db.GetBook(ctx, sapiensID)
	require.NoError(t, err)
	assert.Equal(t, models.BookOnLoan, sapiens.Status)
}

func TestLedger_EditLoanKeepsBookWhenNameUnchanged(t *testing.T) {
	l, db, _ := setupLedger(t)
	ctx := context.Background()
	first := addBook(t, db, "Dune")
	addBook(t, db, "Dune")

	loan, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)
	require.Equal(t, first, loan.BookID)

	edited, err := l.EditLoan(ctx, loan.ID, LoanInput{CustomerName: "Alice", BookName: "Dune", LoanDate: day1, ReturnDate: day1})
	require.NoError(t, err)
	assert.Equal(t, first, edited.BookID)
	assert.Equal(t, day1, edited.ReturnDate)
}

func TestLedger_EditLoanRejected(t *testing.T) {
	tests := []struct {
		name    string
		id      func(loanID int64) int64
		input   LoanInput
		wantErr error
	}{
		{"missing loan", func(int64) int64 { return 999 }, loanInput("Dune"), ErrLoanNotFound},
		{"unknown customer", func(id int64) int64 { return id }, LoanInput{CustomerName: "Mallory", BookName: "Dune", LoanDate: day1, ReturnDate: day2}, ErrCustomerNotFound},
		{"unknown book", func(id int64) int64 { return id }, loanInput("Missing"), ErrBookNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, db, _ := setupLedger(t)
			addBook(t, db, "Dune")
			loan, err := l.CreateLoan(context.Background(), loanInput("Dune"))
			require.NoError(t, err)
			before := takeSnapshot(t, db)

			_, err = l.EditLoan(context.Background(), tt.id(loan.ID), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, takeSnapshot(t, db))
		})
	}
}

func TestLedger_DeleteLoan(t *testing.T) {
	l, db, rec := setupLedger(t)
	ctx := context.Background()
	bookID := addBook(t, db, "Dune")

	loan, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)

	require.NoError(t, l.DeleteLoan(ctx, loan.ID))

	_, err = l.GetLoan(ctx, loan.ID)
	assert.ErrorIs(t, err, ErrLoanNotFound)

	// Exactly one available copy, the original row with its metadata
	available, err := l.ListAvailableBooks(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, bookID, available[0].ID)
	assert.Equal(t, "Dune", available[0].Name)
	assert.Equal(t, "Frank Herbert", available[0].Author)

	assert.Equal(t, []notify.Kind{notify.LoanCreated, notify.LoanDeleted}, rec.kinds())
}

func TestLedger_DeleteEndedLoanLeavesCatalog(t *testing.T) {
	l, db, _ := setupLedger(t)
	ctx := context.Background()
	addBook(t, db, "Dune")

	loan, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)
	_, err = l.EndLoan(ctx, loan.ID)
	require.NoError(t, err)

	require.NoError(t, l.DeleteLoan(ctx, loan.ID))

	books, err := l.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, models.BookAvailable, books[0].Status)
}

func TestLedger_DeleteLoanNotFound(t *testing.T) {
	l, _, _ := setupLedger(t)
	assert.ErrorIs(t, l.DeleteLoan(context.Background(), 42), ErrLoanNotFound)
}

func TestLedger_DeleteLoanRollsBack(t *testing.T) {
	l, db, _ := setupLedger(t)
	ctx := context.Background()
	addBook(t, db, "Dune")

	loan, err := l.CreateLoan(ctx, loanInput("Dune"))
	require.NoError(t, err)
	before := takeSnapshot(t, db)

	db.FailOn("DeleteLoan", errors.New("lock timeout"))

	err = l.DeleteLoan(ctx, loan.ID)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, before, takeSnapshot(t, db))
}

func TestLedger_Lookups(t *testing.T) {
	l, db, _ := setupLedger(t)
	ctx := context.Background()
	addBook(t, db, "Dune")

	customer, err := l.GetCustomerByName(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Warsaw", customer.City)

	_, err = l.GetCustomerByName(ctx, "Nobody")
	assert.ErrorIs(t, err, ErrCustomerNotFound)

	book, err := l.GetBookByName(ctx, "Dune")
	require.NoError(t, err)
	assert.Equal(t, models.BookAvailable, book.Status)

	_, err = l.GetBookByName(ctx, "Nope")
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = l.GetLoan(ctx, 1)
	assert.ErrorIs(t, err, ErrLoanNotFound)

	customers, err := l.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 1)
}

func TestLedger_LookupStoreFailure(t *testing.T) {
	l, db, _ := setupLedger(t)
	db.FailOn("ListLoans", errors.New("boom"))

	_, err := l.ListLoans(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
}
