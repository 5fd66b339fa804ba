package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"libraryloans/internal/models"
	"libraryloans/internal/storage"
)

var (
	bookColumns     = []any{"id", "name", "author", "year_published", "book_type", "status"}
	customerColumns = []any{"id", "name", "city", "age"}
	loanColumns     = []any{"id", "customer_id", "book_id", "loan_date", "return_date", "status", "created_at"}
)

// sqlBuilder is implemented by every goqu dataset
type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

// queries implements storage.Querier on top of a pool or a transaction
type queries struct {
	db dbtx
}

func newQueries(db dbtx) *queries {
	return &queries{db: db}
}

func toSQL(b sqlBuilder) (string, []any, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build query: %w", err)
	}
	return query, args, nil
}

func (q *queries) queryRow(ctx context.Context, b sqlBuilder) (pgx.Row, error) {
	query, args, err := toSQL(b)
	if err != nil {
		return nil, err
	}
	return q.db.QueryRow(ctx, query, args...), nil
}

func (q *queries) query(ctx context.Context, b sqlBuilder) (pgx.Rows, error) {
	query, args, err := toSQL(b)
	if err != nil {
		return nil, err
	}
	return q.db.Query(ctx, query, args...)
}

// exec runs a statement and maps "no rows affected" to storage.ErrNotFound
func (q *queries) exec(ctx context.Context, b sqlBuilder) error {
	query, args, err := toSQL(b)
	if err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func scanBook(row pgx.Row) (models.Book, error) {
	var (
		book   models.Book
		status string
	)
	if err := row.Scan(&book.ID, &book.Name, &book.Author, &book.YearPublished, &book.BookType, &status); err != nil {
		return models.Book{}, err
	}
	book.Status = models.BookStatus(status)
	return book, nil
}

func scanCustomer(row pgx.Row) (models.Customer, error) {
	var customer models.Customer
	err := row.Scan(&customer.ID, &customer.Name, &customer.City, &customer.Age)
	return customer, err
}

func scanLoan(row pgx.Row, withNames bool) (models.Loan, error) {
	var (
		loan   models.Loan
		status string
	)
	dest := []any{&loan.ID, &loan.CustomerID, &loan.BookID, &loan.LoanDate, &loan.ReturnDate, &status, &loan.CreatedAt}
	if withNames {
		dest = append(dest, &loan.CustomerName, &loan.BookName)
	}
	if err := row.Scan(dest...); err != nil {
		return models.Loan{}, err
	}
	loan.Status = models.LoanStatus(status)
	return loan, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// CreateBook inserts a book and returns its id
func (q *queries) CreateBook(ctx context.Context, book models.Book) (int64, error) {
	if book.Status == "" {
		book.Status = models.BookAvailable
	}
	var yearPublished any
	if book.YearPublished != nil {
		yearPublished = *book.YearPublished
	}

	row, err := q.queryRow(ctx, builder().Insert(tableBooks).Prepared(true).
		Rows(goqu.Record{
			"name":           book.Name,
			"author":         book.Author,
			"year_published": yearPublished,
			"book_type":      book.BookType,
			"status":         string(book.Status),
		}).
		Returning("id"))
	if err != nil {
		return 0, err
	}

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create book: %w", err)
	}
	return id, nil
}

func (q *queries) listBooks(ctx context.Context, where ...exp.Expression) ([]models.Book, error) {
	rows, err := q.query(ctx, builder().From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Where(where...).
		Order(goqu.C("name").Asc(), goqu.C("id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	books, err := collect(rows, scanBook)
	if err != nil {
		return nil, fmt.Errorf("failed to scan book: %w", err)
	}
	return books, nil
}

// ListBooks returns all books ordered by name
func (q *queries) ListBooks(ctx context.Context) ([]models.Book, error) {
	return q.listBooks(ctx)
}

// ListAvailableBooks returns the books that can be lent out
func (q *queries) ListAvailableBooks(ctx context.Context) ([]models.Book, error) {
	return q.listBooks(ctx, goqu.C("status").Eq(string(models.BookAvailable)))
}

func (q *queries) GetBook(ctx context.Context, id int64) (models.Book, error) {
	row, err := q.queryRow(ctx, builder().From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Where(goqu.C("id").Eq(id)))
	if err != nil {
		return models.Book{}, err
	}
	book, err := scanBook(row)
	return book, notFound(err)
}

// GetBookByName prefers an available copy, then the lowest id
func (q *queries) GetBookByName(ctx context.Context, name string) (models.Book, error) {
	// 'available' sorts before 'on_loan'
	row, err := q.queryRow(ctx, builder().From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Where(goqu.C("name").Eq(name)).
		Order(goqu.C("status").Asc(), goqu.C("id").Asc()).
		Limit(1))
	if err != nil {
		return models.Book{}, err
	}
	book, err := scanBook(row)
	return book, notFound(err)
}

// LockAvailableBookByName skips copies already locked by a concurrent loan
func (q *queries) LockAvailableBookByName(ctx context.Context, name string) (models.Book, error) {
	row, err := q.queryRow(ctx, builder().From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Where(
			goqu.C("name").Eq(name),
			goqu.C("status").Eq(string(models.BookAvailable)),
		).
		Order(goqu.C("id").Asc()).
		Limit(1).
		ForUpdate(exp.SkipLocked))
	if err != nil {
		return models.Book{}, err
	}
	book, err := scanBook(row)
	return book, notFound(err)
}

func (q *queries) SetBookStatus(ctx context.Context, id int64, expect, status models.BookStatus) error {
	where := []exp.Expression{goqu.C("id").Eq(id)}
	if expect != "" {
		where = append(where, goqu.C("status").Eq(string(expect)))
	}
	return q.exec(ctx, builder().Update(tableBooks).Prepared(true).
		Set(goqu.Record{"status": string(status)}).
		Where(where...))
}

func (q *queries) CreateCustomer(ctx context.Context, customer models.Customer) (int64, error) {
	row, err := q.queryRow(ctx, builder().Insert(tableCustomers).Prepared(true).
		Rows(goqu.Record{
			"name": customer.Name,
			"city": customer.City,
			"age":  customer.Age,
		}).
		Returning("id"))
	if err != nil {
		return 0, err
	}

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create customer: %w", err)
	}
	return id, nil
}

// ListCustomers returns all customers ordered by name
func (q *queries) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	rows, err := q.query(ctx, builder().From(tableCustomers).Prepared(true).
		Select(customerColumns...).
		Order(goqu.C("name").Asc(), goqu.C("id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	customers, err := collect(rows, scanCustomer)
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}
	return customers, nil
}

func (q *queries) GetCustomerByName(ctx context.Context, name string) (models.Customer, error) {
	row, err := q.queryRow(ctx, builder().From(tableCustomers).Prepared(true).
		Select(customerColumns...).
		Where(goqu.C("name").Eq(name)).
		Order(goqu.C("id").Asc()).
		Limit(1))
	if err != nil {
		return models.Customer{}, err
	}
	customer, err := scanCustomer(row)
	return customer, notFound(err)
}

func (q *queries) CreateLoan(ctx context.Context, loan models.Loan) (int64, error) {
	row, err := q.queryRow(ctx, builder().Insert(tableLoans).Prepared(true).
		Rows(goqu.Record{
			"customer_id": loan.CustomerID,
			"book_id":     loan.BookID,
			"loan_date":   loan.LoanDate,
			"return_date": loan.ReturnDate,
			"status":      string(loan.Status),
		}).
		Returning("id"))
	if err != nil {
		return 0, err
	}

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create loan: %w", err)
	}
	return id, nil
}

// selectLoans joins the referenced rows to resolve display names
func selectLoans() *goqu.SelectDataset {
	return builder().From(goqu.T(tableLoans).As("l")).Prepared(true).
		Join(goqu.T(tableCustomers).As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("l.customer_id")))).
		Join(goqu.T(tableBooks).As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Select(
			"l.id", "l.customer_id", "l.book_id", "l.loan_date", "l.return_date", "l.status", "l.created_at",
			goqu.I("c.name").As("customer_name"),
			goqu.I("b.name").As("book_name"),
		)
}

// ListLoans returns all loans ordered by id
func (q *queries) ListLoans(ctx context.Context) ([]models.Loan, error) {
	rows, err := q.query(ctx, selectLoans().Order(goqu.I("l.id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}

	loans, err := collect(rows, func(row pgx.Row) (models.Loan, error) {
		return scanLoan(row, true)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan loan: %w", err)
	}
	return loans, nil
}

func (q *queries) GetLoan(ctx context.Context, id int64) (models.Loan, error) {
	row, err := q.queryRow(ctx, selectLoans().Where(goqu.I("l.id").Eq(id)))
	if err != nil {
		return models.Loan{}, err
	}
	loan, err := scanLoan(row, true)
	return loan, notFound(err)
}

func (q *queries) LockLoan(ctx context.Context, id int64) (models.Loan, error) {
	row, err := q.queryRow(ctx, builder().From(tableLoans).Prepared(true).
		Select(loanColumns...).
		Where(goqu.C("id").Eq(id)).
		ForUpdate(exp.Wait))
	if err != nil {
		return models.Loan{}, err
	}
	loan, err := scanLoan(row, false)
	return loan, notFound(err)
}

func (q *queries) UpdateLoan(ctx context.Context, loan models.Loan) error {
	return q.exec(ctx, builder().Update(tableLoans).Prepared(true).
		Set(goqu.Record{
			"customer_id": loan.CustomerID,
			"book_id":     loan.BookID,
			"loan_date":   loan.LoanDate,
			"return_date": loan.ReturnDate,
			"status":      string(loan.Status),
		}).
		Where(goqu.C("id").Eq(loan.ID)))
}

func (q *queries) DeleteLoan(ctx context.Context, id int64) error {
	return q.exec(ctx, builder().Delete(tableLoans).Prepared(true).
		Where(goqu.C("id").Eq(id)))
}

var _ storage.Querier = (*queries)(nil)
