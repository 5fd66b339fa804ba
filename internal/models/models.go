package models

import "time"

// BookStatus is the availability of a book in the catalog
type BookStatus string

const (
	BookAvailable BookStatus = "available"
	BookOnLoan    BookStatus = "on_loan"
)

// LoanStatus is the lifecycle state of a loan. It only moves from active to ended.
type LoanStatus string

const (
	LoanActive LoanStatus = "active"
	LoanEnded  LoanStatus = "ended"
)

// Book represents a book in the catalog
type Book struct {
	ID            int64      `db:"id"`
	Name          string     `db:"name"`
	Author        string     `db:"author"`
	YearPublished *int       `db:"year_published"`
	BookType      string     `db:"book_type"`
	Status        BookStatus `db:"status"`
}

// Available reports whether the book can be lent out
func (b Book) Available() bool {
	return b.Status == BookAvailable
}

// Customer represents a library customer
type Customer struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
	City string `db:"city"`
	Age  int    `db:"age"`
}

// Loan links one customer and one book for a date range.
// CustomerName and BookName are resolved from the referenced rows at read time.
type Loan struct {
	ID           int64      `db:"id"`
	CustomerID   int64      `db:"customer_id"`
	BookID       int64      `db:"book_id"`
	CustomerName string     `db:"customer_name"`
	BookName     string     `db:"book_name"`
	LoanDate     time.Time  `db:"loan_date"`
	ReturnDate   time.Time  `db:"return_date"`
	Status       LoanStatus `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
}

// Active reports whether the loan still holds its book
func (l Loan) Active() bool {
	return l.Status == LoanActive
}
