package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"libraryloans/internal/ledger"
	"libraryloans/internal/models"
)

const (
	msgInvalidForm      = "Invalid form data"
	msgLoanNotFound     = "Loan not found"
	msgBookNotFound     = "Book not found"
	msgCustomerNotFound = "Customer not found"
)

type nameView struct {
	Name string `json:"name"`
}

type loanSummaryView struct {
	CustomerName string `json:"customer_name"`
	BookName     string `json:"book_name"`
	LoanDate     string `json:"loan_date"`
	ReturnDate   string `json:"return_date"`
}

type loanView struct {
	ID           int64  `json:"id"`
	CustomerName string `json:"customer_name"`
	BookName     string `json:"book_name"`
	LoanDate     string `json:"loan_date"`
	ReturnDate   string `json:"return_date"`
	Status       string `json:"status"`
}

type bookView struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Author        string `json:"author"`
	YearPublished *int   `json:"year_published"`
	BookType      string `json:"book_type"`
	Status        string `json:"status"`
}

type customerView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
	Age  int    `json:"age"`
}

func newLoanView(l models.Loan) loanView {
	return loanView{
		ID:           l.ID,
		CustomerName: l.CustomerName,
		BookName:     l.BookName,
		LoanDate:     l.LoanDate.Format(ledger.DateLayout),
		ReturnDate:   l.ReturnDate.Format(ledger.DateLayout),
		Status:       string(l.Status),
	}
}

func newBookView(b models.Book) bookView {
	return bookView{
		ID:            b.ID,
		Name:          b.Name,
		Author:        b.Author,
		YearPublished: b.YearPublished,
		BookType:      b.BookType,
		Status:        string(b.Status),
	}
}

func newCustomerView(c models.Customer) customerView {
	return customerView{ID: c.ID, Name: c.Name, City: c.City, Age: c.Age}
}

// operation names a loan mutation for error messages and logs
type operation string

const (
	opCreate operation = "creating loan"
	opEnd    operation = "ending loan"
	opEdit   operation = "updating loan"
	opDelete operation = "deleting loan"
)

// errorStatus maps a ledger error to the status code and message returned to the client
func errorStatus(op operation, err error) (int, string) {
	switch {
	case ledger.IsValidation(err):
		return http.StatusBadRequest, msgInvalidForm
	case errors.Is(err, ledger.ErrBookUnavailable):
		return http.StatusBadRequest, "Book not available for loan."
	case errors.Is(err, ledger.ErrLoanAlreadyEnded):
		return http.StatusBadRequest, "Loan already ended."
	case errors.Is(err, ledger.ErrCustomerNotFound):
		if op == opCreate {
			return http.StatusBadRequest, "Customer not found."
		}
		return http.StatusNotFound, msgCustomerNotFound
	case errors.Is(err, ledger.ErrLoanNotFound):
		return http.StatusNotFound, msgLoanNotFound
	case errors.Is(err, ledger.ErrBookNotFound):
		return http.StatusNotFound, msgBookNotFound
	default:
		return http.StatusInternalServerError, "Error " + string(op)
	}
}

// fail writes the JSON error body for err
func (h *Handler) fail(c *gin.Context, op operation, err error) {
	status, message := errorStatus(op, err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Error "+string(op),
			zap.Error(err),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
	}
	c.JSON(status, gin.H{"error": message})
}

// loanID parses the :id path parameter. Anything that is not a positive integer cannot name a loan.
func loanID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": msgLoanNotFound})
		return 0, false
	}
	return id, true
}
