package handlers

import (
	"context"

	"go.uber.org/zap"

	"libraryloans/internal/ledger"
	"libraryloans/internal/models"
)

// Ledger is the part of *ledger.Ledger the handlers call
type Ledger interface {
	CreateLoan(ctx context.Context, in ledger.LoanInput) (models.Loan, error)
	EndLoan(ctx context.Context, id int64) (models.Loan, error)
	EditLoan(ctx context.Context, id int64, in ledger.LoanInput) (models.Loan, error)
	DeleteLoan(ctx context.Context, id int64) error

	ListBooks(ctx context.Context) ([]models.Book, error)
	ListAvailableBooks(ctx context.Context) ([]models.Book, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	ListLoans(ctx context.Context) ([]models.Loan, error)
	GetBookByName(ctx context.Context, name string) (models.Book, error)
	GetCustomerByName(ctx context.Context, name string) (models.Customer, error)
	GetLoan(ctx context.Context, id int64) (models.Loan, error)
}

// Handler serves the HTML pages and JSON endpoints. It holds no request state.
type Handler struct {
	ledger Ledger
	logger *zap.Logger
}

// NewHandler creates the request handlers
func NewHandler(l Ledger, logger *zap.Logger) *Handler {
	return &Handler{ledger: l, logger: logger}
}
