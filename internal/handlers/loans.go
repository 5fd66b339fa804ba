package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"libraryloans/internal/ledger"
)

// loanForm is the submitted loan form. Both form-encoded and JSON bodies bind to it.
type loanForm struct {
	CustomerName string `form:"customer_name" json:"customer_name" binding:"required"`
	BookName     string `form:"book_name" json:"book_name" binding:"required"`
	LoanDate     string `form:"loan_date" json:"loan_date" binding:"required"`
	ReturnDate   string `form:"return_date" json:"return_date" binding:"required"`
}

// bindLoanInput validates the form and converts it to ledger input
func (h *Handler) bindLoanInput(c *gin.Context) (ledger.LoanInput, error) {
	var form loanForm
	if err := c.ShouldBind(&form); err != nil {
		h.logger.Debug("Invalid loan form", zap.Error(err), zap.String("path", c.Request.URL.Path))
		return ledger.LoanInput{}, &ledger.ValidationError{Fields: map[string]string{"form": err.Error()}}
	}
	return ledger.NewLoanInput(form.CustomerName, form.BookName, form.LoanDate, form.ReturnDate)
}

// loansPage renders the loan listing with the creation form
func (h *Handler) loansPage(c *gin.Context) {
	ctx := c.Request.Context()

	loans, err := h.ledger.ListLoans(ctx)
	if err != nil {
		h.logger.Error("Failed to list loans", zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to fetch loans")
		return
	}
	books, err := h.ledger.ListAvailableBooks(ctx)
	if err != nil {
		h.logger.Error("Failed to list books", zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to fetch books")
		return
	}
	customers, err := h.ledger.ListCustomers(ctx)
	if err != nil {
		h.logger.Error("Failed to list customers", zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to fetch customers")
		return
	}

	c.HTML(http.StatusOK, "loans.html", gin.H{
		"Title":     "Loans",
		"Loans":     loans,
		"Books":     books,
		"Customers": customers,
		"Today":     time.Now().Format(ledger.DateLayout),
	})
}

// createLoan handles POST /loans/
func (h *Handler) createLoan(c *gin.Context) {
	in, err := h.bindLoanInput(c)
	if err != nil {
		h.fail(c, opCreate, err)
		return
	}

	loan, err := h.ledger.CreateLoan(c.Request.Context(), in)
	if err != nil {
		h.fail(c, opCreate, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Loan added successfully",
		"id":      loan.ID,
	})
}

// listLoansJSON handles GET /loans/json
func (h *Handler) listLoansJSON(c *gin.Context) {
	loans, err := h.ledger.ListLoans(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list loans", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch loans"})
		return
	}

	views := make([]loanSummaryView, 0, len(loans))
	for _, loan := range loans {
		views = append(views, loanSummaryView{
			CustomerName: loan.CustomerName,
			BookName:     loan.BookName,
			LoanDate:     loan.LoanDate.Format(ledger.DateLayout),
			ReturnDate:   loan.ReturnDate.Format(ledger.DateLayout),
		})
	}
	c.JSON(http.StatusOK, gin.H{"loans": views})
}

// loanDetails handles GET /loans/:id/details
func (h *Handler) loanDetails(c *gin.Context) {
	id, ok := loanID(c)
	if !ok {
		return
	}

	loan, err := h.ledger.GetLoan(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "fetching loan", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": newLoanView(loan)})
}

// endLoan handles POST /loans/end/:id
func (h *Handler) endLoan(c *gin.Context) {
	id, ok := loanID(c)
	if !ok {
		return
	}

	if _, err := h.ledger.EndLoan(c.Request.Context(), id); err != nil {
		h.fail(c, opEnd, err)
		return
	}
	c.Redirect(http.StatusFound, loansPath)
}

// editLoan handles POST /loans/:id/edit
func (h *Handler) editLoan(c *gin.Context) {
	id, ok := loanID(c)
	if !ok {
		return
	}

	in, err := h.bindLoanInput(c)
	if err != nil {
		// A missing loan wins over a bad form
		if _, lookupErr := h.ledger.GetLoan(c.Request.Context(), id); lookupErr != nil {
			err = lookupErr
		}
		h.fail(c, opEdit, err)
		return
	}

	if _, err := h.ledger.EditLoan(c.Request.Context(), id, in); err != nil {
		h.fail(c, opEdit, err)
		return
	}
	c.Redirect(http.StatusFound, loansPath)
}

// deleteLoan handles POST /loans/:id/delete
func (h *Handler) deleteLoan(c *gin.Context) {
	id, ok := loanID(c)
	if !ok {
		return
	}

	if err := h.ledger.DeleteLoan(c.Request.Context(), id); err != nil {
		h.fail(c, opDelete, err)
		return
	}
	c.Redirect(http.StatusFound, loansPath)
}
