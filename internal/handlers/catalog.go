package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// booksPage renders every book in the catalog with its status
func (h *Handler) booksPage(c *gin.Context) {
	books, err := h.ledger.ListBooks(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list books", zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to fetch books")
		return
	}

	c.HTML(http.StatusOK, "books.html", gin.H{
		"Title": "Books",
		"Books": books,
	})
}

// listBooksJSON returns the books that can be picked for a new loan
func (h *Handler) listBooksJSON(c *gin.Context) {
	books, err := h.ledger.ListAvailableBooks(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list books", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch books"})
		return
	}

	views := make([]nameView, 0, len(books))
	for _, book := range books {
		views = append(views, nameView{Name: book.Name})
	}
	c.JSON(http.StatusOK, gin.H{"books": views})
}

func (h *Handler) listCustomersJSON(c *gin.Context) {
	customers, err := h.ledger.ListCustomers(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list customers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch customers"})
		return
	}

	views := make([]nameView, 0, len(customers))
	for _, customer := range customers {
		views = append(views, nameView{Name: customer.Name})
	}
	c.JSON(http.StatusOK, gin.H{"customers": views})
}

func (h *Handler) customerDetails(c *gin.Context) {
	customer, err := h.ledger.GetCustomerByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "fetching customer", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": newCustomerView(customer)})
}

func (h *Handler) bookDetails(c *gin.Context) {
	book, err := h.ledger.GetBookByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "fetching book", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": newBookView(book)})
}
