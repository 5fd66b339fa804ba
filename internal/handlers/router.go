package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"libraryloans/web"
)

const loansPath = "/loans/"

// RouterOptions configures the HTTP surface
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter builds the gin engine with every page and JSON endpoint registered
func NewRouter(h *Handler, logger *zap.Logger, opts RouterOptions) (*gin.Engine, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(
		requestID(),
		requestLogger(logger),
		recovery(logger),
		cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{"Content-Type", requestIDHeader},
		}),
	)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, loansPath)
	})

	r.GET("/books", h.booksPage)

	loans := r.Group("/loans")
	{
		loans.GET("/", h.loansPage)
		loans.POST("/", h.createLoan)
		loans.GET("/json", h.listLoansJSON)

		loans.GET("/books/json", h.listBooksJSON)
		loans.GET("/books/details/:name", h.bookDetails)
		loans.GET("/customers/json", h.listCustomersJSON)
		loans.GET("/customers/details/:name", h.customerDetails)

		loans.GET("/:id/details", h.loanDetails)
		loans.POST("/end/:id", h.endLoan)
		loans.POST("/:id/edit", h.editLoan)
		loans.POST("/:id/delete", h.deleteLoan)
	}

	return r, nil
}
