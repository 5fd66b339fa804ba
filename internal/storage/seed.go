package storage

import (
	"context"
	"fmt"

	"libraryloans/internal/models"
)

func year(y int) *int { return &y }

// DemoBooks is the catalog inserted by Seed
var DemoBooks = []models.Book{
	{Name: "Dune", Author: "Frank Herbert", YearPublished: year(1965), BookType: "novel"},
	{Name: "The Hobbit", Author: "J. R. R. Tolkien", YearPublished: year(1937), BookType: "novel"},
	{Name: "Neuromancer", Author: "William Gibson", YearPublished: year(1984), BookType: "novel"},
	{Name: "The Pragmatic Programmer", Author: "Andrew Hunt, David Thomas", YearPublished: year(1999), BookType: "reference"},
	{Name: "Sapiens", Author: "Yuval Noah Harari", YearPublished: year(2011), BookType: "non-fiction"},
}

// DemoCustomers are the customers inserted by Seed
var DemoCustomers = []models.Customer{
	{Name: "Alice", City: "Warsaw", Age: 34},
	{Name: "Bob", City: "Krakow", Age: 27},
	{Name: "Carol", City: "Gdansk", Age: 52},
}

// Seed inserts the demo catalog and customers in a single transaction
func Seed(ctx context.Context, s Storage) error {
	return s.InTx(ctx, func(ctx context.Context, q Querier) error {
		for _, book := range DemoBooks {
			book.Status = models.BookAvailable
			if _, err := q.CreateBook(ctx, book); err != nil {
				return fmt.Errorf("failed to seed book %q: %w", book.Name, err)
			}
		}
		for _, customer := range DemoCustomers {
			if _, err := q.CreateCustomer(ctx, customer); err != nil {
				return fmt.Errorf("failed to seed customer %q: %w", customer.Name, err)
			}
		}
		return nil
	})
}
