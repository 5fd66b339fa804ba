package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"libraryloans/internal/storage"
)

var (
	// ErrBookUnavailable means no available book with the requested name exists
	ErrBookUnavailable = errors.New("book not available for loan")
	// ErrLoanAlreadyEnded means the loan was ended before
	ErrLoanAlreadyEnded = errors.New("loan already ended")

	ErrBookNotFound     = errors.New("book not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrLoanNotFound     = errors.New("loan not found")

	// ErrPersistence wraps store failures. The transaction has been rolled back.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError lists the rejected input fields and why
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "invalid loan input: " + strings.Join(parts, ", ")
}

// IsNotFound reports whether err means a referenced entity is absent
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrLoanNotFound)
}

// IsBusinessRule reports whether err is a loan lifecycle rule violation
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrBookUnavailable) || errors.Is(err, ErrLoanAlreadyEnded)
}

// IsValidation reports whether err carries a *ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// notFoundAs translates storage.ErrNotFound into the ledger sentinel
func notFoundAs(err, sentinel error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return sentinel
	}
	return err
}

// classify wraps anything that is not part of the ledger taxonomy as a persistence failure
func classify(err error) error {
	if err == nil || IsNotFound(err) || IsBusinessRule(err) || IsValidation(err) {
		return err
	}
	return errors.Join(ErrPersistence, err)
}
