package ledger

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used on forms and in JSON
const DateLayout = "2006-01-02"

// LoanInput carries the user-editable fields of a loan
type LoanInput struct {
	CustomerName string
	BookName     string
	LoanDate     time.Time
	ReturnDate   time.Time
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp and returns the date at UTC midnight
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// NewLoanInput parses raw form values. Every problem is reported in one *ValidationError.
func NewLoanInput(customerName, bookName, loanDate, returnDate string) (LoanInput, error) {
	in := LoanInput{
		CustomerName: strings.TrimSpace(customerName),
		BookName:     strings.TrimSpace(bookName),
	}
	fields := map[string]string{}

	parse := func(name, raw string) time.Time {
		if strings.TrimSpace(raw) == "" {
			fields[name] = "required"
			return time.Time{}
		}
		t, err := ParseDate(raw)
		if err != nil {
			fields[name] = "not a date"
		}
		return t
	}
	in.LoanDate = parse("loan_date", loanDate)
	in.ReturnDate = parse("return_date", returnDate)

	if err := in.validate(); err != nil {
		for k, v := range err.Fields {
			if _, seen := fields[k]; !seen {
				fields[k] = v
			}
		}
	}
	if len(fields) > 0 {
		return LoanInput{}, &ValidationError{Fields: fields}
	}
	return in, nil
}

// Validate checks required fields and date order
func (in LoanInput) Validate() error {
	if err := in.validate(); err != nil {
		return err
	}
	return nil
}

func (in LoanInput) validate() *ValidationError {
	fields := map[string]string{}
	if strings.TrimSpace(in.CustomerName) == "" {
		fields["customer_name"] = "required"
	}
	if strings.TrimSpace(in.BookName) == "" {
		fields["book_name"] = "required"
	}
	if in.LoanDate.IsZero() {
		fields["loan_date"] = "required"
	}
	if in.ReturnDate.IsZero() {
		fields["return_date"] = "required"
	}
	if !in.LoanDate.IsZero() && !in.ReturnDate.IsZero() && in.ReturnDate.Before(in.LoanDate) {
		fields["return_date"] = "before loan_date"
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
