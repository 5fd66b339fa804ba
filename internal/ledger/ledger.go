package ledger

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"libraryloans/internal/models"
	"libraryloans/internal/notify"
	"libraryloans/internal/storage"
)

// Ledger owns loan lifecycle transitions and their effect on book availability
type Ledger struct {
	store    storage.Storage
	notifier notify.Notifier
	logger   *zap.Logger
}

// New creates a ledger. A nil notifier disables notifications.
func New(store storage.Storage, notifier notify.Notifier, logger *zap.Logger) *Ledger {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Ledger{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateLoan lends one available copy of the named book to the named customer
func (l *Ledger) CreateLoan(ctx context.Context, in LoanInput) (models.Loan, error) {
	if err := in.Validate(); err != nil {
		return models.Loan{}, err
	}

	var loan models.Loan
	err := l.store.InTx(ctx, func(ctx context.Context, q storage.Querier) error {
		book, err := q.LockAvailableBookByName(ctx, in.BookName)
		if err != nil {
			return notFoundAs(err, ErrBookUnavailable)
		}

		customer, err := q.GetCustomerByName(ctx, in.CustomerName)
		if err != nil {
			return notFoundAs(err, ErrCustomerNotFound)
		}

		// Conditional update guards against a concurrent loan of the same copy
		if err := q.SetBookStatus(ctx, book.ID, models.BookAvailable, models.BookOnLoan); err != nil {
			return notFoundAs(err, ErrBookUnavailable)
		}

		loan = models.Loan{
			CustomerID: customer.ID,
			BookID:     book.ID,
			LoanDate:   in.LoanDate,
			ReturnDate: in.ReturnDate,
			Status:     models.LoanActive,
		}
		if loan.ID, err = q.CreateLoan(ctx, loan); err != nil {
			return err
		}

		loan.CustomerName = customer.Name
		loan.BookName = book.Name
		return nil
	})
	if err != nil {
		return models.Loan{}, l.fail("create loan", err, zap.String("book", in.BookName), zap.String("customer", in.CustomerName))
	}

	l.logger.Info("Loan created",
		zap.Int64("loan_id", loan.ID),
		zap.Int64("book_id", loan.BookID),
		zap.String("customer", loan.CustomerName),
	)
	l.notifier.Notify(ctx, notify.Event{Kind: notify.LoanCreated, Loan: loan})
	return loan, nil
}

// EndLoan marks an active loan ended and makes its book available again
func (l *Ledger) EndLoan(ctx context.Context, id int64) (models.Loan, error) {
	var loan models.Loan
	err := l.store.InTx(ctx, func(ctx context.Context, q storage.Querier) error {
		current, err := q.LockLoan(ctx, id)
		if err != nil {
			return notFoundAs(err, ErrLoanNotFound)
		}
		if !current.Active() {
			return ErrLoanAlreadyEnded
		}

		current.Status = models.LoanEnded
		if err := q.UpdateLoan(ctx, current); err != nil {
			return notFoundAs(err, ErrLoanNotFound)
		}
		if err := q.SetBookStatus(ctx, current.BookID, "", models.BookAvailable); err != nil {
			return notFoundAs(err, ErrBookNotFound)
		}

		loan, err = q.GetLoan(ctx, id)
		return err
	})
	if err != nil {
		return models.Loan{}, l.fail("end loan", err, zap.Int64("loan_id", id))
	}

	l.logger.Info("Loan ended", zap.Int64("loan_id", loan.ID), zap.Int64("book_id", loan.BookID))
	l.notifier.Notify(ctx, notify.Event{Kind: notify.LoanEnded, Loan: loan})
	return loan, nil
}

// EditLoan overwrites the customer, book and dates of a loan in place.
// Book availability is not re-checked and book status is left untouched.
func (l *Ledger) EditLoan(ctx context.Context, id int64, in LoanInput) (models.Loan, error) {
	if err := in.Validate(); err != nil {
		return models.Loan{}, err
	}

	var loan models.Loan
	err := l.store.InTx(ctx, func(ctx context.Context, q storage.Querier) error {
		current, err := q.LockLoan(ctx, id)
		if err != nil {
			return notFoundAs(err, ErrLoanNotFound)
		}

		customer, err := q.GetCustomerByName(ctx, in.CustomerName)
		if err != nil {
			return notFoundAs(err, ErrCustomerNotFound)
		}

		bookID := current.BookID
		book, err := q.GetBook(ctx, current.BookID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err != nil || book.Name != in.BookName {
			renamed, err := q.GetBookByName(ctx, in.BookName)
			if err != nil {
				return notFoundAs(err, ErrBookNotFound)
			}
			bookID = renamed.ID
		}

		current.CustomerID = customer.ID
		current.BookID = bookID
		current.LoanDate = in.LoanDate
		current.ReturnDate = in.ReturnDate
		if err := q.UpdateLoan(ctx, current); err != nil {
			return notFoundAs(err, ErrLoanNotFound)
		}

		loan, err = q.GetLoan(ctx, id)
		return err
	})
	if err != nil {
		return models.Loan{}, l.fail("edit loan", err, zap.Int64("loan_id", id))
	}

	l.logger.Info("Loan edited", zap.Int64("loan_id", loan.ID))
	return loan, nil
}

// DeleteLoan removes a loan. An active loan first returns its book to the catalog.
func (l *Ledger) DeleteLoan(ctx context.Context, id int64) error {
	var loan models.Loan
	err := l.store.InTx(ctx, func(ctx context.Context, q storage.Querier) error {
		if _, err := q.LockLoan(ctx, id); err != nil {
			return notFoundAs(err, ErrLoanNotFound)
		}
		var err error
		if loan, err = q.GetLoan(ctx, id); err != nil {
			return notFoundAs(err, ErrLoanNotFound)
		}

		if loan.Active() {
			if err := q.SetBookStatus(ctx, loan.BookID, "", models.BookAvailable); err != nil {
				return notFoundAs(err, ErrBookNotFound)
			}
		}
		return notFoundAs(q.DeleteLoan(ctx, id), ErrLoanNotFound)
	})
	if err != nil {
		return l.fail("delete loan", err, zap.Int64("loan_id", id))
	}

	l.logger.Info("Loan deleted", zap.Int64("loan_id", id), zap.Int64("book_id", loan.BookID))
	l.notifier.Notify(ctx, notify.Event{Kind: notify.LoanDeleted, Loan: loan})
	return nil
}

// fail logs a rejected or failed operation and returns the classified error
func (l *Ledger) fail(op string, err error, fields ...zap.Field) error {
	err = classify(err)
	fields = append(fields, zap.Error(err))
	if errors.Is(err, ErrPersistence) {
		l.logger.Error("Failed to "+op, fields...)
	} else {
		l.logger.Info("Rejected "+op, fields...)
	}
	return err
}
