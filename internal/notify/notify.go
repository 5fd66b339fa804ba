package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"libraryloans/internal/models"
)

// Kind names a loan lifecycle transition
type Kind string

const (
	LoanCreated Kind = "created"
	LoanEnded   Kind = "ended"
	LoanDeleted Kind = "deleted"
)

// Event is published after a loan transition has been committed
type Event struct {
	Kind Kind
	Loan models.Loan
}

// Text renders the event as a chat message
func (e Event) Text() string {
	const dateLayout = "2006-01-02"

	switch e.Kind {
	case LoanCreated:
		return fmt.Sprintf("New loan #%d\n\nBook: %s\nCustomer: %s\nFrom: %s\nDue: %s",
			e.Loan.ID, e.Loan.BookName, e.Loan.CustomerName,
			e.Loan.LoanDate.Format(dateLayout), e.Loan.ReturnDate.Format(dateLayout))
	case LoanEnded:
		return fmt.Sprintf("Loan #%d ended\n\nBook: %s is available again\nCustomer: %s",
			e.Loan.ID, e.Loan.BookName, e.Loan.CustomerName)
	case LoanDeleted:
		return fmt.Sprintf("Loan #%d deleted\n\nBook: %s\nCustomer: %s",
			e.Loan.ID, e.Loan.BookName, e.Loan.CustomerName)
	default:
		return fmt.Sprintf("Loan #%d: %s", e.Loan.ID, e.Kind)
	}
}

// Notifier receives committed loan events. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Nop discards every event
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// sender is the part of tgbotapi.BotAPI used here
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// DefaultSendTimeout bounds how long Notify waits for the Bot API
const DefaultSendTimeout = 5 * time.Second

// Telegram posts loan events to a single chat
type Telegram struct {
	api     sender
	chatID  int64
	timeout time.Duration
	logger  *zap.Logger
}

// NewTelegram creates a Telegram notifier. It contacts the Bot API to validate the token.
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	client := &http.Client{Timeout: DefaultSendTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Telegram notifier created",
		zap.String("bot_username", api.Self.UserName),
		zap.Int64("chat_id", chatID),
	)

	return &Telegram{api: api, chatID: chatID, timeout: DefaultSendTimeout, logger: logger}, nil
}

// Notify sends the event text; failures are logged and dropped.
// It returns after the send finishes, the timeout passes or ctx is done, whichever comes first.
// A send still in flight at that point completes in the background.
func (t *Telegram) Notify(ctx context.Context, event Event) {
	if t.api == nil {
		return
	}

	timeout := t.timeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fields := []zap.Field{
		zap.String("kind", string(event.Kind)),
		zap.Int64("loan_id", event.Loan.ID),
	}

	msg := tgbotapi.NewMessage(t.chatID, event.Text())
	done := make(chan error, 1)
	go func() {
		_, err := t.api.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.logger.Warn("Failed to send loan notification", append(fields, zap.Error(err))...)
		}
	case <-ctx.Done():
		t.logger.Warn("Loan notification still pending, not waiting for it", append(fields, zap.Error(ctx.Err()))...)
	}
}
