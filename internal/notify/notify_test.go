package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"libraryloans/internal/models"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func testLoan() models.Loan {
	return models.Loan{
		ID:           7,
		CustomerName: "Alice",
		BookName:     "Dune",
		LoanDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ReturnDate:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:       models.LoanActive,
	}
}

func TestEvent_Text(t *testing.T) {
	tests := []struct {
		kind     Kind
		contains []string
	}{
		{LoanCreated, []string{"New loan #7", "Book: Dune", "Customer: Alice", "From: 2024-03-01", "Due: 2024-03-15"}},
		{LoanEnded, []string{"Loan #7 ended", "Dune is available again"}},
		{LoanDeleted, []string{"Loan #7 deleted", "Customer: Alice"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			text := Event{Kind: tt.kind, Loan: testLoan()}.Text()
			for _, want := range tt.contains {
				assert.Contains(t, text, want)
			}
		})
	}
}

func TestTelegram_Notify(t *testing.T) {
	fake := &fakeSender{}
	notifier := &Telegram{api: fake, chatID: 42, logger: zap.NewNop()}

	notifier.Notify(context.Background(), Event{Kind: LoanCreated, Loan: testLoan()})

	require.Len(t, fake.sent, 1)
	msg, ok := fake.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "New loan #7")
}

func TestTelegram_NotifySendFailureIsSwallowed(t *testing.T) {
	fake := &fakeSender{err: errors.New("telegram is down")}
	notifier := &Telegram{api: fake, chatID: 42, logger: zap.NewNop()}

	assert.NotPanics(t, func() {
		notifier.Notify(context.Background(), Event{Kind: LoanEnded, Loan: testLoan()})
	})
	assert.Len(t, fake.sent, 1)
}

// blockingSender holds every Send until release is closed
type blockingSender struct {
	release chan struct{}
	sent    chan struct{}
}

func newBlockingSender() *blockingSender {
	return &blockingSender{release: make(chan struct{}), sent: make(chan struct{}, 1)}
}

func (b *blockingSender) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-b.release
	b.sent <- struct{}{}
	return tgbotapi.Message{}, nil
}

func TestTelegram_NotifyDoesNotWaitPastTimeout(t *testing.T) {
	hung := newBlockingSender()
	defer close(hung.release)
	notifier := &Telegram{api: hung, chatID: 42, timeout: 50 * time.Millisecond, logger: zap.NewNop()}

	start := time.Now()
	notifier.Notify(context.Background(), Event{Kind: LoanCreated, Loan: testLoan()})

	assert.Less(t, time.Since(start), time.Second)
}

func TestTelegram_NotifyHonorsContextDeadline(t *testing.T) {
	hung := newBlockingSender()
	defer close(hung.release)
	notifier := &Telegram{api: hung, chatID: 42, timeout: time.Minute, logger: zap.NewNop()}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	notifier.Notify(ctx, Event{Kind: LoanEnded, Loan: testLoan()})

	assert.Less(t, time.Since(start), time.Second)
}

func TestTelegram_NotifyPendingSendCompletesLater(t *testing.T) {
	slow := newBlockingSender()
	notifier := &Telegram{api: slow, chatID: 42, timeout: 10 * time.Millisecond, logger: zap.NewNop()}

	notifier.Notify(context.Background(), Event{Kind: LoanDeleted, Loan: testLoan()})
	close(slow.release)

	select {
	case <-slow.sent:
	case <-time.After(time.Second):
		t.Fatal("expected the pending send to finish after Notify returned")
	}
}
