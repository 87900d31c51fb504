package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// LogFileName is the delivery log written under the sink's directory.
const LogFileName = "consultations.log"

// LogFileSink appends one line per event to <Dir>/consultations.log.
type LogFileSink struct {
	Dir string
	mu  sync.Mutex
}

func (s *LogFileSink) Deliver(_ context.Context, ev StatusChangedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(s.Dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := fmt.Fprintf(f, "[%s] %s\n", at.UTC().Format(time.RFC3339), ev.Summary()); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramSink posts each event to one chat.
type TelegramSink struct {
	sender messageSender
	chatID int64
}

// NewTelegramSink creates a bot client for token.  bot.New verifies the
// token with getMe, so an invalid token fails here.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSink{sender: b, chatID: chatID}, nil
}

func (s *TelegramSink) Deliver(ctx context.Context, ev StatusChangedEvent) error {
	_, err := s.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: s.chatID,
		Text:   telegramText(ev),
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func telegramText(ev StatusChangedEvent) string {
	return fmt.Sprintf("Consultation %s\n%s %s\n%s %s-%s, %s\nStudent: %s <%s>\nFaculty: %s",
		ev.Status, ev.SubjectCode, ev.SubjectName, ev.Day, ev.Start, ev.End, ev.Location,
		ev.StudentName, ev.StudentEmail, ev.FacultyName)
}
