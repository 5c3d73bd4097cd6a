package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	KindAuth         = "auth"
	KindRecharge     = "wallet_recharge"
	KindFormSubmit   = "form_submission"
	KindSubscription = "subscription"
	KindSupport      = "support_ticket"
	KindAdmin        = "admin"
	KindSession      = "session"
)

// Level mirrors toast severities.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Message describes a notification payload.
type Message struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Level       Level     `json:"level"`
	Destination string    `json:"destination,omitempty"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"level", string(message.Level),
		"destination", message.Destination,
		"body", message.Body,
	)
	return nil
}

// Feed keeps the most recent transient messages for the view layer to show
// as toasts.
type Feed struct {
	mu    sync.Mutex
	limit int
	items []Message
}

// NewFeed returns a feed holding at most limit messages.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 50
	}
	return &Feed{limit: limit}
}

func (f *Feed) Send(_ context.Context, message Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, message)
	if over := len(f.items) - f.limit; over > 0 {
		f.items = append([]Message(nil), f.items[over:]...)
	}
	return nil
}

// Drain returns the pending messages newest first and clears the feed.
func (f *Feed) Drain() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.items))
	for i, m := range f.items {
		out[len(f.items)-1-i] = m
	}
	f.items = nil
	return out
}

// Fanout sends every message to all notifiers.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, message Message) error {
	var firstErr error
	for _, n := range f {
		if err := n.Send(ctx, message); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Notify stamps and sends a message; a nil notifier is ignored.
func Notify(ctx context.Context, n Notifier, kind string, level Level, destination, body string) {
	if n == nil {
		return
	}
	_ = n.Send(ctx, Message{
		ID:          uuid.NewString(),
		Kind:        kind,
		Level:       level,
		Destination: destination,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	})
}
