// Package support raises and lists customer support tickets.
package support

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/notification"
)

var (
	ErrSubjectRequired     = errors.New("subject is required")
	ErrDescriptionRequired = errors.New("description is required")
	ErrInvalidPriority     = errors.New("priority must be one of low, medium, high, urgent")
)

// Priority of a ticket.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority accepts an empty string as medium.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// Backend is the gateway surface for tickets.
type Backend interface {
	Tickets(ctx context.Context) ([]gateway.Ticket, bool, error)
	CreateTicket(ctx context.Context, req gateway.TicketRequest) (gateway.Ack, error)
}

type Service struct {
	backend  Backend
	notifier notification.Notifier
	logger   *slog.Logger
}

func NewService(backend Backend, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{backend: backend, notifier: notifier, logger: logger}
}

// Tickets lists the user's tickets. mock is true when the list came from the
// fallback fixtures.
func (s *Service) Tickets(ctx context.Context) (tickets []gateway.Ticket, mock bool, err error) {
	tickets, mock, err = s.backend.Tickets(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, mock, nil
}

// Create validates and raises a ticket.
func (s *Service) Create(ctx context.Context, subject, description, priority string) (gateway.Ack, error) {
	req := gateway.TicketRequest{
		Subject:     strings.TrimSpace(subject),
		Description: strings.TrimSpace(description),
	}
	if req.Subject == "" {
		return gateway.Ack{}, ErrSubjectRequired
	}
	if req.Description == "" {
		return gateway.Ack{}, ErrDescriptionRequired
	}
	p, err := ParsePriority(priority)
	if err != nil {
		return gateway.Ack{}, err
	}
	req.Priority = string(p)

	ack, err := s.backend.CreateTicket(ctx, req)
	if err != nil {
		notification.Notify(ctx, s.notifier, notification.KindSupport, notification.LevelError, "", "Failed to create ticket")
		return gateway.Ack{}, fmt.Errorf("create ticket: %w", err)
	}
	notification.Notify(ctx, s.notifier, notification.KindSupport, notification.LevelSuccess, "", "Support ticket created successfully!")
	s.logger.Info("support ticket created", slog.String("priority", req.Priority), slog.Bool("mock", ack.Mock))
	return ack, nil
}
