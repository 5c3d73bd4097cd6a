// Package admin wraps the back-office endpoints: platform statistics, user
// status control and manual payment posting.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/notification"
)

var (
	ErrInvalidStatus  = errors.New("status must be active or blocked")
	ErrMissingUser    = errors.New("user id is required")
	ErrIncompleteForm = errors.New("please fill all fields")
)

const (
	StatusActive  = "active"
	StatusBlocked = "blocked"
)

// Backend is the gateway surface used by the admin console.
type Backend interface {
	AdminStats(ctx context.Context) (gateway.AdminStats, error)
	AdminUsers(ctx context.Context) ([]gateway.AdminUser, error)
	SetUserStatus(ctx context.Context, userID, status string) (gateway.Ack, error)
	ManualPayment(ctx context.Context, req gateway.ManualPayment) (gateway.Ack, error)
}

type Service struct {
	backend  Backend
	notifier notification.Notifier
	logger   *slog.Logger
}

func NewService(backend Backend, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{backend: backend, notifier: notifier, logger: logger}
}

func (s *Service) Stats(ctx context.Context) (gateway.AdminStats, error) {
	stats, err := s.backend.AdminStats(ctx)
	if err != nil {
		return gateway.AdminStats{}, fmt.Errorf("admin stats: %w", err)
	}
	return stats, nil
}

func (s *Service) Users(ctx context.Context) ([]gateway.AdminUser, error) {
	users, err := s.backend.AdminUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("admin users: %w", err)
	}
	return users, nil
}

// NextStatus flips active and blocked.
func NextStatus(current string) string {
	if strings.EqualFold(current, StatusActive) {
		return StatusBlocked
	}
	return StatusActive
}

// SetStatus sets a user's account status.
func (s *Service) SetStatus(ctx context.Context, userID, status string) (gateway.Ack, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return gateway.Ack{}, ErrMissingUser
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != StatusActive && status != StatusBlocked {
		return gateway.Ack{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	ack, err := s.backend.SetUserStatus(ctx, userID, status)
	if err != nil {
		notification.Notify(ctx, s.notifier, notification.KindAdmin, notification.LevelError, "", "Failed to update user status")
		return gateway.Ack{}, fmt.Errorf("set user status: %w", err)
	}
	notification.Notify(ctx, s.notifier, notification.KindAdmin, notification.LevelSuccess, "",
		fmt.Sprintf("User %s successfully", status))
	s.logger.Info("user status updated", slog.String("user_id", userID), slog.String("status", status))
	return ack, nil
}

// Toggle flips the status the caller last saw for the user.
func (s *Service) Toggle(ctx context.Context, userID, current string) (gateway.Ack, string, error) {
	next := NextStatus(current)
	ack, err := s.SetStatus(ctx, userID, next)
	return ack, next, err
}

// ManualPayment records an offline payment against a user.
func (s *Service) ManualPayment(ctx context.Context, userID string, amount decimal.Decimal, txnRef string) (gateway.Ack, error) {
	req := gateway.ManualPayment{
		UserID: strings.TrimSpace(userID),
		Amount: amount,
		TxnRef: strings.TrimSpace(txnRef),
	}
	if req.UserID == "" || req.TxnRef == "" || !req.Amount.IsPositive() {
		return gateway.Ack{}, ErrIncompleteForm
	}
	ack, err := s.backend.ManualPayment(ctx, req)
	if err != nil {
		notification.Notify(ctx, s.notifier, notification.KindAdmin, notification.LevelError, "", "Failed to update payment")
		return gateway.Ack{}, fmt.Errorf("manual payment: %w", err)
	}
	notification.Notify(ctx, s.notifier, notification.KindAdmin, notification.LevelSuccess, "", "Manual payment updated successfully")
	s.logger.Info("manual payment posted",
		slog.String("user_id", req.UserID),
		slog.String("amount", req.Amount.StringFixed(2)),
		slog.String("txn_ref", req.TxnRef),
	)
	return ack, nil
}
