package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/logging"
	"github.com/loandesk/loandesk/internal/notification"
)

type stubBackend struct {
	statuses map[string]string
	payments []gateway.ManualPayment
}

func newStubBackend() *stubBackend {
	return &stubBackend{statuses: map[string]string{}}
}

func (s *stubBackend) AdminStats(context.Context) (gateway.AdminStats, error) {
	return gateway.AdminStats{TotalUsers: 3, TotalRevenue: decimal.NewFromInt(4500)}, nil
}

func (s *stubBackend) AdminUsers(context.Context) ([]gateway.AdminUser, error) {
	return []gateway.AdminUser{{ID: "7", Name: "Ravi", Status: "active"}}, nil
}

func (s *stubBackend) SetUserStatus(_ context.Context, userID, status string) (gateway.Ack, error) {
	s.statuses[userID] = status
	return gateway.Ack{Success: true}, nil
}

func (s *stubBackend) ManualPayment(_ context.Context, req gateway.ManualPayment) (gateway.Ack, error) {
	s.payments = append(s.payments, req)
	return gateway.Ack{Success: true}, nil
}

func TestToggleFlipsStatus(t *testing.T) {
	backend := newStubBackend()
	feed := notification.NewFeed(5)
	svc := NewService(backend, feed, logging.Discard())

	_, next, err := svc.Toggle(context.Background(), "7", "active")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if next != StatusBlocked || backend.statuses["7"] != StatusBlocked {
		t.Fatalf("expected blocked, got %q / %q", next, backend.statuses["7"])
	}
	if _, next, _ = svc.Toggle(context.Background(), "7", "blocked"); next != StatusActive {
		t.Fatalf("expected active, got %q", next)
	}
	msgs := feed.Drain()
	if len(msgs) != 2 || msgs[0].Body != "User active successfully" {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
}

func TestSetStatusValidates(t *testing.T) {
	svc := NewService(newStubBackend(), nil, logging.Discard())
	if _, err := svc.SetStatus(context.Background(), "", "active"); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
	if _, err := svc.SetStatus(context.Background(), "1", "suspended"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestManualPaymentRequiresAllFields(t *testing.T) {
	backend := newStubBackend()
	svc := NewService(backend, nil, logging.Discard())
	ctx := context.Background()

	if _, err := svc.ManualPayment(ctx, "7", decimal.Zero, "NEFT-1"); !errors.Is(err, ErrIncompleteForm) {
		t.Fatalf("expected ErrIncompleteForm, got %v", err)
	}
	if _, err := svc.ManualPayment(ctx, "7", decimal.NewFromInt(500), " "); !errors.Is(err, ErrIncompleteForm) {
		t.Fatalf("expected ErrIncompleteForm, got %v", err)
	}
	if _, err := svc.ManualPayment(ctx, "7", decimal.NewFromInt(500), "NEFT-1"); err != nil {
		t.Fatalf("manual payment: %v", err)
	}
	if len(backend.payments) != 1 || backend.payments[0].TxnRef != "NEFT-1" {
		t.Fatalf("unexpected payments %+v", backend.payments)
	}
}

func TestHandlerSetStatusFromCurrent(t *testing.T) {
	backend := newStubBackend()
	h := NewHandler(NewService(backend, nil, logging.Discard()))
	app := fiber.New()
	app.Put("/admin/users/:id/status", h.SetStatus)

	req := httptest.NewRequest(http.MethodPut, "/admin/users/9/status", strings.NewReader(`{"currentStatus":"active"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if backend.statuses["9"] != StatusBlocked {
		t.Fatalf("expected user 9 blocked, got %q", backend.statuses["9"])
	}
}
