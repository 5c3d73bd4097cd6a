package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Login posts credentials. A Mock result means the backend was absent and
// the caller may fall back to a demo session.
func (g *Gateway) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	resp, err := g.Do(ctx, EndpointLogin, req)
	if err != nil {
		return LoginResult{}, err
	}
	if resp.Mock {
		return LoginResult{Mock: true}, nil
	}
	root := gjson.ParseBytes(resp.Body)
	out := LoginResult{
		Token: root.Get("token").String(),
		User:  parseUser(root.Get("user")),
	}
	if out.Token == "" {
		return LoginResult{}, &StatusError{Endpoint: EndpointLogin.Name, Status: resp.Status, Body: resp.Body,
			Message: "login response carried no token", kind: ErrServer}
	}
	return out, nil
}

func (g *Gateway) Register(ctx context.Context, req RegisterRequest) (Ack, error) {
	return g.ack(ctx, EndpointRegister, req)
}

// Profile fetches the authenticated identity.
func (g *Gateway) Profile(ctx context.Context) (ProfileResult, error) {
	resp, err := g.Get(ctx, EndpointProfile)
	if err != nil {
		return ProfileResult{}, err
	}
	root := gjson.ParseBytes(resp.Body)
	if u := root.Get("user"); u.IsObject() {
		root = u
	}
	return ProfileResult{User: parseUser(root), Mock: resp.Mock}, nil
}

// Balance reads the remote wallet state. The balance may arrive as a number
// or a decimal string.
func (g *Gateway) Balance(ctx context.Context) (BalanceSnapshot, error) {
	resp, err := g.Get(ctx, EndpointBalance)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	root := gjson.ParseBytes(resp.Body)
	if w := root.Get("wallet"); w.IsObject() {
		root = w
	}
	bal, err := decimalOf(root.Get("balance"))
	if err != nil {
		return BalanceSnapshot{}, fmt.Errorf("%w: wallet balance %q: %v", ErrServer, root.Get("balance").String(), err)
	}
	return BalanceSnapshot{
		Balance:    bal,
		Status:     strings.ToLower(root.Get("status").String()),
		AccessType: strings.ToLower(firstOf(root, "accessType", "access_type").String()),
		ValidUntil: timeOf(firstOf(root, "validUntil", "valid_until")),
		Mock:       resp.Mock,
	}, nil
}

// Transactions reads the remote history, as a bare array or wrapped in a
// {transactions: [...]} envelope.
func (g *Gateway) Transactions(ctx context.Context) (TransactionPage, error) {
	resp, err := g.Get(ctx, EndpointTransactions)
	if err != nil {
		return TransactionPage{}, err
	}
	page := TransactionPage{Mock: resp.Mock}
	for _, item := range listOf(resp.Body, "transactions") {
		amount, err := decimalOf(item.Get("amount"))
		if err != nil {
			return TransactionPage{}, fmt.Errorf("%w: transaction amount: %v", ErrServer, err)
		}
		tx := RemoteTransaction{
			ID:          firstOf(item, "txn_id", "id").String(),
			Kind:        strings.ToLower(item.Get("type").String()),
			Amount:      amount.Abs(),
			Description: item.Get("description").String(),
			Reference:   firstOf(item, "txn_ref", "reference").String(),
		}
		if ts := timeOf(firstOf(item, "date", "created_at", "createdAt")); ts != nil {
			tx.Date = *ts
		}
		page.Items = append(page.Items, tx)
	}
	return page, nil
}

// RecordTransaction persists a local ledger entry remotely.
func (g *Gateway) RecordTransaction(ctx context.Context, rec TransactionRecord) (Ack, error) {
	return g.ack(ctx, EndpointRecordTransaction, rec)
}

// CreateOrder opens a recharge order for amount in major units.
func (g *Gateway) CreateOrder(ctx context.Context, amount decimal.Decimal) (Order, error) {
	return g.order(ctx, EndpointCreateOrder, map[string]any{"amount": amount.InexactFloat64()})
}

// VerifyPayment confirms a recharge payment with the backend.
func (g *Gateway) VerifyPayment(ctx context.Context, proof PaymentProof) (VerifyResult, error) {
	return g.verify(ctx, EndpointVerifyPayment, proof)
}

func (g *Gateway) CreateSubscription(ctx context.Context, req SubscriptionOrderRequest) (Order, error) {
	return g.order(ctx, EndpointCreateSubscription, req)
}

func (g *Gateway) VerifySubscription(ctx context.Context, req SubscriptionVerifyRequest) (VerifyResult, error) {
	return g.verify(ctx, EndpointVerifySubscription, req)
}

func (g *Gateway) Plans(ctx context.Context) ([]Plan, bool, error) {
	resp, err := g.Get(ctx, EndpointPlans)
	if err != nil {
		return nil, false, err
	}
	var plans []Plan
	for _, item := range listOf(resp.Body, "plans") {
		amount, err := decimalOf(item.Get("amount"))
		if err != nil {
			return nil, false, fmt.Errorf("%w: plan amount: %v", ErrServer, err)
		}
		p := Plan{
			ID:       item.Get("id").String(),
			Name:     item.Get("name").String(),
			Amount:   amount,
			Duration: int(item.Get("duration").Int()),
		}
		for _, f := range item.Get("features").Array() {
			p.Features = append(p.Features, f.String())
		}
		plans = append(plans, p)
	}
	return plans, resp.Mock, nil
}

func (g *Gateway) Subscriptions(ctx context.Context) ([]Subscription, bool, error) {
	resp, err := g.Get(ctx, EndpointSubscriptions)
	if err != nil {
		return nil, false, err
	}
	var subs []Subscription
	for _, item := range listOf(resp.Body, "subscriptions") {
		amount, _ := decimalOf(item.Get("amount"))
		subs = append(subs, Subscription{
			ID:        firstOf(item, "sub_id", "id").String(),
			PlanName:  firstOf(item, "plan_name", "planName").String(),
			Amount:    amount,
			StartDate: timeOf(firstOf(item, "start_date", "startDate")),
			EndDate:   timeOf(firstOf(item, "end_date", "endDate")),
			Status:    item.Get("status").String(),
		})
	}
	return subs, resp.Mock, nil
}

func (g *Gateway) Tickets(ctx context.Context) ([]Ticket, bool, error) {
	resp, err := g.Get(ctx, EndpointTickets)
	if err != nil {
		return nil, false, err
	}
	var tickets []Ticket
	for _, item := range listOf(resp.Body, "tickets") {
		tickets = append(tickets, Ticket{
			ID:        firstOf(item, "ticket_id", "id").String(),
			Subject:   item.Get("subject").String(),
			Priority:  item.Get("priority").String(),
			Status:    item.Get("status").String(),
			CreatedAt: timeOf(firstOf(item, "created_at", "createdAt")),
		})
	}
	return tickets, resp.Mock, nil
}

func (g *Gateway) CreateTicket(ctx context.Context, req TicketRequest) (Ack, error) {
	return g.ack(ctx, EndpointCreateTicket, req)
}

// SubmitForm posts a loan application for the given form class.
func (g *Gateway) SubmitForm(ctx context.Context, class string, form FormSubmission) (Ack, error) {
	return g.ack(ctx, EndpointSubmitForm.Bind(class), form)
}

func (g *Gateway) AdminStats(ctx context.Context) (AdminStats, error) {
	resp, err := g.Get(ctx, EndpointAdminStats)
	if err != nil {
		return AdminStats{}, err
	}
	root := gjson.ParseBytes(resp.Body)
	if s := root.Get("stats"); s.IsObject() {
		root = s
	}
	revenue, _ := decimalOf(root.Get("totalRevenue"))
	return AdminStats{
		TotalUsers:        root.Get("totalUsers").Int(),
		TotalRevenue:      revenue,
		TotalApplications: root.Get("totalApplications").Int(),
		LowBalanceUsers:   root.Get("lowBalanceUsers").Int(),
	}, nil
}

func (g *Gateway) AdminUsers(ctx context.Context) ([]AdminUser, error) {
	resp, err := g.Get(ctx, EndpointAdminUsers)
	if err != nil {
		return nil, err
	}
	var users []AdminUser
	for _, item := range listOf(resp.Body, "users") {
		bal, _ := decimalOf(item.Get("balance"))
		users = append(users, AdminUser{
			ID:      firstOf(item, "user_id", "id").String(),
			Name:    item.Get("name").String(),
			Email:   item.Get("email").String(),
			Role:    item.Get("role").String(),
			Status:  item.Get("status").String(),
			Balance: bal,
		})
	}
	return users, nil
}

func (g *Gateway) SetUserStatus(ctx context.Context, userID, status string) (Ack, error) {
	return g.ack(ctx, EndpointAdminUserStatus.Bind(userID), StatusUpdate{Status: status})
}

func (g *Gateway) ManualPayment(ctx context.Context, req ManualPayment) (Ack, error) {
	return g.ack(ctx, EndpointManualPayment, req)
}

func (g *Gateway) ack(ctx context.Context, ep Endpoint, payload any) (Ack, error) {
	resp, err := g.Do(ctx, ep, payload)
	if err != nil {
		return Ack{}, err
	}
	root := gjson.ParseBytes(resp.Body)
	success := root.Get("success")
	return Ack{
		// Bodies without a success flag count as success; the status was 2xx.
		Success: !success.Exists() || success.Bool(),
		Message: root.Get("message").String(),
		Mock:    resp.Mock,
	}, nil
}

func (g *Gateway) order(ctx context.Context, ep Endpoint, payload any) (Order, error) {
	resp, err := g.Do(ctx, ep, payload)
	if err != nil {
		return Order{}, err
	}
	root := gjson.ParseBytes(resp.Body)
	return Order{
		OrderID:  firstOf(root, "orderId", "order_id", "id").String(),
		Amount:   root.Get("amount").Int(),
		Currency: root.Get("currency").String(),
		Key:      root.Get("key").String(),
		Mock:     resp.Mock,
	}, nil
}

func (g *Gateway) verify(ctx context.Context, ep Endpoint, payload any) (VerifyResult, error) {
	resp, err := g.Do(ctx, ep, payload)
	if err != nil {
		return VerifyResult{}, err
	}
	root := gjson.ParseBytes(resp.Body)
	amount, _ := decimalOf(root.Get("amount"))
	success := root.Get("success")
	return VerifyResult{
		Success: !success.Exists() || success.Bool(),
		Amount:  amount,
		Message: root.Get("message").String(),
		Mock:    resp.Mock,
	}, nil
}
