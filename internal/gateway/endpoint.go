package gateway

import (
	"fmt"
	"net/http"
)

// Endpoint names a backend route. Name is the logical key used for fallback
// fixtures and metrics; Path may carry fmt verbs bound with Bind.
type Endpoint struct {
	Name   string
	Method string
	Path   string
	// Public endpoints are called without a bearer credential and never touch
	// the session on 401.
	Public bool
}

// Bind returns a copy with the path parameters substituted.
func (e Endpoint) Bind(params ...any) Endpoint {
	e.Path = fmt.Sprintf(e.Path, params...)
	return e
}

// IsRead reports whether the endpoint follows the read protocol.
func (e Endpoint) IsRead() bool {
	return e.Method == http.MethodGet
}

var (
	EndpointLogin    = Endpoint{Name: "auth.login", Method: http.MethodPost, Path: "/auth/login", Public: true}
	EndpointRegister = Endpoint{Name: "auth.register", Method: http.MethodPost, Path: "/auth/register", Public: true}
	EndpointProfile  = Endpoint{Name: "auth.profile", Method: http.MethodGet, Path: "/auth/profile"}

	EndpointBalance           = Endpoint{Name: "wallet.balance", Method: http.MethodGet, Path: "/wallet/balance"}
	EndpointTransactions      = Endpoint{Name: "wallet.transactions", Method: http.MethodGet, Path: "/wallet/transactions"}
	EndpointRecordTransaction = Endpoint{Name: "wallet.transactions.record", Method: http.MethodPost, Path: "/wallet/transactions"}

	EndpointCreateOrder   = Endpoint{Name: "payment.create-order", Method: http.MethodPost, Path: "/payment/create-order"}
	EndpointVerifyPayment = Endpoint{Name: "payment.verify", Method: http.MethodPost, Path: "/payment/verify"}
	EndpointManualPayment = Endpoint{Name: "payment.manual-update", Method: http.MethodPost, Path: "/payment/manual-update"}

	EndpointPlans              = Endpoint{Name: "subscription.plans", Method: http.MethodGet, Path: "/subscription/plans"}
	EndpointSubscriptions      = Endpoint{Name: "subscription.list", Method: http.MethodGet, Path: "/subscription/list"}
	EndpointCreateSubscription = Endpoint{Name: "subscription.create", Method: http.MethodPost, Path: "/subscription/create"}
	EndpointVerifySubscription = Endpoint{Name: "subscription.verify-payment", Method: http.MethodPost, Path: "/subscription/verify-payment"}

	EndpointTickets      = Endpoint{Name: "support.tickets", Method: http.MethodGet, Path: "/support/tickets"}
	EndpointCreateTicket = Endpoint{Name: "support.create", Method: http.MethodPost, Path: "/support/create"}

	EndpointSubmitForm = Endpoint{Name: "forms.submit", Method: http.MethodPost, Path: "/forms/%s"}

	EndpointAdminStats      = Endpoint{Name: "admin.stats", Method: http.MethodGet, Path: "/admin/stats"}
	EndpointAdminUsers      = Endpoint{Name: "admin.users", Method: http.MethodGet, Path: "/admin/users"}
	EndpointAdminUserStatus = Endpoint{Name: "admin.users.status", Method: http.MethodPut, Path: "/admin/users/%s/status"}
)
