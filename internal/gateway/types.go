package gateway

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// User is the identity returned by login and profile.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token string
	User  User
	Mock  bool
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// Ack is the {success, message} envelope most writes return.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Mock    bool   `json:"mock,omitempty"`
}

type ProfileResult struct {
	User User
	Mock bool
}

// BalanceSnapshot is the remote ledger's view of the wallet.
type BalanceSnapshot struct {
	Balance    decimal.Decimal
	Status     string
	AccessType string
	ValidUntil *time.Time
	Mock       bool
}

// RemoteTransaction is one entry of the remote transaction history.
type RemoteTransaction struct {
	ID          string
	Kind        string
	Amount      decimal.Decimal
	Description string
	Reference   string
	Date        time.Time
}

type TransactionPage struct {
	Items []RemoteTransaction
	Mock  bool
}

// TransactionRecord is the body posted to record a ledger entry remotely.
type TransactionRecord struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Reference   string          `json:"txn_ref,omitempty"`
}

// Order is a payment order. Amount is in minor currency units.
type Order struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"key"`
	Mock     bool   `json:"-"`
}

// PaymentProof is what the payment overlay hands back on success.
type PaymentProof struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type VerifyResult struct {
	Success bool
	Amount  decimal.Decimal
	Message string
	Mock    bool
}

type SubscriptionOrderRequest struct {
	PlanName string          `json:"planName"`
	Amount   decimal.Decimal `json:"amount"`
	Duration int             `json:"duration"`
}

type SubscriptionVerifyRequest struct {
	PaymentProof
	PlanName string `json:"planName"`
	Duration int    `json:"duration"`
}

type Plan struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Duration int             `json:"duration"`
	Features []string        `json:"features"`
}

type Subscription struct {
	ID        string          `json:"id"`
	PlanName  string          `json:"planName"`
	Amount    decimal.Decimal `json:"amount"`
	StartDate *time.Time      `json:"startDate,omitempty"`
	EndDate   *time.Time      `json:"endDate,omitempty"`
	Status    string          `json:"status"`
}

type TicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type Ticket struct {
	ID        string     `json:"id"`
	Subject   string     `json:"subject"`
	Priority  string     `json:"priority"`
	Status    string     `json:"status"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type AdminStats struct {
	TotalUsers        int64           `json:"totalUsers"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	TotalApplications int64           `json:"totalApplications"`
	LowBalanceUsers   int64           `json:"lowBalanceUsers"`
}

type AdminUser struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Role    string          `json:"role"`
	Status  string          `json:"status"`
	Balance decimal.Decimal `json:"balance"`
}

type StatusUpdate struct {
	Status string `json:"status"`
}

type ManualPayment struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
	TxnRef string          `json:"txnRef"`
}

// FormSubmission is the loan application payload posted to /forms/{class}.
type FormSubmission struct {
	ApplicantName string          `json:"applicantName"`
	LoanAmount    decimal.Decimal `json:"loanAmount"`
	Purpose       string          `json:"purpose"`
	Aadhaar       string          `json:"aadhaar"`
	PAN           string          `json:"pan"`
	BankAccount   string          `json:"bankAccount"`
	TxnID         string          `json:"txnId,omitempty"`
}

// decimalOf reads a number that may be encoded as a JSON number or string.
func decimalOf(r gjson.Result) (decimal.Decimal, error) {
	switch r.Type {
	case gjson.Number:
		return decimal.NewFromString(r.Raw)
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, nil
	}
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func timeOf(r gjson.Result) *time.Time {
	if r.Type != gjson.String || r.Str == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, r.Str); err == nil {
			return &t
		}
	}
	return nil
}

// firstOf returns the first existing field among paths.
func firstOf(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// listOf accepts either a bare array or an envelope holding the array under
// key.
func listOf(body []byte, key string) []gjson.Result {
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return root.Array()
	}
	if v := root.Get(key); v.IsArray() {
		return v.Array()
	}
	return nil
}

func parseUser(r gjson.Result) User {
	return User{
		ID:    firstOf(r, "id", "user_id").String(),
		Name:  r.Get("name").String(),
		Email: r.Get("email").String(),
		Role:  r.Get("role").String(),
	}
}
