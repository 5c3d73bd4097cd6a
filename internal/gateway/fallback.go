package gateway

import (
	"encoding/json"
	"sync"
)

// MockMarker is the field added to every substituted payload.
const MockMarker = "_mock"

// MockAckMessage is the message of the generic write acknowledgement.
const MockAckMessage = "Mock response - backend unavailable"

// Fallback decides what to return when the backend is absent.
type Fallback interface {
	// Read returns the canned payload for a read endpoint.
	Read(endpoint string) ([]byte, bool)
	// Write returns the acknowledgement for a write endpoint.
	Write(endpoint string) ([]byte, bool)
}

// NoFallback never substitutes; backend absence surfaces as
// ErrBackendUnreachable.
type NoFallback struct{}

func (NoFallback) Read(string) ([]byte, bool)  { return nil, false }
func (NoFallback) Write(string) ([]byte, bool) { return nil, false }

// DemoFallback serves fixtures keyed by logical endpoint name and the generic
// acknowledgement for writes.
type DemoFallback struct {
	mu       sync.RWMutex
	fixtures map[string]map[string]any
}

// NewDemoFallback returns the fallback with the demo fixture set.
func NewDemoFallback() *DemoFallback {
	return &DemoFallback{fixtures: demoFixtures()}
}

// With installs or replaces a fixture.
func (f *DemoFallback) With(endpoint string, payload map[string]any) *DemoFallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixtures[endpoint] = payload
	return f
}

func (f *DemoFallback) Read(endpoint string) ([]byte, bool) {
	f.mu.RLock()
	fixture, ok := f.fixtures[endpoint]
	f.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return marked(fixture), true
}

func (f *DemoFallback) Write(string) ([]byte, bool) {
	return marked(map[string]any{"success": true, "message": MockAckMessage}), true
}

func marked(payload map[string]any) []byte {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out[MockMarker] = true
	b, err := json.Marshal(out)
	if err != nil {
		return []byte(`{"success":true,"_mock":true}`)
	}
	return b
}

func demoFixtures() map[string]map[string]any {
	return map[string]map[string]any{
		EndpointBalance.Name: {
			"success":    true,
			"balance":    500.00,
			"status":     "active",
			"validUntil": nil,
		},
		EndpointTransactions.Name: {
			"success": true,
			"transactions": []map[string]any{
				{"txn_id": 1, "amount": 1000, "type": "credit", "date": "2024-01-15", "txn_ref": "TXN001"},
				{"txn_id": 2, "amount": 5, "type": "debit", "date": "2024-01-14", "txn_ref": "FORM001"},
			},
		},
		EndpointSubscriptions.Name: {
			"success":       true,
			"subscriptions": []any{},
		},
		EndpointPlans.Name: {
			"success": true,
			"plans": []map[string]any{
				{"id": 1, "name": "Basic Plan", "amount": 999, "duration": 30, "features": []string{"Unlimited Basic Forms", "Email Support"}},
				{"id": 2, "name": "Premium Plan", "amount": 1999, "duration": 30, "features": []string{"Unlimited All Forms", "Priority Support", "Analytics"}},
			},
		},
		EndpointTickets.Name: {
			"success": true,
			"tickets": []any{},
		},
		EndpointProfile.Name: {
			"success": true,
			"id":      1,
			"name":    "Demo User",
			"email":   "demo@example.com",
			"role":    "DSA",
		},
	}
}
