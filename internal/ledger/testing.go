package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that sets the balance without recording a
// transaction.
func SeedBalance(s *Store, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Balance = amount
}

// SeedStatus is a test helper that sets the wallet status.
func SeedStatus(s *Store, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Status = status
}
