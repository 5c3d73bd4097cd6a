package forms

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/loandesk/loandesk/internal/policy"
)

var (
	aadhaarPattern = regexp.MustCompile(`^\d{12}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	accountPattern = regexp.MustCompile(`^\d{9,18}$`)
)

// Application is a loan application. The identity fields are only required
// for realtime validation.
type Application struct {
	ApplicantName string          `json:"applicantName"`
	LoanAmount    decimal.Decimal `json:"loanAmount"`
	Purpose       string          `json:"purpose"`
	Aadhaar       string          `json:"aadhaar"`
	PAN           string          `json:"pan"`
	BankAccount   string          `json:"bankAccount"`
}

// ValidationError lists invalid fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid application: " + strings.Join(parts, "; ")
}

// Normalize trims whitespace and upper-cases the PAN.
func (a Application) Normalize() Application {
	a.ApplicantName = strings.TrimSpace(a.ApplicantName)
	a.Purpose = strings.TrimSpace(a.Purpose)
	a.Aadhaar = strings.ReplaceAll(strings.TrimSpace(a.Aadhaar), " ", "")
	a.PAN = strings.ToUpper(strings.TrimSpace(a.PAN))
	a.BankAccount = strings.TrimSpace(a.BankAccount)
	return a
}

// Validate checks the fields required for class.
func (a Application) Validate(class policy.FormClass) error {
	fields := map[string]string{}
	if a.ApplicantName == "" {
		fields["applicantName"] = "required"
	}
	if !a.LoanAmount.IsPositive() {
		fields["loanAmount"] = "must be greater than zero"
	}
	if a.Purpose == "" {
		fields["purpose"] = "required"
	}
	if class == policy.FormRealtime {
		if !aadhaarPattern.MatchString(a.Aadhaar) {
			fields["aadhaar"] = "must be 12 digits"
		}
		if !panPattern.MatchString(a.PAN) {
			fields["pan"] = "must look like ABCDE1234F"
		}
		if !accountPattern.MatchString(a.BankAccount) {
			fields["bankAccount"] = "must be 9 to 18 digits"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
