package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

var (
	// ErrAuthentication is a 401 from the backend. It is never masked and the
	// caller must force a new login.
	ErrAuthentication = errors.New("authentication failure")
	// ErrBackendUnreachable means the backend is absent: no response, a
	// transport error, or a missing route.
	ErrBackendUnreachable = errors.New("backend unreachable")
	// ErrValidation is any 4xx other than 401 and 404.
	ErrValidation = errors.New("validation failure")
	// ErrServer is a 5xx.
	ErrServer = errors.New("server error")
)

// StatusError carries a non-success backend response. It unwraps to one of
// the sentinel errors above.
type StatusError struct {
	Endpoint string
	Status   int
	Message  string
	Body     []byte
	kind     error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s returned %d", e.kind, e.Endpoint, e.Status)
}

func (e *StatusError) Unwrap() error { return e.kind }

// classifyStatus maps a received HTTP status to an error, or nil on success.
func classifyStatus(endpoint string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	se := &StatusError{Endpoint: endpoint, Status: status, Body: body, Message: backendMessage(body)}
	switch {
	case status == http.StatusUnauthorized:
		se.kind = ErrAuthentication
	case status == http.StatusNotFound:
		se.kind = ErrBackendUnreachable
	case status >= 400 && status < 500:
		se.kind = ErrValidation
	default:
		se.kind = ErrServer
	}
	return se
}

// backendMessage pulls the user-facing message out of an error payload.
func backendMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"message", "error.message", "error"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}

// IsBackendAbsent reports whether err was classified as backend absent.
func IsBackendAbsent(err error) bool {
	return errors.Is(err, ErrBackendUnreachable)
}
