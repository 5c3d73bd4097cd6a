package session

import "time"

// Role is the platform role carried by a session.
type Role string

const (
	// RoleStandard is the direct-selling-agent role every registered user gets.
	RoleStandard Role = "DSA"
	// RoleAdmin unlocks the administrative operations.
	RoleAdmin Role = "admin"
)

// Mode records how the session was established.
type Mode string

const (
	// ModeReal sessions were confirmed by the backend login endpoint.
	ModeReal Mode = "real"
	// ModeDemo sessions were issued locally because the backend was absent.
	ModeDemo Mode = "demo"
)

// State is the credential validity state.
type State string

const (
	StateUnauthenticated   State = "unauthenticated"
	StateAuthenticatedReal State = "authenticated_real"
	StateAuthenticatedDemo State = "authenticated_demo"
)

// Session is the authenticated identity plus its opaque credential.
type Session struct {
	UserID         string     `json:"id"`
	DisplayName    string     `json:"name"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	Credential     string     `json:"token"`
	Mode           Mode       `json:"mode"`
	CreatedAt      time.Time  `json:"createdAt"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	ReauthRequired bool       `json:"reauthRequired,omitempty"`
}

// IsDemo reports whether the session was issued without backend confirmation.
func (s Session) IsDemo() bool {
	return s.Mode == ModeDemo
}

// IsAdmin reports whether the session carries the admin role.
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Expired reports whether the credential expiry has passed.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// State maps the session onto the credential state machine.
func (s Session) State() State {
	if s.Credential == "" {
		return StateUnauthenticated
	}
	if s.IsDemo() {
		return StateAuthenticatedDemo
	}
	return StateAuthenticatedReal
}
