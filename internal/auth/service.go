package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/loandesk/loandesk/internal/gateway"
	"github.com/loandesk/loandesk/internal/notification"
	"github.com/loandesk/loandesk/internal/session"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidName        = errors.New("name is required")
	ErrInvalidEmail       = errors.New("a valid email is required")
	ErrInvalidMobile      = errors.New("mobile must be 10 digits")
	ErrInvalidRole        = errors.New("role must be DSA, NBFC or Co-op")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

const (
	demoUserID   = "1"
	demoUserName = "Demo User"

	// DemoRegisterMessage replaces the generic mock acknowledgement for
	// registrations accepted while the backend is absent.
	DemoRegisterMessage = "Registration successful (Demo Mode)"
)

var (
	mobilePattern = regexp.MustCompile(`^\d{10}$`)
	allowedRoles  = map[string]struct{}{"DSA": {}, "NBFC": {}, "Co-op": {}}
)

// Backend is the gateway surface for authentication.
type Backend interface {
	Login(ctx context.Context, req gateway.LoginRequest) (gateway.LoginResult, error)
	Register(ctx context.Context, req gateway.RegisterRequest) (gateway.Ack, error)
	Profile(ctx context.Context) (gateway.ProfileResult, error)
}

// Registration is the sign-up form.
type Registration struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Mobile          string `json:"mobile"`
	Role            string `json:"role"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate checks the registration fields. An empty role defaults to DSA and
// an empty confirmation is not compared.
func (r *Registration) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Mobile = strings.TrimSpace(r.Mobile)
	r.Role = strings.TrimSpace(r.Role)
	if r.Role == "" {
		r.Role = string(session.RoleStandard)
	}
	switch {
	case r.Name == "":
		return ErrInvalidName
	case !validEmail(r.Email):
		return ErrInvalidEmail
	case !mobilePattern.MatchString(r.Mobile):
		return ErrInvalidMobile
	}
	if _, ok := allowedRoles[r.Role]; !ok {
		return ErrInvalidRole
	}
	if len(r.Password) < 6 {
		return ErrWeakPassword
	}
	if r.ConfirmPassword != "" && r.ConfirmPassword != r.Password {
		return ErrPasswordMismatch
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Service runs the login, registration and logout flows against the session
// store.
type Service struct {
	backend    Backend
	sessions   *session.Store
	issuer     *session.CredentialIssuer
	notifier   notification.Notifier
	logger     *slog.Logger
	afterLogin []func(context.Context) error
	beforeEnd  []func(context.Context) error
}

func NewService(backend Backend, sessions *session.Store, issuer *session.CredentialIssuer, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{backend: backend, sessions: sessions, issuer: issuer, notifier: notifier, logger: logger}
}

// AfterLogin registers fn to run once a session has been established or
// restored, e.g. a wallet resync. Failures are logged, not returned.
func (s *Service) AfterLogin(fn func(context.Context) error) {
	s.afterLogin = append(s.afterLogin, fn)
}

// BeforeLogout registers fn to run while the session is still active, e.g.
// draining queued ledger writes. Failures are logged, not returned.
func (s *Service) BeforeLogout(fn func(context.Context) error) {
	s.beforeEnd = append(s.beforeEnd, fn)
}

// Login authenticates against the backend. When the backend is absent a demo
// session is issued locally instead.
func (s *Service) Login(ctx context.Context, email, password string) (session.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return session.Session{}, ErrMissingCredentials
	}

	res, err := s.backend.Login(ctx, gateway.LoginRequest{Email: email, Password: password})
	if err != nil {
		if errors.Is(err, gateway.ErrAuthentication) {
			notification.Notify(ctx, s.notifier, notification.KindAuth, notification.LevelError, email, "Login failed")
			return session.Session{}, ErrInvalidCredentials
		}
		return session.Session{}, fmt.Errorf("login: %w", err)
	}

	var sess session.Session
	if res.Mock {
		sess, err = s.demoSession(email)
		if err != nil {
			return session.Session{}, err
		}
	} else {
		sess = session.Session{
			UserID:      res.User.ID,
			DisplayName: res.User.Name,
			Email:       firstNonEmpty(res.User.Email, email),
			Role:        roleOf(res.User.Role),
			Credential:  res.Token,
			Mode:        session.ModeReal,
		}
	}
	if previous, active := s.sessions.Current(); active {
		// drain and tear down the previous user's stores before switching
		s.logger.Info("replacing active session", slog.String("previous_user_id", previous.UserID))
		if err := s.endSession(ctx); err != nil {
			return session.Session{}, fmt.Errorf("end previous session: %w", err)
		}
	}
	if err := s.sessions.Begin(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("begin session: %w", err)
	}
	notification.Notify(ctx, s.notifier, notification.KindAuth, notification.LevelSuccess, email, "Login successful!")
	s.runAfterLogin(ctx)
	current, _ := s.sessions.Current()
	return current, nil
}

func (s *Service) demoSession(email string) (session.Session, error) {
	sess := session.Session{
		UserID:      demoUserID,
		DisplayName: demoUserName,
		Email:       email,
		Role:        session.RoleStandard,
		Mode:        session.ModeDemo,
	}
	token, exp, err := s.issuer.MintDemo(sess)
	if err != nil {
		return session.Session{}, fmt.Errorf("mint demo credential: %w", err)
	}
	sess.Credential = token
	sess.ExpiresAt = &exp
	s.logger.Warn("backend unavailable, starting demo session", slog.String("email", email))
	return sess, nil
}

// Register creates an account. A backend-absent acknowledgement is reported
// as a demo registration.
func (s *Service) Register(ctx context.Context, reg Registration) (gateway.Ack, error) {
	if err := reg.Validate(); err != nil {
		return gateway.Ack{}, err
	}
	ack, err := s.backend.Register(ctx, gateway.RegisterRequest{
		Name:     reg.Name,
		Email:    reg.Email,
		Mobile:   reg.Mobile,
		Role:     reg.Role,
		Password: reg.Password,
	})
	if err != nil {
		notification.Notify(ctx, s.notifier, notification.KindAuth, notification.LevelError, reg.Email, "Registration failed")
		return gateway.Ack{}, fmt.Errorf("register: %w", err)
	}
	if ack.Mock {
		ack.Message = DemoRegisterMessage
	}
	notification.Notify(ctx, s.notifier, notification.KindAuth, notification.LevelSuccess, reg.Email, "Registration successful! Please login.")
	return ack, nil
}

// Logout ends the session. Teardown hooks on the session store reset the
// per-user stores.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.endSession(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	notification.Notify(ctx, s.notifier, notification.KindSession, notification.LevelInfo, "", "Logged out")
	return nil
}

// endSession runs the pre-logout hooks while the credential is still
// installed, then ends the session.
func (s *Service) endSession(ctx context.Context) error {
	for _, fn := range s.beforeEnd {
		if err := fn(ctx); err != nil {
			s.logger.Warn("pre-logout hook failed", slog.Any("error", err))
		}
	}
	return s.sessions.End(ctx)
}

// Restore reloads a persisted session and, for real sessions, refreshes the
// profile.
func (s *Service) Restore(ctx context.Context) (session.Session, bool, error) {
	sess, ok, err := s.sessions.Restore(ctx)
	if err != nil || !ok {
		return session.Session{}, false, err
	}
	if sess.IsDemo() && !s.issuer.IsDemo(sess.Credential) {
		s.logger.Warn("discarding demo session with foreign credential", slog.String("user_id", sess.UserID))
		_ = s.sessions.End(ctx)
		return session.Session{}, false, nil
	}
	if !sess.IsDemo() {
		if sess, err = s.RefreshProfile(ctx); err != nil {
			if errors.Is(err, gateway.ErrAuthentication) || errors.Is(err, session.ErrNotAuthenticated) {
				return session.Session{}, false, nil
			}
			s.logger.Warn("profile refresh failed", slog.Any("error", err))
			sess, _ = s.sessions.Current()
		}
	}
	s.runAfterLogin(ctx)
	return sess, true, nil
}

// RefreshProfile updates the stored identity from the backend. Fallback
// profiles never overwrite a stored identity.
func (s *Service) RefreshProfile(ctx context.Context) (session.Session, error) {
	current, err := s.sessions.Require()
	if err != nil {
		return session.Session{}, err
	}
	if current.IsDemo() {
		return current, nil
	}
	profile, err := s.backend.Profile(ctx)
	if err != nil {
		return session.Session{}, fmt.Errorf("refresh profile: %w", err)
	}
	if profile.Mock {
		return current, nil
	}
	u := profile.User
	if err := s.sessions.Update(ctx, func(sess *session.Session) {
		sess.UserID = firstNonEmpty(u.ID, sess.UserID)
		sess.DisplayName = firstNonEmpty(u.Name, sess.DisplayName)
		sess.Email = firstNonEmpty(u.Email, sess.Email)
		if u.Role != "" {
			sess.Role = roleOf(u.Role)
		}
	}); err != nil {
		return session.Session{}, err
	}
	updated, _ := s.sessions.Current()
	return updated, nil
}

func (s *Service) runAfterLogin(ctx context.Context) {
	for _, fn := range s.afterLogin {
		hookCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := fn(hookCtx); err != nil {
			s.logger.Warn("post-login hook failed", slog.Any("error", err))
		}
		cancel()
	}
}

func roleOf(r string) session.Role {
	if strings.EqualFold(r, string(session.RoleAdmin)) {
		return session.RoleAdmin
	}
	if r == "" {
		return session.RoleStandard
	}
	return session.Role(r)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
