package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DemoIssuer is the issuer claim stamped on locally minted demo credentials.
const DemoIssuer = "loandesk-demo"

// demoClaims is the payload of a demo credential.
type demoClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// CredentialIssuer mints and recognises demo credentials.
type CredentialIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewCredentialIssuer builds an issuer signing with the given secret. An empty
// secret falls back to the issuer name so demo tokens stay recognisable across
// restarts.
func NewCredentialIssuer(secret string, ttl time.Duration) *CredentialIssuer {
	if secret == "" {
		secret = DemoIssuer
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CredentialIssuer{secret: []byte(secret), ttl: ttl}
}

// MintDemo issues a signed demo credential for s and returns it with its expiry.
func (i *CredentialIssuer) MintDemo(s Session) (string, time.Time, error) {
	if s.UserID == "" {
		return "", time.Time{}, errors.New("credential: user id is required")
	}
	now := time.Now().UTC()
	exp := now.Add(i.ttl)
	claims := demoClaims{
		Name:  s.DisplayName,
		Email: s.Email,
		Role:  s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DemoIssuer,
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IsDemo reports whether token is a valid demo credential minted by this issuer.
func (i *CredentialIssuer) IsDemo(token string) bool {
	parsed, err := jwt.ParseWithClaims(token, &demoClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithIssuer(DemoIssuer))
	return err == nil && parsed.Valid
}

// CredentialExpiry reads the exp claim of a JWT without verifying it. The
// client cannot verify backend tokens; the expiry only lets it drop a session
// that is certain to be rejected.
func CredentialExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
