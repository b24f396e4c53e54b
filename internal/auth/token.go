package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/snowballr/snowballr-api/internal/user"
)

const issuer = "snowballr"

// ErrInvalidToken indicates the token failed signature, expiry, kind or
// claim validation. Callers treat it as unauthenticated.
var ErrInvalidToken = errors.New("invalid token")

// Kind distinguishes what a token may be used for.
type Kind string

const (
	KindSession    Kind = "session"
	KindInvitation Kind = "invitation"
	KindReset      Kind = "reset"
	KindRefresh    Kind = "refresh"
)

// Claims is the typed JWT payload. Profile fields are only set on session
// tokens.
type Claims struct {
	Kind      Kind   `json:"kind"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	IsAdmin   bool   `json:"isAdmin,omitempty"`
	Status    string `json:"status,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// Principal converts session claims into a Principal. Any missing required
// field fails closed with ErrInvalidToken.
func (c *Claims) Principal() (Principal, error) {
	if c.Kind != KindSession {
		return Principal{}, ErrInvalidToken
	}
	id, err := c.UserID()
	if err != nil {
		return Principal{}, err
	}
	if strings.TrimSpace(c.Email) == "" {
		return Principal{}, ErrInvalidToken
	}
	if !user.ValidStatus(c.Status) || c.Status == user.StatusDeleted {
		return Principal{}, ErrInvalidToken
	}
	return Principal{
		ID:        id,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		IsAdmin:   c.IsAdmin,
		Status:    c.Status,
	}, nil
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer creates an Issuer signing with secret. Tokens expire after lifetime.
func NewIssuer(secret string, lifetime time.Duration, opts ...IssuerOption) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if lifetime <= 0 {
		return nil, errors.New("auth: token lifetime must be greater than zero")
	}
	i := &Issuer{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a token of the given kind for u.
func (i *Issuer) Issue(kind Kind, u *user.User) (string, error) {
	if u == nil || u.ID <= 0 {
		return "", errors.New("auth: user id is required")
	}

	now := i.now().UTC()
	claims := Claims{
		Kind:  kind,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
			ID:        uuid.NewString(),
		},
	}
	if kind == KindSession {
		claims.FirstName = u.FirstName
		claims.LastName = u.LastName
		claims.IsAdmin = u.IsAdmin
		claims.Status = u.Status
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies raw and checks that it is a token of the expected kind.
// It never touches the database.
func (i *Issuer) Decode(raw string, kind Kind) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}
