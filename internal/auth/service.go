package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/snowballr/snowballr-api/internal/user"
)

// ErrInvalidCredentials is returned when a login attempt fails for any reason
// a caller should not be told about.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Session is the result of a successful login or refresh.
type Session struct {
	Token        string
	RefreshToken string
	User         *user.User
}

// Service provides authentication operations.
type Service struct {
	users      user.Repository
	tokens     TokenRepository
	issuer     *Issuer
	bcryptCost int
}

// NewService creates a new auth Service.
func NewService(users user.Repository, tokens TokenRepository, issuer *Issuer, bcryptCost int) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		issuer:     issuer,
		bcryptCost: bcryptCost,
	}
}

// HashPassword hashes a plaintext password with the configured cost.
func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

// Login checks the credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !u.CanLogIn() {
		return nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.openSession(ctx, u)
}

// Logout revokes the session token.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if _, err := s.Identify(ctx, raw); err != nil {
		return err
	}
	if err := s.tokens.Delete(ctx, raw); err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	return nil
}

// Refresh rotates a refresh token into a new session.
func (s *Service) Refresh(ctx context.Context, raw string) (*Session, error) {
	claims, err := s.issuer.Decode(raw, KindRefresh)
	if err != nil {
		return nil, err
	}
	if err := s.requireRecord(ctx, raw, KindRefresh); err != nil {
		return nil, err
	}

	uid, _ := claims.UserID()
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !u.CanLogIn() {
		return nil, ErrInvalidToken
	}

	if err := s.tokens.Delete(ctx, raw); err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return s.openSession(ctx, u)
}

// Identify resolves a session token to a principal. The token must verify
// and its record must still exist.
func (s *Service) Identify(ctx context.Context, raw string) (Principal, error) {
	claims, err := s.issuer.Decode(raw, KindSession)
	if err != nil {
		return Principal{}, err
	}
	p, err := claims.Principal()
	if err != nil {
		return Principal{}, err
	}
	if err := s.requireRecord(ctx, raw, KindSession); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// IssueToken signs a token of the given kind for u and persists its record.
func (s *Service) IssueToken(ctx context.Context, kind Kind, u *user.User) (string, error) {
	raw, err := s.issuer.Issue(kind, u)
	if err != nil {
		return "", err
	}
	if err := s.tokens.Create(ctx, &TokenRecord{Token: raw, UserID: u.ID, Kind: kind}); err != nil {
		return "", err
	}
	return raw, nil
}

// CheckToken verifies that raw is a live token of the given kind issued to
// userID. It does not consume the token.
func (s *Service) CheckToken(ctx context.Context, raw string, kind Kind, userID int64) error {
	claims, err := s.issuer.Decode(raw, kind)
	if err != nil {
		return err
	}
	uid, _ := claims.UserID()
	if uid != userID {
		return ErrInvalidToken
	}
	return s.requireRecord(ctx, raw, kind)
}

// RevokeToken deletes a token record. Revoking an unknown token is not an error.
func (s *Service) RevokeToken(ctx context.Context, raw string) error {
	if err := s.tokens.Delete(ctx, raw); err != nil && !errors.Is(err, ErrTokenNotFound) {
		return err
	}
	return nil
}

// RevokeAll deletes every token record of a user.
func (s *Service) RevokeAll(ctx context.Context, userID int64) error {
	return s.tokens.DeleteByUser(ctx, userID)
}

// BootstrapAdmin creates an active admin user with the given credentials if
// no user with that email exists. Returns true if a user was created.
func (s *Service) BootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		slog.Warn("admin credentials not configured, skipping admin bootstrap")
		return false, nil
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return false, fmt.Errorf("looking up admin: %w", err)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hashing admin password: %w", err)
	}

	admin := &user.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		IsAdmin:      true,
		Status:       user.StatusActive,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return false, fmt.Errorf("creating admin: %w", err)
	}

	slog.Info("admin user created", "email", admin.Email, "id", admin.ID)
	return true, nil
}

func (s *Service) openSession(ctx context.Context, u *user.User) (*Session, error) {
	token, err := s.IssueToken(ctx, KindSession, u)
	if err != nil {
		return nil, fmt.Errorf("issuing session token: %w", err)
	}
	refresh, err := s.IssueToken(ctx, KindRefresh, u)
	if err != nil {
		return nil, fmt.Errorf("issuing refresh token: %w", err)
	}
	return &Session{Token: token, RefreshToken: refresh, User: u}, nil
}

func (s *Service) requireRecord(ctx context.Context, raw string, kind Kind) error {
	ok, err := s.tokens.Exists(ctx, raw, kind)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidToken
	}
	return nil
}
