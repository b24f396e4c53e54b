package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/snowballr/snowballr-api/internal/auth"
	"github.com/snowballr/snowballr-api/internal/user"
)

// memUsers is an in-memory user.Repository.
type memUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*user.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[int64]*user.User{}}
}

func (m *memUsers) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return user.ErrDuplicateEmail
		}
	}
	if u.Status == "" {
		u.Status = user.StatusUnregistered
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memUsers) List(_ context.Context) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []user.User{}
	for id := int64(1); id <= m.nextID; id++ {
		if u, ok := m.byID[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) Update(_ context.Context, id int64, f user.UpdateFields) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	if f.Email != nil {
		u.Email = *f.Email
	}
	if f.PasswordHash != nil {
		u.PasswordHash = *f.PasswordHash
	}
	if f.Status != nil {
		u.Status = *f.Status
	}
	if f.IsAdmin != nil {
		u.IsAdmin = *f.IsAdmin
	}
	cp := *u
	return &cp, nil
}

// memTokens is an in-memory auth.TokenRepository.
type memTokens struct {
	mu   sync.Mutex
	rows map[string]auth.TokenRecord
}

func newMemTokens() *memTokens {
	return &memTokens{rows: map[string]auth.TokenRecord{}}
}

func (m *memTokens) Create(_ context.Context, rec *auth.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.CreatedAt = time.Now()
	m.rows[rec.Token] = *rec
	return nil
}

func (m *memTokens) Exists(_ context.Context, token string, kind auth.Kind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[token]
	return ok && rec.Kind == kind, nil
}

func (m *memTokens) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[token]; !ok {
		return auth.ErrTokenNotFound
	}
	delete(m.rows, token)
	return nil
}

func (m *memTokens) DeleteByUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, rec := range m.rows {
		if rec.UserID == userID {
			delete(m.rows, tok)
		}
	}
	return nil
}

func (m *memTokens) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for tok, rec := range m.rows {
		if rec.CreatedAt.Before(cutoff) {
			delete(m.rows, tok)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type serviceFixture struct {
	svc    *auth.Service
	users  *memUsers
	tokens *memTokens
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	users := newMemUsers()
	tokens := newMemTokens()
	return &serviceFixture{
		svc:    auth.NewService(users, tokens, newIssuer(t), bcrypt.MinCost),
		users:  users,
		tokens: tokens,
	}
}

func (f *serviceFixture) createUser(t *testing.T, email, password, status string) *user.User {
	t.Helper()
	u := &user.User{Email: email, Status: status}
	if password != "" {
		hash, err := f.svc.HashPassword(password)
		require.NoError(t, err)
		u.PasswordHash = hash
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestLogin_Success(t *testing.T) {
	f := newServiceFixture(t)
	u := f.createUser(t, "ada@example.org", "secret", user.StatusActive)

	sess, err := f.svc.Login(context.Background(), "ADA@example.org", "secret")
	require.NoError(t, err)

	assert.Equal(t, u.ID, sess.User.ID)
	assert.NotEmpty(t, sess.Token)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.Equal(t, 2, f.tokens.count())

	p, err := f.svc.Identify(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)
}

func TestLogin_Rejections(t *testing.T) {
	f := newServiceFixture(t)
	f.createUser(t, "active@x.org", "secret", user.StatusActive)
	f.createUser(t, "invited@x.org", "secret", user.StatusUnregistered)
	f.createUser(t, "gone@x.org", "secret", user.StatusDeleted)
	f.createUser(t, "nopass@x.org", "", user.StatusActive)

	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "active@x.org", "nope"},
		{"unknown email", "missing@x.org", "secret"},
		{"unregistered", "invited@x.org", "secret"},
		{"deleted", "gone@x.org", "secret"},
		{"no password set", "nopass@x.org", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		})
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createUser(t, "ada@example.org", "secret", user.StatusActive)

	sess, err := f.svc.Login(ctx, "ada@example.org", "secret")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, sess.Token))

	_, err = f.svc.Identify(ctx, sess.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	assert.ErrorIs(t, f.svc.Logout(ctx, sess.Token), auth.ErrInvalidToken)
}

func TestRefresh_RotatesTokens(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createUser(t, "ada@example.org", "secret", user.StatusActive)

	sess, err := f.svc.Login(ctx, "ada@example.org", "secret")
	require.NoError(t, err)

	next, err := f.svc.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, next.RefreshToken)

	_, err = f.svc.Refresh(ctx, sess.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = f.svc.Refresh(ctx, next.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "session token is not a refresh token")
}

func TestCheckToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "new@x.org", "", user.StatusUnregistered)
	other := f.createUser(t, "other@x.org", "", user.StatusUnregistered)

	raw, err := f.svc.IssueToken(ctx, auth.KindInvitation, u)
	require.NoError(t, err)

	assert.NoError(t, f.svc.CheckToken(ctx, raw, auth.KindInvitation, u.ID))
	assert.ErrorIs(t, f.svc.CheckToken(ctx, raw, auth.KindInvitation, other.ID), auth.ErrInvalidToken)
	assert.ErrorIs(t, f.svc.CheckToken(ctx, raw, auth.KindReset, u.ID), auth.ErrInvalidToken)

	require.NoError(t, f.svc.RevokeToken(ctx, raw))
	assert.ErrorIs(t, f.svc.CheckToken(ctx, raw, auth.KindInvitation, u.ID), auth.ErrInvalidToken)
	assert.NoError(t, f.svc.RevokeToken(ctx, raw))
}

func TestRevokeAll(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createUser(t, "ada@example.org", "secret", user.StatusActive)

	sess, err := f.svc.Login(ctx, "ada@example.org", "secret")
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeAll(ctx, sess.User.ID))
	assert.Equal(t, 0, f.tokens.count())
}

func TestBootstrapAdmin(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.BootstrapAdmin(ctx, "root@snowballr.local", "hunter2")
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := f.users.GetByEmail(ctx, "root@snowballr.local")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.Equal(t, user.StatusActive, admin.Status)

	created, err = f.svc.BootstrapAdmin(ctx, "root@snowballr.local", "hunter2")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = f.svc.Login(ctx, "root@snowballr.local", "hunter2")
	assert.NoError(t, err)
}

func TestBootstrapAdmin_Unconfigured(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.svc.BootstrapAdmin(context.Background(), "", "")
	require.NoError(t, err)
	assert.False(t, created)
}
