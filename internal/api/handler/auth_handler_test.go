package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowballr/snowballr-api/internal/api/handler"
	"github.com/snowballr/snowballr-api/internal/api/middleware"
	"github.com/snowballr/snowballr-api/internal/auth"
	"github.com/snowballr/snowballr-api/internal/user"
)

func login(t *testing.T, h *handler.AuthHandler, email, password string) map[string]interface{} {
	t.Helper()
	req, w := makeChiRequest(http.MethodPost, "/login", mustJSON(t, map[string]string{
		"email":    email,
		"password": password,
	}), nil)
	h.Login(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return parseBody(t, w)
}

// ===== POST /login =====

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addUser(t, "ada@example.org", user.StatusRegistered, false)
	h := handler.NewAuthHandler(f.v, f.auth)

	body := login(t, h, "ADA@example.org", "password123")

	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["refreshToken"])
	u := body["user"].(map[string]interface{})
	assert.Equal(t, "ada@example.org", u["email"])
	assert.NotContains(t, u, "passwordHash")
	assert.Equal(t, 1, f.tokens.countKind(auth.KindSession))
	assert.Equal(t, 1, f.tokens.countKind(auth.KindRefresh))
}

func TestLogin_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "ada@example.org", "not-the-password"},
		{"unknown email", "nobody@example.org", "password123"},
		{"unregistered user", "invited@example.org", "password123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.addUser(t, "ada@example.org", user.StatusRegistered, false)
			f.addUser(t, "invited@example.org", user.StatusUnregistered, false)
			h := handler.NewAuthHandler(f.v, f.auth)

			req, w := makeChiRequest(http.MethodPost, "/login", mustJSON(t, map[string]string{
				"email":    tt.email,
				"password": tt.password,
			}), nil)
			h.Login(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "invalid credentials", errorMessage(t, w))
		})
	}
}

func TestLogin_MissingPassword(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := handler.NewAuthHandler(f.v, f.auth)

	req, w := makeChiRequest(http.MethodPost, "/login", []byte(`{"email":"ada@example.org","password":null}`), nil)
	h.Login(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "missing parameter: password", errorMessage(t, w))
}

func TestLogin_WrongContentType(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := handler.NewAuthHandler(f.v, f.auth)

	req, w := makeChiRequest(http.MethodPost, "/login", []byte(`email=a`), nil)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.Login(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

// ===== GET /logout =====

func TestLogout_RevokesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addUser(t, "ada@example.org", user.StatusActive, false)
	h := handler.NewAuthHandler(f.v, f.auth)
	token := login(t, h, "ada@example.org", "password123")["token"].(string)

	_, err := f.auth.Identify(context.Background(), token)
	require.NoError(t, err)

	req, w := makeChiRequest(http.MethodGet, "/logout", nil, nil)
	req.Header.Set(middleware.AuthenticationHeader, token)
	h.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, parseBody(t, w)["success"])

	_, err = f.auth.Identify(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	req, w = makeChiRequest(http.MethodGet, "/logout", nil, nil)
	req.Header.Set(middleware.AuthenticationHeader, token)
	h.Logout(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_NoToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := handler.NewAuthHandler(f.v, f.auth)

	req, w := makeChiRequest(http.MethodGet, "/logout", nil, nil)
	h.Logout(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "not authorized", errorMessage(t, w))
}

// ===== POST /refresh =====

func TestRefresh_RotatesRefreshToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addUser(t, "ada@example.org", user.StatusActive, false)
	h := handler.NewAuthHandler(f.v, f.auth)
	refresh := login(t, h, "ada@example.org", "password123")["refreshToken"].(string)

	req, w := makeChiRequest(http.MethodPost, "/refresh", nil, nil)
	req.Header.Set(handler.RefreshTokenHeader, refresh)
	h.Refresh(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := parseBody(t, w)
	assert.NotEmpty(t, body["token"])
	assert.NotEqual(t, refresh, body["refreshToken"])

	req, w = makeChiRequest(http.MethodPost, "/refresh", nil, nil)
	req.Header.Set(handler.RefreshTokenHeader, refresh)
	h.Refresh(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefresh_SessionTokenRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addUser(t, "ada@example.org", user.StatusActive, false)
	h := handler.NewAuthHandler(f.v, f.auth)
	token := login(t, h, "ada@example.org", "password123")["token"].(string)

	req, w := makeChiRequest(http.MethodPost, "/refresh", nil, nil)
	req.Header.Set(handler.RefreshTokenHeader, token)
	h.Refresh(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
