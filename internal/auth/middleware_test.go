// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camporahq/campora/internal/platform/sec"
)

type guardFixture struct {
	*serviceFixture
	guard *Guard
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()

	f := newServiceFixture(t)
	return &guardFixture{
		serviceFixture: f,
		guard:          NewGuard(f.users, f.revocations, f.tokens),
	}
}

// probe runs a request through Authenticate into a handler that records the
// context-attached principal.
func (f *guardFixture) probe(t *testing.T, authorization string) (*httptest.ResponseRecorder, *User) {
	t.Helper()

	var principal *User
	handler := f.guard.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = PrincipalFrom(r.Context())
		token, ok := AccessTokenFrom(r.Context())
		assert.True(t, ok)
		assert.NotEmpty(t, token)
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		request.Header.Set("Authorization", authorization)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder, principal
}

func errorMessage(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	return envelope.Error
}

func TestGuard_Authenticate(t *testing.T) {
	f := newGuardFixture(t)
	session := f.register(t, "a@test.com", "strong-password-1")

	t.Run("missing_header", func(t *testing.T) {
		recorder, _ := f.probe(t, "")
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("malformed_header", func(t *testing.T) {
		recorder, _ := f.probe(t, "Basic dXNlcjpwYXNz")
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("garbage_token", func(t *testing.T) {
		recorder, _ := f.probe(t, "Bearer not-a-token")
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Equal(t, "Invalid token", errorMessage(t, recorder))
	})

	t.Run("valid_token", func(t *testing.T) {
		recorder, principal := f.probe(t, "Bearer "+session.Tokens.AccessToken)
		assert.Equal(t, http.StatusOK, recorder.Code)
		require.NotNil(t, principal)
		assert.Equal(t, session.User.ID, principal.ID)
	})

	t.Run("revoked_token", func(t *testing.T) {
		require.NoError(t, f.revocations.Revoke(context.Background(), session.Tokens.AccessToken, time.Minute))

		recorder, _ := f.probe(t, "Bearer "+session.Tokens.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, errorMessage(t, recorder), "revoked")
	})

	t.Run("deactivated_account", func(t *testing.T) {
		other := f.register(t, "b@test.com", "strong-password-1")
		_, err := f.service.updateWithRetry(context.Background(), other.User.ID, func(u *User) error {
			u.IsActive = false
			return nil
		})
		require.NoError(t, err)

		recorder, _ := f.probe(t, "Bearer "+other.Tokens.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestGuard_ExpiredTokenDistinctMessage(t *testing.T) {
	f := newGuardFixture(t)
	session := f.register(t, "a@test.com", "strong-password-1")

	// A guard wired with nanosecond lifetimes sees every token as expired.
	shortTokens, err := sec.NewTokenService(
		[]byte("test-access-secret-0123456789abcdef"),
		[]byte("test-refresh-secret-0123456789abcdef"),
		"campora.io", "campora-api",
		time.Nanosecond, time.Nanosecond,
	)
	require.NoError(t, err)

	expired, err := shortTokens.IssueAccessToken(session.User.ID, "a@test.com", "STUDENT")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	shortGuard := NewGuard(f.users, f.revocations, shortTokens)
	handler := shortGuard.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer "+expired)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, errorMessage(t, recorder), "expired")
}

func TestGuard_RequireRole(t *testing.T) {
	f := newGuardFixture(t)

	admin := &User{ID: "admin-1", Email: "admin@test.com", Role: sec.RoleAdmin, IsActive: true}
	student := &User{ID: "student-1", Email: "s@test.com", Role: sec.RoleStudent, IsActive: true}

	gate := f.guard.RequireRole(sec.RoleAdmin, sec.RoleSuperAdmin)
	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	run := func(user *User) int {
		request := httptest.NewRequest(http.MethodGet, "/admin", nil)
		request = request.WithContext(WithPrincipal(request.Context(), user))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder.Code
	}

	assert.Equal(t, http.StatusOK, run(admin))
	assert.Equal(t, http.StatusForbidden, run(student))

	// No principal at all.
	request := httptest.NewRequest(http.MethodGet, "/admin", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestGuard_RequirePermission(t *testing.T) {
	f := newGuardFixture(t)

	gate := f.guard.RequirePermission(sec.PermFeesManage)
	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	run := func(role sec.UserRole) int {
		request := httptest.NewRequest(http.MethodGet, "/fees", nil)
		user := &User{ID: "u", Role: role, IsActive: true}
		request = request.WithContext(WithPrincipal(request.Context(), user))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder.Code
	}

	assert.Equal(t, http.StatusOK, run(sec.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, run(sec.RoleStudent))
	assert.Equal(t, http.StatusForbidden, run(sec.RoleFaculty))

	// SUPER_ADMIN bypasses the permission table entirely.
	assert.Equal(t, http.StatusOK, run(sec.RoleSuperAdmin))
}
