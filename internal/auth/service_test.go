// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package auth

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camporahq/campora/internal/platform/apperr"
	"github.com/camporahq/campora/internal/platform/sec"
)

// # In-Memory Test Doubles

// memoryUserRepository implements [UserRepository] with the same versioned
// write semantics as the Postgres store.
type memoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*User)}
}

func cloneUser(user *User) *User {
	clone := *user
	clone.RefreshTokens = append([]RefreshTokenEntry(nil), user.RefreshTokens...)
	if user.LastLoginAt != nil {
		at := *user.LastLoginAt
		clone.LastLoginAt = &at
	}
	return &clone
}

func (r *memoryUserRepository) FindByID(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	return cloneUser(user), nil
}

func (r *memoryUserRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (r *memoryUserRepository) FindByResetTokenHash(_ context.Context, hash string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Reset.Hash == hash && hash != "" {
			return cloneUser(user), nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (r *memoryUserRepository) FindByVerifyTokenHash(_ context.Context, hash string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Verify.Hash == hash && hash != "" {
			return cloneUser(user), nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (r *memoryUserRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return apperr.Conflict("Email is already registered")
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memoryUserRepository) UpdateCredentials(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return apperr.NotFound("User")
	}
	if stored.Version != user.Version {
		return ErrVersionConflict
	}

	user.Version++
	r.users[user.ID] = cloneUser(user)
	return nil
}

// memoryRevocationStore implements [RevocationStore] with wall-clock TTLs.
type memoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newMemoryRevocationStore() *memoryRevocationStore {
	return &memoryRevocationStore{entries: make(map[string]time.Time)}
}

func (s *memoryRevocationStore) Revoke(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = time.Now().Add(ttl)
	return nil
}

func (s *memoryRevocationStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[token]
	return ok && time.Now().Before(expiry), nil
}

// captureNotifier records outbound messages instead of delivering them.
type captureNotifier struct {
	mu       sync.Mutex
	messages []capturedMessage
	fail     bool
}

type capturedMessage struct {
	To      string
	Subject string
	Body    string
}

func (n *captureNotifier) Send(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fail {
		return assert.AnError
	}
	n.messages = append(n.messages, capturedMessage{To: to, Subject: subject, Body: body})
	return nil
}

func (n *captureNotifier) last(t *testing.T) capturedMessage {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()

	require.NotEmpty(t, n.messages)
	return n.messages[len(n.messages)-1]
}

var (
	otpPattern   = regexp.MustCompile(`\b[0-9]{6}\b`)
	tokenPattern = regexp.MustCompile(`\b[0-9a-f]{64}\b`)
)

// # Fixture

type serviceFixture struct {
	service     *Service
	users       *memoryUserRepository
	revocations *memoryRevocationStore
	notifier    *captureNotifier
	tokens      *sec.TokenService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	tokens, err := sec.NewTokenService(
		[]byte("test-access-secret-0123456789abcdef"),
		[]byte("test-refresh-secret-0123456789abcdef"),
		"campora.io", "campora-api",
		15*time.Minute, 7*24*time.Hour,
	)
	require.NoError(t, err)

	users := newMemoryUserRepository()
	revocations := newMemoryRevocationStore()
	notifier := &captureNotifier{}

	service := NewService(users, revocations, tokens, notifier, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)), false)

	return &serviceFixture{
		service:     service,
		users:       users,
		revocations: revocations,
		notifier:    notifier,
		tokens:      tokens,
	}
}

func (f *serviceFixture) register(t *testing.T, email, password string) *Session {
	t.Helper()

	session, err := f.service.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: password,
		Role:     sec.RoleStudent,
	})
	require.NoError(t, err)
	return session
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()

	ae := apperr.As(err)
	require.NotNil(t, ae, "expected AppError, got %v", err)
	assert.Equal(t, code, ae.Code)
}

// # Registration

func TestRegister_DuplicateEmailConflict(t *testing.T) {
	f := newServiceFixture(t)

	session := f.register(t, "a@test.com", "strong-password-1")
	assert.NotEmpty(t, session.Tokens.AccessToken)
	assert.NotEmpty(t, session.Tokens.RefreshToken)
	assert.Equal(t, "Bearer", session.Tokens.TokenType)

	_, err := f.service.Register(context.Background(), RegisterInput{
		Email:    "A@Test.com", // case-insensitive duplicate
		Password: "another-password",
		Role:     sec.RoleStudent,
	})
	assertCode(t, err, "CONFLICT")
}

func TestRegister_InvalidRoleRejected(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Register(context.Background(), RegisterInput{
		Email:    "a@test.com",
		Password: "strong-password-1",
		Role:     sec.UserRole("WIZARD"),
	})
	assertCode(t, err, "VALIDATION_ERROR")
}

func TestRegister_IssuesVerificationChallenge(t *testing.T) {
	f := newServiceFixture(t)

	session := f.register(t, "a@test.com", "strong-password-1")

	stored, err := f.users.FindByID(context.Background(), session.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.EmailVerified)
	assert.True(t, stored.Verify.IsSet())

	message := f.notifier.last(t)
	assert.Equal(t, "a@test.com", message.To)
	assert.Contains(t, message.Subject, "Verify")
}

// # Password Login

func TestLogin_SuccessStoresRefreshToken(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "a@test.com", "strong-password-1")

	session, err := f.service.Login(context.Background(), LoginInput{
		Email:    "a@test.com",
		Password: "strong-password-1",
	})
	require.NoError(t, err)

	stored, err := f.users.FindByID(context.Background(), session.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasRefreshToken(session.Tokens.RefreshToken))
	require.NotNil(t, stored.LastLoginAt)
}

func TestLogin_GenericUnauthorized(t *testing.T) {
	f := newServiceFixture(t)
	session := f.register(t, "a@test.com", "strong-password-1")

	_, err := f.service.Login(context.Background(), LoginInput{Email: "a@test.com", Password: "wrong"})
	assertCode(t, err, "UNAUTHORIZED")
	wrongPasswordMsg := err.Error()

	_, err = f.service.Login(context.Background(), LoginInput{Email: "nobody@test.com", Password: "whatever"})
	assertCode(t, err, "UNAUTHORIZED")
	assert.Equal(t, wrongPasswordMsg, err.Error(), "absent user and wrong password must be indistinguishable")

	// Deactivated accounts cannot log in either.
	_, err = f.service.updateWithRetry(context.Background(), session.User.ID, func(u *User) error {
		u.IsActive = false
		return nil
	})
	require.NoError(t, err)

	_, err = f.service.Login(context.Background(), LoginInput{Email: "a@test.com", Password: "strong-password-1"})
	assertCode(t, err, "UNAUTHORIZED")
}

func TestLogin_RefreshSetBoundedFIFO(t *testing.T) {
	f := newServiceFixture(t)
	registered := f.register(t, "a@test.com", "strong-password-1")

	issued := []string{registered.Tokens.RefreshToken}
	for i := 0; i < RefreshTokenCapacity; i++ {
		session, err := f.service.Login(context.Background(), LoginInput{
			Email:    "a@test.com",
			Password: "strong-password-1",
		})
		require.NoError(t, err)
		issued = append(issued, session.Tokens.RefreshToken)
	}

	stored, err := f.users.FindByID(context.Background(), registered.User.ID)
	require.NoError(t, err)

	assert.Len(t, stored.RefreshTokens, RefreshTokenCapacity)
	assert.False(t, stored.HasRefreshToken(issued[0]), "oldest token must be evicted")
	for _, token := range issued[1:] {
		assert.True(t, stored.HasRefreshToken(token))
	}
}

// # Token Rotation

func TestRefresh_RotatesAndRejectsReplay(t *testing.T) {
	f := newServiceFixture(t)
	registered := f.register(t, "a@test.com", "strong-password-1")
	oldToken := registered.Tokens.RefreshToken

	rotated, err := f.service.Refresh(context.Background(), oldToken)
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, rotated.Tokens.RefreshToken)

	stored, err := f.users.FindByID(context.Background(), registered.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasRefreshToken(oldToken))
	assert.True(t, stored.HasRefreshToken(rotated.Tokens.RefreshToken))

	// Reuse of the rotated-out token is the replay case.
	_, err = f.service.Refresh(context.Background(), oldToken)
	assertCode(t, err, "UNAUTHORIZED")
}

func TestRefresh_RejectsGarbage(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "a@test.com", "strong-password-1")

	_, err := f.service.Refresh(context.Background(), "not-a-token")
	assertCode(t, err, "UNAUTHORIZED")
}

// # OTP Login

func TestLoginWithOTP_SingleUse(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "a@test.com", "strong-password-1")

	require.NoError(t, f.service.SendLoginOTP(context.Background(), "a@test.com"))
	code := otpPattern.FindString(f.notifier.last(t).Body)
	require.Len(t, code, 6)

	session, err := f.service.LoginWithOTP(context.Background(), "a@test.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Tokens.AccessToken)

	// Consumption clears the challenge in the same write.
	_, err = f.service.LoginWithOTP(context.Background(), "a@test.com", code)
	assertCode(t, err, "UNAUTHORIZED")
}

func TestLoginWithOTP_ExpiryBoundary(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "a@test.com", "strong-password-1")

	issuedAt := time.Now()
	f.service.now = func() time.Time { return issuedAt }

	require.NoError(t, f.service.SendLoginOTP(context.Background(), "a@test.com"))
	code := otpPattern.FindString(f.notifier.last(t).Body)

	// At the exact expiry instant the code is still valid.
	f.service.now = func() time.Time { return issuedAt.Add(OTPTTL) }
	_, err := f.service.LoginWithOTP(context.Background(), "a@test.com", code)
	require.NoError(t, err)

	// One second past expiry a fresh code is dead.
	f.service.now = func() time.Time { return issuedAt }
	require.NoError(t, f.service.SendLoginOTP(context.Background(), "a@test.com"))
	code = otpPattern.FindString(f.notifier.last(t).Body)

	f.service.now = func() time.Time { return issuedAt.Add(OTPTTL + time.Second) }
	_, err = f.service.LoginWithOTP(context.Background(), "a@test.com", code)
	assertCode(t, err, "UNAUTHORIZED")
	assert.Contains(t, err.Error(), "expired")
}

func TestLoginWithOTP_ReissueCancelsPrevious(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "a@test.com", "strong-password-1")

	require.NoError(t, f.service.SendLoginOTP(context.Background(), "a@test.com"))
	firstCode := otpPattern.FindString(f.notifier.last(t).Body)

	require.NoError(t, f.service.SendLoginOTP(context.Background(), "a@test.com"))
	secondCode := otpPattern.FindString(f.notifier.last(t).Body)

	if firstCode == secondCode {
		t.Skip("collision between independently drawn codes")
	}

	_, err := f.service.LoginWithOTP(context.Background(), "a@test.com", firstCode)
	assertCode(t, err, "UNAUTHORIZED")

	_, err = f.service.LoginWithOTP(context.Background(), "a@test.com", secondCode)
	require.NoError(t, err)
}

func TestSendLoginOTP_UnknownEmailSilent(t *testing.T) {
	f := newServiceFixture(t)

	err := f.service.SendLoginOTP(context.Background(), "nobody@test.com")
	require.NoError(t, err, "existence must not be disclosed")
	assert.Empty(t, f.notifier.messages)
}

func TestSendLoginOTP_NotifierFailureNotFatal(t *testing.T) {
	f := newServiceFixture(t)
	registered := f.register(t, "a@test.com", "strong-password-1")

	f.notifier.fail = true
	require.NoError(t, f.service.SendLoginOTP(context.Background(), "a@test.com"))

	// The challenge stands even though delivery failed.
	stored, err := f.users.FindByID(context.Background(), registered.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.OTP.IsSet())
}

// # Logout

func TestLogout_RevokesAccessToken(t *testing.T) {
	f := newServiceFixture(t)
	session := f.register(t, "a@test.com", "strong-password-1")

	err := f.service.Logout(context.Background(),
		session.User.ID, session.Tokens.AccessToken, session.Tokens.RefreshToken)
	require.NoError(t, err)

	revoked, err := f.revocations.IsRevoked(context.Background(), session.Tokens.AccessToken)
	require.NoError(t, err)
	assert.True(t, revoked)

	stored, err := f.users.FindByID(context.Background(), session.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasRefreshToken(session.Tokens.RefreshToken))
}

func TestLogout_OtherSessionsUnaffected(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "a@test.com", "strong-password-1")

	first, err := f.service.Login(context.Background(), LoginInput{Email: "a@test.com", Password: "strong-password-1"})
	require.NoError(t, err)
	second, err := f.service.Login(context.Background(), LoginInput{Email: "a@test.com", Password: "strong-password-1"})
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(context.Background(),
		first.User.ID, first.Tokens.AccessToken, first.Tokens.RefreshToken))

	revoked, err := f.revocations.IsRevoked(context.Background(), second.Tokens.AccessToken)
	require.NoError(t, err)
	assert.False(t, revoked, "a different live session must keep working")

	stored, err := f.users.FindByID(context.Background(), second.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasRefreshToken(second.Tokens.RefreshToken))
}

// # Password Recovery

func TestForgotPassword_UnknownEmailSilent(t *testing.T) {
	f := newServiceFixture(t)

	err := f.service.ForgotPassword(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Empty(t, f.notifier.messages)
}

func TestResetPassword_LinkFlow(t *testing.T) {
	f := newServiceFixture(t)
	registered := f.register(t, "a@test.com", "old-password-123")

	require.NoError(t, f.service.ForgotPassword(context.Background(), "a@test.com"))
	resetToken := tokenPattern.FindString(f.notifier.last(t).Body)
	require.NotEmpty(t, resetToken)

	require.NoError(t, f.service.ResetPassword(context.Background(), resetToken, "new-password-456"))

	// Old credential is dead, new one works, live sessions are ended.
	_, err := f.service.Login(context.Background(), LoginInput{Email: "a@test.com", Password: "old-password-123"})
	assertCode(t, err, "UNAUTHORIZED")

	_, err = f.service.Login(context.Background(), LoginInput{Email: "a@test.com", Password: "new-password-456"})
	require.NoError(t, err)

	_, err = f.service.Refresh(context.Background(), registered.Tokens.RefreshToken)
	assertCode(t, err, "UNAUTHORIZED")
}

func TestResetPassword_TokenSingleUse(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "a@test.com", "old-password-123")

	require.NoError(t, f.service.ForgotPassword(context.Background(), "a@test.com"))
	resetToken := tokenPattern.FindString(f.notifier.last(t).Body)

	require.NoError(t, f.service.ResetPassword(context.Background(), resetToken, "new-password-456"))

	err := f.service.ResetPassword(context.Background(), resetToken, "sneaky-password-789")
	assertCode(t, err, "BAD_REQUEST")
}

func TestResetPassword_OTPChain(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "a@test.com", "old-password-123")

	require.NoError(t, f.service.SendPasswordResetOTP(context.Background(), "a@test.com"))
	code := otpPattern.FindString(f.notifier.last(t).Body)
	require.Len(t, code, 6)

	resetToken, err := f.service.VerifyPasswordResetOTP(context.Background(), "a@test.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)

	// The OTP is gone: the upgrade replaced it with the opaque token.
	_, err = f.service.VerifyPasswordResetOTP(context.Background(), "a@test.com", code)
	assertCode(t, err, "UNAUTHORIZED")

	require.NoError(t, f.service.ResetPassword(context.Background(), resetToken, "new-password-456"))

	_, err = f.service.Login(context.Background(), LoginInput{Email: "a@test.com", Password: "new-password-456"})
	require.NoError(t, err)

	_, err = f.service.Login(context.Background(), LoginInput{Email: "a@test.com", Password: "old-password-123"})
	assertCode(t, err, "UNAUTHORIZED")
}

func TestVerifyPasswordResetOTP_WrongCode(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "a@test.com", "old-password-123")

	require.NoError(t, f.service.SendPasswordResetOTP(context.Background(), "a@test.com"))
	code := otpPattern.FindString(f.notifier.last(t).Body)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, err := f.service.VerifyPasswordResetOTP(context.Background(), "a@test.com", wrong)
	assertCode(t, err, "UNAUTHORIZED")

	// A wrong guess does not consume the challenge.
	_, err = f.service.VerifyPasswordResetOTP(context.Background(), "a@test.com", code)
	require.NoError(t, err)
}

// # Email Verification

func TestVerifyEmail_Flow(t *testing.T) {
	f := newServiceFixture(t)
	session := f.register(t, "a@test.com", "strong-password-1")

	verifyToken := tokenPattern.FindString(f.notifier.last(t).Body)
	require.NotEmpty(t, verifyToken)

	require.NoError(t, f.service.VerifyEmail(context.Background(), verifyToken))

	stored, err := f.users.FindByID(context.Background(), session.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.False(t, stored.Verify.IsSet())

	// Single use.
	err = f.service.VerifyEmail(context.Background(), verifyToken)
	assertCode(t, err, "BAD_REQUEST")
}

// # Versioned Writes

func TestUpdateWithRetry_RecoversFromOneConflict(t *testing.T) {
	f := newServiceFixture(t)
	session := f.register(t, "a@test.com", "strong-password-1")

	// Simulate a concurrent writer racing the first attempt: the mutation
	// below bumps the stored version out from under the caller once.
	raced := false
	_, err := f.service.updateWithRetry(context.Background(), session.User.ID, func(u *User) error {
		if !raced {
			raced = true
			f.users.mu.Lock()
			f.users.users[u.ID].Version++
			f.users.mu.Unlock()
		}
		u.EmailVerified = true
		return nil
	})
	require.NoError(t, err)

	stored, err := f.users.FindByID(context.Background(), session.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
}
