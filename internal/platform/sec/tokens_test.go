// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package sec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camporahq/campora/internal/platform/sec"
)

const (
	testIssuer   = "campora.io"
	testAudience = "campora-api"
)

var (
	testAccessSecret  = []byte("test-access-secret-0123456789abcdef")
	testRefreshSecret = []byte("test-refresh-secret-0123456789abcdef")
)

func newTestTokenService(t *testing.T, accessTTL, refreshTTL time.Duration) *sec.TokenService {
	t.Helper()

	service, err := sec.NewTokenService(
		testAccessSecret, testRefreshSecret,
		testIssuer, testAudience,
		accessTTL, refreshTTL,
	)
	require.NoError(t, err)
	return service
}

/*
TestTokenService_IssueAndVerify checks the round trip for both token classes.
*/
func TestTokenService_IssueAndVerify(t *testing.T) {
	service := newTestTokenService(t, 15*time.Minute, 7*24*time.Hour)

	accessToken, err := service.IssueAccessToken("user-1", "a@campora.io", "STUDENT")
	require.NoError(t, err)

	refreshToken, err := service.IssueRefreshToken("user-1", "a@campora.io", "STUDENT")
	require.NoError(t, err)

	accessClaims, err := service.VerifyAccessToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", accessClaims.Subject)
	assert.Equal(t, "a@campora.io", accessClaims.Email)
	assert.Equal(t, "STUDENT", accessClaims.Role)
	assert.Equal(t, testIssuer, accessClaims.Issuer)

	refreshClaims, err := service.VerifyRefreshToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refreshClaims.Subject)
}

/*
TestTokenService_SecretSeparation asserts that an access secret can never
validate a refresh token and vice versa.
*/
func TestTokenService_SecretSeparation(t *testing.T) {
	service := newTestTokenService(t, 15*time.Minute, 7*24*time.Hour)

	accessToken, err := service.IssueAccessToken("user-1", "a@campora.io", "STUDENT")
	require.NoError(t, err)

	refreshToken, err := service.IssueRefreshToken("user-1", "a@campora.io", "STUDENT")
	require.NoError(t, err)

	_, err = service.VerifyRefreshToken(accessToken)
	assert.ErrorIs(t, err, sec.ErrTokenInvalid)

	_, err = service.VerifyAccessToken(refreshToken)
	assert.ErrorIs(t, err, sec.ErrTokenInvalid)
}

/*
TestTokenService_ExpiredToken asserts that expiry is surfaced as its own
error value, distinct from the generic invalid case.
*/
func TestTokenService_ExpiredToken(t *testing.T) {
	service := newTestTokenService(t, time.Nanosecond, time.Nanosecond)

	accessToken, err := service.IssueAccessToken("user-1", "a@campora.io", "STUDENT")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = service.VerifyAccessToken(accessToken)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
	assert.NotErrorIs(t, err, sec.ErrTokenInvalid)
}

/*
TestTokenService_RejectsForeignTokens covers malformed input, wrong signing
secrets, and wrong issuer/audience claims.
*/
func TestTokenService_RejectsForeignTokens(t *testing.T) {
	service := newTestTokenService(t, 15*time.Minute, 7*24*time.Hour)

	t.Run("malformed", func(t *testing.T) {
		_, err := service.VerifyAccessToken("not-a-jwt")
		assert.ErrorIs(t, err, sec.ErrTokenInvalid)
	})

	t.Run("wrong_secret", func(t *testing.T) {
		foreign, err := sec.NewTokenService(
			[]byte("another-access-secret-0123456789"), []byte("another-refresh-secret-012345678"),
			testIssuer, testAudience,
			15*time.Minute, 7*24*time.Hour,
		)
		require.NoError(t, err)

		token, err := foreign.IssueAccessToken("user-1", "a@campora.io", "STUDENT")
		require.NoError(t, err)

		_, err = service.VerifyAccessToken(token)
		assert.ErrorIs(t, err, sec.ErrTokenInvalid)
	})

	t.Run("wrong_issuer", func(t *testing.T) {
		foreign, err := sec.NewTokenService(
			testAccessSecret, testRefreshSecret,
			"someone-else.example", testAudience,
			15*time.Minute, 7*24*time.Hour,
		)
		require.NoError(t, err)

		token, err := foreign.IssueAccessToken("user-1", "a@campora.io", "STUDENT")
		require.NoError(t, err)

		_, err = service.VerifyAccessToken(token)
		assert.ErrorIs(t, err, sec.ErrTokenInvalid)
	})

	t.Run("wrong_audience", func(t *testing.T) {
		foreign, err := sec.NewTokenService(
			testAccessSecret, testRefreshSecret,
			testIssuer, "some-other-api",
			15*time.Minute, 7*24*time.Hour,
		)
		require.NoError(t, err)

		token, err := foreign.IssueAccessToken("user-1", "a@campora.io", "STUDENT")
		require.NoError(t, err)

		_, err = service.VerifyAccessToken(token)
		assert.ErrorIs(t, err, sec.ErrTokenInvalid)
	})
}

/*
TestTokenService_DecodeUnsafe checks that claims are extractable without
verification, including from tokens with unknown signatures.
*/
func TestTokenService_DecodeUnsafe(t *testing.T) {
	service := newTestTokenService(t, 15*time.Minute, 7*24*time.Hour)

	token, err := service.IssueAccessToken("user-1", "a@campora.io", "ADMIN")
	require.NoError(t, err)

	claims, err := service.DecodeUnsafe(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "ADMIN", claims.Role)

	_, err = service.DecodeUnsafe("garbage")
	assert.ErrorIs(t, err, sec.ErrTokenInvalid)
}

/*
TestAuthClaims_RemainingTTL checks the clamp at zero for past expiries.
*/
func TestAuthClaims_RemainingTTL(t *testing.T) {
	service := newTestTokenService(t, 15*time.Minute, 7*24*time.Hour)

	token, err := service.IssueAccessToken("user-1", "a@campora.io", "STUDENT")
	require.NoError(t, err)

	claims, err := service.DecodeUnsafe(token)
	require.NoError(t, err)

	remaining := claims.RemainingTTL(time.Now())
	assert.Greater(t, remaining, 14*time.Minute)
	assert.LessOrEqual(t, remaining, 15*time.Minute)

	assert.Equal(t, time.Duration(0), claims.RemainingTTL(time.Now().Add(time.Hour)))

	var empty sec.AuthClaims
	assert.Equal(t, time.Duration(0), empty.RemainingTTL(time.Now()))
}

/*
TestNewTokenService_Validation checks constructor guard rails.
*/
func TestNewTokenService_Validation(t *testing.T) {
	_, err := sec.NewTokenService(nil, testRefreshSecret, testIssuer, testAudience, time.Minute, time.Hour)
	assert.Error(t, err)

	_, err = sec.NewTokenService(testAccessSecret, testRefreshSecret, testIssuer, testAudience, 0, time.Hour)
	assert.Error(t, err)
}
