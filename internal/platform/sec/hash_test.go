// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camporahq/campora/internal/platform/sec"
)

/*
TestHashPassword_RoundTrip verifies bcrypt hashing and comparison.
*/
func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := sec.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, sec.CheckPasswordHash("correct horse battery staple", hash))
	assert.False(t, sec.CheckPasswordHash("wrong password", hash))
	assert.False(t, sec.CheckPasswordHash("", hash))
}

/*
TestHashChallenge_Deterministic verifies digest stability and comparison.
*/
func TestHashChallenge_Deterministic(t *testing.T) {
	digest := sec.HashChallenge("483921")

	assert.Equal(t, digest, sec.HashChallenge("483921"))
	assert.NotEqual(t, digest, sec.HashChallenge("483922"))
	assert.Len(t, digest, 64) // hex-encoded SHA-256

	assert.True(t, sec.CompareChallenge("483921", digest))
	assert.False(t, sec.CompareChallenge("000000", digest))
}

/*
TestGenerateSecureToken checks length and uniqueness of random tokens.
*/
func TestGenerateSecureToken(t *testing.T) {
	first, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)
	assert.Len(t, first, 64) // hex doubles the byte length

	second, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

/*
TestGenerateNumericCode checks shape and distribution sanity of OTP codes.
*/
func TestGenerateNumericCode(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		code, err := sec.GenerateNumericCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)

		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "non-digit in code %q", code)
		}
		seen[code] = true
	}

	// 50 draws from a million-value space colliding down to a handful
	// would point at broken randomness.
	assert.Greater(t, len(seen), 45)
}
