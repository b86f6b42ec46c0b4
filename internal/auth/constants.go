// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package auth

import "time"

// # Authentication Constraints

const (
	// RefreshTokenCapacity bounds the per-user refresh-token set. The 6th
	// concurrent session evicts the oldest entry (FIFO, not LRU).
	RefreshTokenCapacity = 5

	// OTPLength is the digit count of one-time codes.
	OTPLength = 6

	// OTPTTL is the lifetime of a one-time code, for both login and
	// password-reset purposes.
	OTPTTL = 10 * time.Minute

	// ResetTokenTTL is the lifetime of a reset token issued directly by
	// the forgot-password link flow.
	ResetTokenTTL = 1 * time.Hour

	// ResetTokenOTPTTL is the lifetime of a reset token produced by a
	// verified reset OTP. Shorter than the link flow because the caller
	// is expected to use it immediately.
	ResetTokenOTPTTL = 30 * time.Minute

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32

	// VerificationTokenTTL is the lifetime of an email verification token.
	// Long-lived (24 hours) as users might not check email immediately.
	VerificationTokenTTL = 24 * time.Hour

	// VerificationTokenLength is the byte length of the random verification token.
	VerificationTokenLength = 32

	// minRevocableTTL is the smallest remaining access-token lifetime
	// still worth a blacklist entry. Anything below is already dead.
	minRevocableTTL = 1 * time.Second

	// casRetryLimit bounds retries of versioned credential writes that
	// lose a race against a concurrent mutation of the same principal.
	casRetryLimit = 3
)
