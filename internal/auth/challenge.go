// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package auth

import (
	"errors"
	"time"

	"github.com/camporahq/campora/internal/platform/sec"
)

// Challenge verification failures. The orchestrator maps these onto API
// errors; expired is surfaced distinctly so a client can offer a re-send
// instead of a blind retry.
var (
	errChallengeInvalid = errors.New("auth: challenge missing or mismatched")
	errChallengeExpired = errors.New("auth: challenge expired")
)

// newOTPChallenge mints a numeric one-time code and its stored form.
// The plaintext code goes to the notifier; only the digest is persisted.
func newOTPChallenge(now time.Time, ttl time.Duration) (string, Challenge, error) {
	code, err := sec.GenerateNumericCode(OTPLength)
	if err != nil {
		return "", Challenge{}, err
	}

	return code, Challenge{
		Hash:      sec.HashChallenge(code),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// newTokenChallenge mints a random opaque token (reset or verification)
// and its stored form.
func newTokenChallenge(byteLength int, now time.Time, ttl time.Duration) (string, Challenge, error) {
	token, err := sec.GenerateSecureToken(byteLength)
	if err != nil {
		return "", Challenge{}, err
	}

	return token, Challenge{
		Hash:      sec.HashChallenge(token),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// checkChallenge validates a presented secret against the stored challenge.
// Order matters: absence and mismatch collapse into one error, expiry is
// reported separately, and the expiry comparison is strict (a secret
// presented at the exact expiry instant is still valid).
func checkChallenge(c Challenge, presented string, now time.Time) error {
	if !c.IsSet() {
		return errChallengeInvalid
	}
	if c.IsExpired(now) {
		return errChallengeExpired
	}
	if !sec.CompareChallenge(presented, c.Hash) {
		return errChallengeInvalid
	}
	return nil
}
