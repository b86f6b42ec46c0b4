// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// # Password Hashing

// HashPassword hashes a plain-text password using the bcrypt algorithm.
//
// Default cost is used for balance between security and CPU utilization
// during registration spikes (roughly 100ms per verify on current hardware).
func HashPassword(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// # Challenge Digests

// HashChallenge produces a one-way digest of an OTP code or reset token.
//
// # Why not bcrypt?
//
// Challenge codes are short-lived, rate-limited, random values — not
// long-term secrets. A fast SHA-256 digest is sufficient here, and keeps
// the per-request verification path cheap.
func HashChallenge(code string) string {
	digest := sha256.Sum256([]byte(code))
	return hex.EncodeToString(digest[:])
}

// CompareChallenge reports whether the given code matches a stored digest
// using a constant-time comparison.
func CompareChallenge(code, digest string) bool {
	computed := HashChallenge(code)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// # Random Material

// GenerateSecureToken returns a hex-encoded, cryptographically random token.
//
// # Parameters
//   - byteLength: Number of random bytes; the hex string is twice as long.
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// GenerateNumericCode returns a uniformly random numeric code of the given
// length, suitable for OTP challenges.
//
// rand.Int with a base-10 bound avoids the modulo bias a naive byte-mod
// approach would introduce.
func GenerateNumericCode(length int) (string, error) {
	const digits = "0123456789"

	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", fmt.Errorf("sec: failed to generate numeric code: %w", err)
		}
		code[i] = digits[n.Int64()]
	}

	return string(code), nil
}
