// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

/*
Package auth implements the identity and session lifecycle core of Campora.

It owns the principal aggregate (account, credential, and challenge state),
the session orchestrator (registration, password and OTP login, token
rotation, logout, recovery flows), and the authorization middleware that
gates every protected request.

# Architecture

This layer is the "Truth" of the system. All credential and challenge
mutations flow through [Service] and are persisted with a versioned-write
discipline so concurrent operations on the same principal cannot silently
clobber each other.
*/
package auth

import (
	"time"

	"github.com/camporahq/campora/internal/platform/sec"
)

// # Domain Entities

// User represents a principal of the Campora platform: the single aggregate
// holding identity, credential, and challenge state.
type User struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	PasswordHash  string       `json:"-"` // Explicitly omitted from JSON for security.
	Role          sec.UserRole `json:"role"`
	IsActive      bool         `json:"is_active"`
	EmailVerified bool         `json:"email_verified"`
	LastLoginAt   *time.Time   `json:"last_login_at,omitempty"`

	// OTP is the outstanding one-time-code challenge (login or reset
	// purpose; a single slot, so issuing a new code silently cancels the
	// previous one).
	OTP Challenge `json:"-"`

	// Reset is the outstanding password-reset challenge, produced either
	// by the forgot-password link flow or as the upgrade product of a
	// verified reset OTP.
	Reset Challenge `json:"-"`

	// Verify is the outstanding email-verification challenge.
	Verify Challenge `json:"-"`

	// RefreshTokens is the bounded, ordered set of live refresh tokens.
	// Oldest first; insertion beyond capacity evicts the head (FIFO).
	RefreshTokens []RefreshTokenEntry `json:"-"`

	// Version guards credential writes: every persisted mutation must
	// carry the version it read, and bumps it by one.
	Version int64 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshTokenEntry is one live refresh token held by a principal.
//
// The token value is the full signed JWT; the business logic treats it as an
// opaque string and compares it literally on rotation.
type RefreshTokenEntry struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Challenge is a single-use, hashed, expiring secret: an OTP code, a reset
// token, or a verification token. The zero value means "no challenge
// outstanding".
type Challenge struct {
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsSet reports whether a challenge is outstanding.
func (c Challenge) IsSet() bool {
	return c.Hash != ""
}

// IsExpired reports whether the challenge has passed its expiry instant.
//
// The comparison is strictly greater-than: a verification at the exact
// expiry instant still succeeds.
func (c Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Clear removes the challenge. Consumption must happen in the same
// persistence write as the action the challenge authorizes.
func (c *Challenge) Clear() {
	c.Hash = ""
	c.ExpiresAt = time.Time{}
}

// # Refresh Token Set

// AppendRefreshToken adds a token entry to the bounded set, evicting the
// oldest entries once the capacity is exceeded.
func (u *User) AppendRefreshToken(entry RefreshTokenEntry) {
	u.RefreshTokens = append(u.RefreshTokens, entry)

	if overflow := len(u.RefreshTokens) - RefreshTokenCapacity; overflow > 0 {
		u.RefreshTokens = u.RefreshTokens[overflow:]
	}
}

// RemoveRefreshToken deletes the entry holding the given token value.
// It reports whether the token was present.
func (u *User) RemoveRefreshToken(token string) bool {
	for i, entry := range u.RefreshTokens {
		if entry.Token == token {
			u.RefreshTokens = append(u.RefreshTokens[:i], u.RefreshTokens[i+1:]...)
			return true
		}
	}
	return false
}

// HasRefreshToken reports whether the given token value is in the stored set.
func (u *User) HasRefreshToken(token string) bool {
	for _, entry := range u.RefreshTokens {
		if entry.Token == token {
			return true
		}
	}
	return false
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldNewPassword  = "new_password"
	FieldRole         = "role"
	FieldToken        = "token"
	FieldCode         = "code"
	FieldRefreshToken = "refresh_token"
	FieldAccessToken  = "access_token"
	FieldTokenType    = "token_type"
	FieldExpiresIn    = "expires_in"
	FieldUser         = "user"
	FieldResetToken   = "reset_token"
)
