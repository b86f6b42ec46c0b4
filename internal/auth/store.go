// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package auth

import (
	"context"
	"errors"
	"time"
)

// ErrVersionConflict is returned by [UserRepository.UpdateCredentials] when
// the principal's record was mutated between the read and the write. The
// caller reloads the record and retries the mutation.
var ErrVersionConflict = errors.New("auth: stale credential write")

// # Principal Data Access

// UserRepository defines the data access contract for principal records.
//
// Every query excludes soft-deleted rows explicitly; there is no implicit
// hook layer in front of the storage.
type UserRepository interface {
	// FindByID returns the principal with the given ID.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByEmail returns the principal with the given email address.
	// Lookup is case-insensitive (emails are stored lowercased).
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByResetTokenHash returns the principal holding the given
	// password-reset challenge digest.
	FindByResetTokenHash(ctx context.Context, hash string) (*User, error)

	// FindByVerifyTokenHash returns the principal holding the given
	// email-verification challenge digest.
	FindByVerifyTokenHash(ctx context.Context, hash string) (*User, error)

	// Create persists a brand-new principal.
	Create(ctx context.Context, user *User) error

	// UpdateCredentials persists the mutable credential surface of the
	// aggregate (password hash, challenge fields, refresh-token set,
	// flags, last-login) in a single write, guarded by the record's
	// version. On success the in-memory Version is bumped to match the
	// stored one; on a lost race it returns [ErrVersionConflict] and the
	// record is left untouched.
	UpdateCredentials(ctx context.Context, user *User) error
}

// # Revocation Cache

// RevocationStore records access tokens invalidated before their natural
// expiry. It is the one store shared across API instances: every
// authenticated request must consult it before trusting a syntactically
// valid token.
type RevocationStore interface {
	// Revoke marks a token as dead for the given TTL (the token's own
	// remaining lifetime). Entries disappear on their own once the token
	// would have expired anyway.
	Revoke(ctx context.Context, token string, ttl time.Duration) error

	// IsRevoked reports whether a token has been blacklisted.
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// # Outbound Notification

// Notifier delivers a transactional message (OTP code, reset link,
// verification link) to an email address.
//
// Delivery is best-effort from the orchestrator's point of view: a send
// failure never fails the flow that issued the challenge.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}
