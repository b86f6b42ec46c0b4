// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camporahq/campora/internal/platform/apperr"
	"github.com/camporahq/campora/internal/platform/dberr"
)

// # Postgres User Repository

// PostgresUserRepository implements [UserRepository] on the users.account
// table using pgx.
//
// # Storage Layout
//
// The aggregate maps onto a single row: challenge slots are nullable
// hash+expiry column pairs, the refresh-token set is a JSONB array, and
// the version column guards every credential write. Soft deletion is an
// explicit "deletedat IS NULL" predicate on every query, never an implicit
// filter layer.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of [UserRepository].
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// userColumns is the shared projection for every principal lookup.
const userColumns = `
	id, email, passwordhash, role, isactive, emailverified, lastloginat,
	otphash, otpexpiresat,
	resettokenhash, resetexpiresat,
	verifytokenhash, verifyexpiresat,
	refreshtokens, version, createdat, updatedat`

/*
Create persists a new principal into the users.account table.

Parameters:
  - ctx: context.Context
  - user: *User (Entity to persist; version starts at 0)

Returns:
  - error: apperr.Conflict on a duplicate email, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, email, passwordhash, role, isactive, emailverified,
			otphash, otpexpiresat,
			resettokenhash, resetexpiresat,
			verifytokenhash, verifyexpiresat,
			refreshtokens, version, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	tokens, err := json.Marshal(user.RefreshTokens)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_create_encode_failed: %w", err)
	}

	_, err = repository.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.EmailVerified,
		nullString(user.OTP.Hash),
		nullTime(user.OTP.ExpiresAt),
		nullString(user.Reset.Hash),
		nullTime(user.Reset.ExpiresAt),
		nullString(user.Verify.Hash),
		nullTime(user.Verify.ExpiresAt),
		tokens,
		user.Version,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "User")
	}

	return nil
}

/*
FindByID retrieves a principal by primary key, excluding soft-deleted rows.

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE id = $1 AND deletedat IS NULL`

	return repository.scanUser(repository.pool.QueryRow(ctx, query, id))
}

/*
FindByEmail retrieves a principal by unique email, excluding soft-deleted rows.

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE email = $1 AND deletedat IS NULL`

	return repository.scanUser(repository.pool.QueryRow(ctx, query, email))
}

// FindByResetTokenHash retrieves the principal holding the given
// password-reset challenge digest.
func (repository *PostgresUserRepository) FindByResetTokenHash(ctx context.Context, hash string) (*User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE resettokenhash = $1 AND deletedat IS NULL`

	return repository.scanUser(repository.pool.QueryRow(ctx, query, hash))
}

// FindByVerifyTokenHash retrieves the principal holding the given
// email-verification challenge digest.
func (repository *PostgresUserRepository) FindByVerifyTokenHash(ctx context.Context, hash string) (*User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE verifytokenhash = $1 AND deletedat IS NULL`

	return repository.scanUser(repository.pool.QueryRow(ctx, query, hash))
}

/*
UpdateCredentials persists the mutable credential surface in one guarded write.

Description: The WHERE clause pins the version read by the caller; zero rows
affected means a concurrent writer got there first and the caller must
reload and retry. On success the in-memory version is advanced to match
the stored row.

Returns:
  - error: [ErrVersionConflict] on a lost race, or database errors
*/
func (repository *PostgresUserRepository) UpdateCredentials(ctx context.Context, user *User) error {
	const query = `
		UPDATE users.account SET
			passwordhash = $2,
			isactive = $3,
			emailverified = $4,
			lastloginat = $5,
			otphash = $6, otpexpiresat = $7,
			resettokenhash = $8, resetexpiresat = $9,
			verifytokenhash = $10, verifyexpiresat = $11,
			refreshtokens = $12,
			version = version + 1,
			updatedat = $13
		WHERE id = $1 AND version = $14 AND deletedat IS NULL`

	tokens, err := json.Marshal(user.RefreshTokens)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_encode_failed: %w", err)
	}

	now := time.Now()

	tag, err := repository.pool.Exec(ctx, query,
		user.ID,
		user.PasswordHash,
		user.IsActive,
		user.EmailVerified,
		user.LastLoginAt,
		nullString(user.OTP.Hash),
		nullTime(user.OTP.ExpiresAt),
		nullString(user.Reset.Hash),
		nullTime(user.Reset.ExpiresAt),
		nullString(user.Verify.Hash),
		nullTime(user.Verify.ExpiresAt),
		tokens,
		now,
		user.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	user.Version++
	user.UpdatedAt = now
	return nil
}

// scanUser hydrates a principal from the shared column projection.
func (repository *PostgresUserRepository) scanUser(row pgx.Row) (*User, error) {
	user := &User{}

	var (
		otpHash, resetHash, verifyHash          *string
		otpExpires, resetExpires, verifyExpires *time.Time
		tokens                                  []byte
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.EmailVerified,
		&user.LastLoginAt,
		&otpHash, &otpExpires,
		&resetHash, &resetExpires,
		&verifyHash, &verifyExpires,
		&tokens,
		&user.Version,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_scan_failed: %w", err)
	}

	user.OTP = challengeFromColumns(otpHash, otpExpires)
	user.Reset = challengeFromColumns(resetHash, resetExpires)
	user.Verify = challengeFromColumns(verifyHash, verifyExpires)

	if len(tokens) > 0 {
		if err := json.Unmarshal(tokens, &user.RefreshTokens); err != nil {
			return nil, fmt.Errorf("postgres_user_repo_decode_tokens_failed: %w", err)
		}
	}

	return user, nil
}

// # Column Mapping Helpers

func challengeFromColumns(hash *string, expiresAt *time.Time) Challenge {
	if hash == nil || *hash == "" {
		return Challenge{}
	}

	challenge := Challenge{Hash: *hash}
	if expiresAt != nil {
		challenge.ExpiresAt = *expiresAt
	}
	return challenge
}

// nullString maps an empty challenge hash to SQL NULL.
func nullString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// nullTime maps a zero expiry to SQL NULL.
func nullTime(value time.Time) *time.Time {
	if value.IsZero() {
		return nil
	}
	return &value
}
