// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camporahq/campora/internal/platform/apperr"
	"github.com/camporahq/campora/internal/platform/dberr"
)

// PostgresRepository implements [Repository] on the users.profile table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL implementation of [Repository].
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists a new profile record.
func (repository *PostgresRepository) Create(ctx context.Context, profile *Profile) error {
	const query = `
		INSERT INTO users.profile (
			id, userid, role, firstname, lastname, phone, department, program, year, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err := repository.pool.Exec(ctx, query,
		profile.ID,
		profile.UserID,
		profile.Role,
		profile.FirstName,
		profile.LastName,
		profile.Phone,
		profile.Department,
		profile.Program,
		profile.Year,
		profile.CreatedAt,
		profile.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "Profile")
	}

	return nil
}

// FindByUserID retrieves the profile attached to a principal, excluding
// soft-deleted rows.
func (repository *PostgresRepository) FindByUserID(ctx context.Context, userID string) (*Profile, error) {
	const query = `
		SELECT id, userid, role, firstname, lastname, phone, department, program, year, createdat, updatedat
		FROM users.profile
		WHERE userid = $1 AND deletedat IS NULL`

	profile := &Profile{}
	err := repository.pool.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Role,
		&profile.FirstName,
		&profile.LastName,
		&profile.Phone,
		&profile.Department,
		&profile.Program,
		&profile.Year,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Profile")
		}
		return nil, fmt.Errorf("postgres_profile_repo_find_failed: %w", err)
	}

	return profile, nil
}
