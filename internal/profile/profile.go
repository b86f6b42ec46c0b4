// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

/*
Package profile manages the role-specific profile records attached to
Campora principals (students, faculty, administrative staff).

It is a collaborator of the identity core, not part of it: the auth layer
creates and reads profiles exclusively through the narrow
[auth.ProfileDirectory] contract implemented by [Service].
*/
package profile

import (
	"time"

	"github.com/camporahq/campora/internal/platform/sec"
)

// Profile is one principal's role-specific record.
type Profile struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	Role       sec.UserRole `json:"role"`
	FirstName  string       `json:"first_name"`
	LastName   string       `json:"last_name"`
	Phone      string       `json:"phone,omitempty"`
	Department string       `json:"department,omitempty"`

	// Program and Year are populated for STUDENT profiles only.
	Program string `json:"program,omitempty"`
	Year    int    `json:"year,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
