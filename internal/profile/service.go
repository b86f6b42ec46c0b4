// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package profile

import (
	"context"

	"github.com/camporahq/campora/internal/auth"
	"github.com/camporahq/campora/internal/platform/sec"
	"github.com/camporahq/campora/pkg/uuidv7"
)

// Repository defines the data access contract for profile records.
type Repository interface {
	Create(ctx context.Context, profile *Profile) error
	FindByUserID(ctx context.Context, userID string) (*Profile, error)
}

// Service exposes profile operations to the rest of the platform and
// satisfies [auth.ProfileDirectory].
type Service struct {
	profiles Repository
}

// NewService wires the profile service.
func NewService(profiles Repository) *Service {
	return &Service{profiles: profiles}
}

// CreateForUser attaches a role-specific profile to a freshly registered
// principal.
func (s *Service) CreateForUser(ctx context.Context, userID string, role sec.UserRole, input auth.ProfileInput) error {
	record := &Profile{
		ID:         uuidv7.New(),
		UserID:     userID,
		Role:       role,
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Phone:      input.Phone,
		Department: input.Department,
	}

	// Program fields only make sense on student records; anything the
	// client sent for other roles is dropped here.
	if role == sec.RoleStudent {
		record.Program = input.Program
		record.Year = input.Year
	}

	return s.profiles.Create(ctx, record)
}

// SummaryByUserID projects a principal's profile into the read shape the
// identity core embeds in its current-user response.
func (s *Service) SummaryByUserID(ctx context.Context, userID string) (*auth.ProfileSummary, error) {
	record, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &auth.ProfileSummary{
		FirstName:  record.FirstName,
		LastName:   record.LastName,
		Phone:      record.Phone,
		Department: record.Department,
		Program:    record.Program,
		Year:       record.Year,
	}, nil
}
