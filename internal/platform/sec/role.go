// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
//
// The set is closed: role values outside this enum are rejected at
// registration and carry no permissions.
type UserRole string

const (
	// Unrestricted system access; always passes permission checks
	RoleSuperAdmin UserRole = "SUPER_ADMIN"

	// Manages accounts, courses, fee structures, and timetables
	RoleAdmin UserRole = "ADMIN"

	// Teaching staff; manages own courses, grades, and attendance
	RoleFaculty UserRole = "FACULTY"

	// Default role for enrolled students
	RoleStudent UserRole = "STUDENT"
)

// IsValid reports whether the role belongs to the closed enum.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleFaculty, RoleStudent:
		return true
	}
	return false
}

// # Permissions

// Permission names a discrete capability checked by the authorization layer.
type Permission string

const (
	PermStudentsRead  Permission = "students:read"
	PermStudentsWrite Permission = "students:write"
	PermFacultyRead   Permission = "faculty:read"
	PermFacultyWrite  Permission = "faculty:write"
	PermCoursesManage Permission = "courses:manage"
	PermFeesManage    Permission = "fees:manage"
	PermGradesManage  Permission = "grades:manage"
)

// rolePermissions maps each role to its granted capability set.
//
// SUPER_ADMIN is intentionally absent: it bypasses the lookup entirely
// in [UserRole.HasPermission].
var rolePermissions = map[UserRole]map[Permission]bool{
	RoleAdmin: {
		PermStudentsRead:  true,
		PermStudentsWrite: true,
		PermFacultyRead:   true,
		PermFacultyWrite:  true,
		PermCoursesManage: true,
		PermFeesManage:    true,
	},
	RoleFaculty: {
		PermStudentsRead: true,
		PermFacultyRead:  true,
		PermGradesManage: true,
	},
	RoleStudent: {},
}

// HasPermission reports whether the role grants the given capability.
// It is a plain set-membership check; SUPER_ADMIN always passes.
func (r UserRole) HasPermission(permission Permission) bool {
	if r == RoleSuperAdmin {
		return true
	}

	granted, ok := rolePermissions[r]
	if !ok {
		return false
	}
	return granted[permission]
}
