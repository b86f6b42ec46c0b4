// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

// Package pointer provides generic helpers for creating and dereferencing
// pointers, avoiding boilerplate around optional struct fields.
package pointer

// To returns a pointer to the provided value. Useful for optional fields
// such as nullable timestamps (e.g. pointer.To(time.Now())).
func To[T any](v T) *T {
	return &v
}

// Val safely dereferences a pointer.
// If the pointer is nil, it returns the zero value of the underlying type.
func Val[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
