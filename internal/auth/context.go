// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package auth

import (
	"context"

	"github.com/camporahq/campora/internal/platform/apperr"
	"github.com/camporahq/campora/internal/platform/ctxkey"
)

// WithPrincipal stores the authenticated principal on the context.
func WithPrincipal(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, ctxkey.KeyPrincipal, user)
}

// PrincipalFrom extracts the authenticated principal from the context, if
// one was set by the authentication middleware.
func PrincipalFrom(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(ctxkey.KeyPrincipal).(*User)
	return user, ok
}

// RequirePrincipal extracts the authenticated principal or returns an
// unauthorized error. Handlers behind the guard use this instead of
// re-checking middleware wiring by hand.
func RequirePrincipal(ctx context.Context) (*User, error) {
	user, ok := PrincipalFrom(ctx)
	if !ok || user == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	return user, nil
}

// WithAccessToken stores the raw bearer token on the context so that
// logout can blacklist the exact credential that authenticated the call.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyAccessToken, token)
}

// AccessTokenFrom extracts the raw bearer token from the context.
func AccessTokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ctxkey.KeyAccessToken).(string)
	return token, ok
}
