// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/camporahq/campora/internal/platform/apperr"
	"github.com/camporahq/campora/internal/platform/constants"
	requestutil "github.com/camporahq/campora/internal/platform/request"
	"github.com/camporahq/campora/internal/platform/respond"
	"github.com/camporahq/campora/internal/platform/sec"
)

// Guard is the per-request authentication and authorization gate.
//
// Order of checks is deliberate: revocation first (the cheapest definitive
// "no"), then signature verification, then principal load with the
// active-account check. A syntactically valid token is never trusted before
// the revocation cache has been consulted.
type Guard struct {
	users       UserRepository
	revocations RevocationStore
	tokens      *sec.TokenService
}

// NewGuard wires the authorization middleware.
func NewGuard(users UserRepository, revocations RevocationStore, tokens *sec.TokenService) *Guard {
	return &Guard{users: users, revocations: revocations, tokens: tokens}
}

// Authenticate validates the bearer token and attaches the principal and
// the raw token to the request context.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		token, err := bearerToken(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		revoked, err := g.revocations.IsRevoked(request.Context(), token)
		if err != nil {
			respond.Error(writer, request, apperr.Internal(err))
			return
		}
		if revoked {
			respond.Error(writer, request, apperr.Unauthorized("Token has been revoked"))
			return
		}

		claims, err := g.tokens.VerifyAccessToken(token)
		if err != nil {
			if errors.Is(err, sec.ErrTokenExpired) {
				respond.Error(writer, request, apperr.Unauthorized("Token has expired"))
				return
			}
			respond.Error(writer, request, apperr.Unauthorized("Invalid token"))
			return
		}

		// Claims are hints; the stored record is the source of truth for
		// existence, role, and the active flag.
		user, err := g.users.FindByID(request.Context(), claims.Subject)
		if err != nil {
			respond.Error(writer, request, apperr.Unauthorized("Invalid token"))
			return
		}
		if !user.IsActive {
			respond.Error(writer, request, apperr.Unauthorized("Account is deactivated"))
			return
		}

		ctx := WithPrincipal(request.Context(), user)
		ctx = WithAccessToken(ctx, token)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// RequireRole allows only principals holding one of the given roles.
// Must be mounted after [Guard.Authenticate].
func (g *Guard) RequireRole(roles ...sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			user, err := RequirePrincipal(request.Context())
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(writer, request)
					return
				}
			}

			respond.Error(writer, request, apperr.Forbidden("Insufficient role"))
		})
	}
}

// RequirePermission allows only principals whose role grants the given
// permission. SUPER_ADMIN always passes.
func (g *Guard) RequirePermission(permission sec.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			user, err := RequirePrincipal(request.Context())
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			if !user.Role.HasPermission(permission) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// RequireOwner allows the principal through only when the named URL
// parameter equals its own ID. Admin roles bypass the ownership check.
func (g *Guard) RequireOwner(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			user, err := RequirePrincipal(request.Context())
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			if user.Role == sec.RoleSuperAdmin || user.Role == sec.RoleAdmin {
				next.ServeHTTP(writer, request)
				return
			}

			if requestutil.Param(request, param) != user.ID {
				respond.Error(writer, request, apperr.Forbidden("Access restricted to the resource owner"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(request *http.Request) (string, error) {
	header := request.Header.Get(constants.HeaderAuthorization)
	if header == "" {
		return "", apperr.Unauthorized("Authorization header required")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperr.Unauthorized("Invalid authorization header format")
	}

	return token, nil
}
