// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via narrow interfaces.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token verification failures are deliberately coarse: callers must be able
// to branch on Expired vs Invalid to produce different user-facing messages,
// but no detail beyond that (signature internals, claim shapes) ever leaves
// this package.
var (
	// ErrTokenExpired is returned when a token's signature is valid but its
	// expiry instant has passed.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenInvalid is returned for every other verification failure:
	// bad signature, malformed token, wrong issuer or audience.
	ErrTokenInvalid = errors.New("sec: token invalid")
)

// AuthClaims represents the payload embedded inside a Campora JWT.
//
// # Why custom claims?
//
// By embedding the Email and Role directly inside the JWT, the authorization
// middleware can perform coarse role checks without a database round trip.
// The principal is still loaded per request to enforce the active-account
// check, so claims are treated as hints, not as the source of truth.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	Email string `json:"eml"`
	Role  string `json:"rol"`
}

// TokenService mints and verifies JWT access and refresh tokens using HS256.
//
// Access and refresh tokens are signed with two separate secrets so that the
// verification paths cannot be confused: an access secret can never validate
// a refresh token and vice versa.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService creates a new TokenService.
//
// # Parameters
//   - accessSecret: HMAC secret for access tokens (>= 32 bytes, validated by config).
//   - refreshSecret: HMAC secret for refresh tokens (>= 32 bytes, must differ).
//   - issuer: The "iss" claim stamped into and required from every token.
//   - audience: The "aud" claim stamped into and required from every token.
//   - accessTTL: Lifetime of minted access tokens.
//   - refreshTTL: Lifetime of minted refresh tokens.
func NewTokenService(accessSecret, refreshSecret []byte, issuer, audience string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, errors.New("sec: signing secrets must not be empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("sec: token lifetimes must be positive")
	}

	return &TokenService{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		audience:      audience,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// AccessTTL returns the configured lifetime of minted access tokens.
func (service *TokenService) AccessTTL() time.Duration { return service.accessTTL }

// RefreshTTL returns the configured lifetime of minted refresh tokens.
func (service *TokenService) RefreshTTL() time.Duration { return service.refreshTTL }

// # Issuance

// IssueAccessToken creates a short-lived signed access token for a user.
func (service *TokenService) IssueAccessToken(userID, email, role string) (string, error) {
	return service.sign(service.accessSecret, userID, email, role, service.accessTTL)
}

// IssueRefreshToken creates a longer-lived signed refresh token for a user.
//
// The signed value is opaque to the session orchestrator: it is persisted by
// value in the principal's bounded refresh-token set and compared literally
// on rotation.
func (service *TokenService) IssueRefreshToken(userID, email, role string) (string, error) {
	return service.sign(service.refreshSecret, userID, email, role, service.refreshTTL)
}

func (service *TokenService) sign(secret []byte, userID, email, role string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti makes every minted token distinct even when two are
			// signed for the same user within the same second. The stored
			// refresh-token set compares token strings literally, so
			// collisions would merge sessions.
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    service.issuer,
			Audience:  jwt.ClaimStrings{service.audience},
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		Email: email,
		Role:  role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// # Verification

// VerifyAccessToken checks the signature and validity of an access token.
//
// # Returns
//   - *AuthClaims on success.
//   - [ErrTokenExpired] when the signature is valid but the token expired.
//   - [ErrTokenInvalid] for everything else.
func (service *TokenService) VerifyAccessToken(tokenString string) (*AuthClaims, error) {
	return service.verify(tokenString, service.accessSecret)
}

// VerifyRefreshToken checks the signature and validity of a refresh token.
func (service *TokenService) VerifyRefreshToken(tokenString string) (*AuthClaims, error) {
	return service.verify(tokenString, service.refreshSecret)
}

func (service *TokenService) verify(tokenString string, secret []byte) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&AuthClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithIssuer(service.issuer),
		jwt.WithAudience(service.audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		// Expiry is the one failure callers are allowed to distinguish.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// DecodeUnsafe extracts claims WITHOUT verifying the signature or validity.
//
// # Safety
//
// The only legitimate caller is the logout path, which needs the expiry
// claim of an already-presented access token to compute the remaining TTL
// for blacklist insertion. Never use this to authenticate a request.
func (service *TokenService) DecodeUnsafe(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	parser := jwt.NewParser()

	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// RemainingTTL returns the duration until the claim set's expiry instant.
// It returns zero (never negative) for tokens already past their expiry.
func (claims *AuthClaims) RemainingTTL(now time.Time) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}

	remaining := claims.ExpiresAt.Time.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
