// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/camporahq/campora/internal/platform/apperr"
	"github.com/camporahq/campora/internal/platform/ctxutil"
	"github.com/camporahq/campora/internal/platform/sec"
	"github.com/camporahq/campora/pkg/pointer"
	"github.com/camporahq/campora/pkg/uuidv7"
)

// # Public DTOs

// TokenPair is the credential bundle returned by every session-creating
// operation.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Session couples a freshly authenticated principal with its token pair.
type Session struct {
	User   *User     `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// RegisterInput carries the fields needed to create a principal.
type RegisterInput struct {
	Email    string
	Password string
	Role     sec.UserRole
	Profile  *ProfileInput
}

// LoginInput carries password-login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// # External Collaborators

// ProfileInput is the role-specific profile payload optionally attached at
// registration. The identity core treats it as opaque beyond passing it on.
type ProfileInput struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	Program    string `json:"program"`
	Year       int    `json:"year"`
}

// ProfileSummary is the read-side projection of a principal's role-specific
// profile, embedded in the current-user response.
type ProfileSummary struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone,omitempty"`
	Department string `json:"department,omitempty"`
	Program    string `json:"program,omitempty"`
	Year       int    `json:"year,omitempty"`
}

// ProfileDirectory is the outward collaborator managing role-specific
// profile records (student, faculty, staff). Profile writes are not
// transactional with the principal write: a profile failure after a
// successful registration is logged, never rolled back.
type ProfileDirectory interface {
	CreateForUser(ctx context.Context, userID string, role sec.UserRole, input ProfileInput) error
	SummaryByUserID(ctx context.Context, userID string) (*ProfileSummary, error)
}

// # Session Orchestrator

// Service composes the token service, the principal repository, the
// revocation cache, and the outbound notifier into the public session
// lifecycle operations.
type Service struct {
	users       UserRepository
	revocations RevocationStore
	tokens      *sec.TokenService
	notifier    Notifier
	profiles    ProfileDirectory
	logger      *slog.Logger

	// devFallback enables logging the plaintext challenge secret when
	// outbound delivery fails. Never enabled in production.
	devFallback bool

	// now is swappable in tests to pin expiry boundaries.
	now func() time.Time
}

// NewService wires the session orchestrator. profiles may be nil when the
// deployment runs without the profile collaborator.
func NewService(
	users UserRepository,
	revocations RevocationStore,
	tokens *sec.TokenService,
	notifier Notifier,
	profiles ProfileDirectory,
	logger *slog.Logger,
	devFallback bool,
) *Service {
	return &Service{
		users:       users,
		revocations: revocations,
		tokens:      tokens,
		notifier:    notifier,
		profiles:    profiles,
		logger:      logger,
		devFallback: devFallback,
		now:         time.Now,
	}
}

// # Registration

// Register creates a principal, attaches the optional role-specific
// profile, issues an email-verification challenge, and logs the account in
// immediately.
//
// A duplicate email among non-deleted accounts fails with Conflict.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	email := normalizeEmail(input.Email)

	if !input.Role.IsValid() {
		return nil, apperr.ValidationError("Invalid role", apperr.FieldError{
			Field:   FieldRole,
			Message: "must be one of STUDENT, FACULTY, ADMIN, SUPER_ADMIN",
		})
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("Email is already registered")
	} else if ae := apperr.As(err); ae == nil || ae.Code != "NOT_FOUND" {
		return nil, err
	}

	passwordHash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	currentTime := s.now()
	verifyToken, verifyChallenge, err := newTokenChallenge(VerificationTokenLength, currentTime, VerificationTokenTTL)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &User{
		ID:           uuidv7.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         input.Role,
		IsActive:     true,
		Verify:       verifyChallenge,
		CreatedAt:    currentTime,
		UpdatedAt:    currentTime,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if s.profiles != nil && input.Profile != nil {
		if err := s.profiles.CreateForUser(ctx, user.ID, user.Role, *input.Profile); err != nil {
			// Profile creation is a follow-up write, not part of the
			// principal transaction. The account stands either way.
			ctxutil.GetLogger(ctx).Error("profile creation failed after registration",
				"user_id", user.ID, "error", err)
		}
	}

	s.deliver(ctx, user.Email,
		"Verify your Campora email",
		"Welcome to Campora. Use this token to verify your email address: "+verifyToken,
		verifyToken)

	return s.startSession(ctx, user, func(u *User) error {
		u.LastLoginAt = pointer.To(s.now())
		return nil
	})
}

// # Password Login

// Login authenticates by email and password.
//
// Absent user, inactive account, and wrong password all collapse into the
// same Unauthorized response so the message never discloses which part
// failed.
func (s *Service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	user, err := s.findActiveByEmail(ctx, input.Email)
	if err != nil {
		return nil, errInvalidCredentials()
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, errInvalidCredentials()
	}

	return s.startSession(ctx, user, func(u *User) error {
		u.LastLoginAt = pointer.To(s.now())
		return nil
	})
}

// # OTP Login

// SendLoginOTP issues a 6-digit login code for the given email.
//
// The response is identical whether or not the account exists, matching the
// anti-enumeration posture of the password-recovery flows.
func (s *Service) SendLoginOTP(ctx context.Context, email string) error {
	user, err := s.findActiveByEmail(ctx, email)
	if err != nil {
		return s.swallowLookup(ctx, err)
	}

	code, challenge, err := newOTPChallenge(s.now(), OTPTTL)
	if err != nil {
		return apperr.Internal(err)
	}

	// Issuing overwrites any unconsumed code: the previous challenge is
	// silently cancelled.
	if _, err := s.updateWithRetry(ctx, user.ID, func(u *User) error {
		u.OTP = challenge
		return nil
	}); err != nil {
		return err
	}

	s.deliver(ctx, user.Email,
		"Your Campora login code",
		"Your one-time login code is "+code+". It expires in 10 minutes.",
		code)

	return nil
}

// LoginWithOTP consumes an outstanding login code and starts a session.
//
// Consumption and session creation land in the same persistence write: the
// code can never succeed twice.
func (s *Service) LoginWithOTP(ctx context.Context, email, code string) (*Session, error) {
	user, err := s.findActiveByEmail(ctx, email)
	if err != nil {
		return nil, errInvalidOTP()
	}

	return s.startSession(ctx, user, func(u *User) error {
		if err := checkChallenge(u.OTP, code, s.now()); err != nil {
			return otpError(err)
		}
		u.OTP.Clear()
		u.LastLoginAt = pointer.To(s.now())
		return nil
	})
}

// # Token Rotation

// Refresh exchanges a live refresh token for a fresh pair.
//
// The presented token must verify AND sit in the principal's stored set:
// removing it and appending the replacement in one write is the replay
// defense. A token reused after rotation is no longer in the set and is
// rejected even if its signature is still valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, sec.ErrTokenExpired) {
			return nil, apperr.Unauthorized("Refresh token has expired")
		}
		return nil, apperr.Unauthorized("Invalid refresh token")
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil || !user.IsActive {
		return nil, apperr.Unauthorized("Invalid refresh token")
	}

	return s.startSession(ctx, user, func(u *User) error {
		if !u.RemoveRefreshToken(refreshToken) {
			return apperr.Unauthorized("Refresh token not recognized")
		}
		return nil
	})
}

// # Logout

// Logout drops the presented refresh token from the stored set and
// blacklists the access token for its remaining lifetime.
//
// An unknown refresh token is ignored (logout is idempotent from the
// client's point of view); a token too close to natural expiry skips the
// blacklist write.
func (s *Service) Logout(ctx context.Context, userID, accessToken, refreshToken string) error {
	if refreshToken != "" {
		if _, err := s.updateWithRetry(ctx, userID, func(u *User) error {
			u.RemoveRefreshToken(refreshToken)
			return nil
		}); err != nil {
			return err
		}
	}

	// The token already authenticated this request, so unverified decode
	// is safe here: only the expiry claim is consulted.
	claims, err := s.tokens.DecodeUnsafe(accessToken)
	if err != nil {
		return nil
	}

	remaining := claims.RemainingTTL(s.now())
	if remaining < minRevocableTTL {
		return nil
	}

	if err := s.revocations.Revoke(ctx, accessToken, remaining); err != nil {
		return apperr.Internal(err)
	}

	return nil
}

// # Password Recovery

// ForgotPassword issues a link-style reset token for the given email.
// The caller always receives a generic acknowledgement; existence of the
// account is never disclosed.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.findActiveByEmail(ctx, email)
	if err != nil {
		return s.swallowLookup(ctx, err)
	}

	resetToken, challenge, err := newTokenChallenge(ResetTokenLength, s.now(), ResetTokenTTL)
	if err != nil {
		return apperr.Internal(err)
	}

	if _, err := s.updateWithRetry(ctx, user.ID, func(u *User) error {
		u.Reset = challenge
		return nil
	}); err != nil {
		return err
	}

	s.deliver(ctx, user.Email,
		"Reset your Campora password",
		"Use this token to reset your password: "+resetToken+". It expires in 1 hour.",
		resetToken)

	return nil
}

// SendPasswordResetOTP starts the two-stage reset: a 6-digit code stored in
// the reset-challenge slot with the short OTP lifetime.
func (s *Service) SendPasswordResetOTP(ctx context.Context, email string) error {
	user, err := s.findActiveByEmail(ctx, email)
	if err != nil {
		return s.swallowLookup(ctx, err)
	}

	code, challenge, err := newOTPChallenge(s.now(), OTPTTL)
	if err != nil {
		return apperr.Internal(err)
	}

	if _, err := s.updateWithRetry(ctx, user.ID, func(u *User) error {
		u.Reset = challenge
		return nil
	}); err != nil {
		return err
	}

	s.deliver(ctx, user.Email,
		"Your Campora password reset code",
		"Your password reset code is "+code+". It expires in 10 minutes.",
		code)

	return nil
}

// VerifyPasswordResetOTP consumes the reset code and upgrades the
// reset-challenge slot in place to a longer-lived opaque token, returned
// once in plaintext for the follow-up ResetPassword call.
func (s *Service) VerifyPasswordResetOTP(ctx context.Context, email, code string) (string, error) {
	user, err := s.findActiveByEmail(ctx, email)
	if err != nil {
		return "", errInvalidOTP()
	}

	resetToken, upgraded, err := newTokenChallenge(ResetTokenLength, s.now(), ResetTokenOTPTTL)
	if err != nil {
		return "", apperr.Internal(err)
	}

	if _, err := s.updateWithRetry(ctx, user.ID, func(u *User) error {
		if err := checkChallenge(u.Reset, code, s.now()); err != nil {
			return otpError(err)
		}
		u.Reset = upgraded
		return nil
	}); err != nil {
		return "", err
	}

	return resetToken, nil
}

// ResetPassword consumes a reset token (link-issued or OTP-derived) and
// replaces the password. All stored refresh tokens are dropped in the same
// write, ending every live session for the account.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.users.FindByResetTokenHash(ctx, sec.HashChallenge(token))
	if err != nil {
		return errResetTokenRejected()
	}

	passwordHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}

	_, err = s.updateWithRetry(ctx, user.ID, func(u *User) error {
		if err := checkChallenge(u.Reset, token, s.now()); err != nil {
			return errResetTokenRejected()
		}
		u.PasswordHash = passwordHash
		u.Reset.Clear()
		u.RefreshTokens = nil
		return nil
	})
	return err
}

// # Email Verification

// VerifyEmail consumes an email-verification token and marks the account
// verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.users.FindByVerifyTokenHash(ctx, sec.HashChallenge(token))
	if err != nil {
		return errVerifyTokenRejected()
	}

	_, err = s.updateWithRetry(ctx, user.ID, func(u *User) error {
		if err := checkChallenge(u.Verify, token, s.now()); err != nil {
			return errVerifyTokenRejected()
		}
		u.EmailVerified = true
		u.Verify.Clear()
		return nil
	})
	return err
}

// # Current Principal

// CurrentUser loads the principal and, when the profile collaborator is
// wired, its role-specific profile summary. The summary is nil when no
// profile record exists yet.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*User, *ProfileSummary, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	var summary *ProfileSummary
	if s.profiles != nil {
		summary, err = s.profiles.SummaryByUserID(ctx, userID)
		if err != nil {
			if ae := apperr.As(err); ae == nil || ae.Code != "NOT_FOUND" {
				ctxutil.GetLogger(ctx).Error("profile lookup failed", "user_id", userID, "error", err)
			}
			summary = nil
		}
	}

	return user, summary, nil
}

// # Internals

// startSession mints a token pair for the user, then persists the extra
// mutation (challenge consumption, last-login) together with the
// refresh-token append in a single versioned write.
func (s *Service) startSession(ctx context.Context, user *User, mutate func(*User) error) (*Session, error) {
	accessToken, err := s.tokens.IssueAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, apperr.Internal(err)
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, apperr.Internal(err)
	}

	currentTime := s.now()
	entry := RefreshTokenEntry{
		Token:     refreshToken,
		IssuedAt:  currentTime,
		ExpiresAt: currentTime.Add(s.tokens.RefreshTTL()),
	}

	updated, err := s.updateWithRetry(ctx, user.ID, func(u *User) error {
		if mutate != nil {
			if err := mutate(u); err != nil {
				return err
			}
		}
		u.AppendRefreshToken(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		User: updated,
		Tokens: TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		},
	}, nil
}

// updateWithRetry applies mutate to a freshly loaded copy of the record and
// persists it, retrying a bounded number of times when the versioned write
// loses a race. Mutation errors abort immediately and propagate as-is.
func (s *Service) updateWithRetry(ctx context.Context, userID string, mutate func(*User) error) (*User, error) {
	var lastErr error

	for attempt := 0; attempt < casRetryLimit; attempt++ {
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		if err := mutate(user); err != nil {
			return nil, err
		}

		err = s.users.UpdateCredentials(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}

	s.logger.Error("credential write retries exhausted", "user_id", userID, "attempts", casRetryLimit)
	return nil, apperr.Internal(lastErr)
}

// findActiveByEmail loads a non-deleted, active principal by email.
func (s *Service) findActiveByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is deactivated")
	}
	return user, nil
}

// swallowLookup converts a not-found lookup into a silent success for
// anti-enumeration endpoints, while letting real storage failures surface.
func (s *Service) swallowLookup(ctx context.Context, err error) error {
	if ae := apperr.As(err); ae != nil && (ae.Code == "NOT_FOUND" || ae.Code == "UNAUTHORIZED") {
		ctxutil.GetLogger(ctx).Debug("challenge issuance skipped for unknown or inactive account")
		return nil
	}
	return err
}

// deliver sends a transactional message, recovering locally from notifier
// failures so the issuing flow never fails on delivery. Outside production
// the plaintext secret is logged as the fallback delivery surface.
func (s *Service) deliver(ctx context.Context, to, subject, body, secret string) {
	if err := s.notifier.Send(ctx, to, subject, body); err != nil {
		logger := ctxutil.GetLogger(ctx)
		logger.Error("notification delivery failed", "to", to, "subject", subject, "error", err)
		if s.devFallback {
			logger.Warn("delivery fallback, challenge secret follows", "to", to, "secret", secret)
		}
	}
}

// otpError maps challenge verification failures onto the Unauthorized
// taxonomy, keeping the expired case distinguishable.
func otpError(err error) error {
	if errors.Is(err, errChallengeExpired) {
		return apperr.Unauthorized("OTP code has expired")
	}
	return errInvalidOTP()
}

func errInvalidCredentials() error { return apperr.Unauthorized("Invalid email or password") }
func errInvalidOTP() error         { return apperr.Unauthorized("Invalid OTP code") }

func errResetTokenRejected() error {
	return apperr.BadRequest("Invalid or expired reset token")
}

func errVerifyTokenRejected() error {
	return apperr.BadRequest("Invalid or expired verification token")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

