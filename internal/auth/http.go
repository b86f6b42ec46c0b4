// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/camporahq/campora/internal/platform/apperr"
	"github.com/camporahq/campora/internal/platform/constants"
	requestutil "github.com/camporahq/campora/internal/platform/request"
	"github.com/camporahq/campora/internal/platform/respond"
	"github.com/camporahq/campora/internal/platform/sec"
	"github.com/camporahq/campora/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the authentication HTTP endpoints.
//
// # Scope
//
// This handler is strictly a transport layer: decoding, input validation,
// cookie orchestration, and status codes. Every security decision lives in
// [Service] and [Guard].
type Handler struct {
	authService *Service
	guard       *Guard

	// secureCookies marks refresh-token cookies Secure. Disabled only for
	// local development over plain HTTP.
	secureCookies bool
}

// NewHandler constructs a new [Handler] with its service and guard dependencies.
func NewHandler(service *Service, guard *Guard, secureCookies bool) *Handler {
	return &Handler{authService: service, guard: guard, secureCookies: secureCookies}
}

// Routes returns a [chi.Router] configured with the authentication routes.
//
// # Endpoints
//   - POST /register                   : Create an account and auto-login.
//   - POST /login                      : Password login.
//   - POST /send-otp                   : Issue a login OTP.
//   - POST /login-with-otp             : Consume a login OTP.
//   - POST /refresh                    : Rotate the token pair.
//   - POST /forgot-password            : Issue a reset token by email.
//   - POST /send-password-reset-otp    : Issue a reset OTP.
//   - POST /verify-password-reset-otp  : Consume the OTP, mint a reset token.
//   - POST /reset-password             : Consume a reset token.
//   - POST /verify-email               : Consume a verification token.
//   - POST /logout                     : Revoke + drop tokens (auth required).
//   - GET  /me                         : Current principal (auth required).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/send-otp", handler.sendOTP)
	router.Post("/login-with-otp", handler.loginWithOTP)
	router.Post("/refresh", handler.refresh)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/send-password-reset-otp", handler.sendPasswordResetOTP)
	router.Post("/verify-password-reset-otp", handler.verifyPasswordResetOTP)
	router.Post("/reset-password", handler.resetPassword)
	router.Post("/verify-email", handler.verifyEmail)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(handler.guard.Authenticate)
		r.Post("/logout", handler.logout)
		r.Get("/me", handler.me)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Role     string        `json:"role"`
	Profile  *ProfileInput `json:"profile,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type otpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

// # Endpoints

/*
Register creates a new account and logs it in immediately.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Email, Password, Role, optional Profile)

Response:
  - 201: Session: Created principal and token pair
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8).
		Required(FieldRole, input.Role)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:    input.Email,
		Password: input.Password,
		Role:     parseRole(input.Role),
		Profile:  input.Profile,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session.Tokens.RefreshToken)
	respond.Created(writer, session)
}

/*
Login authenticates by email and password.

POST /api/v1/auth/login

Response:
  - 200: Session: Token pair and principal
  - 401: ErrUnauthorized: Invalid credentials or inactive account
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session.Tokens.RefreshToken)
	respond.OK(writer, session)
}

/*
SendOTP issues a one-time login code to the given email.

POST /api/v1/auth/send-otp

Response:
  - 200: Generic acknowledgement, independent of account existence
*/
func (handler *Handler) sendOTP(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.SendLoginOTP(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "If the account exists, a login code has been sent")
}

/*
LoginWithOTP consumes a login code and starts a session.

POST /api/v1/auth/login-with-otp

Response:
  - 200: Session: Token pair and principal
  - 401: ErrUnauthorized: Invalid, mismatched, or expired code
*/
func (handler *Handler) loginWithOTP(writer http.ResponseWriter, request *http.Request) {
	var input otpRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldCode, input.Code).
		Numeric(FieldCode, input.Code).
		Custom(FieldCode, len(input.Code) != OTPLength, "Must be exactly 6 digits")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.LoginWithOTP(request.Context(), input.Email, input.Code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session.Tokens.RefreshToken)
	respond.OK(writer, session)
}

/*
Refresh rotates the token pair.

POST /api/v1/auth/refresh

Description: Accepts the refresh token from the JSON body, falling back to
the httpOnly cookie set at login. The used token leaves the stored set and
the replacement enters it in a single write.

Response:
  - 200: Session: New token pair
  - 401: ErrUnauthorized: Expired, invalid, or already-rotated token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest
	_ = requestutil.DecodeJSON(request, &input)

	token := input.RefreshToken
	if token == "" {
		if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing refresh token"))
		return
	}

	session, err := handler.authService.Refresh(request.Context(), token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session.Tokens.RefreshToken)
	respond.OK(writer, map[string]any{
		FieldAccessToken:  session.Tokens.AccessToken,
		FieldRefreshToken: session.Tokens.RefreshToken,
		FieldTokenType:    session.Tokens.TokenType,
		FieldExpiresIn:    session.Tokens.ExpiresIn,
	})
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Description: Blacklists the presenting access token for its remaining
lifetime, drops the refresh token (body or cookie) from the stored set, and
clears the refresh cookie.

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	user, err := RequirePrincipal(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	accessToken, _ := AccessTokenFrom(request.Context())

	var input refreshRequest
	_ = requestutil.DecodeJSON(request, &input)

	refreshToken := input.RefreshToken
	if refreshToken == "" {
		if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
			refreshToken = cookie.Value
		}
	}

	if err := handler.authService.Logout(request.Context(), user.ID, accessToken, refreshToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearRefreshCookie(writer)
	respond.NoContent(writer)
}

/*
ForgotPassword starts the link-based password recovery flow.

POST /api/v1/auth/forgot-password

Response:
  - 200: Generic acknowledgement, independent of account existence
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ForgotPassword(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "If the account exists, a password reset link has been sent")
}

/*
SendPasswordResetOTP starts the two-stage OTP password recovery flow.

POST /api/v1/auth/send-password-reset-otp

Response:
  - 200: Generic acknowledgement, independent of account existence
*/
func (handler *Handler) sendPasswordResetOTP(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.SendPasswordResetOTP(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "If the account exists, a password reset code has been sent")
}

/*
VerifyPasswordResetOTP consumes the reset code and returns a reset token.

POST /api/v1/auth/verify-password-reset-otp

Response:
  - 200: reset_token: One-time token for the reset-password call
  - 401: ErrUnauthorized: Invalid, mismatched, or expired code
*/
func (handler *Handler) verifyPasswordResetOTP(writer http.ResponseWriter, request *http.Request) {
	var input otpRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldCode, input.Code).
		Numeric(FieldCode, input.Code).
		Custom(FieldCode, len(input.Code) != OTPLength, "Must be exactly 6 digits")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	resetToken, err := handler.authService.VerifyPasswordResetOTP(request.Context(), input.Email, input.Code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldResetToken: resetToken})
}

/*
ResetPassword consumes a reset token and replaces the password.

POST /api/v1/auth/reset-password

Response:
  - 200: Success: Password updated, all sessions ended
  - 400: ErrBadRequest: Invalid or expired reset token
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, 8)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Token, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "Password has been reset")
}

/*
VerifyEmail confirms email ownership.

POST /api/v1/auth/verify-email

Response:
  - 200: Success: Email verified
  - 400: ErrBadRequest: Invalid or expired verification token
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input tokenRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.VerifyEmail(request.Context(), input.Token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "Email has been verified")
}

/*
Me returns the authenticated principal and its role-specific profile.

GET /api/v1/auth/me

Response:
  - 200: User + profile summary
  - 401: ErrUnauthorized: Missing, invalid, expired, or revoked token
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	principal, err := RequirePrincipal(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, profile, err := handler.authService.CurrentUser(request.Context(), principal.ID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	payload := map[string]any{FieldUser: user}
	if profile != nil {
		payload["profile"] = profile
	}

	respond.OK(writer, payload)
}

// # Cookie Orchestration

func (handler *Handler) setRefreshCookie(writer http.ResponseWriter, refreshToken string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    refreshToken,
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   int(handler.authService.tokens.RefreshTTL() / time.Second),
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (handler *Handler) clearRefreshCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// parseRole uppercases free-form role input into the closed enum domain.
// Invalid values survive as-is and are rejected by the service.
func parseRole(role string) sec.UserRole {
	return sec.UserRole(strings.ToUpper(strings.TrimSpace(role)))
}
