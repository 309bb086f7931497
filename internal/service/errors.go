package service

import (
	"errors"
	"net/http"
	"strings"
)

// Error is a failure the client is allowed to see.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// AsError unwraps err into a client-visible error, if it is one.
func AsError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

const (
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeUserInactive         = "USER_INACTIVE"
	CodeEmailAlreadyExists   = "EMAIL_ALREADY_EXISTS"
	CodeTenantNotFound       = "TENANT_NOT_FOUND"
	CodeTenantRequired       = "TENANT_REQUIRED"
	CodePasswordsDoNotMatch  = "PASSWORDS_DO_NOT_MATCH"
	CodePasswordTooWeak      = "PASSWORD_TOO_WEAK"
	CodeInvalidResetToken    = "INVALID_RESET_TOKEN"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeVerificationRequired = "VERIFICATION_TOKEN_REQUIRED"
	CodeInvalidVerification  = "INVALID_VERIFICATION_TOKEN"
	CodeEmailAlreadyVerified = "EMAIL_ALREADY_VERIFIED"
	CodeRefreshTokenRequired = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefreshToken  = "INVALID_REFRESH_TOKEN"
	CodeMissingData          = "MISSING_DATA"
	CodeUserExists           = "USER_EXISTS"
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeCannotRevokeCurrent  = "CANNOT_REVOKE_CURRENT_SESSION"
	CodeMissingCodeOrState   = "MISSING_CODE_OR_STATE"
	CodeInvalidState         = "INVALID_STATE"
	CodeGoogleAccessDenied   = "ACCESS_DENIED"
	CodeGoogleAuthFailed     = "GOOGLE_AUTH_FAILED"
)

var (
	errInvalidCredentials   = newError(http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password")
	errUserInactive         = newError(http.StatusUnauthorized, CodeUserInactive, "Your account is not active")
	errEmailAlreadyExists   = newError(http.StatusBadRequest, CodeEmailAlreadyExists, "An account with this email already exists")
	errSignupTenantNotFound = newError(http.StatusBadRequest, CodeTenantNotFound, "Tenant not found")
	errTenantRequired       = newError(http.StatusBadRequest, CodeTenantRequired, "Tenant ID is required")
	errPasswordsDoNotMatch  = newError(http.StatusBadRequest, CodePasswordsDoNotMatch, "Passwords do not match")
	errInvalidResetToken    = newError(http.StatusBadRequest, CodeInvalidResetToken, "Invalid or expired reset token")
	errTokenUserNotFound    = newError(http.StatusBadRequest, CodeUserNotFound, "User not found")
	errVerificationRequired = newError(http.StatusBadRequest, CodeVerificationRequired, "Verification token is required")
	errInvalidVerification  = newError(http.StatusBadRequest, CodeInvalidVerification, "Invalid or expired verification token")
	errEmailAlreadyVerified = newError(http.StatusBadRequest, CodeEmailAlreadyVerified, "Email is already verified")
	errRefreshTokenRequired = newError(http.StatusBadRequest, CodeRefreshTokenRequired, "Refresh token is required")
	errInvalidRefreshToken  = newError(http.StatusUnauthorized, CodeInvalidRefreshToken, "Invalid or expired refresh token")
	errRefreshUserNotFound  = newError(http.StatusUnauthorized, CodeUserNotFound, "User not found or inactive")
	errMeUserNotFound       = newError(http.StatusNotFound, CodeUserNotFound, "User not found")
	errMissingData          = newError(http.StatusBadRequest, CodeMissingData, "Email, name, googleId and tenantId are required")
	errUserExists           = newError(http.StatusConflict, CodeUserExists, "User already exists")
	errGoogleTenantNotFound = newError(http.StatusNotFound, CodeTenantNotFound, "Tenant not found")
	errSessionNotFound      = newError(http.StatusNotFound, CodeSessionNotFound, "Session not found")
	errCannotRevokeCurrent  = newError(http.StatusBadRequest, CodeCannotRevokeCurrent, "Use logout to end the current session")
)

func errPasswordTooWeak(reasons []string) *Error {
	msg := "Password does not meet requirements"
	if len(reasons) > 0 {
		msg = strings.Join(reasons, "; ")
	}
	return newError(http.StatusBadRequest, CodePasswordTooWeak, msg)
}
