package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fitdesk/internal/middleware"
	"fitdesk/internal/security"
	"fitdesk/internal/service"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     requestMeta(c),
	})
	if err != nil {
		h.fail(c, err, "LOGIN_FAILED", "Login failed")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"user":         result.User,
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"expiresIn":    result.ExpiresIn,
		"redirectTo":   result.RedirectTo,
	})
}

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
	TenantID string `json:"tenantId"`
}

func (h HandlerSet) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.auth.Signup(c.Request.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		TenantID: req.TenantID,
		Meta:     requestMeta(c),
	})
	if err != nil {
		h.fail(c, err, "SIGNUP_FAILED", "Signup failed")
		return
	}

	ok(c, http.StatusCreated, gin.H{
		"user":                      result.User,
		"accessToken":               result.AccessToken,
		"refreshToken":              result.RefreshToken,
		"expiresIn":                 result.ExpiresIn,
		"requiresEmailVerification": true,
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h HandlerSet) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	h.auth.ForgotPassword(c.Request.Context(), req.Email)

	ok(c, http.StatusOK, gin.H{
		"message": "If an account exists for this email, a password reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.auth.ResetPassword(c.Request.Context(), service.ResetPasswordInput{
		Token:           req.Token,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.fail(c, err, "RESET_PASSWORD_FAILED", "Failed to reset password")
		return
	}

	ok(c, http.StatusOK, gin.H{"message": "Password has been reset successfully"})
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (h HandlerSet) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.auth.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		h.fail(c, err, "VERIFY_EMAIL_FAILED", "Failed to verify email")
		return
	}

	ok(c, http.StatusOK, gin.H{"message": "Email verified successfully"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err, "REFRESH_FAILED", "Failed to refresh token")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	p := principal(c)

	if err := h.auth.Logout(c.Request.Context(), p); err != nil {
		h.fail(c, err, "LOGOUT_FAILED", "Logout failed")
		return
	}

	ok(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h HandlerSet) Me(c *gin.Context) {
	p := principal(c)

	user, err := h.auth.Me(c.Request.Context(), p)
	if err != nil {
		h.fail(c, err, "GET_USER_FAILED", "Failed to load user")
		return
	}

	ok(c, http.StatusOK, gin.H{"user": user})
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	p := principal(c)

	sessions, err := h.auth.ListSessions(c.Request.Context(), p)
	if err != nil {
		h.fail(c, err, "LIST_SESSIONS_FAILED", "Failed to load sessions")
		return
	}

	ok(c, http.StatusOK, gin.H{"sessions": sessions})
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	p := principal(c)

	if err := h.auth.RevokeSession(c.Request.Context(), p, c.Param("id")); err != nil {
		h.fail(c, err, "REVOKE_SESSION_FAILED", "Failed to revoke session")
		return
	}

	ok(c, http.StatusOK, gin.H{"message": "Session revoked"})
}

func (h HandlerSet) ResendVerification(c *gin.Context) {
	p := principal(c)

	if err := h.auth.ResendVerification(c.Request.Context(), p); err != nil {
		h.fail(c, err, "RESEND_VERIFICATION_FAILED", "Failed to send verification email")
		return
	}

	ok(c, http.StatusOK, gin.H{"message": "Verification email sent"})
}

// principal is a shorthand for handlers mounted behind middleware.Auth.
func principal(c *gin.Context) security.Principal {
	p, _ := middleware.CurrentPrincipal(c)
	return p
}
