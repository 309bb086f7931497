package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fitdesk/internal/service"
)

func (h HandlerSet) GoogleAuth(c *gin.Context) {
	authURL, err := h.google.AuthURL(c.Query("tenantId"))
	if err != nil {
		h.fail(c, err, "GOOGLE_AUTH_FAILED", "Failed to start Google sign-in")
		return
	}
	ok(c, http.StatusOK, gin.H{"authUrl": authURL})
}

// GoogleCallback always redirects; the browser is mid-navigation.
func (h HandlerSet) GoogleCallback(c *gin.Context) {
	target := h.google.Callback(c.Request.Context(), service.GoogleCallbackInput{
		Code:          c.Query("code"),
		State:         c.Query("state"),
		ProviderError: c.Query("error"),
		Meta:          requestMeta(c),
	})
	c.Redirect(http.StatusFound, target)
}

type googleCreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	GoogleID string `json:"googleId"`
	TenantID string `json:"tenantId"`
}

func (h HandlerSet) GoogleCreateUser(c *gin.Context) {
	var req googleCreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.google.CreateUser(c.Request.Context(), service.GoogleCreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		GoogleID: req.GoogleID,
		TenantID: req.TenantID,
		Meta:     requestMeta(c),
	})
	if err != nil {
		h.fail(c, err, "GOOGLE_CREATE_USER_FAILED", "Failed to create user")
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
