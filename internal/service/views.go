package service

import (
	"time"

	"fitdesk/internal/models"
)

// UserView is the user payload returned to clients. It never carries the password hash.
type UserView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	TenantID      *string    `json:"tenantId"`
	EmailVerified bool       `json:"emailVerified"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func NewUserView(u models.User) UserView {
	return UserView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          string(u.Role),
		Status:        string(u.Status),
		TenantID:      u.TenantID,
		EmailVerified: u.EmailVerified,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
}

type SessionView struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	Current   bool      `json:"current"`
}

// AuthResult is what a successful login style flow hands back.
type AuthResult struct {
	User         UserView
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	RedirectTo   string
	SessionID    string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}
