package models

import "time"

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleManager    Role = "MANAGER"
	RoleTrainer    Role = "TRAINER"
	RoleClient     Role = "CLIENT"
)

const DefaultRedirectPath = "/dashboard"

// RedirectPath is where the frontend sends a user of this role after login.
func (r Role) RedirectPath() string {
	switch r {
	case RoleSuperAdmin:
		return "/super-admin"
	case RoleAdmin:
		return "/admin"
	case RoleManager:
		return "/manager"
	case RoleTrainer:
		return "/trainer"
	case RoleClient:
		return "/client"
	default:
		return DefaultRedirectPath
	}
}

// IsStaff reports whether the role works on behalf of the tenant rather than as a client.
func (r Role) IsStaff() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleTrainer:
		return true
	default:
		return false
	}
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusInactive  UserStatus = "INACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

type User struct {
	ID            string
	Email         string
	PasswordHash  []byte
	Name          string
	GoogleID      *string
	Role          Role
	Status        UserStatus
	TenantID      *string
	EmailVerified bool
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// TenantRef returns the tenant id or "" for users of the default tenant.
func (u User) TenantRef() string {
	if u.TenantID == nil {
		return ""
	}
	return *u.TenantID
}

type Tenant struct {
	ID        string
	Subdomain string
	Name      string
	CreatedAt time.Time
}

const DefaultTenantSubdomain = "default"

// FallbackTenantID is used when no tenant with the default subdomain exists.
const FallbackTenantID = "default-tenant"
