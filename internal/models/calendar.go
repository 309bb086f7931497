package models

import "time"

// GoogleCalendarToken caches the provider token pair for one (user, tenant).
type GoogleCalendarToken struct {
	ID           string
	UserID       string
	TenantID     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (t GoogleCalendarToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Appointment is the slice of a booking the calendar sync needs.
type Appointment struct {
	ID          string
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
	EventID     string
}
