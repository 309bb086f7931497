package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fitdesk/internal/calendar"
	"fitdesk/internal/models"
)

// CalendarManager is the part of calendar.Manager the HTTP layer drives.
type CalendarManager interface {
	GetAuthURL(userID, tenantID string) (string, error)
	HandleCallback(ctx context.Context, code, state string) calendar.Result
	Status(ctx context.Context, userID, tenantID string) (calendar.Status, error)
	ListEvents(ctx context.Context, userID, tenantID string, from, to time.Time) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, userID, tenantID string, in calendar.EventInput) (calendar.Event, error)
	UpdateEvent(ctx context.Context, userID, tenantID, eventID string, in calendar.EventInput) (calendar.Event, error)
	DeleteEvent(ctx context.Context, userID, tenantID, eventID string) error
	SyncAppointments(ctx context.Context, userID, tenantID string, appointments []models.Appointment) (calendar.SyncResult, error)
}

var _ CalendarManager = (*calendar.Manager)(nil)

const defaultEventWindow = 30 * 24 * time.Hour

// calendarScope returns the caller's (user, tenant) pair or answers 400.
func calendarScope(c *gin.Context) (string, string, bool) {
	p := principal(c)
	if p.TenantID == "" {
		errorJSON(c, http.StatusBadRequest, "TENANT_REQUIRED", "Calendar access requires a tenant")
		return "", "", false
	}
	return p.UserID, p.TenantID, true
}

func (h HandlerSet) calendarFail(c *gin.Context, err error, flowCode, flowMessage string) {
	if errors.Is(err, calendar.ErrTokenUnavailable) {
		errorJSON(c, http.StatusBadRequest, "CALENDAR_NOT_CONNECTED", err.Error())
		return
	}
	h.fail(c, err, flowCode, flowMessage)
}

func (h HandlerSet) CalendarAuthURL(c *gin.Context) {
	userID, tenantID, found := calendarScope(c)
	if !found {
		return
	}

	authURL, err := h.calendar.GetAuthURL(userID, tenantID)
	if err != nil {
		h.fail(c, err, "CALENDAR_AUTH_URL_FAILED", "Failed to generate authorization URL")
		return
	}
	ok(c, http.StatusOK, gin.H{"authUrl": authURL})
}

func (h HandlerSet) CalendarCallback(c *gin.Context) {
	result := h.calendar.HandleCallback(c.Request.Context(), c.Query("code"), c.Query("state"))

	status := "error"
	if result.Success {
		status = "success"
	}
	query := url.Values{"status": {status}, "message": {result.Message}}
	c.Redirect(http.StatusFound, strings.TrimRight(h.frontendURL, "/")+"/settings/calendar?"+query.Encode())
}

func (h HandlerSet) CalendarStatus(c *gin.Context) {
	userID, tenantID, found := calendarScope(c)
	if !found {
		return
	}

	status, err := h.calendar.Status(c.Request.Context(), userID, tenantID)
	if err != nil {
		h.fail(c, err, "CALENDAR_STATUS_FAILED", "Failed to load calendar status")
		return
	}
	ok(c, http.StatusOK, gin.H{"status": status})
}

func (h HandlerSet) ListCalendarEvents(c *gin.Context) {
	userID, tenantID, found := calendarScope(c)
	if !found {
		return
	}

	from, to, err := eventWindow(c.Query("from"), c.Query("to"), time.Now())
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	events, err := h.calendar.ListEvents(c.Request.Context(), userID, tenantID, from, to)
	if err != nil {
		h.calendarFail(c, err, "CALENDAR_EVENTS_FAILED", "Failed to load calendar events")
		return
	}
	ok(c, http.StatusOK, gin.H{"events": events})
}

func (h HandlerSet) CreateCalendarEvent(c *gin.Context) {
	userID, tenantID, found := calendarScope(c)
	if !found {
		return
	}

	var req calendar.EventInput
	if !bindJSON(c, &req) {
		return
	}
	if !req.End.After(req.Start) {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "end must be after start")
		return
	}

	event, err := h.calendar.CreateEvent(c.Request.Context(), userID, tenantID, req)
	if err != nil {
		h.calendarFail(c, err, "CALENDAR_EVENT_CREATE_FAILED", "Failed to create calendar event")
		return
	}
	ok(c, http.StatusCreated, gin.H{"event": event})
}

func (h HandlerSet) UpdateCalendarEvent(c *gin.Context) {
	userID, tenantID, found := calendarScope(c)
	if !found {
		return
	}

	var req calendar.EventInput
	if !bindJSON(c, &req) {
		return
	}
	if !req.End.After(req.Start) {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "end must be after start")
		return
	}

	event, err := h.calendar.UpdateEvent(c.Request.Context(), userID, tenantID, c.Param("id"), req)
	if err != nil {
		h.calendarFail(c, err, "CALENDAR_EVENT_UPDATE_FAILED", "Failed to update calendar event")
		return
	}
	ok(c, http.StatusOK, gin.H{"event": event})
}

func (h HandlerSet) DeleteCalendarEvent(c *gin.Context) {
	userID, tenantID, found := calendarScope(c)
	if !found {
		return
	}

	if err := h.calendar.DeleteEvent(c.Request.Context(), userID, tenantID, c.Param("id")); err != nil {
		h.calendarFail(c, err, "CALENDAR_EVENT_DELETE_FAILED", "Failed to delete calendar event")
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Event deleted"})
}

type appointmentRequest struct {
	ID          string    `json:"id" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"startsAt" binding:"required"`
	EndsAt      time.Time `json:"endsAt" binding:"required"`
	EventID     string    `json:"eventId"`
}

type syncRequest struct {
	Appointments []appointmentRequest `json:"appointments" binding:"required,dive"`
}

func (h HandlerSet) SyncCalendar(c *gin.Context) {
	userID, tenantID, found := calendarScope(c)
	if !found {
		return
	}

	var req syncRequest
	if !bindJSON(c, &req) {
		return
	}

	appointments := make([]models.Appointment, 0, len(req.Appointments))
	for _, a := range req.Appointments {
		appointments = append(appointments, models.Appointment{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Location:    a.Location,
			StartsAt:    a.StartsAt,
			EndsAt:      a.EndsAt,
			EventID:     a.EventID,
		})
	}

	result, err := h.calendar.SyncAppointments(c.Request.Context(), userID, tenantID, appointments)
	if err != nil {
		h.calendarFail(c, err, "CALENDAR_SYNC_FAILED", "Failed to sync appointments")
		return
	}
	ok(c, http.StatusOK, gin.H{"result": result})
}

// eventWindow parses optional RFC 3339 bounds. Missing bounds default to
// now and thirty days after the start.
func eventWindow(rawFrom, rawTo string, now time.Time) (time.Time, time.Time, error) {
	from := now
	if rawFrom != "" {
		t, err := time.Parse(time.RFC3339, rawFrom)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be an RFC 3339 timestamp")
		}
		from = t
	}

	to := from.Add(defaultEventWindow)
	if rawTo != "" {
		t, err := time.Parse(time.RFC3339, rawTo)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be an RFC 3339 timestamp")
		}
		to = t
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}
