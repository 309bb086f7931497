package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"fitdesk/internal/models"
)

type EventInput struct {
	Summary     string    `json:"summary" binding:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       time.Time `json:"start" binding:"required"`
	End         time.Time `json:"end" binding:"required"`
}

type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
}

// SyncedEvent links an appointment to the calendar event created for it.
type SyncedEvent struct {
	AppointmentID string `json:"appointmentId"`
	EventID       string `json:"eventId"`
}

type SyncResult struct {
	Created []SyncedEvent `json:"created"`
	Updated []string      `json:"updated"`
	Failed  []string      `json:"failed"`
}

func (m *Manager) service(ctx context.Context, userID, tenantID string) (*gcal.Service, error) {
	token, err := m.getValidToken(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrTokenUnavailable
	}

	opts := []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}
	if m.endpoint != "" {
		opts = append(opts, option.WithEndpoint(m.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return svc, nil
}

func (m *Manager) CreateEvent(ctx context.Context, userID, tenantID string, in EventInput) (Event, error) {
	svc, err := m.service(ctx, userID, tenantID)
	if err != nil {
		return Event{}, err
	}
	created, err := svc.Events.Insert(m.calendarID, toGoogleEvent(in)).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("create event: %w", err)
	}
	return fromGoogleEvent(created), nil
}

func (m *Manager) UpdateEvent(ctx context.Context, userID, tenantID, eventID string, in EventInput) (Event, error) {
	svc, err := m.service(ctx, userID, tenantID)
	if err != nil {
		return Event{}, err
	}
	updated, err := svc.Events.Update(m.calendarID, eventID, toGoogleEvent(in)).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("update event %s: %w", eventID, err)
	}
	return fromGoogleEvent(updated), nil
}

func (m *Manager) DeleteEvent(ctx context.Context, userID, tenantID, eventID string) error {
	svc, err := m.service(ctx, userID, tenantID)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(m.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

func (m *Manager) ListEvents(ctx context.Context, userID, tenantID string, from, to time.Time) ([]Event, error) {
	svc, err := m.service(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(m.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Context(ctx)
	if !from.IsZero() {
		call = call.TimeMin(from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		call = call.TimeMax(to.Format(time.RFC3339))
	}

	list, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]Event, 0, len(list.Items))
	for _, item := range list.Items {
		events = append(events, fromGoogleEvent(item))
	}
	return events, nil
}

// SyncAppointments pushes each appointment to the calendar, updating the
// linked event when one exists. Individual failures do not stop the loop.
// Created reports the new event id so callers can link it for the next sync.
func (m *Manager) SyncAppointments(ctx context.Context, userID, tenantID string, appointments []models.Appointment) (SyncResult, error) {
	svc, err := m.service(ctx, userID, tenantID)
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{Created: []SyncedEvent{}, Updated: []string{}, Failed: []string{}}
	for _, appt := range appointments {
		ev := toGoogleEvent(EventInput{
			Summary:     appt.Title,
			Description: appt.Description,
			Location:    appt.Location,
			Start:       appt.StartsAt,
			End:         appt.EndsAt,
		})

		if appt.EventID != "" {
			if _, err := svc.Events.Update(m.calendarID, appt.EventID, ev).Context(ctx).Do(); err != nil {
				m.log.Warn().Err(err).Str("appointment_id", appt.ID).Msg("calendar sync update failed")
				result.Failed = append(result.Failed, appt.ID)
				continue
			}
			result.Updated = append(result.Updated, appt.ID)
			continue
		}

		created, err := svc.Events.Insert(m.calendarID, ev).Context(ctx).Do()
		if err != nil {
			m.log.Warn().Err(err).Str("appointment_id", appt.ID).Msg("calendar sync insert failed")
			result.Failed = append(result.Failed, appt.ID)
			continue
		}
		result.Created = append(result.Created, SyncedEvent{AppointmentID: appt.ID, EventID: created.Id})
	}
	return result, nil
}

func toGoogleEvent(in EventInput) *gcal.Event {
	return &gcal.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Location:    in.Location,
		Start:       &gcal.EventDateTime{DateTime: in.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: in.End.Format(time.RFC3339)},
	}
}

func fromGoogleEvent(ev *gcal.Event) Event {
	out := Event{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		HTMLLink:    ev.HtmlLink,
	}
	if ev.Start != nil {
		out.Start = parseEventTime(ev.Start)
	}
	if ev.End != nil {
		out.End = parseEventTime(ev.End)
	}
	return out
}

func parseEventTime(dt *gcal.EventDateTime) time.Time {
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t
		}
	}
	if dt.Date != "" {
		if t, err := time.Parse("2006-01-02", dt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}
