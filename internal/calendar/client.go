package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ListRequest carries the parameters for one page of an events listing.
// A non-empty SyncToken selects the incremental path; the provider rejects
// time bounds alongside a sync token, so TimeMin/TimeMax only apply to full
// listings.
type ListRequest struct {
	CalendarID            string
	PageToken             string
	SyncToken             string
	TimeMin               time.Time
	TimeMax               time.Time
	ShowDeleted           bool
	ShowHiddenInvitations bool
	Query                 string
}

// API is the calendar operation surface the sync pipeline consumes.
type API interface {
	ListEvents(ctx context.Context, req ListRequest) (*calendar.Events, error)
	ImportEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Client is a wrapper around the Google Calendar API service.
type Client struct {
	service *calendar.Service
}

// NewClient creates a new Google Calendar API client using the provided HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service}, nil
}

// ListEvents retrieves a single page of events. Full listings expand
// recurring events into instances and are ordered by start time so repeated
// runs see a stable sequence.
func (c *Client) ListEvents(ctx context.Context, req ListRequest) (*calendar.Events, error) {
	call := c.service.Events.List(req.CalendarID).Context(ctx)

	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}

	if req.SyncToken != "" {
		call = call.SyncToken(req.SyncToken)
	} else {
		call = call.SingleEvents(true).OrderBy("startTime")
		if !req.TimeMin.IsZero() {
			call = call.TimeMin(req.TimeMin.Format(time.RFC3339))
		}
		if !req.TimeMax.IsZero() {
			call = call.TimeMax(req.TimeMax.Format(time.RFC3339))
		}
		if req.ShowDeleted {
			call = call.ShowDeleted(true)
		}
		if req.Query != "" {
			call = call.Q(req.Query)
		}
	}
	if req.ShowHiddenInvitations {
		call = call.ShowHiddenInvitations(true)
	}

	events, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}

// ImportEvent imports an event into a calendar. Unlike insert, import keys on
// the event's iCalUID, so re-importing the same logical event updates it
// rather than duplicating it.
func (c *Client) ImportEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	imported, err := c.service.Events.Import(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to import event: %w", err)
	}

	return imported, nil
}

// DeleteEvent deletes an event from a calendar.
// Important: Sets sendUpdates="none" to prevent notifications.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.service.Events.Delete(calendarID, eventID).
		SendUpdates("none"). // Disable notifications
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}
