package sync

import (
	"context"
	"log"
	"time"

	"google.golang.org/api/calendar/v3"

	calclient "github.com/beekhof/calendar-mirror/internal/calendar"
)

// TokenStore persists per-calendar sync tokens between runs.
type TokenStore interface {
	Token(calendarID string) string
	SetToken(calendarID, token string) error
}

// Source fetches the events of one calendar per call, incrementally when a
// sync token from a previous run is available and by full bounded listing
// otherwise.
type Source struct {
	api    calclient.API
	tokens TokenStore
	window time.Duration // horizon on each side of now, full listings only
	logger *log.Logger
	now    func() time.Time
}

// NewSource creates a Source over the given API and token store. Full
// listings are bounded to windowDays back and forward from the run time.
func NewSource(api calclient.API, tokens TokenStore, windowDays int, logger *log.Logger) *Source {
	return &Source{
		api:    api,
		tokens: tokens,
		window: time.Duration(windowDays) * 24 * time.Hour,
		logger: logger,
		now:    time.Now,
	}
}

// Fetch returns every event of the calendar visible through the current
// cursor: the diff since the stored sync token when one exists, or the full
// time window otherwise. A stale token is cleared and the call transparently
// restarts on the full path. On success the freshly issued token is
// persisted; a persistence failure is logged but never discards the fetched
// events.
func (s *Source) Fetch(ctx context.Context, calendarID string) ([]*calendar.Event, error) {
	token := s.tokens.Token(calendarID)

	events, nextToken, err := s.listAll(ctx, calendarID, token)
	if err != nil {
		if token == "" || !calclient.IsSyncTokenExpired(err) {
			return nil, err
		}

		// Stale cursor: discard it (and anything fetched under it) and
		// resync the whole window.
		s.logger.Printf("Sync token for %s is no longer valid, falling back to full listing", calendarID)
		if perr := s.tokens.SetToken(calendarID, ""); perr != nil {
			s.logger.Printf("Warning: failed to clear sync token for %s: %v", calendarID, perr)
		}

		events, nextToken, err = s.listAll(ctx, calendarID, "")
		if err != nil {
			return nil, err
		}
	}

	if nextToken != "" {
		if perr := s.tokens.SetToken(calendarID, nextToken); perr != nil {
			// The fetch itself succeeded; losing the token only costs the
			// next run a full resync of this calendar.
			s.logger.Printf("Warning: failed to persist sync token for %s: %v", calendarID, perr)
		}
	}

	return events, nil
}

// Search performs a full bounded listing filtered by a free-text query,
// without involving the sync cursor. Used to find previously synced copies by
// their provenance marker.
func (s *Source) Search(ctx context.Context, calendarID, query string) ([]*calendar.Event, error) {
	now := s.now()
	req := calclient.ListRequest{
		CalendarID:            calendarID,
		TimeMin:               now.Add(-s.window),
		TimeMax:               now.Add(s.window),
		ShowHiddenInvitations: true,
		Query:                 query,
	}
	events, _, err := s.listPages(ctx, req)
	return events, err
}

// listAll accumulates every page of one listing. The incremental path is
// scoped by the provider, so the time window and deletion visibility flags
// only apply to full listings.
func (s *Source) listAll(ctx context.Context, calendarID, syncToken string) ([]*calendar.Event, string, error) {
	req := calclient.ListRequest{
		CalendarID:            calendarID,
		SyncToken:             syncToken,
		ShowHiddenInvitations: true,
	}
	if syncToken == "" {
		now := s.now()
		req.TimeMin = now.Add(-s.window)
		req.TimeMax = now.Add(s.window)
		req.ShowDeleted = true // callers propagate cancellations as deletions
	}
	return s.listPages(ctx, req)
}

// listPages follows the continuation cursor until absent. The provider only
// issues the next sync token on the final page.
func (s *Source) listPages(ctx context.Context, req calclient.ListRequest) ([]*calendar.Event, string, error) {
	var events []*calendar.Event
	for {
		page, err := s.api.ListEvents(ctx, req)
		if err != nil {
			return nil, "", err
		}
		events = append(events, page.Items...)
		if page.NextPageToken == "" {
			return events, page.NextSyncToken, nil
		}
		req.PageToken = page.NextPageToken
	}
}
