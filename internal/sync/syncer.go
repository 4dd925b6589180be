// Package sync implements the calendar mirroring pipeline: pull events from
// the work calendar and the personal primary calendar, rewrite them, and
// re-import them into the calendars the voice assistant reads.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"google.golang.org/api/calendar/v3"

	"github.com/beekhof/calendar-mirror/internal/config"
)

// SnapshotFunc records a prepared batch before it is imported, e.g. as an
// iCalendar file for inspection.
type SnapshotFunc func(name string, events []*calendar.Event) error

// Syncer sequences one run: work calendar into the personal primary, then the
// personal primary fanned out into the work-only and personal-only secondary
// calendars.
type Syncer struct {
	source   *Source
	sink     *Sink
	config   *config.Config
	snapshot SnapshotFunc // optional
	logger   *log.Logger
}

// NewSyncer creates a new Syncer instance. snapshot may be nil.
func NewSyncer(source *Source, sink *Sink, cfg *config.Config, snapshot SnapshotFunc, logger *log.Logger) *Syncer {
	return &Syncer{
		source:   source,
		sink:     sink,
		config:   cfg,
		snapshot: snapshot,
		logger:   logger,
	}
}

// Run performs one complete sync pass. Failures of individual writes are
// logged and the batch continues; a failure in one fan-out branch does not
// stop the other. The joined errors are returned once everything reachable
// has been attempted.
func (s *Syncer) Run(ctx context.Context) error {
	s.logger.Println("Starting sync...")

	workEvents, err := s.source.Fetch(ctx, s.config.WorkCalendar.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch work calendar: %w", err)
	}
	s.logger.Printf("Fetched %d events from work calendar", len(workEvents))

	prepared := s.prepareWorkImport(workEvents)
	s.logger.Printf("Prepared %d work events for import", len(prepared))
	s.snapshotBatch("work-to-personal", prepared)

	var errs []error

	if err := s.purgeByMarker(ctx, s.config.PersonalCalendar.ID); err != nil {
		errs = append(errs, err)
	}
	if err := s.importBatch(ctx, s.config.PersonalCalendar.ID, prepared); err != nil {
		errs = append(errs, err)
	}

	personalEvents, err := s.source.Fetch(ctx, s.config.PersonalCalendar.ID)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to fetch personal calendar: %w", err))
		return errors.Join(errs...)
	}
	s.logger.Printf("Fetched %d events from personal calendar", len(personalEvents))

	workBranch, personalBranch := s.divideByOrigin(personalEvents)
	s.logger.Printf("Divided into %d work and %d personal events", len(workBranch), len(personalBranch))

	// The two branches are independent: a failed work-view import must not
	// keep personal events out of the personal view, and vice versa.
	s.snapshotBatch("work-view", workBranch)
	if err := s.purgeByMarker(ctx, s.config.WorkView.ID); err != nil {
		errs = append(errs, err)
	}
	if err := s.importBatch(ctx, s.config.WorkView.ID, workBranch); err != nil {
		errs = append(errs, err)
	}

	// The personal view carries no marker to purge by; re-imports land on the
	// existing copies via their iCalUID instead of duplicating them.
	s.snapshotBatch("personal-view", personalBranch)
	if err := s.importBatch(ctx, s.config.PersonalView.ID, personalBranch); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		s.logger.Println("Sync complete.")
	}
	return errors.Join(errs...)
}

// prepareWorkImport rewrites work events into the form imported into the
// personal primary calendar: tagged with the provenance marker, stripped of
// attendees, re-organized as the personal account, and cancelled when the
// work identity had declined. Events the personal account is already party to
// are skipped so they are not represented twice.
func (s *Syncer) prepareWorkImport(events []*calendar.Event) []*calendar.Event {
	prepared := make([]*calendar.Event, 0, len(events))
	for _, event := range events {
		if s.personalAccountIsParty(event) {
			continue
		}

		// The decline has to be read before the attendee list is stripped.
		declined := IsDeclinedBy(event, s.config.WorkCalendar.ID)

		copy := CloneEvent(event)
		TagAsSynced(copy, s.config.ProvenanceMarker)
		StripAttendees(copy)
		SetOrganizer(copy, s.config.PersonalCalendar.DisplayName, s.config.PersonalCalendar.ID)
		if declined {
			MarkCancelled(copy)
		}
		prepared = append(prepared, copy)
	}
	return prepared
}

// personalAccountIsParty reports whether the personal account already
// organizes or is invited to the event.
func (s *Syncer) personalAccountIsParty(event *calendar.Event) bool {
	if event.Organizer != nil && event.Organizer.Email == s.config.PersonalCalendar.ID {
		return true
	}
	for _, attendee := range event.Attendees {
		if attendee.Email == s.config.PersonalCalendar.ID {
			return true
		}
	}
	return false
}

// divideByOrigin splits the personal primary calendar's events into the work
// and personal fan-out branches by provenance marker. Every event is cloned
// into its branch, so the branches never share a record.
func (s *Syncer) divideByOrigin(events []*calendar.Event) (work, personal []*calendar.Event) {
	work = []*calendar.Event{}
	personal = []*calendar.Event{}
	for _, event := range events {
		if IsWorkOrigin(event, s.config.ProvenanceMarker) {
			copy := CloneEvent(event)
			StripAttendees(copy)
			SetOrganizer(copy, s.config.WorkView.DisplayName, s.config.WorkView.ID)
			// Work events stay confidential even in the personal account.
			SetPrivate(copy)
			work = append(work, copy)
		} else {
			declined := IsDeclinedBy(event, s.config.PersonalCalendar.ID)

			copy := CloneEvent(event)
			StripAttendees(copy)
			SetOrganizer(copy, s.config.PersonalView.DisplayName, s.config.PersonalView.ID)
			if declined {
				MarkCancelled(copy)
			}
			personal = append(personal, copy)
		}
	}
	return work, personal
}

// purgeByMarker deletes previously synced copies from a destination calendar,
// found by querying for the provenance marker. Scoping the purge to the
// marker leaves anything else in the calendar alone.
func (s *Syncer) purgeByMarker(ctx context.Context, calendarID string) error {
	matches, err := s.source.Search(ctx, calendarID, s.config.ProvenanceMarker)
	if err != nil {
		return fmt.Errorf("failed to list previously synced events in %s: %w", calendarID, err)
	}

	var errs []error
	for _, event := range matches {
		// The free-text query matches more fields than the description;
		// only trust the marker itself.
		if !IsWorkOrigin(event, s.config.ProvenanceMarker) {
			continue
		}
		if err := s.sink.Delete(ctx, calendarID, event.Id); err != nil {
			s.logger.Printf("Warning: failed to delete synced event %s (summary: %v) from %s: %v", event.Id, event.Summary, calendarID, err)
			errs = append(errs, fmt.Errorf("delete %s from %s: %w", event.Id, calendarID, err))
		}
	}
	return errors.Join(errs...)
}

// importBatch clears calendar-local identity and imports each event,
// continuing past per-event failures.
func (s *Syncer) importBatch(ctx context.Context, calendarID string, events []*calendar.Event) error {
	var errs []error
	for _, event := range events {
		ClearDestinationIdentity(event)
		if err := s.sink.Import(ctx, calendarID, event); err != nil {
			s.logger.Printf("Warning: failed to import event %q into %s: %v", event.Summary, calendarID, err)
			errs = append(errs, fmt.Errorf("import %q into %s: %w", event.Summary, calendarID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Syncer) snapshotBatch(name string, events []*calendar.Event) {
	if s.snapshot == nil || len(events) == 0 {
		return
	}
	if err := s.snapshot(name, events); err != nil {
		s.logger.Printf("Warning: failed to write %s snapshot: %v", name, err)
	}
}
