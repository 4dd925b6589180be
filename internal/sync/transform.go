package sync

import (
	"strings"

	"google.golang.org/api/calendar/v3"
)

// The transforms below rewrite a single event in place and return it so they
// chain. Each one is idempotent: applying it twice leaves the event exactly as
// applying it once. Callers that share a fetched event between branches must
// clone it first (see CloneEvent).

// TagAsSynced appends the provenance marker to the event description so the
// copy can be recognized on later runs. Re-tagging an already-tagged event is
// a no-op.
func TagAsSynced(event *calendar.Event, marker string) *calendar.Event {
	if strings.Contains(event.Description, marker) {
		return event
	}
	event.Description = event.Description + "\n\n" + marker
	return event
}

// StripAttendees removes the attendee list so that importing the copy can
// never re-notify the original invitees.
func StripAttendees(event *calendar.Event) *calendar.Event {
	event.Attendees = nil
	return event
}

// SetOrganizer overwrites the organizer wholesale. The destination calendar
// requires the importing account to organize or attend every event it holds.
func SetOrganizer(event *calendar.Event, displayName, email string) *calendar.Event {
	event.Organizer = &calendar.EventOrganizer{
		DisplayName: displayName,
		Email:       email,
		Self:        true,
	}
	return event
}

// MarkCancelled sets the event status to cancelled. Declines are expressed
// this way in the copies: the destination has no notion of declining an event
// the importing account now organizes.
func MarkCancelled(event *calendar.Event) *calendar.Event {
	event.Status = "cancelled"
	return event
}

// SetPrivate restricts the event's visibility.
func SetPrivate(event *calendar.Event) *calendar.Event {
	event.Visibility = "private"
	return event
}

// ClearDestinationIdentity removes the calendar-local identifiers before a
// cross-calendar write. The destination assigns a fresh id; only the iCalUID
// survives to correlate the copy with its source across runs.
func ClearDestinationIdentity(event *calendar.Event) *calendar.Event {
	event.Id = ""
	event.RecurringEventId = ""
	return event
}

// CloneEvent returns an independent copy of the event, deep enough that the
// transforms above cannot reach back into the original: the struct itself,
// the organizer, and the attendee list are all fresh.
func CloneEvent(event *calendar.Event) *calendar.Event {
	clone := *event
	if event.Organizer != nil {
		organizer := *event.Organizer
		clone.Organizer = &organizer
	}
	if event.Attendees != nil {
		clone.Attendees = make([]*calendar.EventAttendee, len(event.Attendees))
		for i, attendee := range event.Attendees {
			a := *attendee
			clone.Attendees[i] = &a
		}
	}
	return &clone
}
