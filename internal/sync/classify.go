package sync

import (
	"strings"

	"google.golang.org/api/calendar/v3"
)

// IsDeclinedBy reports whether the attendee with the given email has declined
// the event. Not all events carry attendees; those are never declined.
func IsDeclinedBy(event *calendar.Event, email string) bool {
	for _, attendee := range event.Attendees {
		if attendee.Email == email {
			return attendee.ResponseStatus == "declined"
		}
	}
	return false
}

// IsWorkOrigin reports whether the event was copied out of the work calendar,
// identified by the provenance marker in its description. An event with no
// description defaults to personal.
func IsWorkOrigin(event *calendar.Event, marker string) bool {
	if event.Description == "" {
		return false
	}
	return strings.Contains(event.Description, marker)
}
