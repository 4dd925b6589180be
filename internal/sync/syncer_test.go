package sync

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	calclient "github.com/beekhof/calendar-mirror/internal/calendar"
	"github.com/beekhof/calendar-mirror/internal/config"
)

const (
	testWorkCalendar     = "alice@work.example.com"
	testPersonalCalendar = "alice@home.example.com"
	testWorkView         = "workview@group.calendar.google.com"
	testPersonalView     = "personalview@group.calendar.google.com"
	testMarker           = "## sync'd from work ##"
)

func testConfig() *config.Config {
	return &config.Config{
		WorkCalendar:     config.CalendarIdentity{ID: testWorkCalendar, DisplayName: "Alice (work)"},
		PersonalCalendar: config.CalendarIdentity{ID: testPersonalCalendar, DisplayName: "Alice"},
		WorkView:         config.CalendarIdentity{ID: testWorkView, DisplayName: "Work"},
		PersonalView:     config.CalendarIdentity{ID: testPersonalView, DisplayName: "Personal"},
		ProvenanceMarker: testMarker,
		WindowDays:       93,
	}
}

func newTestSyncer(t *testing.T, api *fakeCalendarAPI, snapshot SnapshotFunc) *Syncer {
	t.Helper()
	source := NewSource(api, newMemoryTokenStore(), 93, quietLogger())
	sink, err := NewSink(api, time.Nanosecond, RetryPolicy{
		InitialWait: time.Second,
		Sleep:       func(time.Duration) {},
	}, quietLogger())
	if err != nil {
		t.Fatalf("NewSink() returned an error: %v", err)
	}
	return NewSyncer(source, sink, testConfig(), snapshot, quietLogger())
}

// scriptLists wires the fake's listing responses: fetches keyed by calendar
// ID, marker searches keyed by calendar ID separately.
func scriptLists(api *fakeCalendarAPI, fetches, searches map[string][]*calendar.Event) {
	api.listFunc = func(req calclient.ListRequest) (*calendar.Events, error) {
		if req.Query != "" {
			return &calendar.Events{Items: searches[req.CalendarID]}, nil
		}
		return &calendar.Events{Items: fetches[req.CalendarID]}, nil
	}
}

func TestRun_DeclinedWorkEventBecomesCancelledCopy(t *testing.T) {
	api := newFakeCalendarAPI()
	scriptLists(api, map[string][]*calendar.Event{
		testWorkCalendar: {{
			Id:          "work-1",
			ICalUID:     "work-1@google.com",
			Summary:     "Architecture review",
			Description: "Agenda attached",
			Organizer:   &calendar.EventOrganizer{Email: "bob@work.example.com"},
			Attendees: []*calendar.EventAttendee{
				{Email: "bob@work.example.com", ResponseStatus: "accepted"},
				{Email: testWorkCalendar, ResponseStatus: "declined"},
			},
		}},
	}, nil)

	syncer := newTestSyncer(t, api, nil)
	if err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	imported := api.imported[testPersonalCalendar]
	if len(imported) != 1 {
		t.Fatalf("Expected 1 event imported into the personal calendar, got %d", len(imported))
	}

	copy := imported[0]
	if copy.Status != "cancelled" {
		t.Errorf("Expected declined work event to import as cancelled, got '%s'", copy.Status)
	}
	if copy.Attendees != nil {
		t.Errorf("Expected no attendees on the copy, got %d", len(copy.Attendees))
	}
	if copy.Organizer == nil || copy.Organizer.Email != testPersonalCalendar {
		t.Errorf("Expected the personal account as organizer, got %+v", copy.Organizer)
	}
	if !strings.Contains(copy.Description, testMarker) {
		t.Errorf("Expected the provenance marker in the description, got '%s'", copy.Description)
	}
	if copy.Id != "" {
		t.Errorf("Expected calendar-local id cleared before import, got '%s'", copy.Id)
	}
	if copy.ICalUID != "work-1@google.com" {
		t.Errorf("Expected iCalUID preserved for idempotent re-import, got '%s'", copy.ICalUID)
	}
}

func TestRun_SkipsWorkEventsPersonalAccountIsPartyTo(t *testing.T) {
	api := newFakeCalendarAPI()
	scriptLists(api, map[string][]*calendar.Event{
		testWorkCalendar: {
			{
				Id:      "work-1",
				Summary: "Cross-invite",
				Attendees: []*calendar.EventAttendee{
					{Email: testPersonalCalendar, ResponseStatus: "accepted"},
				},
			},
			{
				Id:        "work-2",
				Summary:   "Organized from home",
				Organizer: &calendar.EventOrganizer{Email: testPersonalCalendar},
			},
			{
				Id:      "work-3",
				Summary: "Work only",
			},
		},
	}, nil)

	syncer := newTestSyncer(t, api, nil)
	if err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	imported := api.imported[testPersonalCalendar]
	if len(imported) != 1 {
		t.Fatalf("Expected only the work-only event imported, got %d", len(imported))
	}
	if imported[0].Summary != "Work only" {
		t.Errorf("Expected 'Work only' imported, got '%s'", imported[0].Summary)
	}
}

func TestRun_DividesPersonalCalendarByMarker(t *testing.T) {
	api := newFakeCalendarAPI()
	scriptLists(api, map[string][]*calendar.Event{
		testPersonalCalendar: {
			{
				Id:          "p-1",
				Summary:     "Sprint planning",
				Description: "Agenda\n\n" + testMarker,
			},
			{
				Id:      "p-2",
				Summary: "Book club",
				Attendees: []*calendar.EventAttendee{
					{Email: testPersonalCalendar, ResponseStatus: "declined"},
				},
			},
		},
	}, nil)

	syncer := newTestSyncer(t, api, nil)
	if err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	workView := api.imported[testWorkView]
	if len(workView) != 1 {
		t.Fatalf("Expected 1 event in the work view, got %d", len(workView))
	}
	if workView[0].Summary != "Sprint planning" {
		t.Errorf("Expected the marked event in the work view, got '%s'", workView[0].Summary)
	}
	// Work events must not leak details through the secondary calendar.
	if workView[0].Visibility != "private" {
		t.Errorf("Expected the work view copy to be private, got '%s'", workView[0].Visibility)
	}
	if workView[0].Organizer == nil || workView[0].Organizer.Email != testWorkView {
		t.Errorf("Expected the work view as organizer, got %+v", workView[0].Organizer)
	}

	personalView := api.imported[testPersonalView]
	if len(personalView) != 1 {
		t.Fatalf("Expected 1 event in the personal view, got %d", len(personalView))
	}
	if personalView[0].Summary != "Book club" {
		t.Errorf("Expected the unmarked event in the personal view, got '%s'", personalView[0].Summary)
	}
	if personalView[0].Status != "cancelled" {
		t.Errorf("Expected the declined personal event cancelled, got '%s'", personalView[0].Status)
	}
	if personalView[0].Visibility == "private" {
		t.Error("Expected the personal view copy to keep its visibility")
	}
}

func TestRun_PurgesMarkedCopiesBeforeImport(t *testing.T) {
	api := newFakeCalendarAPI()
	scriptLists(api,
		map[string][]*calendar.Event{
			testWorkCalendar: {{Id: "work-1", Summary: "Standup"}},
		},
		map[string][]*calendar.Event{
			testPersonalCalendar: {
				{Id: "old-copy", Description: "Standup\n\n" + testMarker},
				// Free-text search over-matches; no marker in the
				// description means the event is not ours to delete.
				{Id: "innocent", Description: "Discussing the sync'd from work feature"},
			},
		},
	)

	syncer := newTestSyncer(t, api, nil)
	if err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	if len(api.deleted) != 1 {
		t.Fatalf("Expected exactly 1 deletion, got %d: %v", len(api.deleted), api.deleted)
	}
	if api.deleted[0] != testPersonalCalendar+"/old-copy" {
		t.Errorf("Expected the stale copy deleted from the personal calendar, got '%s'", api.deleted[0])
	}
}

func TestRun_BranchFailuresAreIndependent(t *testing.T) {
	api := newFakeCalendarAPI()
	scriptLists(api, map[string][]*calendar.Event{
		testPersonalCalendar: {
			{Id: "p-1", Summary: "Sprint planning", Description: testMarker},
			{Id: "p-2", Summary: "Book club"},
		},
	}, nil)
	api.importFunc = func(calendarID string, event *calendar.Event) (*calendar.Event, error) {
		if calendarID == testWorkView {
			return nil, &googleapi.Error{Code: http.StatusBadRequest}
		}
		return event, nil
	}

	syncer := newTestSyncer(t, api, nil)
	err := syncer.Run(context.Background())
	if err == nil {
		t.Fatal("Expected Run() to report the failed work view import")
	}

	// The personal branch must still have been written.
	if len(api.imported[testPersonalView]) != 1 {
		t.Errorf("Expected the personal view import to proceed, got %d events", len(api.imported[testPersonalView]))
	}
	if len(api.imported[testWorkView]) != 0 {
		t.Errorf("Expected no work view imports to land, got %d", len(api.imported[testWorkView]))
	}
}

func TestRun_WorkFetchFailureIsFatal(t *testing.T) {
	api := newFakeCalendarAPI()
	api.listFunc = func(req calclient.ListRequest) (*calendar.Events, error) {
		return nil, &googleapi.Error{Code: http.StatusForbidden}
	}

	syncer := newTestSyncer(t, api, nil)
	if err := syncer.Run(context.Background()); err == nil {
		t.Fatal("Expected Run() to fail when the work calendar cannot be fetched")
	}

	if len(api.imported) != 0 {
		t.Errorf("Expected no imports after a failed work fetch, got %v", api.imported)
	}
	if len(api.deleted) != 0 {
		t.Errorf("Expected no deletions after a failed work fetch, got %v", api.deleted)
	}
}

func TestRun_SnapshotsPreparedBatches(t *testing.T) {
	api := newFakeCalendarAPI()
	scriptLists(api, map[string][]*calendar.Event{
		testWorkCalendar: {{Id: "work-1", Summary: "Standup"}},
		testPersonalCalendar: {
			{Id: "p-1", Summary: "Sprint planning", Description: testMarker},
			{Id: "p-2", Summary: "Book club"},
		},
	}, nil)

	snapshots := make(map[string]int)
	snapshot := func(name string, events []*calendar.Event) error {
		snapshots[name] = len(events)
		return nil
	}

	syncer := newTestSyncer(t, api, snapshot)
	if err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	for name, want := range map[string]int{"work-to-personal": 1, "work-view": 1, "personal-view": 1} {
		if got := snapshots[name]; got != want {
			t.Errorf("Expected %d events in the %s snapshot, got %d", want, name, got)
		}
	}
}
