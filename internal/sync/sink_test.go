package sync

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

func TestNewSink_RejectsSubSecondInitialWait(t *testing.T) {
	_, err := NewSink(newFakeCalendarAPI(), time.Millisecond, RetryPolicy{
		InitialWait: 500 * time.Millisecond,
	}, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 1s")
}

func TestImport_RetriesRateLimitsWithSquaredWaits(t *testing.T) {
	failures := 3
	calls := 0
	api := newFakeCalendarAPI()
	api.importFunc = func(calendarID string, event *calendar.Event) (*calendar.Event, error) {
		calls++
		if calls <= failures {
			return nil, &googleapi.Error{Code: http.StatusTooManyRequests}
		}
		return event, nil
	}

	var waits []time.Duration
	sink, err := NewSink(api, time.Nanosecond, RetryPolicy{
		InitialWait: 2 * time.Second,
		Sleep:       func(d time.Duration) { waits = append(waits, d) },
	}, quietLogger())
	require.NoError(t, err)

	err = sink.Import(context.Background(), "me@example.com", &calendar.Event{Id: "e1"})
	require.NoError(t, err)

	// One attempt per failure plus the one that lands.
	assert.Equal(t, failures+1, calls)

	// Each wait is the square, in seconds, of the one before it.
	require.Len(t, waits, failures)
	assert.Equal(t, 2*time.Second, waits[0])
	for i := 1; i < len(waits); i++ {
		secs := waits[i-1].Seconds()
		assert.Equal(t, time.Duration(secs*secs*float64(time.Second)), waits[i])
	}
}

func TestImport_DoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	api := newFakeCalendarAPI()
	api.importFunc = func(calendarID string, event *calendar.Event) (*calendar.Event, error) {
		calls++
		return nil, &googleapi.Error{Code: http.StatusBadRequest}
	}

	slept := false
	sink, err := NewSink(api, time.Nanosecond, RetryPolicy{
		InitialWait: time.Second,
		Sleep:       func(time.Duration) { slept = true },
	}, quietLogger())
	require.NoError(t, err)

	err = sink.Import(context.Background(), "me@example.com", &calendar.Event{Id: "e1"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, slept)
}

func TestDelete_MissingEventIsSuccess(t *testing.T) {
	calls := 0
	api := newFakeCalendarAPI()
	api.deleteFunc = func(calendarID, eventID string) error {
		calls++
		return &googleapi.Error{Code: http.StatusNotFound}
	}

	slept := false
	sink, err := NewSink(api, time.Nanosecond, RetryPolicy{
		InitialWait: time.Second,
		Sleep:       func(time.Duration) { slept = true },
	}, quietLogger())
	require.NoError(t, err)

	err = sink.Delete(context.Background(), "me@example.com", "gone-already")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, slept)
}

func TestDelete_RetriesServerErrors(t *testing.T) {
	calls := 0
	api := newFakeCalendarAPI()
	api.deleteFunc = func(calendarID, eventID string) error {
		calls++
		if calls == 1 {
			return &googleapi.Error{Code: http.StatusServiceUnavailable}
		}
		return nil
	}

	sink, err := NewSink(api, time.Nanosecond, RetryPolicy{
		InitialWait: time.Second,
		Sleep:       func(time.Duration) {},
	}, quietLogger())
	require.NoError(t, err)

	err = sink.Delete(context.Background(), "me@example.com", "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
