package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"

	calclient "github.com/beekhof/calendar-mirror/internal/calendar"
)

// RetryPolicy governs retries of mutating calendar calls.
//
// The wait between consecutive retries grows by squaring: wait ← wait², with
// the wait measured in seconds. This is much steeper than doubling, which is
// the point: one squaring is usually enough to clear a per-second quota.
// InitialWait must be at least one second, since squaring a sub-second wait
// shrinks it. Retry counts are unbounded; the caller bounds the run
// externally via its context or scheduler.
type RetryPolicy struct {
	InitialWait time.Duration
	Retryable   func(error) bool    // defaults to calendar.IsRetryable
	Sleep       func(time.Duration) // defaults to time.Sleep, injectable for tests
}

// nextWait squares the wait, in seconds.
func nextWait(wait time.Duration) time.Duration {
	secs := wait.Seconds()
	return time.Duration(secs * secs * float64(time.Second))
}

// Sink dispatches mutating calls to a destination calendar, pacing every call
// to respect the provider's per-second mutation quota and absorbing rate
// limits and transient server errors with retries.
type Sink struct {
	api     calclient.API
	limiter *rate.Limiter
	policy  RetryPolicy
	logger  *log.Logger
}

// NewSink creates a Sink. requestInterval is the minimum delay enforced
// before each mutating call.
func NewSink(api calclient.API, requestInterval time.Duration, policy RetryPolicy, logger *log.Logger) (*Sink, error) {
	if policy.InitialWait < time.Second {
		return nil, fmt.Errorf("retry initial wait must be at least 1s, got %v", policy.InitialWait)
	}
	if policy.Retryable == nil {
		policy.Retryable = calclient.IsRetryable
	}
	if policy.Sleep == nil {
		policy.Sleep = time.Sleep
	}

	return &Sink{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(requestInterval), 1),
		policy:  policy,
		logger:  logger,
	}, nil
}

// Import writes an event into the destination calendar, retrying through
// rate limits and transient server errors. Any other error surfaces
// immediately and aborts only this event's write.
func (s *Sink) Import(ctx context.Context, calendarID string, event *calendar.Event) error {
	return s.do(ctx, func() error {
		_, err := s.api.ImportEvent(ctx, calendarID, event)
		return err
	})
}

// Delete removes an event from the destination calendar. Deleting an event
// that is already gone counts as success.
func (s *Sink) Delete(ctx context.Context, calendarID, eventID string) error {
	return s.do(ctx, func() error {
		err := s.api.DeleteEvent(ctx, calendarID, eventID)
		if err != nil && calclient.IsNotFound(err) {
			return nil
		}
		return err
	})
}

func (s *Sink) do(ctx context.Context, op func() error) error {
	wait := s.policy.InitialWait
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		err := op()
		if err == nil {
			return nil
		}
		if !s.policy.Retryable(err) {
			return err
		}

		s.logger.Printf("Transient calendar error, retrying in %v: %v", wait, err)
		s.policy.Sleep(wait)
		wait = nextWait(wait)
	}
}
