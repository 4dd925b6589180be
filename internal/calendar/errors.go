package calendar

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Common Calendar API errors.
var (
	// ErrSyncTokenExpired indicates the sync token is no longer valid and the
	// caller must fall back to a full listing.
	ErrSyncTokenExpired = errors.New("calendar: sync token expired, full resync required")

	// ErrRateLimited indicates the per-user mutation quota was exceeded.
	ErrRateLimited = errors.New("calendar: rate limit exceeded")

	// ErrNotFound indicates the requested event does not exist.
	ErrNotFound = errors.New("calendar: event not found")
)

// IsSyncTokenExpired returns true if the error means the sync token presented
// on a listing is stale. Google documents 410 GONE for this; some deployments
// have been observed returning 401 instead, so both recover via full resync.
func IsSyncTokenExpired(err error) bool {
	if errors.Is(err, ErrSyncTokenExpired) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusGone || gerr.Code == http.StatusUnauthorized
	}
	return false
}

// IsRetryable returns true if the error is a rate limit or transient server
// failure that a backoff-and-retry can recover from.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusForbidden, // rateLimitExceeded arrives as 403
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusServiceUnavailable:
			return true
		}
	}
	return false
}

// IsNotFound returns true if the error means the event is absent or already
// deleted. Deleting an already-deleted event returns 410.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}
