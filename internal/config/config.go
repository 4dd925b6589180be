package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Default tunables. The backoff wait must stay at or above one second:
// the retry growth law squares the wait, and squaring a sub-second value
// would shrink it instead of growing it.
const (
	DefaultProvenanceMarker      = "## sync'd from work ##"
	DefaultWindowDays            = 93
	DefaultRequestIntervalMillis = 225
	DefaultInitialBackoffSeconds = 2.25
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// CalendarIdentity names one calendar: its ID (an email address for primary
// calendars, an opaque group address for secondaries) and the display name to
// stamp onto events re-organized into it.
type CalendarIdentity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// Config holds the configuration for the calendar mirror tool.
type Config struct {
	GoogleCredentialsPath string `json:"google_credentials_path,omitempty"`
	TokenPath             string `json:"token_path,omitempty"`
	StatePath             string `json:"state_path,omitempty"`
	SnapshotDir           string `json:"snapshot_dir,omitempty"` // optional .ics dumps of prepared batches

	WorkCalendar     CalendarIdentity `json:"work_calendar"`          // source: work calendar shared into the personal account
	PersonalCalendar CalendarIdentity `json:"personal_calendar"`      // the personal account's primary calendar
	PersonalView     CalendarIdentity `json:"personal_view_calendar"` // secondary calendar holding only personal events
	WorkView         CalendarIdentity `json:"work_view_calendar"`     // secondary calendar holding only work events

	ProvenanceMarker      string  `json:"provenance_marker,omitempty"`
	WindowDays            int     `json:"window_days,omitempty"`             // full-listing horizon, back and forward
	RequestIntervalMillis int     `json:"request_interval_ms,omitempty"`     // minimum delay between mutating calls
	InitialBackoffSeconds float64 `json:"initial_backoff_seconds,omitempty"` // starting retry wait, squared on each failure
}

// LoadConfigFromFile loads configuration from a JSON file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if any required value is missing.
func LoadConfig(configFile, tokenPathFlag, statePathFlag, credentialsPathFlag, snapshotDirFlag string) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	if tokenPath := os.Getenv("TOKEN_PATH"); tokenPath != "" {
		config.TokenPath = tokenPath
	}
	if statePath := os.Getenv("STATE_PATH"); statePath != "" {
		config.StatePath = statePath
	}
	if credentialsPath := os.Getenv("GOOGLE_CREDENTIALS_PATH"); credentialsPath != "" {
		config.GoogleCredentialsPath = credentialsPath
	}
	if snapshotDir := os.Getenv("SNAPSHOT_DIR"); snapshotDir != "" {
		config.SnapshotDir = snapshotDir
	}
	if windowDays := os.Getenv("WINDOW_DAYS"); windowDays != "" {
		days, err := strconv.Atoi(windowDays)
		if err != nil {
			return nil, fmt.Errorf("invalid WINDOW_DAYS value %q: %w", windowDays, err)
		}
		config.WindowDays = days
	}

	// Step 3: Override with command-line flags (highest priority)
	if tokenPathFlag != "" {
		config.TokenPath = tokenPathFlag
	}
	if statePathFlag != "" {
		config.StatePath = statePathFlag
	}
	if credentialsPathFlag != "" {
		config.GoogleCredentialsPath = credentialsPathFlag
	}
	if snapshotDirFlag != "" {
		config.SnapshotDir = snapshotDirFlag
	}

	// Step 4: Apply defaults and validate required fields
	if config.GoogleCredentialsPath == "" {
		return nil, fmt.Errorf("google_credentials_path must be provided via --google-credentials-path flag, GOOGLE_CREDENTIALS_PATH environment variable, or config file")
	}
	if config.TokenPath == "" {
		return nil, fmt.Errorf("token_path must be provided via --token-path flag, TOKEN_PATH environment variable, or config file")
	}
	if config.StatePath == "" {
		return nil, fmt.Errorf("state_path must be provided via --state-path flag, STATE_PATH environment variable, or config file")
	}

	if config.WorkCalendar.ID == "" {
		return nil, fmt.Errorf("work_calendar.id must be set in the config file")
	}
	if config.PersonalCalendar.ID == "" {
		return nil, fmt.Errorf("personal_calendar.id must be set in the config file")
	}
	if config.PersonalView.ID == "" {
		return nil, fmt.Errorf("personal_view_calendar.id must be set in the config file")
	}
	if config.WorkView.ID == "" {
		return nil, fmt.Errorf("work_view_calendar.id must be set in the config file")
	}

	if config.ProvenanceMarker == "" {
		config.ProvenanceMarker = DefaultProvenanceMarker
	}
	if config.WindowDays <= 0 {
		config.WindowDays = DefaultWindowDays
	}
	if config.RequestIntervalMillis <= 0 {
		config.RequestIntervalMillis = DefaultRequestIntervalMillis
	}
	if config.InitialBackoffSeconds == 0 {
		config.InitialBackoffSeconds = DefaultInitialBackoffSeconds
	}
	if config.InitialBackoffSeconds < 1 {
		return nil, fmt.Errorf("initial_backoff_seconds must be at least 1 (got %v): the retry wait is squared on each failure and a sub-second wait would shrink", config.InitialBackoffSeconds)
	}

	return &config, nil
}
