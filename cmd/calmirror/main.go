package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/beekhof/calendar-mirror/internal/auth"
	calclient "github.com/beekhof/calendar-mirror/internal/calendar"
	"github.com/beekhof/calendar-mirror/internal/config"
	"github.com/beekhof/calendar-mirror/internal/ical"
	"github.com/beekhof/calendar-mirror/internal/state"
	"github.com/beekhof/calendar-mirror/internal/sync"
)

func printHelp() {
	fmt.Fprintf(os.Stderr, `Calendar Mirror

Mirrors a work Google Calendar into a personal account's primary calendar,
then fans the primary calendar out into two secondary calendars, one holding
only work events and one holding only personal events, so that a voice
assistant reading a single account sees the right things.

USAGE:
    %s [OPTIONS]

OPTIONS:
    -h, --help                     Show this help message and exit
    --config FILE                  Path to JSON config file (required)
    --token-path PATH              Path to store the OAuth token
                                   (overrides config file and TOKEN_PATH env var)
    --state-path PATH              Path to the sync token state file
                                   (overrides config file and STATE_PATH env var)
    --google-credentials-path PATH Path to Google OAuth credentials JSON file
                                   (overrides config file and GOOGLE_CREDENTIALS_PATH env var)
    --snapshot-dir DIR             Write each prepared batch as an .ics file into DIR
                                   before importing it (overrides config file and
                                   SNAPSHOT_DIR env var)

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables
    3. Config file (--config)
    4. Defaults

CONFIG FILE:
    Example:
    {
      "google_credentials_path": "/path/to/credentials.json",
      "token_path": "/path/to/token.json",
      "state_path": "/path/to/state.json",
      "work_calendar": {"id": "you@work.example.com"},
      "personal_calendar": {"id": "you@example.com", "display_name": "You"},
      "personal_view_calendar": {"id": "abc@group.calendar.google.com", "display_name": "You - Personal only"},
      "work_view_calendar": {"id": "def@group.calendar.google.com", "display_name": "You - Work only"}
    }

    The work calendar must be shared into the personal account; a single
    OAuth authorization covers all four calendars. The Google credentials
    JSON file should be in the format downloaded from Google Cloud Console,
    with an "installed" or "web" section.

DESCRIPTION:
    Each run pulls the work calendar (incrementally when possible), strips
    attendees, tags the copies with a provenance marker, re-organizes them as
    the personal account, converts declines into cancellations, and imports
    them into the personal primary calendar. It then reads the primary
    calendar back, splits events by the marker, and imports each half into
    its secondary calendar; the work half is made private.

    Runs are idempotent: previously synced copies are purged by marker before
    re-import, and re-imports land on existing copies via their iCalUID.
    Designed to be re-run periodically from cron; overlapping runs are not
    supported.

EXAMPLES:
    # Run the sync with a config file
    %s --config /path/to/config.json

    # Override the credentials path via environment
    GOOGLE_CREDENTIALS_PATH="/path/to/creds.json" %s --config /path/to/config.json

    # Keep .ics snapshots of what each run imports
    %s --config /path/to/config.json --snapshot-dir /var/tmp/calmirror

    # Show help
    %s --help

`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	// Parse command-line flags
	helpFlag := flag.Bool("help", false, "Show help message")
	helpFlagShort := flag.Bool("h", false, "Show help message (shorthand)")
	configFile := flag.String("config", "", "Path to JSON config file (required)")
	tokenPath := flag.String("token-path", "", "Path to store the OAuth token (overrides config file and TOKEN_PATH env var)")
	statePath := flag.String("state-path", "", "Path to the sync token state file (overrides config file and STATE_PATH env var)")
	googleCredentialsPath := flag.String("google-credentials-path", "", "Path to Google OAuth credentials JSON file (overrides config file and GOOGLE_CREDENTIALS_PATH env var)")
	snapshotDir := flag.String("snapshot-dir", "", "Write prepared batches as .ics files into this directory (overrides config file and SNAPSHOT_DIR env var)")
	flag.Parse()

	// Show help if requested
	if *helpFlag || *helpFlagShort {
		printHelp()
		os.Exit(0)
	}

	// Set up logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx := context.Background()

	// Load configuration (precedence: flags > env vars > config file > defaults)
	if *configFile == "" {
		log.Fatalf("--config FILE is required. Use --help for more information.")
	}
	cfg, err := config.LoadConfig(*configFile, *tokenPath, *statePath, *googleCredentialsPath, *snapshotDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load Google OAuth credentials from the credentials file
	clientID, clientSecret, err := config.LoadGoogleCredentials(cfg.GoogleCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to load Google credentials: %v", err)
	}

	googleOAuthConfig := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "http://127.0.0.1:8080", // Will be updated dynamically by auth flow
		Scopes: []string{
			gcal.CalendarScope,
			gcal.CalendarEventsScope,
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	// One account, one token: the work calendar is shared into the personal
	// account rather than authorized separately.
	tokenStore := auth.NewFileTokenStore(cfg.TokenPath)
	httpClient, err := auth.GetAuthenticatedClient(ctx, googleOAuthConfig, tokenStore)
	if err != nil {
		log.Fatalf("Failed to authenticate: %v", err)
	}

	client, err := calclient.NewClient(ctx, httpClient)
	if err != nil {
		log.Fatalf("Failed to create calendar client: %v", err)
	}

	tokens, err := state.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open state file: %v", err)
	}

	logger := log.Default()
	source := sync.NewSource(client, tokens, cfg.WindowDays, logger)
	sink, err := sync.NewSink(client,
		time.Duration(cfg.RequestIntervalMillis)*time.Millisecond,
		sync.RetryPolicy{InitialWait: time.Duration(cfg.InitialBackoffSeconds * float64(time.Second))},
		logger)
	if err != nil {
		log.Fatalf("Failed to create write sink: %v", err)
	}

	var snapshot sync.SnapshotFunc
	if cfg.SnapshotDir != "" {
		snapshot = func(name string, events []*gcal.Event) error {
			path, err := ical.WriteSnapshot(cfg.SnapshotDir, name, events)
			if err != nil {
				return err
			}
			log.Printf("Wrote snapshot %s", path)
			return nil
		}
	}

	syncer := sync.NewSyncer(source, sink, cfg, snapshot, logger)

	if err := syncer.Run(ctx); err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	log.Println("Sync completed successfully.")
}
