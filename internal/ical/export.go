// Package ical writes prepared import batches out as iCalendar files so the
// events about to be written to a destination calendar can be inspected.
package ical

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
)

// Encode converts a batch of events into a single iCalendar document.
func Encode(events []*calendar.Event) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//Calendar Mirror//EN")

	for _, event := range events {
		vevent, err := eventToComponent(event)
		if err != nil {
			return nil, err
		}
		cal.Children = append(cal.Children, vevent)
	}

	return cal, nil
}

// WriteSnapshot encodes the batch and writes it to dir as <name>-<date>.ics.
// Returns the path written.
func WriteSnapshot(dir, name string, events []*calendar.Event) (string, error) {
	cal, err := Encode(events)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.ics", name, time.Now().Format("20060102T150405")))
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	return path, nil
}

func eventToComponent(event *calendar.Event) (*ical.Component, error) {
	vevent := ical.NewComponent(ical.CompEvent)

	// Prefer the cross-calendar identifier; events whose identity was cleared
	// for import still need some UID to be a valid VEVENT.
	switch {
	case event.ICalUID != "":
		vevent.Props.SetText(ical.PropUID, event.ICalUID)
	case event.Id != "":
		vevent.Props.SetText(ical.PropUID, event.Id)
	default:
		vevent.Props.SetText(ical.PropUID, fmt.Sprintf("%s@calendar-mirror", uuid.NewString()))
	}

	if event.Summary != "" {
		vevent.Props.SetText(ical.PropSummary, event.Summary)
	}
	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(ical.PropLocation, event.Location)
	}

	if event.Status != "" {
		vevent.Props.SetText(ical.PropStatus, strings.ToUpper(event.Status))
	}
	if event.Visibility == "private" {
		vevent.Props.SetText(ical.PropClass, "PRIVATE")
	}
	if event.Organizer != nil && event.Organizer.Email != "" {
		organizer := ical.NewProp(ical.PropOrganizer)
		organizer.Value = "mailto:" + event.Organizer.Email
		if event.Organizer.DisplayName != "" {
			organizer.Params.Set("CN", event.Organizer.DisplayName)
		}
		vevent.Props.Set(organizer)
	}

	if event.Start != nil {
		if err := setTimeProp(vevent, "DTSTART", event.Start); err != nil {
			return nil, err
		}
	}
	if event.End != nil {
		if err := setTimeProp(vevent, "DTEND", event.End); err != nil {
			return nil, err
		}
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now())

	return vevent, nil
}

func setTimeProp(vevent *ical.Component, name string, edt *calendar.EventDateTime) error {
	if edt.Date != "" {
		// All-day event
		day, err := time.Parse("2006-01-02", edt.Date)
		if err != nil {
			return fmt.Errorf("failed to parse %s date %q: %w", name, edt.Date, err)
		}
		prop := ical.NewProp(name)
		prop.SetDate(day)
		vevent.Props.Set(prop)
		return nil
	}

	if edt.DateTime != "" {
		at, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return fmt.Errorf("failed to parse %s time %q: %w", name, edt.DateTime, err)
		}
		vevent.Props.SetDateTime(name, at)
	}
	return nil
}
