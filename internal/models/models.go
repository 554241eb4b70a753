// Package models contains data structures for the application
package models

import (
	"time"
)

// CheckinStatus is the self-reported condition attached to a check-in.
type CheckinStatus string

const (
	StatusOK          CheckinStatus = "ok"
	StatusHealthIssue CheckinStatus = "health-issue"
	StatusSafetyIssue CheckinStatus = "safety-issue"
)

// Escalates reports whether the status must be forwarded to the admin channel.
func (s CheckinStatus) Escalates() bool {
	return s == StatusHealthIssue || s == StatusSafetyIssue
}

// SlotTime names one of the three fixed daily check-in slots.
type SlotTime string

const (
	SlotMorning SlotTime = "morning"
	SlotMidday  SlotTime = "midday"
	SlotEvening SlotTime = "evening"
)

// SlotHour returns the local wall-clock hour of the slot.
func (s SlotTime) SlotHour() int {
	switch s {
	case SlotMidday:
		return 14
	case SlotEvening:
		return 20
	default:
		return 8
	}
}

// Employee represents a registered traveler.
type Employee struct {
	ID          string
	ChatID      int64
	DisplayName string
	Handle      string
	Language    string
	Archived    bool
}

// Trip is one bounded stay in a single country with a check-in cadence.
// StartDate and EndDate are inclusive calendar dates stored at midnight UTC.
type Trip struct {
	ID          string
	EmployeeID  string
	Country     string
	Timezone    string
	StartDate   time.Time
	EndDate     time.Time
	Frequency   int      // 1..3 check-ins per day
	CheckinTime SlotTime // meaningful only when Frequency == 1
}

// Slots derives the day's expected slots from the trip cadence.
func (t *Trip) Slots() []SlotTime {
	switch t.Frequency {
	case 2:
		return []SlotTime{SlotMorning, SlotEvening}
	case 3:
		return []SlotTime{SlotMorning, SlotMidday, SlotEvening}
	default:
		if t.CheckinTime == "" {
			return []SlotTime{SlotMorning}
		}
		return []SlotTime{t.CheckinTime}
	}
}

// Location returns the trip's IANA zone, falling back to UTC when the stored
// name does not resolve on this host.
func (t *Trip) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Covers reports whether day falls inside the trip's inclusive date range.
// Only the calendar date of day is considered.
func (t *Trip) Covers(day time.Time) bool {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(t.StartDate) && !d.After(t.EndDate)
}

// DayMode selects which timezone "today" is evaluated in when deciding
// whether a trip is current.
type DayMode string

const (
	// DayModeTrip evaluates "today" in the trip's own timezone.
	DayModeTrip DayMode = "trip"
	// DayModeHost evaluates "today" on the scheduler host's clock.
	DayModeHost DayMode = "host"
)

// CurrentTrip selects the trip covering "today" at instant now, or nil.
// At most one trip is current per employee; the first match wins.
func CurrentTrip(trips []*Trip, now time.Time, mode DayMode) *Trip {
	for _, t := range trips {
		day := now
		if mode == DayModeTrip {
			day = now.In(t.Location())
		}
		if t.Covers(day) {
			return t
		}
	}
	return nil
}

// Checkin is one immutable location-backed status report.
type Checkin struct {
	ID         string
	EmployeeID string
	Latitude   float64
	Longitude  float64
	Status     CheckinStatus
	Timestamp  time.Time
}
