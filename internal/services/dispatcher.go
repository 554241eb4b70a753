// Package services implements business logic for the application
package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"tripwatch-bot/internal/models"
)

// Notifier defines the interface for bot notifications
type Notifier interface {
	SendNotification(message string)
	SendPersonalNotification(chatID int64, message string)
}

// Dispatcher translates scheduler and flow events into outbound messages.
// It carries no business logic; transport failures are handled (logged and
// swallowed) by the Notifier itself.
type Dispatcher struct {
	notifier Notifier
}

func NewDispatcher(notifier Notifier) *Dispatcher {
	return &Dispatcher{notifier: notifier}
}

// RegistrationConfirmed confirms a completed registration to the employee.
func (d *Dispatcher) RegistrationConfirmed(employee *models.Employee, trips []*models.Trip) {
	var lines []string
	for _, t := range trips {
		lines = append(lines, fmt.Sprintf("• %s, %s - %s, %d check-in(s)/day",
			t.Country, t.StartDate.Format("02.01.2006"), t.EndDate.Format("02.01.2006"), t.Frequency))
	}
	d.notifier.SendPersonalNotification(employee.ChatID, fmt.Sprintf(
		"✅ *Registration complete, %s!*\n\n%s\n\nShare your location when a check-in is due.",
		employee.DisplayName, strings.Join(lines, "\n")))
}

// ReminderDue prompts the employee to check in for a slot.
func (d *Dispatcher) ReminderDue(employee *models.Employee, slot time.Time) {
	d.notifier.SendPersonalNotification(employee.ChatID, fmt.Sprintf(
		"⏰ *Check-in reminder*\n\nYour %s check-in is due. Please share your location.",
		slot.Format("15:04")))
}

// TripUpdated tells the admin an itinerary changed.
func (d *Dispatcher) TripUpdated(employee *models.Employee, trip *models.Trip, change string) {
	d.notifier.SendNotification(fmt.Sprintf(
		"✏️ *Trip updated*\n👤 %s - %s: %s.", identity(employee), trip.Country, change))
}

// EmployeeArchived tells the admin an employee's last trip has ended.
func (d *Dispatcher) EmployeeArchived(employee *models.Employee) {
	d.notifier.SendNotification(fmt.Sprintf(
		"📦 *Employee archived*\n👤 %s - no current trip.", identity(employee)))
}

// CheckinRegistered confirms a check-in to the employee.
func (d *Dispatcher) CheckinRegistered(employee *models.Employee, checkin *models.Checkin, loc *time.Location) {
	d.notifier.SendPersonalNotification(employee.ChatID, fmt.Sprintf(
		"✅ Check-in registered at %s. Stay safe!",
		checkin.Timestamp.In(loc).Format("15:04")))
}

// CheckinEscalation alerts the admin about a non-ok check-in status.
func (d *Dispatcher) CheckinEscalation(employee *models.Employee, checkin *models.Checkin) {
	d.notifier.SendNotification(fmt.Sprintf(
		"🚨 *Check-in escalation*\n👤 %s reported *%s*\n📍 %s",
		identity(employee), checkin.Status, MapURL(checkin.Latitude, checkin.Longitude)))
}

// MissedCheckin alerts the admin that a slot passed without a check-in.
// last may be nil when the employee has never checked in.
func (d *Dispatcher) MissedCheckin(employee *models.Employee, slot time.Time, last *models.Checkin) {
	lastSeen := "never"
	mapLine := ""
	if last != nil {
		lastSeen = last.Timestamp.In(slot.Location()).Format("02.01.2006 15:04 MST")
		mapLine = "\n📍 " + MapURL(last.Latitude, last.Longitude)
	}
	d.notifier.SendNotification(fmt.Sprintf(
		"⚠️ *Missed check-in*\n👤 %s\n🕐 Expected: %s\n👁 Last seen: %s%s",
		identity(employee), slot.Format("02.01.2006 15:04 MST"), lastSeen, mapLine))
	log.Printf("Missed check-in: employee=%s slot=%s", employee.DisplayName, slot.Format(time.RFC3339))
}

func identity(employee *models.Employee) string {
	if employee.Handle != "" {
		return fmt.Sprintf("%s @%s", employee.DisplayName, employee.Handle)
	}
	return employee.DisplayName
}

// MapURL builds a Google Maps link for a coordinate pair.
func MapURL(lat, lon float64) string {
	return fmt.Sprintf("https://www.google.com/maps/dir/%f,%f", lat, lon)
}

// TimeAgo renders how long ago ts was, relative to now.
func TimeAgo(ts, now time.Time) string {
	hours := int(now.Sub(ts).Hours())
	if hours < 1 {
		return "less than an hour ago"
	}
	return fmt.Sprintf("%d hour(s) ago", hours)
}
