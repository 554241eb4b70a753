// Package repository defines repository interfaces for data access
package repository

import (
	"context"
	"errors"
	"time"

	"tripwatch-bot/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// EmployeeRepository defines the interface for employee data access
type EmployeeRepository interface {
	// GetByChatID retrieves an employee by their Telegram chat id
	GetByChatID(ctx context.Context, chatID int64) (*models.Employee, error)
	// GetByHandle retrieves an employee by their handle
	GetByHandle(ctx context.Context, handle string) (*models.Employee, error)
	// ListActive returns all non-archived employees
	ListActive(ctx context.Context) ([]*models.Employee, error)
	// SetArchived flips the archived flag
	SetArchived(ctx context.Context, employeeID string, archived bool) error
}

// TripRepository defines the interface for trip data access
type TripRepository interface {
	// GetByID retrieves a trip by id
	GetByID(ctx context.Context, id string) (*models.Trip, error)
	// ListByEmployee returns all trips for an employee, newest range first
	ListByEmployee(ctx context.Context, employeeID string) ([]*models.Trip, error)
	// UpdateCountry changes country and timezone of a single trip
	UpdateCountry(ctx context.Context, id, country, timezone string) error
	// UpdateDates changes the date range of a single trip
	UpdateDates(ctx context.Context, id string, start, end time.Time) error
	// UpdateCadence changes frequency and check-in time of a single trip
	UpdateCadence(ctx context.Context, id string, frequency int, checkinTime models.SlotTime) error
}

// CheckinRepository defines the interface for check-in data access
type CheckinRepository interface {
	// Create records a new check-in
	Create(ctx context.Context, checkin *models.Checkin) error
	// LatestByEmployee returns the most recent check-in, ErrNotFound if none
	LatestByEmployee(ctx context.Context, employeeID string) (*models.Checkin, error)
	// ExistsInWindow reports whether a check-in falls inside [from, to]
	ExistsInWindow(ctx context.Context, employeeID string, from, to time.Time) (bool, error)
	// ListSince returns check-ins newer than since, oldest first
	ListSince(ctx context.Context, since time.Time) ([]*models.Checkin, error)
}

// NotificationLogRepository persists slot notification dedup keys so the
// once-per-slot guarantee survives restarts.
type NotificationLogRepository interface {
	// MarkSent inserts the key and reports true when it was not present yet
	MarkSent(ctx context.Context, employeeID string, slotDate time.Time, slotHour int, kind string) (bool, error)
}

// Registrar commits a registration: the employee row (created or
// un-archived) plus all drafted trips, atomically.
type Registrar interface {
	CommitRegistration(ctx context.Context, employee *models.Employee, trips []*models.Trip) error
}
