package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tripwatch-bot/internal/models"
	"tripwatch-bot/internal/repository"
)

// AdminService answers the read-only admin commands. It never writes.
type AdminService struct {
	employees repository.EmployeeRepository
	trips     repository.TripRepository
	checkins  repository.CheckinRepository
	dayMode   models.DayMode
	now       func() time.Time
}

func NewAdminService(
	employees repository.EmployeeRepository,
	trips repository.TripRepository,
	checkins repository.CheckinRepository,
	dayMode models.DayMode,
) *AdminService {
	return &AdminService{
		employees: employees,
		trips:     trips,
		checkins:  checkins,
		dayMode:   dayMode,
		now:       time.Now,
	}
}

// List renders all active employees with their current trips.
func (a *AdminService) List(ctx context.Context) (string, error) {
	employees, err := a.employees.ListActive(ctx)
	if err != nil {
		return "", err
	}
	if len(employees) == 0 {
		return "No active employees.", nil
	}

	var b strings.Builder
	for _, e := range employees {
		trips, err := a.trips.ListByEmployee(ctx, e.ID)
		if err != nil {
			return "", err
		}
		line := fmt.Sprintf("👤 %s", identity(e))
		if trip := models.CurrentTrip(trips, a.now(), a.dayMode); trip != nil {
			line += fmt.Sprintf(" - %s, %s - %s", trip.Country,
				trip.StartDate.Format(dateFormat), trip.EndDate.Format(dateFormat))
		}
		b.WriteString(line + "\n")
	}
	return b.String(), nil
}

// Status renders the last check-in of one employee, found by handle.
func (a *AdminService) Status(ctx context.Context, handle string) (string, error) {
	employee, err := a.employees.GetByHandle(ctx, strings.TrimPrefix(handle, "@"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Sprintf("No employee with handle %s.", handle), nil
		}
		return "", err
	}

	last, err := a.checkins.LatestByEmployee(ctx, employee.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Sprintf("👤 %s has never checked in.", identity(employee)), nil
		}
		return "", err
	}
	return fmt.Sprintf("👤 %s\n🕐 Last check-in: %s (%s)\n📍 %s",
		identity(employee),
		last.Timestamp.Format("02.01.2006 15:04 MST"),
		TimeAgo(last.Timestamp, a.now()),
		MapURL(last.Latitude, last.Longitude)), nil
}

// Map builds one Google Maps directions URL with a marker per active
// employee on a current trip, labeled with the trip range and last check-in
// age.
func (a *AdminService) Map(ctx context.Context) (string, error) {
	employees, err := a.employees.ListActive(ctx)
	if err != nil {
		return "", err
	}

	var markers []string
	for _, e := range employees {
		trips, err := a.trips.ListByEmployee(ctx, e.ID)
		if err != nil {
			return "", err
		}
		trip := models.CurrentTrip(trips, a.now(), a.dayMode)
		if trip == nil {
			continue
		}
		last, err := a.checkins.LatestByEmployee(ctx, e.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return "", err
		}
		label := fmt.Sprintf("%s, %s - %s, last check-in: %s",
			identity(e),
			trip.StartDate.Format("02 Jan"), trip.EndDate.Format("02 Jan"),
			TimeAgo(last.Timestamp.In(trip.Location()), a.now()))
		markers = append(markers, fmt.Sprintf("%f,%f,%s",
			last.Latitude, last.Longitude, strings.ReplaceAll(label, " ", "+")))
	}
	if len(markers) == 0 {
		return "No recent positions for active employees.", nil
	}
	return "https://www.google.com/maps/dir/" + strings.Join(markers, "/"), nil
}

// ExportCSV renders all check-ins of the last days as a CSV document.
func (a *AdminService) ExportCSV(ctx context.Context, days int) ([]byte, error) {
	since := a.now().AddDate(0, 0, -days)
	checkins, err := a.checkins.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"employee_id", "timestamp", "latitude", "longitude", "status"}); err != nil {
		return nil, err
	}
	for _, c := range checkins {
		record := []string{
			c.EmployeeID,
			c.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(c.Latitude, 'f', 6, 64),
			strconv.FormatFloat(c.Longitude, 'f', 6, 64),
			string(c.Status),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
