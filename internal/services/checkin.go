package services

import (
	"context"
	"errors"
	"log"
	"time"

	"tripwatch-bot/internal/models"
	"tripwatch-bot/internal/repository"
)

var statusChoices = []string{
	string(models.StatusOK),
	string(models.StatusHealthIssue),
	string(models.StatusSafetyIssue),
}

// CheckinService turns a shared location plus a status choice into one
// immutable check-in record.
type CheckinService struct {
	sessions   *SessionStore
	employees  repository.EmployeeRepository
	trips      repository.TripRepository
	checkins   repository.CheckinRepository
	dispatcher *Dispatcher
	dayMode    models.DayMode
	now        func() time.Time
}

func NewCheckinService(
	sessions *SessionStore,
	employees repository.EmployeeRepository,
	trips repository.TripRepository,
	checkins repository.CheckinRepository,
	dispatcher *Dispatcher,
	dayMode models.DayMode,
) *CheckinService {
	return &CheckinService{
		sessions:   sessions,
		employees:  employees,
		trips:      trips,
		checkins:   checkins,
		dispatcher: dispatcher,
		dayMode:    dayMode,
		now:        time.Now,
	}
}

// HandleLocation stashes the shared coordinates and asks for a status.
func (s *CheckinService) HandleLocation(ctx context.Context, chatID int64, lat, lon float64) (*Reply, error) {
	if _, err := s.employees.GetByChatID(ctx, chatID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Reply{Text: "You are not registered yet. Use /register."}, nil
		}
		return nil, err
	}

	sess := s.sessions.Begin(chatID)
	sess.Step = StepCheckinStatus
	sess.PendingLat = lat
	sess.PendingLon = lon
	return &Reply{Text: "How are you doing?", Choices: statusChoices}, nil
}

// HandleStatus completes the check-in begun by HandleLocation. It returns
// nil when no location is pending for the chat.
func (s *CheckinService) HandleStatus(ctx context.Context, chatID int64, input string) (*Reply, error) {
	sess := s.sessions.Get(chatID)
	if sess == nil || sess.Step != StepCheckinStatus {
		return nil, nil
	}
	if !contains(statusChoices, input) {
		return &Reply{Text: "How are you doing?", Choices: statusChoices}, nil
	}

	employee, err := s.employees.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	checkin := &models.Checkin{
		EmployeeID: employee.ID,
		Latitude:   sess.PendingLat,
		Longitude:  sess.PendingLon,
		Status:     models.CheckinStatus(input),
		Timestamp:  s.now(),
	}
	if err := s.checkins.Create(ctx, checkin); err != nil {
		log.Printf("Failed to save check-in for chat %d: %v", chatID, err)
		return &Reply{Text: "Could not save your check-in. Choose a status again to retry.", Choices: statusChoices}, nil
	}
	s.sessions.End(chatID)

	loc := time.UTC
	if trips, err := s.trips.ListByEmployee(ctx, employee.ID); err == nil {
		if trip := models.CurrentTrip(trips, s.now(), s.dayMode); trip != nil {
			loc = trip.Location()
		}
	}

	s.dispatcher.CheckinRegistered(employee, checkin, loc)
	if checkin.Status.Escalates() {
		s.dispatcher.CheckinEscalation(employee, checkin)
	}
	return &Reply{}, nil
}
