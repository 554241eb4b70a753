package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tripwatch-bot/internal/models"
	"tripwatch-bot/internal/repository"
)

const (
	// reminderLead is how long before a slot the reminder goes out.
	reminderLead = 30 * time.Minute
	// windowBefore/windowAfter bound the check-in window around a slot.
	windowBefore = 90 * time.Minute
	windowAfter  = 20 * time.Minute

	kindReminder = "reminder"
	kindMiss     = "miss"
)

type dedupKey struct {
	employeeID string
	date       string
	hour       int
	kind       string
}

// Scheduler sweeps all active employees on a fixed interval, sending slot
// reminders and miss notifications at most once per (employee, date, slot).
// It is the sole owner of the in-memory dedup set; the persisted
// notification log backs the guarantee across restarts.
type Scheduler struct {
	employees  repository.EmployeeRepository
	trips      repository.TripRepository
	checkins   repository.CheckinRepository
	notified   repository.NotificationLogRepository
	dispatcher *Dispatcher
	dayMode    models.DayMode
	interval   time.Duration
	now        func() time.Time
	sent       map[dedupKey]struct{}
}

func NewScheduler(
	employees repository.EmployeeRepository,
	trips repository.TripRepository,
	checkins repository.CheckinRepository,
	notified repository.NotificationLogRepository,
	dispatcher *Dispatcher,
	dayMode models.DayMode,
	interval time.Duration,
) *Scheduler {
	return &Scheduler{
		employees:  employees,
		trips:      trips,
		checkins:   checkins,
		notified:   notified,
		dispatcher: dispatcher,
		dayMode:    dayMode,
		interval:   interval,
		now:        time.Now,
		sent:       make(map[dedupKey]struct{}),
	}
}

// Run sweeps immediately and then on every tick until ctx is canceled.
// It never returns on sweep errors.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("Scheduler started, sweeping every %s", s.interval)
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one evaluation pass over all active employees. A failure for
// one employee is logged and does not abort the rest of the pass.
func (s *Scheduler) Sweep(ctx context.Context) {
	employees, err := s.employees.ListActive(ctx)
	if err != nil {
		log.Printf("Sweep aborted, cannot list employees: %v", err)
		return
	}

	for _, employee := range employees {
		if err := s.evaluate(ctx, employee); err != nil {
			log.Printf("Sweep error for employee %s: %v", employee.DisplayName, err)
		}
	}
}

func (s *Scheduler) evaluate(ctx context.Context, employee *models.Employee) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	trips, err := s.trips.ListByEmployee(ctx, employee.ID)
	if err != nil {
		return fmt.Errorf("failed to load trips: %w", err)
	}

	trip := models.CurrentTrip(trips, s.now(), s.dayMode)
	if trip == nil {
		if err := s.employees.SetArchived(ctx, employee.ID, true); err != nil {
			return fmt.Errorf("failed to archive: %w", err)
		}
		log.Printf("Archived employee %s: no current trip", employee.DisplayName)
		s.dispatcher.EmployeeArchived(employee)
		return nil
	}

	loc := trip.Location()
	now := s.now().In(loc)

	for _, st := range trip.Slots() {
		slot := time.Date(now.Year(), now.Month(), now.Day(), st.SlotHour(), 0, 0, 0, loc)

		if !now.Before(slot.Add(-reminderLead)) && s.markOnce(ctx, employee.ID, slot, kindReminder) {
			s.dispatcher.ReminderDue(employee, slot)
		}

		// The slot is only decidable once its whole window has elapsed.
		if !now.After(slot.Add(windowAfter)) {
			continue
		}
		satisfied, err := s.checkins.ExistsInWindow(ctx, employee.ID,
			slot.Add(-windowBefore), slot.Add(windowAfter))
		if err != nil {
			return fmt.Errorf("failed to query checkin window: %w", err)
		}
		if satisfied || !s.markOnce(ctx, employee.ID, slot, kindMiss) {
			continue
		}

		last, err := s.checkins.LatestByEmployee(ctx, employee.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to load latest checkin: %w", err)
		}
		s.dispatcher.MissedCheckin(employee, slot, last)
	}
	return nil
}

// markOnce claims the (employee, date, slot, kind) key. It returns true only
// the first time the key is claimed, consulting the in-memory set first and
// the persisted log second. A log write failure still claims the key in
// memory so the process-lifetime guarantee holds.
func (s *Scheduler) markOnce(ctx context.Context, employeeID string, slot time.Time, kind string) bool {
	key := dedupKey{employeeID, slot.Format("2006-01-02"), slot.Hour(), kind}
	if _, ok := s.sent[key]; ok {
		return false
	}
	s.sent[key] = struct{}{}

	slotDate := time.Date(slot.Year(), slot.Month(), slot.Day(), 0, 0, 0, 0, time.UTC)
	inserted, err := s.notified.MarkSent(ctx, employeeID, slotDate, slot.Hour(), kind)
	if err != nil {
		log.Printf("Failed to persist %s key for employee %s: %v", kind, employeeID, err)
		return true
	}
	return inserted
}
