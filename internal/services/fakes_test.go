package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tripwatch-bot/internal/models"
	"tripwatch-bot/internal/repository"
)

// memStore is an in-memory implementation of every repository interface.
type memStore struct {
	mu        sync.Mutex
	employees []*models.Employee
	trips     map[string][]*models.Trip
	checkins  map[string][]*models.Checkin
	marked    map[string]bool

	archiveCalls int
	commitErr    error
	commits      int
	tripsErrFor  string
}

func newMemStore() *memStore {
	return &memStore{
		trips:    make(map[string][]*models.Trip),
		checkins: make(map[string][]*models.Checkin),
		marked:   make(map[string]bool),
	}
}

func (m *memStore) GetByChatID(ctx context.Context, chatID int64) (*models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.employees {
		if e.ChatID == chatID {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) GetByHandle(ctx context.Context, handle string) (*models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.employees {
		if e.Handle == handle {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ListActive(ctx context.Context) ([]*models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Employee
	for _, e := range m.employees {
		if !e.Archived {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) SetArchived(ctx context.Context, employeeID string, archived bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archiveCalls++
	for _, e := range m.employees {
		if e.ID == employeeID {
			e.Archived = archived
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, trips := range m.trips {
		for _, t := range trips {
			if t.ID == id {
				return t, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ListByEmployee(ctx context.Context, employeeID string) ([]*models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tripsErrFor == employeeID {
		return nil, fmt.Errorf("trips unavailable")
	}
	return m.trips[employeeID], nil
}

func (m *memStore) UpdateCountry(ctx context.Context, id, country, timezone string) error {
	t, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	t.Country, t.Timezone = country, timezone
	return nil
}

func (m *memStore) UpdateDates(ctx context.Context, id string, start, end time.Time) error {
	t, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	t.StartDate, t.EndDate = start, end
	return nil
}

func (m *memStore) UpdateCadence(ctx context.Context, id string, frequency int, checkinTime models.SlotTime) error {
	t, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	t.Frequency, t.CheckinTime = frequency, checkinTime
	return nil
}

func (m *memStore) Create(ctx context.Context, checkin *models.Checkin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkins[checkin.EmployeeID] = append(m.checkins[checkin.EmployeeID], checkin)
	return nil
}

func (m *memStore) LatestByEmployee(ctx context.Context, employeeID string) (*models.Checkin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	checkins := m.checkins[employeeID]
	if len(checkins) == 0 {
		return nil, repository.ErrNotFound
	}
	latest := checkins[0]
	for _, c := range checkins[1:] {
		if c.Timestamp.After(latest.Timestamp) {
			latest = c
		}
	}
	return latest, nil
}

func (m *memStore) ExistsInWindow(ctx context.Context, employeeID string, from, to time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.checkins[employeeID] {
		if !c.Timestamp.Before(from) && !c.Timestamp.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListSince(ctx context.Context, since time.Time) ([]*models.Checkin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Checkin
	for _, checkins := range m.checkins {
		for _, c := range checkins {
			if !c.Timestamp.Before(since) {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (m *memStore) MarkSent(ctx context.Context, employeeID string, slotDate time.Time, slotHour int, kind string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%d|%s", employeeID, slotDate.Format("2006-01-02"), slotHour, kind)
	if m.marked[key] {
		return false, nil
	}
	m.marked[key] = true
	return true, nil
}

func (m *memStore) CommitRegistration(ctx context.Context, employee *models.Employee, trips []*models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	m.commits++
	if employee.ID == "" {
		employee.ID = fmt.Sprintf("emp-%d", employee.ChatID)
	}
	replaced := false
	for i, e := range m.employees {
		if e.ChatID == employee.ChatID {
			employee.ID = e.ID
			m.employees[i] = employee
			replaced = true
		}
	}
	if !replaced {
		m.employees = append(m.employees, employee)
	}
	for _, t := range trips {
		t.EmployeeID = employee.ID
		m.trips[employee.ID] = append(m.trips[employee.ID], t)
	}
	return nil
}

// fakeNotifier records outbound messages.
type fakeNotifier struct {
	mu       sync.Mutex
	admin    []string
	personal map[int64][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{personal: make(map[int64][]string)}
}

func (f *fakeNotifier) SendNotification(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admin = append(f.admin, message)
}

func (f *fakeNotifier) SendPersonalNotification(chatID int64, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.personal[chatID] = append(f.personal[chatID], message)
}

// staticResolver always answers with the same zone.
type staticResolver struct {
	zone string
}

func (r staticResolver) ZoneByCountry(ctx context.Context, country string) string {
	return r.zone
}

func (r staticResolver) ZoneByCoords(ctx context.Context, lat, lon float64) string {
	return r.zone
}
