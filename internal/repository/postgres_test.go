package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"

	"tripwatch-bot/internal/models"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		mock.Close()
	})
	return mock
}

func TestEmployeeRepository_GetByChatID(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresEmployeeRepository(mock)

	rows := pgxmock.NewRows([]string{"id", "chat_id", "display_name", "handle", "language", "archived"}).
		AddRow("emp-1", int64(100), "Kenji", "kenji", "en", false)
	mock.ExpectQuery(`SELECT .+ FROM employees WHERE chat_id`).
		WithArgs(int64(100)).
		WillReturnRows(rows)

	e, err := repo.GetByChatID(context.Background(), 100)
	if err != nil {
		t.Fatalf("GetByChatID: %v", err)
	}
	if e.ID != "emp-1" || e.Handle != "kenji" || e.Archived {
		t.Errorf("unexpected employee %+v", e)
	}
}

func TestEmployeeRepository_GetByChatID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresEmployeeRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM employees WHERE chat_id`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "chat_id", "display_name", "handle", "language", "archived"}))

	_, err := repo.GetByChatID(context.Background(), 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmployeeRepository_SetArchived_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresEmployeeRepository(mock)

	mock.ExpectExec(`UPDATE employees SET archived`).
		WithArgs(true, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SetArchived(context.Background(), "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTripRepository_ListByEmployee(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresTripRepository(mock)

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "employee_id", "country", "timezone", "start_date", "end_date", "frequency", "checkin_time"}).
		AddRow("trip-1", "emp-1", "Japan", "Asia/Tokyo", start, end, 1, "morning").
		AddRow("trip-2", "emp-1", "Korea", "Asia/Seoul", start, end, 2, "")
	mock.ExpectQuery(`SELECT .+ FROM trips WHERE employee_id`).
		WithArgs("emp-1").
		WillReturnRows(rows)

	trips, err := repo.ListByEmployee(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("ListByEmployee: %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(trips))
	}
	if trips[0].CheckinTime != models.SlotMorning || trips[1].CheckinTime != "" {
		t.Errorf("unexpected checkin times %q, %q", trips[0].CheckinTime, trips[1].CheckinTime)
	}
}

func TestCheckinRepository_ExistsInWindow(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresCheckinRepository(mock)

	from := time.Date(2026, 5, 3, 6, 30, 0, 0, time.UTC)
	to := time.Date(2026, 5, 3, 8, 20, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("emp-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsInWindow(context.Background(), "emp-1", from, to)
	if err != nil || !ok {
		t.Fatalf("ExistsInWindow = %v, %v", ok, err)
	}
}

func TestNotificationLog_MarkSentOnlyOnce(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresNotificationLogRepository(mock)
	slotDate := time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO notification_log`).
		WithArgs("emp-1", slotDate, 8, "reminder").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO notification_log`).
		WithArgs("emp-1", slotDate, 8, "reminder").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	first, err := repo.MarkSent(context.Background(), "emp-1", slotDate, 8, "reminder")
	if err != nil || !first {
		t.Fatalf("first MarkSent = %v, %v", first, err)
	}
	second, err := repo.MarkSent(context.Background(), "emp-1", slotDate, 8, "reminder")
	if err != nil || second {
		t.Fatalf("second MarkSent = %v, %v, want false", second, err)
	}
}

func TestRegistrar_CommitRegistration(t *testing.T) {
	mock := newMock(t)
	registrar := NewPostgresRegistrar(mock)

	employee := &models.Employee{ChatID: 100, DisplayName: "Kenji", Handle: "kenji", Language: "en"}
	trip := &models.Trip{
		Country:   "Japan",
		Timezone:  "Asia/Tokyo",
		StartDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		Frequency: 2,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO employees`).
		WithArgs(pgxmock.AnyArg(), int64(100), "Kenji", "kenji", "en").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("emp-1"))
	mock.ExpectExec(`INSERT INTO trips`).
		WithArgs(pgxmock.AnyArg(), "emp-1", "Japan", "Asia/Tokyo", trip.StartDate, trip.EndDate, 2, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := registrar.CommitRegistration(context.Background(), employee, []*models.Trip{trip}); err != nil {
		t.Fatalf("CommitRegistration: %v", err)
	}
	if employee.ID != "emp-1" || trip.EmployeeID != "emp-1" {
		t.Errorf("ids not propagated: employee=%q trip=%q", employee.ID, trip.EmployeeID)
	}
}

func TestRegistrar_CommitRollsBackOnTripFailure(t *testing.T) {
	mock := newMock(t)
	registrar := NewPostgresRegistrar(mock)

	employee := &models.Employee{ChatID: 100, DisplayName: "Kenji", Language: "en"}
	trip := &models.Trip{
		Country:   "Japan",
		Timezone:  "Asia/Tokyo",
		StartDate: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Frequency: 1,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO employees`).
		WithArgs(pgxmock.AnyArg(), int64(100), "Kenji", "", "en").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("emp-1"))
	mock.ExpectExec(`INSERT INTO trips`).
		WithArgs(pgxmock.AnyArg(), "emp-1", "Japan", "Asia/Tokyo", trip.StartDate, trip.EndDate, 1, "").
		WillReturnError(errors.New("check constraint violated"))
	mock.ExpectRollback()

	if err := registrar.CommitRegistration(context.Background(), employee, []*models.Trip{trip}); err == nil {
		t.Fatal("expected commit to fail")
	}
}
