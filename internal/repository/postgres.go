// Package repository provides PostgreSQL implementations via pgx
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tripwatch-bot/internal/models"
)

// DB is the subset of pgxpool.Pool the repositories need. pgx transactions
// and pgxmock pools satisfy it as well.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

func translatePgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// PostgresEmployeeRepository implements EmployeeRepository
type PostgresEmployeeRepository struct {
	db DB
}

// NewPostgresEmployeeRepository creates repository
func NewPostgresEmployeeRepository(db DB) *PostgresEmployeeRepository {
	return &PostgresEmployeeRepository{db: db}
}

const employeeColumns = `id, chat_id, display_name, COALESCE(handle, ''), language, archived`

func scanEmployee(row pgx.Row) (*models.Employee, error) {
	var e models.Employee
	if err := row.Scan(&e.ID, &e.ChatID, &e.DisplayName, &e.Handle, &e.Language, &e.Archived); err != nil {
		return nil, translatePgError(err)
	}
	return &e, nil
}

func (r *PostgresEmployeeRepository) GetByChatID(ctx context.Context, chatID int64) (*models.Employee, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE chat_id = $1`, chatID)
	return scanEmployee(row)
}

func (r *PostgresEmployeeRepository) GetByHandle(ctx context.Context, handle string) (*models.Employee, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE handle = $1`, handle)
	return scanEmployee(row)
}

func (r *PostgresEmployeeRepository) ListActive(ctx context.Context) ([]*models.Employee, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE archived = false ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []*models.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (r *PostgresEmployeeRepository) SetArchived(ctx context.Context, employeeID string, archived bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE employees SET archived = $1 WHERE id = $2`, archived, employeeID)
	if err != nil {
		return fmt.Errorf("failed to update employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresTripRepository implements TripRepository
type PostgresTripRepository struct {
	db DB
}

func NewPostgresTripRepository(db DB) *PostgresTripRepository {
	return &PostgresTripRepository{db: db}
}

const tripColumns = `id, employee_id, country, timezone, start_date, end_date, frequency, COALESCE(checkin_time, '')`

func scanTrip(row pgx.Row) (*models.Trip, error) {
	var t models.Trip
	var checkinTime string
	if err := row.Scan(&t.ID, &t.EmployeeID, &t.Country, &t.Timezone,
		&t.StartDate, &t.EndDate, &t.Frequency, &checkinTime); err != nil {
		return nil, translatePgError(err)
	}
	t.CheckinTime = models.SlotTime(checkinTime)
	return &t, nil
}

func (r *PostgresTripRepository) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
	return scanTrip(row)
}

func (r *PostgresTripRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*models.Trip, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE employee_id = $1 ORDER BY start_date DESC`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (r *PostgresTripRepository) UpdateCountry(ctx context.Context, id, country, timezone string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE trips SET country = $1, timezone = $2 WHERE id = $3`, country, timezone, id)
	if err != nil {
		return fmt.Errorf("failed to update trip country: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresTripRepository) UpdateDates(ctx context.Context, id string, start, end time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE trips SET start_date = $1, end_date = $2 WHERE id = $3`, start, end, id)
	if err != nil {
		return fmt.Errorf("failed to update trip dates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresTripRepository) UpdateCadence(ctx context.Context, id string, frequency int, checkinTime models.SlotTime) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE trips SET frequency = $1, checkin_time = NULLIF($2, '') WHERE id = $3`,
		frequency, string(checkinTime), id)
	if err != nil {
		return fmt.Errorf("failed to update trip cadence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresCheckinRepository implements CheckinRepository
type PostgresCheckinRepository struct {
	db DB
}

func NewPostgresCheckinRepository(db DB) *PostgresCheckinRepository {
	return &PostgresCheckinRepository{db: db}
}

func (r *PostgresCheckinRepository) Create(ctx context.Context, checkin *models.Checkin) error {
	if checkin.ID == "" {
		checkin.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO checkins (id, employee_id, latitude, longitude, status, ts)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		checkin.ID, checkin.EmployeeID, checkin.Latitude, checkin.Longitude,
		string(checkin.Status), checkin.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create checkin: %w", err)
	}
	return nil
}

func (r *PostgresCheckinRepository) LatestByEmployee(ctx context.Context, employeeID string) (*models.Checkin, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, employee_id, latitude, longitude, status, ts
		   FROM checkins WHERE employee_id = $1 ORDER BY ts DESC LIMIT 1`, employeeID)
	var c models.Checkin
	var status string
	if err := row.Scan(&c.ID, &c.EmployeeID, &c.Latitude, &c.Longitude, &status, &c.Timestamp); err != nil {
		return nil, translatePgError(err)
	}
	c.Status = models.CheckinStatus(status)
	return &c, nil
}

func (r *PostgresCheckinRepository) ExistsInWindow(ctx context.Context, employeeID string, from, to time.Time) (bool, error) {
	row := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM checkins WHERE employee_id = $1 AND ts BETWEEN $2 AND $3)`,
		employeeID, from, to)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check checkin window: %w", err)
	}
	return exists, nil
}

func (r *PostgresCheckinRepository) ListSince(ctx context.Context, since time.Time) ([]*models.Checkin, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, employee_id, latitude, longitude, status, ts
		   FROM checkins WHERE ts >= $1 ORDER BY ts`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkins: %w", err)
	}
	defer rows.Close()

	var checkins []*models.Checkin
	for rows.Next() {
		var c models.Checkin
		var status string
		if err := rows.Scan(&c.ID, &c.EmployeeID, &c.Latitude, &c.Longitude, &status, &c.Timestamp); err != nil {
			return nil, err
		}
		c.Status = models.CheckinStatus(status)
		checkins = append(checkins, &c)
	}
	return checkins, rows.Err()
}

// PostgresNotificationLogRepository implements NotificationLogRepository
type PostgresNotificationLogRepository struct {
	db DB
}

func NewPostgresNotificationLogRepository(db DB) *PostgresNotificationLogRepository {
	return &PostgresNotificationLogRepository{db: db}
}

// MarkSent relies on the unique key over (employee_id, slot_date, slot_hour,
// kind): a conflicting insert affects zero rows, meaning already sent.
func (r *PostgresNotificationLogRepository) MarkSent(ctx context.Context, employeeID string, slotDate time.Time, slotHour int, kind string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO notification_log (employee_id, slot_date, slot_hour, kind, sent_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (employee_id, slot_date, slot_hour, kind) DO NOTHING`,
		employeeID, slotDate, slotHour, kind)
	if err != nil {
		return false, fmt.Errorf("failed to log notification: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PostgresRegistrar implements Registrar
type PostgresRegistrar struct {
	db DB
}

func NewPostgresRegistrar(db DB) *PostgresRegistrar {
	return &PostgresRegistrar{db: db}
}

// CommitRegistration upserts the employee row keyed by chat id and inserts
// every drafted trip in a single transaction, so a failed commit leaves no
// employee without trips.
func (r *PostgresRegistrar) CommitRegistration(ctx context.Context, employee *models.Employee, trips []*models.Trip) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin registration tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}
	row := tx.QueryRow(ctx,
		`INSERT INTO employees (id, chat_id, display_name, handle, language, archived)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, false)
		 ON CONFLICT (chat_id) DO UPDATE
		   SET display_name = EXCLUDED.display_name,
		       handle = EXCLUDED.handle,
		       language = EXCLUDED.language,
		       archived = false
		 RETURNING id`,
		employee.ID, employee.ChatID, employee.DisplayName, employee.Handle, employee.Language)
	if err := row.Scan(&employee.ID); err != nil {
		return fmt.Errorf("failed to upsert employee: %w", err)
	}

	for _, trip := range trips {
		if trip.ID == "" {
			trip.ID = uuid.NewString()
		}
		trip.EmployeeID = employee.ID
		_, err := tx.Exec(ctx,
			`INSERT INTO trips (id, employee_id, country, timezone, start_date, end_date, frequency, checkin_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`,
			trip.ID, trip.EmployeeID, trip.Country, trip.Timezone,
			trip.StartDate, trip.EndDate, trip.Frequency, string(trip.CheckinTime))
		if err != nil {
			return fmt.Errorf("failed to insert trip: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}
	committed = true
	return nil
}
