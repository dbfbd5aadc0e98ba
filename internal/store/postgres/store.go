package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cliniq/internal/models"
	"cliniq/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation    = "23505"
	tokenConstraint    = "patients_token_key"
	slotConstraint     = "appointments_dept_slot_key"
	visitColumns       = "id, token, name, phone, dept, score, arrival, status, service_start, service_end"
	appointmentColumns = "id, name, phone, dept, slot, booked_at"
	queueOrder         = "ORDER BY score DESC, arrival ASC, id ASC"
)

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool Pool
}

func NewStore(pool Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateVisit(ctx context.Context, input store.CreateVisitInput) (models.Visit, error) {
	arrival := input.Arrival
	if arrival.IsZero() {
		arrival = time.Now().UTC()
	}

	visit := models.Visit{
		Token: input.Token,
		Name:  input.Name,
		Phone: input.Phone,
		Dept:  input.Dept,
		Score: input.Score,
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO patients (name, phone, dept, token, score, arrival, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, status, arrival
	`, input.Name, input.Phone, input.Dept, input.Token, input.Score, arrival, models.StatusWaiting)
	if err := row.Scan(&visit.ID, &visit.Status, &visit.Arrival); err != nil {
		if isUniqueViolation(err, tokenConstraint) {
			return models.Visit{}, store.ErrTokenTaken
		}
		return models.Visit{}, fmt.Errorf("insert visit: %w", err)
	}
	return visit, nil
}

func (s *Store) GetVisitByToken(ctx context.Context, token string) (models.Visit, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM patients
		WHERE token = $1
	`, token)
	visit, err := scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Visit{}, store.ErrVisitNotFound
		}
		return models.Visit{}, err
	}
	return visit, nil
}

func (s *Store) ListWaiting(ctx context.Context, dept string) ([]models.Visit, error) {
	query := `
		SELECT ` + visitColumns + `
		FROM patients
		WHERE status = $1
	`
	args := []interface{}{models.StatusWaiting}
	if dept != "" {
		query += " AND dept = $2"
		args = append(args, dept)
	}
	query += " " + queueOrder

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectVisits(rows)
}

// CallNext moves the highest-priority waiting visit of dept to "called".
// The boolean is false when the department queue is empty.
func (s *Store) CallNext(ctx context.Context, dept string, calledAt time.Time) (models.Visit, bool, error) {
	from, ok := store.FromStatus(store.ActionCallNext)
	if !ok {
		return models.Visit{}, false, store.ErrInvalidState
	}
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE patients
		SET status = $1, service_start = $2
		WHERE id = (
			SELECT id
			FROM patients
			WHERE dept = $3 AND status = $4
			`+queueOrder+`
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+visitColumns,
		models.StatusCalled, calledAt, dept, from)
	visit, err := scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Visit{}, false, nil
		}
		return models.Visit{}, false, err
	}
	return visit, true, nil
}

// CompleteVisit stamps service_end on a called visit. It fails with
// ErrInvalidState when the visit is still waiting or already completed.
func (s *Store) CompleteVisit(ctx context.Context, token string, endedAt time.Time) (models.Visit, error) {
	from, ok := store.FromStatus(store.ActionComplete)
	if !ok {
		return models.Visit{}, store.ErrInvalidState
	}
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE patients
		SET service_end = $1
		WHERE token = $2 AND status = $3 AND service_end IS NULL
		RETURNING `+visitColumns,
		endedAt, token, from)
	visit, err := scanVisit(row)
	if err == nil {
		return visit, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Visit{}, err
	}

	if _, err := s.GetVisitByToken(ctx, token); err != nil {
		return models.Visit{}, err
	}
	return models.Visit{}, store.ErrInvalidState
}

func (s *Store) ServiceHistory(ctx context.Context, dept string) (store.ServiceHistory, error) {
	var avg float64
	var completed int64
	row := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(AVG(EXTRACT(EPOCH FROM (service_end - service_start)) / 60.0), 0)::float8,
			COUNT(*)
		FROM patients
		WHERE dept = $1 AND service_start IS NOT NULL AND service_end IS NOT NULL
	`, dept)
	if err := row.Scan(&avg, &completed); err != nil {
		return store.ServiceHistory{}, err
	}
	return store.ServiceHistory{AvgMinutes: avg, Completed: int(completed)}, nil
}

func (s *Store) CountWaiting(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT dept, COUNT(*)
		FROM patients
		WHERE status = $1
		GROUP BY dept
	`, models.StatusWaiting)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int, len(models.Departments))
	for _, dept := range models.Departments {
		counts[dept] = 0
	}
	for rows.Next() {
		var dept string
		var count int64
		if err := rows.Scan(&dept, &count); err != nil {
			return nil, err
		}
		counts[dept] = int(count)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Store) ListArrivals(ctx context.Context) ([]models.Arrival, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT dept, arrival
		FROM patients
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var arrivals []models.Arrival
	for rows.Next() {
		var arrival models.Arrival
		if err := rows.Scan(&arrival.Dept, &arrival.At); err != nil {
			return nil, err
		}
		arrivals = append(arrivals, arrival)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return arrivals, nil
}

func (s *Store) ListVisits(ctx context.Context) ([]models.Visit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+visitColumns+`
		FROM patients
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	return collectVisits(rows)
}

// BookAppointment inserts the appointment unless (dept, slot) is already
// taken. Concurrent races are decided by the unique constraint.
func (s *Store) BookAppointment(ctx context.Context, input store.CreateAppointmentInput) (models.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Appointment{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments WHERE dept = $1 AND slot = $2
		)
	`, input.Dept, input.Slot)
	if err = row.Scan(&exists); err != nil {
		return models.Appointment{}, err
	}
	if exists {
		err = store.ErrSlotTaken
		return models.Appointment{}, err
	}

	bookedAt := input.BookedAt
	if bookedAt.IsZero() {
		bookedAt = time.Now().UTC()
	}
	appointment := models.Appointment{
		Name:  input.Name,
		Phone: input.Phone,
		Dept:  input.Dept,
		Slot:  input.Slot,
	}
	row = tx.QueryRow(ctx, `
		INSERT INTO appointments (name, phone, dept, slot, booked_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, booked_at
	`, input.Name, input.Phone, input.Dept, input.Slot, bookedAt)
	if err = row.Scan(&appointment.ID, &appointment.BookedAt); err != nil {
		if isUniqueViolation(err, slotConstraint) {
			err = store.ErrSlotTaken
		}
		return models.Appointment{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Appointment{}, err
	}
	return appointment, nil
}

// ListBookedSlots returns the slot strings booked for dept on date
// (YYYY-MM-DD).
func (s *Store) ListBookedSlots(ctx context.Context, dept, date string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT slot
		FROM appointments
		WHERE dept = $1 AND substr(slot, 1, 10) = $2
		ORDER BY slot ASC
	`, dept, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *Store) ListAppointments(ctx context.Context, dept string) ([]models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
	`
	args := []interface{}{}
	if dept != "" {
		query += " WHERE dept = $1"
		args = append(args, dept)
	}
	query += " ORDER BY slot ASC, id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []models.Appointment
	for rows.Next() {
		var a models.Appointment
		if err := rows.Scan(&a.ID, &a.Name, &a.Phone, &a.Dept, &a.Slot, &a.BookedAt); err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appointments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (models.Visit, error) {
	var visit models.Visit
	var serviceStart sql.NullTime
	var serviceEnd sql.NullTime
	if err := row.Scan(&visit.ID, &visit.Token, &visit.Name, &visit.Phone, &visit.Dept, &visit.Score, &visit.Arrival, &visit.Status, &serviceStart, &serviceEnd); err != nil {
		return models.Visit{}, err
	}
	visit.ServiceStart = nullTimePtr(serviceStart)
	visit.ServiceEnd = nullTimePtr(serviceEnd)
	return visit, nil
}

func collectVisits(rows pgx.Rows) ([]models.Visit, error) {
	defer rows.Close()

	var visits []models.Visit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, visit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return visits, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return pgErr.ConstraintName == "" || pgErr.ConstraintName == constraint
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}
