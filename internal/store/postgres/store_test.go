package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"cliniq/internal/models"
	"cliniq/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var visitCols = []string{"id", "token", "name", "phone", "dept", "score", "arrival", "status", "service_start", "service_end"}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStore(mock)
}

func TestCreateVisit(t *testing.T) {
	mock, st := newMock(t)
	arrival := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO patients").
		WithArgs("Asha", "9876543210", "General", "AB12CD34", 5, arrival, models.StatusWaiting).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "arrival"}).AddRow(int64(7), models.StatusWaiting, arrival))

	visit, err := st.CreateVisit(context.Background(), store.CreateVisitInput{
		Token:   "AB12CD34",
		Name:    "Asha",
		Phone:   "9876543210",
		Dept:    "General",
		Score:   5,
		Arrival: arrival,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), visit.ID)
	assert.Equal(t, "AB12CD34", visit.Token)
	assert.Equal(t, models.StatusWaiting, visit.Status)
	assert.Equal(t, arrival, visit.Arrival)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateVisitDuplicateToken(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectQuery("INSERT INTO patients").
		WithArgs("Asha", "9876543210", "General", "AB12CD34", 1, pgxmock.AnyArg(), models.StatusWaiting).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "patients_token_key"})

	_, err := st.CreateVisit(context.Background(), store.CreateVisitInput{
		Token: "AB12CD34",
		Name:  "Asha",
		Phone: "9876543210",
		Dept:  "General",
		Score: 1,
	})
	require.ErrorIs(t, err, store.ErrTokenTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListWaitingFiltersByDepartment(t *testing.T) {
	mock, st := newMock(t)
	base := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE status = \$1\s+AND dept = \$2 ORDER BY score DESC, arrival ASC, id ASC`).
		WithArgs(models.StatusWaiting, "Cardiology").
		WillReturnRows(pgxmock.NewRows(visitCols).
			AddRow(int64(2), "BBBBBBBB", "Ben", "1234567", "Cardiology", 5, base.Add(time.Minute), models.StatusWaiting, nil, nil).
			AddRow(int64(3), "CCCCCCCC", "Cal", "1234567", "Cardiology", 3, base.Add(2*time.Minute), models.StatusWaiting, nil, nil))

	visits, err := st.ListWaiting(context.Background(), "Cardiology")
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.Equal(t, "BBBBBBBB", visits[0].Token)
	assert.Nil(t, visits[0].ServiceStart)
	assert.Equal(t, 3, visits[1].Score)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListWaitingAllDepartments(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectQuery(`WHERE status = \$1\s+ORDER BY`).
		WithArgs(models.StatusWaiting).
		WillReturnRows(pgxmock.NewRows(visitCols))

	visits, err := st.ListWaiting(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, visits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCallNextStampsServiceStart(t *testing.T) {
	mock, st := newMock(t)
	arrival := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	calledAt := arrival.Add(20 * time.Minute)

	mock.ExpectQuery("UPDATE patients").
		WithArgs(models.StatusCalled, calledAt, "General", models.StatusWaiting).
		WillReturnRows(pgxmock.NewRows(visitCols).
			AddRow(int64(4), "DDDDDDDD", "Dev", "1234567", "General", 5, arrival, models.StatusCalled, calledAt, nil))

	visit, ok, err := st.CallNext(context.Background(), "General", calledAt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StatusCalled, visit.Status)
	require.NotNil(t, visit.ServiceStart)
	assert.Equal(t, calledAt, *visit.ServiceStart)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCallNextEmptyQueue(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectQuery("UPDATE patients").
		WithArgs(models.StatusCalled, pgxmock.AnyArg(), "Ortho", models.StatusWaiting).
		WillReturnError(pgx.ErrNoRows)

	_, ok, err := st.CallNext(context.Background(), "Ortho", time.Time{})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteVisitWaitingIsInvalid(t *testing.T) {
	mock, st := newMock(t)
	arrival := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE patients").
		WithArgs(pgxmock.AnyArg(), "EEEEEEEE", models.StatusCalled).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("WHERE token = ").
		WithArgs("EEEEEEEE").
		WillReturnRows(pgxmock.NewRows(visitCols).
			AddRow(int64(5), "EEEEEEEE", "Eve", "1234567", "General", 1, arrival, models.StatusWaiting, nil, nil))

	_, err := st.CompleteVisit(context.Background(), "EEEEEEEE", time.Time{})
	require.ErrorIs(t, err, store.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteVisitUnknownToken(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectQuery("UPDATE patients").
		WithArgs(pgxmock.AnyArg(), "NOPE0000", models.StatusCalled).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("WHERE token = ").
		WithArgs("NOPE0000").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.CompleteVisit(context.Background(), "NOPE0000", time.Time{})
	require.ErrorIs(t, err, store.ErrVisitNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceHistory(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectQuery("AVG").
		WithArgs("General").
		WillReturnRows(pgxmock.NewRows([]string{"avg", "count"}).AddRow(12.5, int64(4)))

	history, err := st.ServiceHistory(context.Background(), "General")
	require.NoError(t, err)
	assert.Equal(t, store.ServiceHistory{AvgMinutes: 12.5, Completed: 4}, history)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountWaitingIncludesEmptyDepartments(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectQuery("GROUP BY dept").
		WithArgs(models.StatusWaiting).
		WillReturnRows(pgxmock.NewRows([]string{"dept", "count"}).AddRow("General", int64(3)))

	counts, err := st.CountWaiting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"General": 3, "Cardiology": 0, "Pediatrics": 0, "Ortho": 0}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAppointment(t *testing.T) {
	mock, st := newMock(t)
	bookedAt := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("General", "2026-01-13 09:00").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs("Asha", "9876543210", "General", "2026-01-13 09:00", bookedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "booked_at"}).AddRow(int64(1), bookedAt))
	mock.ExpectCommit()

	appt, err := st.BookAppointment(context.Background(), store.CreateAppointmentInput{
		Name:     "Asha",
		Phone:    "9876543210",
		Dept:     "General",
		Slot:     "2026-01-13 09:00",
		BookedAt: bookedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), appt.ID)
	assert.Equal(t, "2026-01-13 09:00", appt.Slot)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAppointmentPreCheckConflict(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("General", "2026-01-13 09:00").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := st.BookAppointment(context.Background(), store.CreateAppointmentInput{
		Name: "Asha", Phone: "9876543210", Dept: "General", Slot: "2026-01-13 09:00",
	})
	require.ErrorIs(t, err, store.ErrSlotTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAppointmentUniqueViolationIsConflict(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("General", "2026-01-13 09:00").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs("Asha", "9876543210", "General", "2026-01-13 09:00", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_dept_slot_key"})
	mock.ExpectRollback()

	_, err := st.BookAppointment(context.Background(), store.CreateAppointmentInput{
		Name: "Asha", Phone: "9876543210", Dept: "General", Slot: "2026-01-13 09:00",
	})
	require.ErrorIs(t, err, store.ErrSlotTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAppointmentOtherErrorPropagates(t *testing.T) {
	mock, st := newMock(t)
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("General", "2026-01-13 09:00").
		WillReturnError(boom)
	mock.ExpectRollback()

	_, err := st.BookAppointment(context.Background(), store.CreateAppointmentInput{
		Name: "Asha", Phone: "9876543210", Dept: "General", Slot: "2026-01-13 09:00",
	})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, store.ErrSlotTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListBookedSlots(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectQuery(`substr\(slot, 1, 10\) = \$2`).
		WithArgs("General", "2026-01-13").
		WillReturnRows(pgxmock.NewRows([]string{"slot"}).AddRow("2026-01-13 09:00").AddRow("2026-01-13 10:30"))

	slots, err := st.ListBookedSlots(context.Background(), "General", "2026-01-13")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-13 09:00", "2026-01-13 10:30"}, slots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: tokenConstraint}, tokenConstraint))
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}, tokenConstraint))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: slotConstraint}, tokenConstraint))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}, tokenConstraint))
	assert.False(t, isUniqueViolation(errors.New("plain"), tokenConstraint))
}
