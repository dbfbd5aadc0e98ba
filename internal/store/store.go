package store

import (
	"context"
	"time"

	"cliniq/internal/models"
)

type CreateVisitInput struct {
	Token   string
	Name    string
	Phone   string
	Dept    string
	Score   int
	Arrival time.Time
}

type CreateAppointmentInput struct {
	Name     string
	Phone    string
	Dept     string
	Slot     string
	BookedAt time.Time
}

// ServiceHistory summarises completed visits of one department.
type ServiceHistory struct {
	AvgMinutes float64
	Completed  int
}

type VisitStore interface {
	CreateVisit(ctx context.Context, input CreateVisitInput) (models.Visit, error)
	GetVisitByToken(ctx context.Context, token string) (models.Visit, error)
	ListWaiting(ctx context.Context, dept string) ([]models.Visit, error)
	CallNext(ctx context.Context, dept string, calledAt time.Time) (models.Visit, bool, error)
	CompleteVisit(ctx context.Context, token string, endedAt time.Time) (models.Visit, error)
	ServiceHistory(ctx context.Context, dept string) (ServiceHistory, error)
	CountWaiting(ctx context.Context) (map[string]int, error)
	ListArrivals(ctx context.Context) ([]models.Arrival, error)
	ListVisits(ctx context.Context) ([]models.Visit, error)
}

type AppointmentStore interface {
	BookAppointment(ctx context.Context, input CreateAppointmentInput) (models.Appointment, error)
	ListBookedSlots(ctx context.Context, dept, date string) ([]string, error)
	ListAppointments(ctx context.Context, dept string) ([]models.Appointment, error)
}
