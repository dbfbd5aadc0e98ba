package insights

import (
	"context"
	"fmt"
	"time"

	"cliniq/internal/models"
)

type ArrivalLister interface {
	ListArrivals(ctx context.Context) ([]models.Arrival, error)
}

type Summary struct {
	MostAvailableHour int    `json:"most_available_hour"`
	BusiestDay        string `json:"busiest_day"`
	Recommendation    string `json:"recommendation"`
}

// Service runs the helpers over the stored arrival history.
type Service struct {
	store    ArrivalLister
	location *time.Location
	now      func() time.Time
}

type Options struct {
	Location *time.Location
	Now      func() time.Time
}

func NewService(store ArrivalLister, options Options) *Service {
	loc := options.Location
	if loc == nil {
		loc = time.Local
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, location: loc, now: now}
}

func (s *Service) Summary(ctx context.Context, dept string) (Summary, error) {
	arrivals, err := s.arrivals(ctx)
	if err != nil {
		return Summary{}, err
	}
	hour := MostAvailableHour(arrivals, s.location)
	return Summary{
		MostAvailableHour: hour,
		BusiestDay:        BusiestDay(arrivals, s.location),
		Recommendation:    RecommendSlot(s.now().In(s.location), hour, dept),
	}, nil
}

func (s *Service) Recommend(ctx context.Context, dept string) (string, error) {
	summary, err := s.Summary(ctx, dept)
	if err != nil {
		return "", err
	}
	return summary.Recommendation, nil
}

func (s *Service) PeakHours(ctx context.Context) ([]PeakCell, error) {
	arrivals, err := s.arrivals(ctx)
	if err != nil {
		return nil, err
	}
	return PeakHours(arrivals, s.location), nil
}

func (s *Service) Chat(ctx context.Context, message string) (string, error) {
	arrivals, err := s.arrivals(ctx)
	if err != nil {
		return "", err
	}
	return ChatResponse(message, Facts{
		MostAvailableHour: MostAvailableHour(arrivals, s.location),
		BusiestDay:        BusiestDay(arrivals, s.location),
	}), nil
}

func (s *Service) arrivals(ctx context.Context) ([]models.Arrival, error) {
	arrivals, err := s.store.ListArrivals(ctx)
	if err != nil {
		return nil, fmt.Errorf("insights: list arrivals: %w", err)
	}
	return arrivals, nil
}
