// Package queue implements patient check-in and the per-department
// priority queue.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cliniq/internal/insights"
	"cliniq/internal/metrics"
	"cliniq/internal/models"
	"cliniq/internal/store"
	"cliniq/internal/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxTokenAttempts = 5

type CheckInInput struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Country  string `json:"country"`
	Dept     string `json:"dept"`
	Symptoms string `json:"symptoms"`
}

// Position is a waiting visit's place in its department queue.
type Position struct {
	Token       string  `json:"token"`
	Dept        string  `json:"dept"`
	Position    int     `json:"position"`
	QueueLength int     `json:"queue_length"`
	ETAMinutes  float64 `json:"eta_minutes"`
}

type Manager struct {
	store    store.VisitStore
	jitter   insights.Jitter
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
	newToken func() string
}

type Options struct {
	Jitter  insights.Jitter
	Metrics *metrics.Metrics
	Logger  *zerolog.Logger
	Now     func() time.Time
	// NewToken overrides token generation.
	NewToken func() string
}

func NewManager(st store.VisitStore, options Options) *Manager {
	m := &Manager{
		store:    st,
		jitter:   options.Jitter,
		metrics:  options.Metrics,
		logger:   zerolog.Nop(),
		now:      options.Now,
		newToken: options.NewToken,
	}
	if m.jitter == nil {
		m.jitter = insights.NewJitter(0)
	}
	if options.Logger != nil {
		m.logger = *options.Logger
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newToken == nil {
		m.newToken = NewToken
	}
	return m
}

// NewToken returns 8 uppercase hex characters taken from a random UUID.
func NewToken() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

func (m *Manager) CheckIn(ctx context.Context, input CheckInInput) (models.Visit, error) {
	name := strings.TrimSpace(input.Name)
	phone := strings.TrimSpace(input.Phone)
	country := strings.TrimSpace(input.Country)
	dept := strings.TrimSpace(input.Dept)
	if err := validation.Contact(name, phone, country, dept); err != nil {
		return models.Visit{}, err
	}

	score := insights.TriageScore(input.Symptoms)
	arrival := m.now().UTC()
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		visit, err := m.store.CreateVisit(ctx, store.CreateVisitInput{
			Token:   m.newToken(),
			Name:    name,
			Phone:   phone,
			Dept:    dept,
			Score:   score,
			Arrival: arrival,
		})
		if errors.Is(err, store.ErrTokenTaken) {
			m.logger.Warn().Int("attempt", attempt).Msg("token collision, regenerating")
			continue
		}
		if err != nil {
			return models.Visit{}, fmt.Errorf("check in: %w", err)
		}
		m.metrics.ObserveCheckIn(dept, score)
		m.logger.Info().Str("token", visit.Token).Str("dept", dept).Int("score", score).Msg("patient checked in")
		return visit, nil
	}
	return models.Visit{}, fmt.Errorf("check in: %d attempts: %w", maxTokenAttempts, store.ErrTokenTaken)
}

// Queue lists waiting visits, highest score first and then by arrival.
// An empty dept lists every department.
func (m *Manager) Queue(ctx context.Context, dept string) ([]models.Visit, error) {
	dept = strings.TrimSpace(dept)
	if dept != "" {
		if err := validation.Department(dept); err != nil {
			return nil, err
		}
	}
	visits, err := m.store.ListWaiting(ctx, dept)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return visits, nil
}

// CallNext calls the head of the department queue. It reports false
// without error when nobody is waiting.
func (m *Manager) CallNext(ctx context.Context, dept string) (models.Visit, bool, error) {
	dept = strings.TrimSpace(dept)
	if err := validation.Department(dept); err != nil {
		return models.Visit{}, false, err
	}
	visit, ok, err := m.store.CallNext(ctx, dept, m.now().UTC())
	if err != nil {
		return models.Visit{}, false, fmt.Errorf("call next: %w", err)
	}
	m.metrics.ObserveCallNext(dept, ok)
	if ok {
		m.logger.Info().Str("token", visit.Token).Str("dept", dept).Msg("patient called")
	}
	return visit, ok, nil
}

// Track returns the 1-based rank of a waiting visit and its ETA.
// Tokens that are unknown or no longer waiting yield store.ErrVisitNotFound.
func (m *Manager) Track(ctx context.Context, token string) (Position, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return Position{}, validation.Errorf("token", "token is required")
	}
	visit, err := m.store.GetVisitByToken(ctx, token)
	if err != nil {
		return Position{}, err
	}
	if visit.Status != models.StatusWaiting {
		return Position{}, store.ErrVisitNotFound
	}

	waiting, err := m.store.ListWaiting(ctx, visit.Dept)
	if err != nil {
		return Position{}, fmt.Errorf("track: %w", err)
	}
	position := 0
	for i, v := range waiting {
		if v.Token == token {
			position = i + 1
			break
		}
	}
	if position == 0 {
		return Position{}, store.ErrVisitNotFound
	}

	eta, err := m.estimate(ctx, visit.Dept, position)
	if err != nil {
		return Position{}, err
	}
	return Position{
		Token:       token,
		Dept:        visit.Dept,
		Position:    position,
		QueueLength: len(waiting),
		ETAMinutes:  eta,
	}, nil
}

// Lookup returns the visit for token regardless of status.
func (m *Manager) Lookup(ctx context.Context, token string) (models.Visit, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return models.Visit{}, validation.Errorf("token", "token is required")
	}
	return m.store.GetVisitByToken(ctx, token)
}

// Complete marks the end of service for a called visit.
func (m *Manager) Complete(ctx context.Context, token string) (models.Visit, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return models.Visit{}, validation.Errorf("token", "token is required")
	}
	visit, err := m.store.CompleteVisit(ctx, token, m.now().UTC())
	if err != nil {
		return models.Visit{}, err
	}
	m.metrics.ObserveComplete(visit.Dept)
	m.logger.Info().Str("token", token).Str("dept", visit.Dept).Msg("visit completed")
	return visit, nil
}

// Summary returns the number of waiting visits per department.
func (m *Manager) Summary(ctx context.Context) (map[string]int, error) {
	counts, err := m.store.CountWaiting(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue summary: %w", err)
	}
	return counts, nil
}

// AverageWait is the ETA of the head of the department queue, 0 when empty.
func (m *Manager) AverageWait(ctx context.Context, dept string) (float64, error) {
	dept = strings.TrimSpace(dept)
	if err := validation.Department(dept); err != nil {
		return 0, err
	}
	visits, err := m.Queue(ctx, dept)
	if err != nil {
		return 0, err
	}
	if len(visits) == 0 {
		return 0, nil
	}
	return m.estimate(ctx, dept, 1)
}

func (m *Manager) estimate(ctx context.Context, dept string, position int) (float64, error) {
	history, err := m.store.ServiceHistory(ctx, dept)
	if err != nil {
		return 0, fmt.Errorf("service history: %w", err)
	}
	return insights.EstimateETA(history.AvgMinutes, history.Completed > 0, position, m.jitter), nil
}
