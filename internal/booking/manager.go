// Package booking hands out half-hour appointment slots per department.
package booking

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"cliniq/internal/metrics"
	"cliniq/internal/models"
	"cliniq/internal/store"
	"cliniq/internal/validation"

	"github.com/rs/zerolog"
)

const (
	dateLayout = "2006-01-02"
	slotLayout = "2006-01-02 15:04"

	firstSlotMinute = 8 * 60
	lastSlotMinute  = 18 * 60
	slotStepMinutes = 30
)

var inputLayouts = []string{slotLayout, "2006-01-02 15:04:05"}

type BookInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Country string `json:"country"`
	Dept    string `json:"dept"`
	Slot    string `json:"slot"`
}

type Manager struct {
	store    store.AppointmentStore
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	location *time.Location
	now      func() time.Time
}

type Options struct {
	Metrics  *metrics.Metrics
	Logger   *zerolog.Logger
	Location *time.Location
	Now      func() time.Time
}

func NewManager(st store.AppointmentStore, options Options) *Manager {
	m := &Manager{
		store:    st,
		metrics:  options.Metrics,
		logger:   zerolog.Nop(),
		location: options.Location,
		now:      options.Now,
	}
	if options.Logger != nil {
		m.logger = *options.Logger
	}
	if m.location == nil {
		m.location = time.Local
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// DaySlots yields every half-hour mark from 08:00 to 18:00 inclusive.
func DaySlots() iter.Seq[string] {
	return func(yield func(string) bool) {
		for minute := firstSlotMinute; minute <= lastSlotMinute; minute += slotStepMinutes {
			if !yield(fmt.Sprintf("%02d:%02d", minute/60, minute%60)) {
				return
			}
		}
	}
}

func isDaySlot(hhmm string) bool {
	for slot := range DaySlots() {
		if slot == hhmm {
			return true
		}
	}
	return false
}

// FreeSlots returns the times of day still bookable for dept on date
// (YYYY-MM-DD). Bookings are read once per call; the returned sequence can
// be ranged over repeatedly.
func (m *Manager) FreeSlots(ctx context.Context, dept, date string) (iter.Seq[string], error) {
	dept = strings.TrimSpace(dept)
	if err := validation.Department(dept); err != nil {
		return nil, err
	}
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	booked, err := m.store.ListBookedSlots(ctx, dept, day)
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	taken := make(map[string]struct{}, len(booked))
	for _, slot := range booked {
		// Only HH:MM matters; stored rows may carry seconds.
		if _, clock, ok := strings.Cut(slot, " "); ok && len(clock) >= 5 {
			taken[clock[:5]] = struct{}{}
		}
	}

	return func(yield func(string) bool) {
		for slot := range DaySlots() {
			if _, ok := taken[slot]; ok {
				continue
			}
			if !yield(slot) {
				return
			}
		}
	}, nil
}

// Book reserves a slot. A slot already held for the department yields
// store.ErrSlotTaken and leaves storage unchanged.
func (m *Manager) Book(ctx context.Context, input BookInput) (models.Appointment, error) {
	name := strings.TrimSpace(input.Name)
	phone := strings.TrimSpace(input.Phone)
	dept := strings.TrimSpace(input.Dept)
	if err := validation.Contact(name, phone, strings.TrimSpace(input.Country), dept); err != nil {
		m.metrics.ObserveBooking(dept, "invalid")
		return models.Appointment{}, err
	}
	slot, err := m.normalizeSlot(input.Slot)
	if err != nil {
		m.metrics.ObserveBooking(dept, "invalid")
		return models.Appointment{}, err
	}

	appointment, err := m.store.BookAppointment(ctx, store.CreateAppointmentInput{
		Name:     name,
		Phone:    phone,
		Dept:     dept,
		Slot:     slot,
		BookedAt: m.now().UTC(),
	})
	switch {
	case errors.Is(err, store.ErrSlotTaken):
		m.metrics.ObserveBooking(dept, "taken")
		m.logger.Info().Str("dept", dept).Str("slot", slot).Msg("slot already booked")
		return models.Appointment{}, err
	case err != nil:
		m.metrics.ObserveBooking(dept, "error")
		return models.Appointment{}, fmt.Errorf("book appointment: %w", err)
	}
	m.metrics.ObserveBooking(dept, "booked")
	m.logger.Info().Int64("appointment_id", appointment.ID).Str("dept", dept).Str("slot", slot).Msg("appointment booked")
	return appointment, nil
}

// Appointments lists bookings ordered by slot; an empty dept lists all.
func (m *Manager) Appointments(ctx context.Context, dept string) ([]models.Appointment, error) {
	dept = strings.TrimSpace(dept)
	if dept != "" {
		if err := validation.Department(dept); err != nil {
			return nil, err
		}
	}
	appointments, err := m.store.ListAppointments(ctx, dept)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (m *Manager) normalizeSlot(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", validation.Errorf("slot", "please select a slot")
	}
	var parsed time.Time
	var err error
	for _, layout := range inputLayouts {
		parsed, err = time.ParseInLocation(layout, raw, m.location)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", validation.Errorf("slot", "slot must look like YYYY-MM-DD HH:MM")
	}

	slot := parsed.Format(slotLayout)
	if _, hhmm, _ := strings.Cut(slot, " "); !isDaySlot(hhmm) || parsed.Second() != 0 {
		return "", validation.Errorf("slot", "%s is not a bookable time", hhmm)
	}
	today := m.now().In(m.location).Format(dateLayout)
	if parsed.Format(dateLayout) < today {
		return "", validation.Errorf("slot", "date %s is in the past", parsed.Format(dateLayout))
	}
	return slot, nil
}

func parseDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", validation.Errorf("date", "date is required")
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", validation.Errorf("date", "date must look like YYYY-MM-DD")
	}
	return day.Format(dateLayout), nil
}
