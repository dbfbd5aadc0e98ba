package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	"cliniq/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedJitter float64

func (f fixedJitter) Float64() float64 { return float64(f) }

func TestTriageScore(t *testing.T) {
	cases := []struct {
		symptoms string
		want     int
	}{
		{"I have chest pain", 5},
		{"mild headache", 3},
		{"", 1},
		{"   ", 1},
		{"just a checkup", 1},
		{"SEVERE PAIN in knee", 3},
		{"severe pain and Bleeding", 5},
		{"patient was unconscious", 5},
		{"dry cough", 3},
	}
	for _, tt := range cases {
		assert.Equal(t, tt.want, TriageScore(tt.symptoms), "symptoms %q", tt.symptoms)
	}
}

func TestEstimateETA(t *testing.T) {
	assert.Equal(t, 30.0, EstimateETA(0, false, 3, fixedJitter(0.99)))
	assert.Equal(t, 10.0, EstimateETA(0, false, 0, fixedJitter(0.5)))
	assert.InDelta(t, 26.4, EstimateETA(12, true, 2, fixedJitter(0.5)), 1e-9)
	assert.Equal(t, 5.0, EstimateETA(1, true, 1, fixedJitter(0)))
}

func TestEstimateETAJitterBounds(t *testing.T) {
	jitter := NewJitter(42)
	for i := 0; i < 1000; i++ {
		eta := EstimateETA(20, true, 1, jitter)
		require.GreaterOrEqual(t, eta, 18.0)
		require.Less(t, eta, 26.0)
	}
}

func TestNewJitterDeterministic(t *testing.T) {
	a, b := NewJitter(7), NewJitter(7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func at(day, hour int) time.Time {
	return time.Date(2026, 1, day, hour, 15, 0, 0, time.UTC)
}

func TestMostAvailableHour(t *testing.T) {
	assert.Equal(t, 0, MostAvailableHour(nil, time.UTC))

	var arrivals []models.Arrival
	for hour := 0; hour < 24; hour++ {
		if hour == 3 || hour == 5 {
			continue
		}
		arrivals = append(arrivals, models.Arrival{Dept: "General", At: at(12, hour)})
	}
	assert.Equal(t, 3, MostAvailableHour(arrivals, time.UTC))
}

func TestMostAvailableHourUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	var arrivals []models.Arrival
	for hour := 0; hour < 24; hour++ {
		arrivals = append(arrivals, models.Arrival{At: time.Date(2026, 1, 12, hour, 0, 0, 0, loc)})
	}
	arrivals = append(arrivals[:4], arrivals[5:]...)
	assert.Equal(t, 4, MostAvailableHour(arrivals, loc))
}

func TestBusiestDay(t *testing.T) {
	assert.Equal(t, "Monday", BusiestDay(nil, time.UTC))

	arrivals := []models.Arrival{
		{At: at(12, 9)},
		{At: at(14, 9)},
		{At: at(14, 10)},
		{At: at(16, 11)},
	}
	assert.Equal(t, "Wednesday", BusiestDay(arrivals, time.UTC))

	tied := []models.Arrival{{At: at(16, 9)}, {At: at(13, 9)}}
	assert.Equal(t, "Tuesday", BusiestDay(tied, time.UTC))
}

func TestRecommendSlot(t *testing.T) {
	cases := []struct {
		now  time.Time
		want string
	}{
		{at(12, 8), "Tuesday at 14:00"},
		{at(16, 8), "Monday at 14:00"},
		{at(17, 8), "Tuesday at 14:00"},
		{at(18, 8), "Wednesday at 14:00"},
	}
	for _, tt := range cases {
		assert.Equal(t, tt.want, RecommendSlot(tt.now, 14, "Cardiology"))
		assert.Equal(t, tt.want, RecommendSlot(tt.now, 14, "General"))
	}
}

func TestPeakHours(t *testing.T) {
	arrivals := []models.Arrival{
		{Dept: "Ortho", At: at(12, 9)},
		{Dept: "General", At: at(12, 10)},
		{Dept: "General", At: at(13, 10)},
		{Dept: "General", At: at(13, 8)},
	}
	cells := PeakHours(arrivals, time.UTC)
	assert.Equal(t, []PeakCell{
		{Dept: "General", Hour: 8, Count: 1},
		{Dept: "General", Hour: 10, Count: 2},
		{Dept: "Ortho", Hour: 9, Count: 1},
	}, cells)
}

func TestChatResponse(t *testing.T) {
	facts := Facts{MostAvailableHour: 15, BusiestDay: "Friday"}
	assert.Equal(t, "Most available hour: 15:00", ChatResponse("What is the BEST TIME to come?", facts))
	assert.Equal(t, "Most available hour: 15:00", ChatResponse("is anyone available", facts))
	assert.Equal(t, "Busiest day: Friday", ChatResponse("is it crowded?", facts))
	assert.Contains(t, ChatResponse("how long is the wait", facts), "queue tracking")
	assert.Contains(t, ChatResponse("I want to book", facts), "booking")
	assert.Equal(t, chatHelp, ChatResponse("hello", facts))
}

type stubArrivals struct {
	arrivals []models.Arrival
	err      error
}

func (s stubArrivals) ListArrivals(ctx context.Context) ([]models.Arrival, error) {
	return s.arrivals, s.err
}

func TestServiceSummary(t *testing.T) {
	svc := NewService(stubArrivals{}, Options{
		Location: time.UTC,
		Now:      func() time.Time { return at(12, 9) },
	})
	summary, err := svc.Summary(context.Background(), "General")
	require.NoError(t, err)
	assert.Equal(t, Summary{MostAvailableHour: 0, BusiestDay: "Monday", Recommendation: "Tuesday at 0:00"}, summary)

	reply, err := svc.Chat(context.Background(), "busy?")
	require.NoError(t, err)
	assert.Equal(t, "Busiest day: Monday", reply)
}

func TestServiceStoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(stubArrivals{err: boom}, Options{})
	_, err := svc.PeakHours(context.Background())
	require.ErrorIs(t, err, boom)
}
