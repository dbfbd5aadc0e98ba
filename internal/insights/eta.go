package insights

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	fallbackMinutesPerPosition = 10
	minEstimateMinutes         = 5
	jitterLow                  = 0.9
	jitterHigh                 = 1.3
)

// Jitter supplies uniform values in [0, 1).
type Jitter interface {
	Float64() float64
}

type lockedJitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (j *lockedJitter) Float64() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rng.Float64()
}

// NewJitter returns a goroutine-safe source. A zero seed picks one from
// the clock.
func NewJitter(seed uint64) Jitter {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedJitter{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// EstimateETA returns the expected wait in minutes for a patient at the
// given 1-based position. Without completed visits to average over it
// falls back to ten minutes per position.
func EstimateETA(avgServiceMinutes float64, hasHistory bool, position int, jitter Jitter) float64 {
	if position < 1 {
		position = 1
	}
	if !hasHistory {
		return float64(fallbackMinutesPerPosition * position)
	}
	factor := jitterLow + jitter.Float64()*(jitterHigh-jitterLow)
	return math.Max(minEstimateMinutes, avgServiceMinutes*float64(position)*factor)
}
